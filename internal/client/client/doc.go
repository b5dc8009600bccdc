// Package client is the backend gateway of the Twidder client.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic contract (see the Client interface) covering
//     sessions, users, posts and the optional realtime channel.
//  2. A REST implementation (see HTTPClient) that signs every authorized
//     request with a pluggable signer.Signer, decodes the backend's JSON
//     shapes and maps HTTP statuses to sentinel errors.
//  3. A WebSocket channel built on gorilla/websocket.
//
// # Error Handling
//
// Backend rejections are exposed as sentinel errors that callers match with
// errors.Is: ErrUnauthorized (401), ErrForbidden (403), ErrNotFound (404),
// ErrConflict (409) and ErrUnexpectedStatus for anything else. Failures to
// reach the backend at all wrap ErrUnavailable, which lets callers tell
// "can't reach backend" from "backend rejected me".
//
// # Concurrency & Contexts
//
// HTTPClient is safe for concurrent use. Operations honor ctx cancellation
// but impose no timeouts of their own; only the channel handshake is
// bounded by the dial timeout.
package client
