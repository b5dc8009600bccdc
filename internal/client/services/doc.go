// Package services holds the application logic of the Twidder client.
//
// SessionService owns the authentication state machine (login, bootstrap,
// logout and reaction to the realtime channel closing). Wall keeps one
// displayed post list in canonical order and turns every change into
// renderer patches computed by Reconcile. BrowseService and AccountService
// build the remaining user flows on top of them.
//
// Errors returned from this package carry one of the kinds declared in
// errors.go; Message gives the text to show the user.
package services
