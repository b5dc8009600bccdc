// Package models defines the client-side data models of the Twidder client.
package models

// Session is the authenticated identity persisted across restarts.
// Token and Email are always set and cleared together.
type Session struct {
	Token string
	Email string
}

// Valid reports whether both halves of the session are present.
func (s Session) Valid() bool {
	return s.Token != "" && s.Email != ""
}
