package models

import (
	"strings"
	"time"
)

// Post is a single message on a user's wall.
type Post struct {
	// ID is assigned by the backend and unique within a wall.
	ID string

	// Author is the email of the user who wrote the post.
	Author string

	// WallOwner is the email of the user whose wall holds the post.
	WallOwner string

	// Content is free text and may contain newlines.
	Content string

	// Media is an optional image or video data-URI.
	Media string

	CreatedAt time.Time
	EditedAt  time.Time
}

// Lines splits the content on newline boundaries. CRLF is treated as LF.
func (p Post) Lines() []string {
	return strings.Split(strings.ReplaceAll(p.Content, "\r\n", "\n"), "\n")
}

// Edited reports whether the post was changed after creation.
func (p Post) Edited() bool {
	return p.EditedAt.After(p.CreatedAt)
}

// Newer reports whether p sorts before q in display order: newest first,
// ties broken by descending ID.
func (p Post) Newer(q Post) bool {
	if !p.CreatedAt.Equal(q.CreatedAt) {
		return p.CreatedAt.After(q.CreatedAt)
	}
	return CompareIDs(p.ID, q.ID) > 0
}

// CompareIDs orders backend identifiers. Numeric IDs compare numerically,
// anything else lexically.
func CompareIDs(a, b string) int {
	if isDigits(a) && isDigits(b) {
		a = strings.TrimLeft(a, "0")
		b = strings.TrimLeft(b, "0")
		if len(a) != len(b) {
			if len(a) < len(b) {
				return -1
			}
			return 1
		}
	}
	return strings.Compare(a, b)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
