package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/twidder/internal/client/models"
)

type sessionRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type createPostRequest struct {
	Email   string `json:"email"`
	Message string `json:"message"`
	Media   string `json:"media,omitempty"`
}

type createPostResponse struct {
	ID flexID `json:"id"`
}

type postsResponse struct {
	Posts []postDTO `json:"posts"`
}

type postDTO struct {
	ID      flexID   `json:"id"`
	Author  string   `json:"author"`
	User    string   `json:"user"`
	Content string   `json:"content"`
	Media   string   `json:"media,omitempty"`
	Created flexTime `json:"created"`
	Edited  flexTime `json:"edited"`
}

func (p postDTO) toModel(owner string) models.Post {
	wallOwner := p.User
	if wallOwner == "" {
		wallOwner = owner
	}
	return models.Post{
		ID:        string(p.ID),
		Author:    p.Author,
		WallOwner: wallOwner,
		Content:   p.Content,
		Media:     p.Media,
		CreatedAt: time.Time(p.Created),
		EditedAt:  time.Time(p.Edited),
	}
}

// flexID accepts identifiers sent either as JSON strings or numbers.
type flexID string

func (id *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", b, err)
	}
	*id = flexID(n.String())
	return nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC1123,
	time.RFC1123Z,
	"2006-01-02 15:04:05.999999-07:00",
	"2006-01-02 15:04:05.999999",
}

// flexTime accepts RFC 3339, HTTP dates (RFC 1123), SQL-style timestamps
// and Unix seconds.
type flexTime time.Time

func (t *flexTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*t = flexTime{}
		return nil
	}
	if len(b) > 0 && b[0] != '"' {
		secs, err := strconv.ParseFloat(string(b), 64)
		if err != nil {
			return fmt.Errorf("invalid timestamp %s: %w", b, err)
		}
		*t = flexTime(time.UnixMilli(int64(secs * 1000)).UTC())
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*t = flexTime{}
		return nil
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = flexTime(parsed)
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}
