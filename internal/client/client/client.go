package client

import (
	"context"

	"github.com/dmitrijs2005/twidder/internal/client/models"
)

// Client is the narrow set of backend operations the client needs. Every
// call that takes a session is authorized with a credential derived from it.
type Client interface {
	Close() error

	// CreateSession exchanges email and password for a session token.
	CreateSession(ctx context.Context, email, password string) (string, error)
	DestroySession(ctx context.Context, sess models.Session) error

	CreateUser(ctx context.Context, user models.NewUser) error
	FetchUser(ctx context.Context, sess models.Session, email string) (*models.UserProfile, error)
	UpdateUser(ctx context.Context, sess models.Session, email string, upd models.UserUpdate) error
	DeleteUser(ctx context.Context, sess models.Session, email string) error

	FetchPosts(ctx context.Context, sess models.Session, owner string) ([]models.Post, error)
	// CreatePost writes content on the wall of owner and returns the new post id.
	CreatePost(ctx context.Context, sess models.Session, owner, content, media string) (string, error)
	DeletePost(ctx context.Context, sess models.Session, id string) error

	// OpenChannel connects the realtime channel. The handlers are installed
	// before the first read so no message can be missed. It returns
	// ErrChannelUnsupported when the backend has no channel.
	OpenChannel(ctx context.Context, h ChannelHandlers) (Channel, error)
}

// ChannelHandlers receive channel events. They run on the channel's read
// goroutine; nil handlers are skipped.
type ChannelHandlers struct {
	OnMessage func(msg []byte)
	// OnClose fires once when the peer closes the channel or the connection
	// drops. It does not fire after a local Close.
	OnClose func(err error)
	OnError func(err error)
}

type Channel interface {
	Send(ctx context.Context, msg []byte) error
	Close() error
}
