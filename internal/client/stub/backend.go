// Package stub is an in-memory Twidder backend. It implements client.Client
// without a network and is used by the terminal client's offline mode and by
// tests.
//
// Each user holds at most one session: logging in again revokes the previous
// token and closes any channel bound to it, which is how the real backend
// tells an older client it has been logged out.
package stub

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/twidder/internal/client/client"
	"github.com/dmitrijs2005/twidder/internal/client/models"
	"github.com/dmitrijs2005/twidder/internal/client/signer"
)

var ErrSessionRevoked = errors.New("session revoked")

type account struct {
	profile  models.UserProfile
	password string
}

// Backend is safe for concurrent use.
type Backend struct {
	mu       sync.Mutex
	users    map[string]*account
	sessions map[string]string // token -> email
	tokens   map[string]string // email -> token
	posts    []models.Post
	channels map[*channel]struct{}

	signer signer.Signer
	now    func() time.Time
	newID  func() string
}

type Option func(*Backend)

// WithClock overrides the time source used to stamp posts.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

// WithIDs overrides the generator used for tokens and post ids.
func WithIDs(next func() string) Option {
	return func(b *Backend) { b.newID = next }
}

// New builds an empty backend. s must match the signer the client uses; it
// is needed to recognise credentials sent over the channel.
func New(s signer.Signer, opts ...Option) *Backend {
	if s == nil {
		s = signer.Bearer{}
	}
	b := &Backend{
		users:    make(map[string]*account),
		sessions: make(map[string]string),
		tokens:   make(map[string]string),
		channels: make(map[*channel]struct{}),
		signer:   s,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var _ client.Client = (*Backend)(nil)

func (b *Backend) Close() error {
	b.mu.Lock()
	chans := make([]*channel, 0, len(b.channels))
	for ch := range b.channels {
		chans = append(chans, ch)
	}
	b.mu.Unlock()

	for _, ch := range chans {
		_ = ch.Close()
	}
	return nil
}

func (b *Backend) CreateSession(_ context.Context, email, password string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	acc, ok := b.users[email]
	if !ok || acc.password != password {
		return "", client.ErrUnauthorized
	}

	b.revokeLocked(email)
	token := b.newID()
	b.sessions[token] = email
	b.tokens[email] = token
	return token, nil
}

func (b *Backend) DestroySession(_ context.Context, sess models.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.authorizeLocked(sess); err != nil {
		return err
	}
	b.revokeLocked(sess.Email)
	return nil
}

func (b *Backend) CreateUser(_ context.Context, u models.NewUser) error {
	if u.Email == "" || u.Password == "" || u.FirstName == "" || u.LastName == "" ||
		u.City == "" || u.Country == "" || !strings.Contains(u.Email, "@") {
		return client.ErrForbidden
	}
	if _, err := models.ParseGender(string(u.Gender)); err != nil {
		return client.ErrForbidden
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.users[u.Email]; exists {
		return client.ErrConflict
	}
	b.users[u.Email] = &account{
		password: u.Password,
		profile: models.UserProfile{
			Email:     u.Email,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Gender:    u.Gender,
			City:      u.City,
			Country:   u.Country,
		},
	}
	return nil
}

func (b *Backend) FetchUser(_ context.Context, sess models.Session, email string) (*models.UserProfile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.authorizeLocked(sess); err != nil {
		return nil, err
	}
	acc, ok := b.users[email]
	if !ok {
		return nil, client.ErrNotFound
	}
	p := acc.profile
	return &p, nil
}

func (b *Backend) UpdateUser(_ context.Context, sess models.Session, email string, upd models.UserUpdate) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.authorizeLocked(sess); err != nil {
		return err
	}
	if email != sess.Email {
		return client.ErrForbidden
	}
	acc, ok := b.users[email]
	if !ok {
		return client.ErrNotFound
	}

	if upd.Gender != nil {
		if _, err := models.ParseGender(string(*upd.Gender)); err != nil {
			return client.ErrForbidden
		}
	}
	if upd.NewPassword != nil {
		if upd.OldPassword == nil || *upd.OldPassword != acc.password || *upd.NewPassword == "" {
			return client.ErrForbidden
		}
		acc.password = *upd.NewPassword
	}
	upd.ApplyTo(&acc.profile)
	return nil
}

func (b *Backend) DeleteUser(_ context.Context, sess models.Session, email string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.authorizeLocked(sess); err != nil {
		return err
	}
	if email != sess.Email {
		return client.ErrForbidden
	}

	delete(b.users, email)
	b.posts = slices.DeleteFunc(b.posts, func(p models.Post) bool {
		return p.Author == email || p.WallOwner == email
	})
	b.revokeLocked(email)
	return nil
}

func (b *Backend) FetchPosts(_ context.Context, sess models.Session, owner string) ([]models.Post, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.authorizeLocked(sess); err != nil {
		return nil, err
	}
	if _, ok := b.users[owner]; !ok {
		return nil, client.ErrNotFound
	}

	var out []models.Post
	for _, p := range b.posts {
		if p.WallOwner == owner {
			out = append(out, p)
		}
	}
	return out, nil
}

func (b *Backend) CreatePost(_ context.Context, sess models.Session, owner, content, media string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.authorizeLocked(sess); err != nil {
		return "", err
	}
	if _, ok := b.users[owner]; !ok {
		return "", client.ErrForbidden
	}
	if content == "" && media == "" {
		return "", client.ErrForbidden
	}

	now := b.now().UTC()
	p := models.Post{
		ID:        b.newID(),
		Author:    sess.Email,
		WallOwner: owner,
		Content:   content,
		Media:     media,
		CreatedAt: now,
		EditedAt:  now,
	}
	b.posts = append(b.posts, p)
	return p.ID, nil
}

func (b *Backend) DeletePost(_ context.Context, sess models.Session, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.authorizeLocked(sess); err != nil {
		return err
	}
	i := slices.IndexFunc(b.posts, func(p models.Post) bool { return p.ID == id })
	if i < 0 {
		return client.ErrNotFound
	}
	if p := b.posts[i]; p.Author != sess.Email && p.WallOwner != sess.Email {
		return client.ErrForbidden
	}
	b.posts = slices.Delete(b.posts, i, i+1)
	return nil
}

func (b *Backend) OpenChannel(_ context.Context, h client.ChannelHandlers) (client.Channel, error) {
	ch := newChannel(b, h)

	b.mu.Lock()
	b.channels[ch] = struct{}{}
	b.mu.Unlock()

	return ch, nil
}

// RevokeSession drops the current session of email as if it had logged in
// elsewhere. Bound channels are closed.
func (b *Backend) RevokeSession(email string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revokeLocked(email)
}

func (b *Backend) authorizeLocked(sess models.Session) error {
	if sess.Token == "" {
		return client.ErrUnauthorized
	}
	if email, ok := b.sessions[sess.Token]; !ok || email != sess.Email {
		return client.ErrUnauthorized
	}
	return nil
}

func (b *Backend) revokeLocked(email string) {
	token, ok := b.tokens[email]
	if !ok {
		return
	}
	delete(b.tokens, email)
	delete(b.sessions, token)

	for ch := range b.channels {
		if ch.token == token {
			delete(b.channels, ch)
			ch.peerClose(ErrSessionRevoked)
		}
	}
}

// handshake matches credential against the live sessions and binds ch to
// the session it belongs to.
func (b *Backend) handshake(ch *channel, credential string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, open := b.channels[ch]; !open {
		return false
	}
	for token, email := range b.sessions {
		if signer.Verify(b.signer, email, token, nil, credential) == nil {
			ch.token = token
			return true
		}
	}
	return false
}

func (b *Backend) forget(ch *channel) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.channels, ch)
}
