package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/twidder/internal/client/client"
	"github.com/dmitrijs2005/twidder/internal/client/models"
	"github.com/dmitrijs2005/twidder/internal/logging"
)

// BrowseService shows other users' profiles and walls.
type BrowseService struct {
	client  client.Client
	session *SessionService
	wall    *Wall
	log     logging.Logger

	mu      sync.Mutex
	seq     uint64
	profile *models.UserProfile
}

func NewBrowseService(c client.Client, session *SessionService, r Renderer, log logging.Logger) *BrowseService {
	b := &BrowseService{
		client:  c,
		session: session,
		wall:    newWall(WallBrowse, c, session, r, log),
		log:     log.With("component", "browse"),
	}
	session.OnSessionEnd(b.Reset)
	return b
}

func (b *BrowseService) Wall() *Wall { return b.wall }

// Profile returns the profile currently browsed.
func (b *BrowseService) Profile() (models.UserProfile, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.profile == nil {
		return models.UserProfile{}, false
	}
	return *b.profile, true
}

// Browse loads the profile and wall of email. Both must load; otherwise
// nothing on screen changes. An unknown user is an ErrNotFound error.
func (b *BrowseService) Browse(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return validationError("Enter an email to search for.")
	}

	sess, ok := b.session.Current()
	if !ok {
		return newError(ErrNotAuthenticated, "You are not logged in.", nil)
	}

	b.mu.Lock()
	b.seq++
	seq := b.seq
	b.mu.Unlock()
	wallSeq := b.wall.begin()

	var (
		profile *models.UserProfile
		posts   []models.Post
		g       errgroup.Group
	)
	g.Go(func() error {
		p, err := b.client.FetchUser(ctx, sess, email)
		profile = p
		return err
	})
	g.Go(func() error {
		p, err := b.client.FetchPosts(ctx, sess, email)
		posts = p
		return err
	})
	if err := g.Wait(); err != nil {
		err = translate(err, map[error]string{client.ErrNotFound: msgUserNotFound})
		if errors.Is(err, ErrSessionInvalid) {
			b.session.Invalidate(ctx)
		}
		return err
	}
	if !b.wall.current(sess) {
		return errSuperseded
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if seq != b.seq {
		return errSuperseded
	}
	if !b.wall.apply(wallSeq, email, posts, sess.Email) {
		return errSuperseded
	}
	b.profile = profile
	b.log.Debug(ctx, "browsing", "email", email, "posts", len(posts))
	return nil
}

// Post writes on the wall currently browsed.
func (b *BrowseService) Post(ctx context.Context, content, media string) (models.Post, error) {
	owner := b.wall.Owner()
	if owner == "" {
		return models.Post{}, validationError("Browse a user first.")
	}
	return b.wall.Publish(ctx, owner, content, media)
}

// Reset forgets the browsed user.
func (b *BrowseService) Reset() {
	b.mu.Lock()
	b.seq++
	b.profile = nil
	b.mu.Unlock()
	b.wall.Reset()
}
