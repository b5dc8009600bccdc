package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/twidder/internal/client/client"
	"github.com/dmitrijs2005/twidder/internal/client/models"
	"github.com/dmitrijs2005/twidder/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/twidder/internal/client/signer"
	"github.com/dmitrijs2005/twidder/internal/logging"
)

const (
	keyToken = "token"
	keyEmail = "email"

	handshakeOK   = "ok"
	handshakeFail = "fail"
)

type State int

const (
	Unauthenticated State = iota
	Bootstrapping
	Authenticated
	LoggingOut
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Bootstrapping:
		return "bootstrapping"
	case Authenticated:
		return "authenticated"
	case LoggingOut:
		return "logging out"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var errSuperseded = newError(ErrNotAuthenticated, "The session changed while loading.", nil)

// SessionService drives login, bootstrap and logout and reacts to the
// realtime channel closing.
//
// State lives in three places: the persisted store, in-flight backend calls
// and the channel. mu serializes every transition together with the store
// write that goes with it, and gen counts transitions so that a flow
// resuming after a backend call can tell it has been overtaken and drop its
// result. mu is never held across a backend call.
type SessionService struct {
	client   client.Client
	store    metadata.Repository
	signer   signer.Signer
	notifier Notifier
	log      logging.Logger
	home     *Wall

	mu          sync.Mutex
	state       State
	gen         uint64
	current     models.Session
	profile     *models.UserProfile
	channel     client.Channel
	channelLost bool
	onEnd       []func()
}

func NewSessionService(c client.Client, store metadata.Repository, s signer.Signer, n Notifier, r Renderer, log logging.Logger) *SessionService {
	if s == nil {
		s = signer.Bearer{}
	}
	svc := &SessionService{
		client:   c,
		store:    store,
		signer:   s,
		notifier: n,
		log:      log.With("component", "session"),
	}
	svc.home = newWall(WallHome, c, svc, r, log)
	return svc
}

// Home is the current user's wall.
func (s *SessionService) Home() *Wall { return s.home }

// OnSessionEnd registers fn to run whenever the session ends, after the
// home wall is cleared.
func (s *SessionService) OnSessionEnd(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEnd = append(s.onEnd, fn)
}

func (s *SessionService) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Current returns the session while authenticated.
func (s *SessionService) Current() (models.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Authenticated {
		return models.Session{}, false
	}
	return s.current, true
}

// Profile returns a copy of the cached profile of the current user.
func (s *SessionService) Profile() (models.UserProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Authenticated || s.profile == nil {
		return models.UserProfile{}, false
	}
	return *s.profile, true
}

// updateProfile applies a successful update to the cached profile.
func (s *SessionService) updateProfile(email string, upd models.UserUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Authenticated && s.profile != nil && s.current.Email == email {
		upd.ApplyTo(s.profile)
	}
}

// Login exchanges credentials for a session, persists it and bootstraps.
func (s *SessionService) Login(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return validationError("Email and password are required.")
	}

	s.mu.Lock()
	if s.state != Unauthenticated {
		s.mu.Unlock()
		return validationError("You are already logged in.")
	}
	s.gen++
	gen := s.gen
	s.state = Bootstrapping
	s.mu.Unlock()

	token, err := s.client.CreateSession(ctx, email, password)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return errSuperseded
	}
	if err != nil {
		s.state = Unauthenticated
		s.mu.Unlock()

		if errors.Is(err, client.ErrUnauthorized) {
			s.log.Info(ctx, "login rejected", "email", email)
			s.notifier.Error(msgInvalidCredentials)
			return newError(ErrInvalidCredentials, msgInvalidCredentials, err)
		}
		err = translate(err, nil)
		s.notifier.Error(Message(err))
		return err
	}

	if err := s.store.SetMany(ctx, map[string]string{keyToken: token, keyEmail: email}); err != nil {
		s.state = Unauthenticated
		s.mu.Unlock()
		s.notifier.Error("Could not save the session.")
		return fmt.Errorf("save session: %w", err)
	}
	s.mu.Unlock()

	s.log.Info(ctx, "logged in", "email", email)
	return s.bootstrap(ctx, gen)
}

// Bootstrap restores the persisted session, if any, and validates it. It
// returns an ErrNotAuthenticated error when there is nothing to restore.
func (s *SessionService) Bootstrap(ctx context.Context) error {
	s.mu.Lock()
	if s.state == LoggingOut {
		s.mu.Unlock()
		return errSuperseded
	}
	s.gen++
	gen := s.gen
	s.state = Bootstrapping
	s.dropChannelLocked()
	s.mu.Unlock()

	return s.bootstrap(ctx, gen)
}

func (s *SessionService) bootstrap(ctx context.Context, gen uint64) error {
	s.mu.Lock()
	sess, ok, err := s.loadSessionLocked(ctx)
	if gen != s.gen {
		s.mu.Unlock()
		return errSuperseded
	}
	if err != nil || !ok {
		s.state = Unauthenticated
		s.mu.Unlock()
		if err != nil {
			return fmt.Errorf("load session: %w", err)
		}
		return newError(ErrNotAuthenticated, "You are not logged in.", nil)
	}
	s.mu.Unlock()

	if err := s.handshake(ctx, gen, sess); err != nil {
		return s.bootstrapFailed(ctx, gen, err)
	}

	homeSeq := s.home.begin()
	var (
		profile *models.UserProfile
		posts   []models.Post
		g       errgroup.Group
	)
	g.Go(func() error {
		p, err := s.client.FetchUser(ctx, sess, sess.Email)
		profile = p
		return err
	})
	g.Go(func() error {
		p, err := s.client.FetchPosts(ctx, sess, sess.Email)
		posts = p
		return err
	})
	if err := g.Wait(); err != nil {
		return s.bootstrapFailed(ctx, gen, err)
	}

	s.mu.Lock()
	stored, ok, err := s.loadSessionLocked(ctx)
	if gen != s.gen || err != nil || !ok || stored != sess {
		s.mu.Unlock()
		return errSuperseded
	}
	if s.channelLost {
		s.mu.Unlock()
		return s.bootstrapFailed(ctx, gen, ErrSessionInvalid)
	}
	s.state = Authenticated
	s.current = sess
	s.profile = profile
	s.mu.Unlock()

	s.home.apply(homeSeq, sess.Email, posts, sess.Email)
	s.log.Info(ctx, "session restored", "email", sess.Email, "posts", len(posts))
	return nil
}

// handshake validates sess over the realtime channel. A backend without a
// channel skips validation here; the profile fetch then validates instead.
func (s *SessionService) handshake(ctx context.Context, gen uint64, sess models.Session) error {
	replies := make(chan string, 4)
	offer := func(r string) {
		select {
		case replies <- r:
		default:
		}
	}

	ch, err := s.client.OpenChannel(ctx, client.ChannelHandlers{
		OnMessage: func(msg []byte) { offer(string(msg)) },
		OnClose: func(err error) {
			offer("")
			s.channelClosed(gen, err)
		},
		OnError: func(err error) {
			s.log.Warn(context.Background(), "channel error", "error", err)
		},
	})
	if errors.Is(err, client.ErrChannelUnsupported) {
		return nil
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		_ = ch.Close()
		return errSuperseded
	}
	s.channel = ch
	s.channelLost = false
	s.mu.Unlock()

	credential, err := s.signer.Sign(sess.Email, sess.Token, nil)
	if err != nil {
		return err
	}
	if err := ch.Send(ctx, []byte(credential)); err != nil {
		return err
	}

	select {
	case reply := <-replies:
		switch reply {
		case handshakeOK:
			return nil
		case handshakeFail:
			s.log.Info(ctx, "channel rejected session", "email", sess.Email)
			return ErrSessionInvalid
		case "":
			return ErrSessionInvalid
		default:
			return fmt.Errorf("%w: unexpected handshake reply %q", ErrSessionInvalid, reply)
		}
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", client.ErrUnavailable, ctx.Err())
	}
}

// bootstrapFailed separates "can't reach backend" from "backend rejected
// the session". Only the latter clears the persisted session.
func (s *SessionService) bootstrapFailed(ctx context.Context, gen uint64, cause error) error {
	if errors.Is(cause, errSuperseded) {
		return cause
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return errSuperseded
	}
	s.gen++
	s.dropChannelLocked()
	s.state = Unauthenticated

	if errors.Is(cause, client.ErrUnavailable) {
		s.mu.Unlock()
		s.log.Warn(ctx, "bootstrap could not reach backend", "error", cause)
		err := newError(ErrTransport, msgUnreachable, cause)
		s.notifier.Error(Message(err))
		return err
	}

	clearErr := s.clearStoreLocked(ctx)
	s.mu.Unlock()

	s.clearViews()
	s.log.Info(ctx, "session rejected", "error", cause)
	s.notifier.Info(msgLoggedOut)
	return errors.Join(newError(ErrSessionInvalid, msgLoggedOut, cause), clearErr)
}

// Logout ends the session. The backend is told on a best-effort basis;
// local state is cleared regardless.
func (s *SessionService) Logout(ctx context.Context) error {
	s.mu.Lock()
	if s.state == Unauthenticated || s.state == LoggingOut {
		s.mu.Unlock()
		return newError(ErrNotAuthenticated, "You are not logged in.", nil)
	}
	sess := s.current
	if !sess.Valid() {
		sess, _, _ = s.loadSessionLocked(ctx)
	}
	s.gen++
	s.state = LoggingOut
	s.dropChannelLocked()
	s.mu.Unlock()

	var destroyErr error
	if sess.Valid() {
		if err := s.client.DestroySession(ctx, sess); err != nil {
			destroyErr = translate(err, map[error]string{client.ErrUnauthorized: "The server had already ended the session."})
			s.log.Warn(ctx, "destroy session failed", "error", err)
			s.notifier.Error(Message(destroyErr))
		}
	}

	s.mu.Lock()
	s.gen++
	clearErr := s.clearStoreLocked(ctx)
	s.state = Unauthenticated
	s.mu.Unlock()

	s.clearViews()
	s.log.Info(ctx, "logged out", "email", sess.Email)
	s.notifier.Success(msgLogoutDone)
	return clearErr
}

// Invalidate ends the session after the backend rejected it during a data
// operation. It is a no-op unless authenticated.
func (s *SessionService) Invalidate(ctx context.Context) {
	s.expire(ctx, 0, msgLoggedOut)
}

// endSession clears the session locally without telling the backend, which
// has already dropped it.
func (s *SessionService) endSession(ctx context.Context, notice string) {
	s.expire(ctx, 0, notice)
}

// channelClosed handles the channel going away without us closing it.
func (s *SessionService) channelClosed(gen uint64, err error) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.channel = nil
	if s.state == Bootstrapping {
		// bootstrap notices this before it completes
		s.channelLost = true
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.log.Info(context.Background(), "channel closed by server", "error", err)
	s.expire(context.Background(), gen, msgLoggedOut)
}

// expire clears an authenticated session. A non-zero gen restricts it to
// that generation.
func (s *SessionService) expire(ctx context.Context, gen uint64, notice string) {
	s.mu.Lock()
	if s.state != Authenticated || (gen != 0 && gen != s.gen) {
		s.mu.Unlock()
		return
	}
	s.gen++
	s.state = Unauthenticated
	s.dropChannelLocked()
	if err := s.clearStoreLocked(ctx); err != nil {
		s.log.Error(ctx, "clear session failed", "error", err)
	}
	s.mu.Unlock()

	s.clearViews()
	s.notifier.Info(notice)
}

// clearViews empties every wall that showed data of the ended session.
func (s *SessionService) clearViews() {
	s.mu.Lock()
	hooks := slices.Clone(s.onEnd)
	s.mu.Unlock()

	s.home.Reset()
	for _, fn := range hooks {
		fn()
	}
}

// loadSessionLocked reads the persisted session. A half-written session is
// removed so both keys are always present or absent together.
func (s *SessionService) loadSessionLocked(ctx context.Context) (models.Session, bool, error) {
	token, hasToken, err := s.store.Get(ctx, keyToken)
	if err != nil {
		return models.Session{}, false, err
	}
	email, hasEmail, err := s.store.Get(ctx, keyEmail)
	if err != nil {
		return models.Session{}, false, err
	}

	sess := models.Session{Token: token, Email: email}
	if hasToken && hasEmail && sess.Valid() {
		return sess, true, nil
	}
	if hasToken || hasEmail {
		s.log.Warn(ctx, "discarding incomplete persisted session")
		if err := s.store.Delete(ctx, keyToken, keyEmail); err != nil {
			return models.Session{}, false, err
		}
	}
	return models.Session{}, false, nil
}

func (s *SessionService) clearStoreLocked(ctx context.Context) error {
	s.current = models.Session{}
	s.profile = nil
	if err := s.store.Delete(ctx, keyToken, keyEmail); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// releaseChannel closes our channel ahead of a call that makes the backend
// close it, so that close is not taken for a revocation. The session stays
// authenticated; data operations still detect a rejected token.
func (s *SessionService) releaseChannel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Authenticated {
		return
	}
	s.gen++
	s.dropChannelLocked()
}

// reattach reopens the channel dropped by releaseChannel when the call that
// was meant to close it failed. A session the channel rejects is expired.
func (s *SessionService) reattach(ctx context.Context) {
	s.mu.Lock()
	if s.state != Authenticated || s.channel != nil {
		s.mu.Unlock()
		return
	}
	s.gen++
	gen := s.gen
	sess := s.current
	s.mu.Unlock()

	err := s.handshake(ctx, gen, sess)
	switch {
	case err == nil, errors.Is(err, errSuperseded):
	case errors.Is(err, ErrSessionInvalid):
		s.expire(ctx, gen, msgLoggedOut)
	default:
		s.log.Warn(ctx, "could not reopen channel", "error", err)
	}
}

// dropChannelLocked closes our own channel. Local closes do not report back
// through OnClose, and gen has moved on for any close already in flight.
func (s *SessionService) dropChannelLocked() {
	if s.channel != nil {
		_ = s.channel.Close()
		s.channel = nil
	}
	s.channelLost = false
}
