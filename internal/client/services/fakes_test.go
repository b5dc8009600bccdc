package services

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/twidder/internal/client/client"
	"github.com/dmitrijs2005/twidder/internal/client/models"
	"github.com/dmitrijs2005/twidder/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/twidder/internal/logging"
)

// ---- fake client ----

// fakeClient implements client.Client with preset results and records the
// arguments it was called with.
type fakeClient struct {
	mu sync.Mutex

	CreateSessionToken string
	CreateSessionErr   error
	DestroySessionErr  error
	CreateUserErr      error
	FetchUserRet       map[string]*models.UserProfile
	FetchUserErr       error
	UpdateUserErr      error
	DeleteUserErr      error
	FetchPostsRet      map[string][]models.Post
	FetchPostsErr      error
	CreatePostID       string
	CreatePostErr      error
	DeletePostErr      error

	// PostsGates hold FetchPosts for an owner until released; PostGate
	// holds CreatePost.
	PostsGates map[string]*gate
	PostGate   *gate

	// Channel is returned by OpenChannel; nil means no channel support.
	Channel        *fakeChannel
	OpenChannelErr error

	DestroyCalls    int
	CreateUserCalls int
	UpdateCalls     int
	DeleteUserCalls int
	FetchCalls      int

	LastSession  models.Session
	LastNewUser  models.NewUser
	LastUpdate   models.UserUpdate
	LastPostBody struct{ Owner, Content, Media string }
	LastDeleteID string
}

func (f *fakeClient) Close() error { return nil }

func (f *fakeClient) CreateSession(_ context.Context, email, password string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.CreateSessionToken, f.CreateSessionErr
}

func (f *fakeClient) DestroySession(_ context.Context, sess models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DestroyCalls++
	f.LastSession = sess
	return f.DestroySessionErr
}

func (f *fakeClient) CreateUser(_ context.Context, u models.NewUser) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreateUserCalls++
	f.LastNewUser = u
	return f.CreateUserErr
}

func (f *fakeClient) FetchUser(_ context.Context, sess models.Session, email string) (*models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FetchCalls++
	f.LastSession = sess
	if f.FetchUserErr != nil {
		return nil, f.FetchUserErr
	}
	u, ok := f.FetchUserRet[email]
	if !ok {
		return nil, client.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeClient) UpdateUser(_ context.Context, sess models.Session, email string, upd models.UserUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UpdateCalls++
	f.LastUpdate = upd
	return f.UpdateUserErr
}

func (f *fakeClient) DeleteUser(_ context.Context, sess models.Session, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DeleteUserCalls++
	return f.DeleteUserErr
}

func (f *fakeClient) FetchPosts(_ context.Context, sess models.Session, owner string) ([]models.Post, error) {
	f.mu.Lock()
	g := f.PostsGates[owner]
	f.mu.Unlock()
	g.pass()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.FetchCalls++
	if f.FetchPostsErr != nil {
		return nil, f.FetchPostsErr
	}
	return append([]models.Post(nil), f.FetchPostsRet[owner]...), nil
}

func (f *fakeClient) CreatePost(_ context.Context, sess models.Session, owner, content, media string) (string, error) {
	f.mu.Lock()
	g := f.PostGate
	f.mu.Unlock()
	g.pass()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastPostBody.Owner, f.LastPostBody.Content, f.LastPostBody.Media = owner, content, media
	return f.CreatePostID, f.CreatePostErr
}

func (f *fakeClient) DeletePost(_ context.Context, sess models.Session, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastDeleteID = id
	return f.DeletePostErr
}

func (f *fakeClient) OpenChannel(_ context.Context, h client.ChannelHandlers) (client.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.OpenChannelErr != nil {
		return nil, f.OpenChannelErr
	}
	if f.Channel == nil {
		return nil, client.ErrChannelUnsupported
	}
	f.Channel.mu.Lock()
	f.Channel.handlers = h
	f.Channel.mu.Unlock()
	return f.Channel, nil
}

func (f *fakeClient) set(fn func(f *fakeClient)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

// gate parks a backend call so the test can act while it is in flight.
type gate struct {
	entered chan struct{}
	release chan struct{}
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}, 1), release: make(chan struct{})}
}

func (g *gate) pass() {
	if g == nil {
		return
	}
	select {
	case g.entered <- struct{}{}:
	default:
	}
	<-g.release
}

// ---- fake channel ----

type fakeChannel struct {
	mu       sync.Mutex
	handlers client.ChannelHandlers
	Reply    string
	Sent     []string
	Closed   int
}

func (c *fakeChannel) Send(_ context.Context, msg []byte) error {
	c.mu.Lock()
	c.Sent = append(c.Sent, string(msg))
	reply, h := c.Reply, c.handlers
	c.mu.Unlock()

	if reply != "" && h.OnMessage != nil {
		go h.OnMessage([]byte(reply))
	}
	return nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Closed++
	return nil
}

// PeerClose simulates the server dropping the channel.
func (c *fakeChannel) PeerClose(err error) {
	c.mu.Lock()
	h := c.handlers
	c.mu.Unlock()
	if h.OnClose != nil {
		h.OnClose(err)
	}
}

func (c *fakeChannel) closed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Closed
}

// ---- notifier / renderer ----

type recordingNotifier struct {
	mu        sync.Mutex
	infos     []string
	successes []string
	errors    []string
}

func (n *recordingNotifier) Info(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.infos = append(n.infos, msg)
}

func (n *recordingNotifier) Success(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, msg)
}

func (n *recordingNotifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}

func (n *recordingNotifier) count(msg string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, list := range [][]string{n.infos, n.successes, n.errors} {
		for _, m := range list {
			if m == msg {
				c++
			}
		}
	}
	return c
}

type recordingRenderer struct {
	mu      sync.Mutex
	walls   map[string][]PostView
	patches map[string][][]Patch
}

func newRecordingRenderer() *recordingRenderer {
	return &recordingRenderer{walls: map[string][]PostView{}, patches: map[string][][]Patch{}}
}

func (r *recordingRenderer) Apply(wall string, patches []Patch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.walls[wall] = ApplyPatches(r.walls[wall], patches)
	r.patches[wall] = append(r.patches[wall], patches)
}

func (r *recordingRenderer) ids(wall string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, v := range r.walls[wall] {
		out = append(out, v.ID)
	}
	return out
}

func (r *recordingRenderer) batches(wall string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.patches[wall])
}

// ---- fixtures ----

var base = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func post(id, author, owner string, minute int) models.Post {
	at := base.Add(time.Duration(minute) * time.Minute)
	return models.Post{ID: id, Author: author, WallOwner: owner, Content: "post " + id, CreatedAt: at, EditedAt: at}
}

func aliceProfile() *models.UserProfile {
	return &models.UserProfile{Email: "alice@x.com", FirstName: "Alice", LastName: "A", Gender: models.GenderFemale, City: "Oslo", Country: "Norway"}
}

type harness struct {
	client   *fakeClient
	store    *metadata.MemoryRepository
	notifier *recordingNotifier
	renderer *recordingRenderer
	session  *SessionService
	browse   *BrowseService
	account  *AccountService
}

func newHarness() *harness {
	fc := &fakeClient{
		CreateSessionToken: "T1",
		FetchUserRet: map[string]*models.UserProfile{
			"alice@x.com": aliceProfile(),
			"bob@x.com":   {Email: "bob@x.com", FirstName: "Bob", LastName: "B", Gender: models.GenderMale},
		},
		FetchPostsRet: map[string][]models.Post{
			"alice@x.com": {post("1", "alice@x.com", "alice@x.com", 1), post("2", "bob@x.com", "alice@x.com", 2)},
			"bob@x.com":   {post("3", "bob@x.com", "bob@x.com", 3)},
		},
	}
	h := &harness{
		client:   fc,
		store:    metadata.NewMemoryRepository(),
		notifier: &recordingNotifier{},
		renderer: newRecordingRenderer(),
	}
	log := logging.Nop()
	h.session = NewSessionService(fc, h.store, nil, h.notifier, h.renderer, log)
	h.browse = NewBrowseService(fc, h.session, h.renderer, log)
	h.account = NewAccountService(fc, h.session, log)
	return h
}

func (h *harness) stored() map[string]string {
	m, _ := h.store.List(context.Background())
	return m
}
