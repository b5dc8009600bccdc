package services

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/twidder/internal/client/client"
	"github.com/dmitrijs2005/twidder/internal/client/models"
	"github.com/dmitrijs2005/twidder/internal/logging"
)

const (
	WallHome   = "home"
	WallBrowse = "browse"
)

// sessionSource is what a wall needs from the session controller.
type sessionSource interface {
	Current() (models.Session, bool)
	Invalidate(ctx context.Context)
}

// Wall owns the displayed post list of one wall. The list only changes
// through Reload, InsertOptimistic and Remove (and the helpers built on
// them), and every change is forwarded to the renderer as patches.
type Wall struct {
	name     string
	client   client.Client
	session  sessionSource
	renderer Renderer
	log      logging.Logger
	now      func() time.Time

	mu    sync.Mutex
	owner string
	user  string
	view  []PostView
	seq   uint64
}

func newWall(name string, c client.Client, s sessionSource, r Renderer, log logging.Logger) *Wall {
	return &Wall{
		name:     name,
		client:   c,
		session:  s,
		renderer: r,
		log:      log.With("wall", name),
		now:      time.Now,
	}
}

func (w *Wall) Name() string { return w.name }

// Owner is the email whose posts the wall shows, empty before the first load.
func (w *Wall) Owner() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.owner
}

// View returns a copy of the displayed posts.
func (w *Wall) View() []PostView {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.view)
}

// Find returns the displayed post with id.
func (w *Wall) Find(id string) (PostView, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	i := slices.IndexFunc(w.view, func(v PostView) bool { return v.ID == id })
	if i < 0 {
		return PostView{}, false
	}
	return w.view[i], true
}

// begin starts a load. Only the result of the latest load is applied.
func (w *Wall) begin() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seq++
	return w.seq
}

// apply installs posts fetched by the load seq. Results of superseded loads
// are dropped and reported as false.
func (w *Wall) apply(seq uint64, owner string, posts []models.Post, currentUser string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if seq != w.seq {
		w.log.Debug(context.Background(), "dropping stale wall result", "owner", owner)
		return false
	}

	base := w.view
	var patches []Patch
	if owner != w.owner || currentUser != w.user {
		if len(w.view) > 0 {
			patches = append(patches, Patch{Op: PatchClear})
		}
		base = nil
	}

	view, diff := Reconcile(base, posts, currentUser)
	patches = append(patches, diff...)

	w.owner, w.user, w.view = owner, currentUser, view
	w.render(patches)
	return true
}

// Reset empties the wall, e.g. on logout.
func (w *Wall) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.seq++
	had := len(w.view) > 0
	w.owner, w.user, w.view = "", "", nil
	if had {
		w.render([]Patch{{Op: PatchClear}})
	}
}

// Reload fetches the posts of owner and replaces the view. On failure the
// view is left untouched.
func (w *Wall) Reload(ctx context.Context, owner string) error {
	sess, ok := w.session.Current()
	if !ok {
		return newError(ErrNotAuthenticated, "You are not logged in.", nil)
	}

	seq := w.begin()
	posts, err := w.client.FetchPosts(ctx, sess, owner)
	if err != nil {
		return w.fail(ctx, err, map[error]string{client.ErrNotFound: msgUserNotFound})
	}
	if !w.current(sess) {
		return errSuperseded
	}

	w.apply(seq, owner, posts, sess.Email)
	return nil
}

// InsertOptimistic places a freshly created post at its canonical position.
// Posts for another wall and ids already shown are ignored.
func (w *Wall) InsertOptimistic(p models.Post, currentUser string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if p.WallOwner != w.owner {
		return
	}
	if slices.ContainsFunc(w.view, func(v PostView) bool { return v.ID == p.ID }) {
		return
	}

	idx, _ := slices.BinarySearchFunc(w.view, p, func(v PostView, p models.Post) int {
		if v.Newer(p) {
			return -1
		}
		return 1
	})
	v := newPostView(p, currentUser)
	w.view = slices.Insert(w.view, idx, v)
	w.render([]Patch{{Op: PatchInsert, Index: idx, ID: p.ID, Post: v}})
}

// Remove drops id from the view. Unknown ids are a no-op.
func (w *Wall) Remove(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	i := slices.IndexFunc(w.view, func(v PostView) bool { return v.ID == id })
	if i < 0 {
		return
	}
	w.view = slices.Delete(w.view, i, i+1)
	w.render([]Patch{{Op: PatchRemove, ID: id}})
}

// Publish creates a post on the wall of owner and shows it optimistically.
func (w *Wall) Publish(ctx context.Context, owner, content, media string) (models.Post, error) {
	if strings.TrimSpace(content) == "" && media == "" {
		return models.Post{}, validationError("Message can't be empty.")
	}
	if _, err := models.ParseMedia(media); err != nil {
		return models.Post{}, newError(ErrValidation, "Unsupported media type.", err)
	}

	sess, ok := w.session.Current()
	if !ok {
		return models.Post{}, newError(ErrNotAuthenticated, "You are not logged in.", nil)
	}

	id, err := w.client.CreatePost(ctx, sess, owner, content, media)
	if err != nil {
		return models.Post{}, w.fail(ctx, err, map[error]string{client.ErrForbidden: "User doesn't exist."})
	}
	if !w.current(sess) {
		w.log.Debug(ctx, "session ended before post was shown", "id", id)
		return models.Post{}, errSuperseded
	}

	now := w.now().UTC()
	p := models.Post{
		ID:        id,
		Author:    sess.Email,
		WallOwner: owner,
		Content:   content,
		Media:     media,
		CreatedAt: now,
		EditedAt:  now,
	}
	w.InsertOptimistic(p, sess.Email)
	w.log.Info(ctx, "post created", "id", id, "owner", owner)
	return p, nil
}

// Delete removes a post on the backend and then from the view. A post the
// backend no longer has is treated as deleted.
func (w *Wall) Delete(ctx context.Context, id string) error {
	sess, ok := w.session.Current()
	if !ok {
		return newError(ErrNotAuthenticated, "You are not logged in.", nil)
	}

	err := w.client.DeletePost(ctx, sess, id)
	switch {
	case err == nil:
	case errors.Is(err, client.ErrNotFound):
		w.log.Debug(ctx, "post already gone", "id", id)
	default:
		return w.fail(ctx, err, map[error]string{client.ErrForbidden: "You can't delete this post."})
	}

	w.Remove(id)
	return nil
}

// current reports whether sess is still the authenticated session.
func (w *Wall) current(sess models.Session) bool {
	cur, ok := w.session.Current()
	return ok && cur == sess
}

func (w *Wall) fail(ctx context.Context, err error, msgs map[error]string) error {
	err = translate(err, msgs)
	if errors.Is(err, ErrSessionInvalid) {
		w.session.Invalidate(ctx)
	}
	return err
}

// render must be called with w.mu held so patches reach the renderer in
// the order they were made.
func (w *Wall) render(patches []Patch) {
	if len(patches) == 0 || w.renderer == nil {
		return
	}
	w.renderer.Apply(w.name, patches)
}
