package services

import (
	"slices"

	"github.com/dmitrijs2005/twidder/internal/client/models"
)

// PostView is a post prepared for display.
type PostView struct {
	models.Post

	Lines     []string
	MediaKind models.MediaKind

	// CanDelete is true only for posts written by the current user.
	CanDelete bool
	// CanEdit is always false; editing is not offered.
	CanEdit bool
}

func newPostView(p models.Post, currentUser string) PostView {
	// Unsupported media is dropped from display, not treated as an error.
	kind, err := models.ParseMedia(p.Media)
	if err != nil {
		kind = models.MediaNone
	}
	return PostView{
		Post:      p,
		Lines:     p.Lines(),
		MediaKind: kind,
		CanDelete: currentUser != "" && p.Author == currentUser,
	}
}

func sameView(a, b PostView) bool {
	p, q := a.Post, b.Post
	return p.ID == q.ID && p.Author == q.Author && p.WallOwner == q.WallOwner &&
		p.Content == q.Content && p.Media == q.Media &&
		p.CreatedAt.Equal(q.CreatedAt) && p.EditedAt.Equal(q.EditedAt) &&
		a.CanDelete == b.CanDelete && a.CanEdit == b.CanEdit
}

type PatchOp int

const (
	// PatchClear empties the wall.
	PatchClear PatchOp = iota
	// PatchInsert puts Post at Index, counted after all earlier patches.
	PatchInsert
	// PatchRemove drops the post with ID.
	PatchRemove
)

func (op PatchOp) String() string {
	switch op {
	case PatchClear:
		return "clear"
	case PatchInsert:
		return "insert"
	case PatchRemove:
		return "remove"
	default:
		return "unknown"
	}
}

type Patch struct {
	Op    PatchOp
	Index int
	ID    string
	Post  PostView
}

// SortPosts orders posts newest first, ties by descending id, in place.
func SortPosts(posts []models.Post) {
	slices.SortStableFunc(posts, func(a, b models.Post) int {
		switch {
		case a.Newer(b):
			return -1
		case b.Newer(a):
			return 1
		default:
			return 0
		}
	})
}

// Reconcile computes the view for batch and the patches that turn old into
// it. Duplicate ids in batch keep their first occurrence. Unchanged posts are
// left in place: patches remove what is gone or changed, then insert what is
// new in ascending index order. When old is not a subsequence of the new
// order the patches start with PatchClear and rebuild the wall.
func Reconcile(old []PostView, batch []models.Post, currentUser string) ([]PostView, []Patch) {
	seen := make(map[string]struct{}, len(batch))
	posts := make([]models.Post, 0, len(batch))
	for _, p := range batch {
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		posts = append(posts, p)
	}
	SortPosts(posts)

	next := make([]PostView, len(posts))
	index := make(map[string]int, len(posts))
	for i, p := range posts {
		next[i] = newPostView(p, currentUser)
		index[p.ID] = i
	}

	if slices.EqualFunc(old, next, sameView) {
		return old, nil
	}

	var patches []Patch
	kept := make([]int, 0, len(old))
	for _, v := range old {
		i, ok := index[v.ID]
		if !ok || !sameView(v, next[i]) {
			patches = append(patches, Patch{Op: PatchRemove, ID: v.ID})
			continue
		}
		kept = append(kept, i)
	}

	if !slices.IsSorted(kept) {
		patches = []Patch{{Op: PatchClear}}
		kept = kept[:0]
	}

	keep := make(map[int]struct{}, len(kept))
	for _, i := range kept {
		keep[i] = struct{}{}
	}
	for i, v := range next {
		if _, ok := keep[i]; ok {
			continue
		}
		patches = append(patches, Patch{Op: PatchInsert, Index: i, ID: v.ID, Post: v})
	}

	return next, patches
}

// ApplyPatches replays patches on view. Renderers that keep a plain slice
// can use it directly.
func ApplyPatches(view []PostView, patches []Patch) []PostView {
	out := slices.Clone(view)
	for _, p := range patches {
		switch p.Op {
		case PatchClear:
			out = out[:0]
		case PatchInsert:
			idx := min(max(p.Index, 0), len(out))
			out = slices.Insert(out, idx, p.Post)
		case PatchRemove:
			out = slices.DeleteFunc(out, func(v PostView) bool { return v.ID == p.ID })
		}
	}
	return out
}
