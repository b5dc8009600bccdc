package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/dmitrijs2005/twidder/internal/client/models"
	"github.com/dmitrijs2005/twidder/internal/client/services"
)

// terminal is both the Notifier and the Renderer of the REPL. It keeps its
// own copy of every wall, built only from patches, and echoes changes to
// the wall on screen.
type terminal struct {
	mu      sync.Mutex
	out     io.Writer
	walls   map[string][]services.PostView
	active  string
	notices int
}

func newTerminal(out io.Writer) *terminal {
	return &terminal{out: out, walls: make(map[string][]services.PostView)}
}

var (
	_ services.Notifier = (*terminal)(nil)
	_ services.Renderer = (*terminal)(nil)
)

func (t *terminal) Info(msg string)    { t.notify("info", msg) }
func (t *terminal) Success(msg string) { t.notify("ok", msg) }
func (t *terminal) Error(msg string)   { t.notify("error", msg) }

func (t *terminal) notify(level, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.notices++
	fmt.Fprintf(t.out, "[%s] %s\n", level, msg)
}

// noticeCount lets a command tell whether the services already reported
// something to the user while it ran.
func (t *terminal) noticeCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.notices
}

func (t *terminal) Apply(wall string, patches []services.Patch) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.walls[wall] = services.ApplyPatches(t.walls[wall], patches)
	if wall != t.active {
		return
	}
	for _, p := range patches {
		switch p.Op {
		case services.PatchInsert:
			fmt.Fprint(t.out, "+ ")
			t.writePost(p.Post)
		case services.PatchRemove:
			fmt.Fprintf(t.out, "- post %s removed\n", p.ID)
		}
	}
}

// focus selects the wall whose patches are echoed. An empty name silences
// all walls.
func (t *terminal) focus(wall string) {
	t.mu.Lock()
	t.active = wall
	t.mu.Unlock()
}

func (t *terminal) view(wall string) []services.PostView {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]services.PostView(nil), t.walls[wall]...)
}

func (t *terminal) showWall(wall, owner string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	posts := t.walls[wall]
	fmt.Fprintf(t.out, "== Wall of %s (%d) ==\n", owner, len(posts))
	if len(posts) == 0 {
		fmt.Fprintln(t.out, "No posts yet.")
	}
	for _, p := range posts {
		t.writePost(p)
	}
}

func (t *terminal) showProfile(p models.UserProfile) {
	t.mu.Lock()
	defer t.mu.Unlock()

	image := "none"
	if p.ProfileImage != "" {
		image = "set"
	}
	fmt.Fprintf(t.out, "%s <%s>\n", p.FullName(), p.Email)
	fmt.Fprintf(t.out, "  Gender:   %s\n", p.Gender)
	fmt.Fprintf(t.out, "  Location: %s\n", p.Location())
	fmt.Fprintf(t.out, "  Image:    %s\n", image)
}

func (t *terminal) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, args...)
}

func (t *terminal) writePost(p services.PostView) {
	header := fmt.Sprintf("[%s] %s", p.ID, p.Author)
	if p.WallOwner != "" && p.WallOwner != p.Author {
		header += " -> " + p.WallOwner
	}
	if !p.CreatedAt.IsZero() {
		header += "  " + p.CreatedAt.Local().Format("2006-01-02 15:04")
	}
	if p.Edited() {
		header += " (edited)"
	}
	if p.CanDelete {
		header += "  [delete]"
	}
	fmt.Fprintln(t.out, header)

	for _, line := range p.Lines {
		fmt.Fprintln(t.out, "    "+line)
	}
	if p.MediaKind != models.MediaNone {
		fmt.Fprintf(t.out, "    <%s attached>\n", p.MediaKind)
	}
}
