package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/twidder/internal/client/models"
	"github.com/dmitrijs2005/twidder/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/twidder/internal/client/services"
	"github.com/dmitrijs2005/twidder/internal/client/stub"
	"github.com/dmitrijs2005/twidder/internal/logging"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 'I', 'H', 'D', 'R'}

func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("%d", n.Add(1)) }
}

// stubPasswords answers password prompts in order.
func stubPasswords(t *testing.T, pws ...string) {
	t.Helper()
	orig := getPassword
	getPassword = func(io.Writer, string) (string, error) {
		if len(pws) == 0 {
			return "", io.EOF
		}
		pw := pws[0]
		pws = pws[1:]
		return pw, nil
	}
	t.Cleanup(func() { getPassword = orig })
}

func newTestApp(t *testing.T, input ...string) (*App, *stub.Backend, *strings.Builder) {
	t.Helper()
	backend := stub.New(nil, stub.WithIDs(sequentialIDs()))
	out := &strings.Builder{}
	a := newApp(backend, metadata.NewMemoryRepository(), nil, strings.NewReader(strings.Join(input, "\n")+"\n"), out, logging.Nop())
	t.Cleanup(func() { _ = a.Close() })
	return a, backend, out
}

func registerLines(email, first string) []string {
	return []string{email, first, "Smith", "female", "Oslo", "Norway"}
}

func seedUser(t *testing.T, b *stub.Backend, email, first string) models.Session {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, b.CreateUser(ctx, models.NewUser{
		Email: email, Password: "secret", FirstName: first, LastName: "B",
		Gender: models.GenderMale, City: "Bergen", Country: "Norway",
	}))
	token, err := b.CreateSession(ctx, email, "secret")
	require.NoError(t, err)
	return models.Session{Token: token, Email: email}
}

func TestApp_RegisterPostAndLogout(t *testing.T) {
	ctx := context.Background()
	input := append(registerLines("alice@x.com", "Alice"), "hello", "world", "")
	a, backend, out := newTestApp(t, input...)
	stubPasswords(t, "secret", "secret")

	require.NoError(t, a.Register(ctx))
	require.True(t, a.isLoggedIn())
	assert.Equal(t, "alice@x.com home", a.status())
	assert.Contains(t, out.String(), "[ok] Account created.")
	assert.Contains(t, out.String(), "== Wall of Alice Smith (0) ==")

	require.NoError(t, a.Post(ctx))
	view := a.session.Home().View()
	require.Len(t, view, 1)
	assert.Equal(t, []string{"hello", "world"}, view[0].Lines)
	assert.True(t, view[0].CanDelete)
	assert.Contains(t, out.String(), "+ ["+view[0].ID+"] alice@x.com")
	assert.Equal(t, view[0].ID, a.term.view(services.WallHome)[0].ID)

	posts, err := backend.FetchPosts(ctx, seedUser(t, backend, "bob@x.com", "Bob"), "alice@x.com")
	require.NoError(t, err)
	assert.Len(t, posts, 1)

	require.NoError(t, a.Logout(ctx))
	assert.False(t, a.isLoggedIn())
	assert.Equal(t, "", a.status())
	assert.Contains(t, out.String(), "[ok] You have successfully logged out.")
	assert.Empty(t, a.term.view(services.WallHome))
}

func TestApp_LoginRejectedIsReportedOnce(t *testing.T) {
	a, backend, out := newTestApp(t, "bob@x.com")
	seedUser(t, backend, "bob@x.com", "Bob")
	stubPasswords(t, "wrong")

	err := a.Login(context.Background())
	require.ErrorIs(t, err, services.ErrInvalidCredentials)
	assert.Equal(t, 1, strings.Count(out.String(), "Invalid username or password."))
	assert.False(t, a.isLoggedIn())
}

func TestApp_LoginShowsHomeWall(t *testing.T) {
	ctx := context.Background()
	a, backend, out := newTestApp(t, "bob@x.com")
	bob := seedUser(t, backend, "bob@x.com", "Bob")
	_, err := backend.CreatePost(ctx, bob, "bob@x.com", "first!", "")
	require.NoError(t, err)
	stubPasswords(t, "secret")

	require.NoError(t, a.Login(ctx))
	assert.Contains(t, out.String(), "== Wall of Bob B (1) ==")
	assert.Contains(t, out.String(), "    first!")
}

func TestApp_NavigateWithoutSession(t *testing.T) {
	a, _, out := newTestApp(t)

	err := a.Navigate(context.Background(), TabHome)
	require.ErrorIs(t, err, services.ErrNotAuthenticated)
	assert.Contains(t, out.String(), "[error] You are not logged in.")
}

func TestApp_BrowseAndPostOnAnotherWall(t *testing.T) {
	ctx := context.Background()
	input := append(registerLines("alice@x.com", "Alice"), "hi bob", "")
	a, backend, out := newTestApp(t, input...)
	bob := seedUser(t, backend, "bob@x.com", "Bob")
	stubPasswords(t, "secret", "secret")
	require.NoError(t, a.Register(ctx))

	err := a.Browse(ctx, "nobody@x.com")
	require.ErrorIs(t, err, services.ErrNotFound)
	assert.Contains(t, out.String(), "[error] User not found.")
	assert.Equal(t, TabHome, a.tab)

	require.NoError(t, a.Browse(ctx, "bob@x.com"))
	assert.Equal(t, TabBrowse, a.tab)
	assert.Contains(t, out.String(), "Bob B <bob@x.com>")

	require.NoError(t, a.Post(ctx))
	posts, err := backend.FetchPosts(ctx, bob, "bob@x.com")
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "alice@x.com", posts[0].Author)
	assert.Len(t, a.browse.Wall().View(), 1)
	assert.Empty(t, a.session.Home().View())
}

func TestApp_DeleteOnlyOwnPosts(t *testing.T) {
	ctx := context.Background()
	a, backend, out := newTestApp(t, registerLines("alice@x.com", "Alice")...)
	bob := seedUser(t, backend, "bob@x.com", "Bob")
	stubPasswords(t, "secret", "secret")
	require.NoError(t, a.Register(ctx))

	id, err := backend.CreatePost(ctx, bob, "alice@x.com", "from bob", "")
	require.NoError(t, err)
	require.NoError(t, a.Navigate(ctx, TabHome))
	require.Len(t, a.session.Home().View(), 1)

	require.NoError(t, a.Delete(ctx, id))
	assert.Contains(t, out.String(), "[error] You can't delete this post.")
	assert.Len(t, a.session.Home().View(), 1)

	// a post already gone on the backend counts as deleted
	require.NoError(t, a.Delete(ctx, "missing"))
}

func TestApp_AttachMedia(t *testing.T) {
	ctx := context.Background()
	input := append(registerLines("alice@x.com", "Alice"), "")
	a, _, out := newTestApp(t, input...)
	stubPasswords(t, "secret", "secret")
	require.NoError(t, a.Register(ctx))

	dir := t.TempDir()
	text := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(text, []byte("plain text"), 0o600))
	img := filepath.Join(dir, "me.png")
	require.NoError(t, os.WriteFile(img, pngHeader, 0o600))

	err := a.Attach(ctx, text)
	require.ErrorIs(t, err, services.ErrValidation)
	assert.Contains(t, out.String(), "[error] Unsupported media type.")

	require.NoError(t, a.Attach(ctx, img))
	assert.Contains(t, out.String(), "Attached image me.png")

	// media alone is a valid post
	require.NoError(t, a.Post(ctx))
	view := a.session.Home().View()
	require.Len(t, view, 1)
	assert.Equal(t, models.MediaImage, view[0].MediaKind)
	assert.Empty(t, a.media)
}

func TestApp_AccountCommands(t *testing.T) {
	ctx := context.Background()
	input := append(registerLines("alice@x.com", "Alice"),
		"", "", "other", "", "", // details: keep all but gender
		"", "", "", "Bergen", "", // details: move city
	)
	a, _, out := newTestApp(t, input...)
	stubPasswords(t,
		"secret", "secret", // register
		"secret", "secret", "secret", // same as old
		"secret", "new", "newer", // repeat differs
		"wrong", "new", "new", // backend rejects old
		"secret", "new", "new",
	)
	require.NoError(t, a.Register(ctx))

	require.NoError(t, a.Details(ctx))
	p, ok := a.session.Profile()
	require.True(t, ok)
	assert.Equal(t, models.GenderOther, p.Gender)
	assert.Equal(t, "Alice", p.FirstName)

	require.NoError(t, a.Details(ctx))
	p, _ = a.session.Profile()
	assert.Equal(t, "Bergen", p.City)

	err := a.Password(ctx)
	require.ErrorIs(t, err, services.ErrValidation)
	assert.Contains(t, out.String(), "New password can't be the same!")

	err = a.Password(ctx)
	require.ErrorIs(t, err, services.ErrValidation)
	assert.Contains(t, out.String(), "Passwords don't match!")

	err = a.Password(ctx)
	require.ErrorIs(t, err, services.ErrForbidden)
	assert.Contains(t, out.String(), "[error] Invalid password.")

	require.NoError(t, a.Password(ctx))
	assert.Contains(t, out.String(), "[ok] Password changed.")

	require.NoError(t, a.WhoAmI(ctx))
	assert.Contains(t, out.String(), "Location: Bergen, Norway")
}

func TestApp_ImageMustBeAnImage(t *testing.T) {
	ctx := context.Background()
	a, _, out := newTestApp(t, registerLines("alice@x.com", "Alice")...)
	stubPasswords(t, "secret", "secret")
	require.NoError(t, a.Register(ctx))

	img := filepath.Join(t.TempDir(), "me.png")
	require.NoError(t, os.WriteFile(img, pngHeader, 0o600))

	require.NoError(t, a.Image(ctx, img))
	assert.Contains(t, out.String(), "[ok] Profile image updated.")
	p, _ := a.session.Profile()
	assert.NotEmpty(t, p.ProfileImage)

	err := a.Image(ctx, filepath.Join(t.TempDir(), "missing.png"))
	require.ErrorIs(t, err, services.ErrValidation)
}

func TestApp_DeleteAccount(t *testing.T) {
	ctx := context.Background()
	input := append(registerLines("alice@x.com", "Alice"), "bob@x.com", "alice@x.com")
	a, backend, out := newTestApp(t, input...)
	stubPasswords(t, "secret", "secret")
	require.NoError(t, a.Register(ctx))

	require.NoError(t, a.DeleteAccount(ctx))
	assert.Contains(t, out.String(), "[info] Account not deleted.")
	require.True(t, a.isLoggedIn())

	require.NoError(t, a.DeleteAccount(ctx))
	assert.False(t, a.isLoggedIn())
	assert.Contains(t, out.String(), "[info] Your account has been deleted.")

	_, err := backend.CreateSession(ctx, "alice@x.com", "secret")
	require.Error(t, err)
}

func TestApp_RunRestoresNothingAndExits(t *testing.T) {
	lines := capturePrintln(t)
	a, _, out := newTestApp(t, "help", "exit")

	require.NoError(t, a.Run(context.Background()))

	assert.Equal(t, "Welcome to Twidder (type 'help' for commands)", (*lines)[0])
	assert.Equal(t, "Bye!", (*lines)[len(*lines)-1])
	assert.Contains(t, out.String(), "You are not logged in.")
}
