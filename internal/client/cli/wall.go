package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dmitrijs2005/twidder/internal/client/models"
	"github.com/dmitrijs2005/twidder/internal/client/services"
	"github.com/dmitrijs2005/twidder/internal/filex"
)

// maxMediaSize bounds attached files; they travel inline as data-URIs.
const maxMediaSize = 8 << 20

// Browse shows the profile and wall of another user.
func (a *App) Browse(ctx context.Context, email string) error {
	return a.run(func() error {
		if err := a.browse.Browse(ctx, email); err != nil {
			return err
		}
		a.show(TabBrowse)
		return nil
	})
}

// wall is the wall on screen. The account tab posts to the home wall.
func (a *App) wall() *services.Wall {
	if a.tab == TabBrowse && a.browse.Wall().Owner() != "" {
		return a.browse.Wall()
	}
	return a.session.Home()
}

// Post writes a message on the wall on screen together with any attached
// media.
func (a *App) Post(ctx context.Context) error {
	return a.run(func() error {
		content, err := GetMultiline(a.reader, "Message", a.term.out)
		if err != nil {
			return err
		}

		var p models.Post
		if a.wall() == a.browse.Wall() {
			p, err = a.browse.Post(ctx, content, a.media)
		} else {
			sess, ok := a.session.Current()
			if !ok {
				return services.ErrNotAuthenticated
			}
			p, err = a.session.Home().Publish(ctx, sess.Email, content, a.media)
		}
		if err != nil {
			return err
		}

		a.media = ""
		a.log.Debug(ctx, "posted", "id", p.ID, "owner", p.WallOwner)
		return nil
	})
}

// Attach reads an image or video file to go with the next post.
func (a *App) Attach(ctx context.Context, path string) error {
	return a.run(func() error {
		uri, kind, err := readMedia(path)
		if err != nil {
			return err
		}
		a.media = uri
		a.term.Info(fmt.Sprintf("Attached %s %s to the next post.", kind, filepath.Base(path)))
		return nil
	})
}

// Delete removes a post from the wall on screen. Only the author is offered
// the action.
func (a *App) Delete(ctx context.Context, id string) error {
	return a.run(func() error {
		w := a.wall()
		if p, ok := w.Find(id); ok && !p.CanDelete {
			a.term.Error("You can't delete this post.")
			return nil
		}
		return w.Delete(ctx, id)
	})
}

// readMedia loads a file and encodes it as a data-URI. Anything that is
// neither an image nor a video is a validation error.
func readMedia(path string) (string, models.MediaKind, error) {
	data, err := filex.ReadFileLimited(path, maxMediaSize)
	if errors.Is(err, filex.ErrTooLarge) {
		return "", models.MediaNone, &services.Error{Kind: services.ErrValidation, Msg: "File is too large.", Err: err}
	}
	if err != nil {
		return "", models.MediaNone, &services.Error{Kind: services.ErrValidation, Msg: "Can't read " + path + ".", Err: err}
	}
	uri, kind, err := models.EncodeMedia(data)
	if err != nil {
		return "", models.MediaNone, &services.Error{Kind: services.ErrValidation, Msg: "Unsupported media type.", Err: err}
	}
	return uri, kind, nil
}
