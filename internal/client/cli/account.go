package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/twidder/internal/client/models"
	"github.com/dmitrijs2005/twidder/internal/client/services"
)

// Details edits the profile fields. An empty answer keeps the current value.
func (a *App) Details(ctx context.Context) error {
	return a.run(func() error {
		current, ok := a.session.Profile()
		if !ok {
			return services.ErrNotAuthenticated
		}

		f := services.DetailsForm{
			FirstName: current.FirstName,
			LastName:  current.LastName,
			Gender:    string(current.Gender),
			City:      current.City,
			Country:   current.Country,
		}
		fields := []struct {
			prompt string
			dst    *string
		}{
			{"First name", &f.FirstName},
			{"Last name", &f.LastName},
			{"Gender (Male, Female, Other)", &f.Gender},
			{"City", &f.City},
			{"Country", &f.Country},
		}
		for _, fl := range fields {
			v, err := getSimpleText(a.reader, fmt.Sprintf("%s [%s]", fl.prompt, *fl.dst), a.term.out)
			if err != nil {
				return err
			}
			*fl.dst = withDefault(v, *fl.dst)
		}

		if err := a.account.UpdateDetails(ctx, f); err != nil {
			return err
		}
		a.term.Success("Profile updated.")
		return nil
	})
}

func (a *App) Password(ctx context.Context) error {
	return a.run(func() error {
		prompts := []string{"Old password", "New password", "Repeat new password"}
		answers := make([]string, len(prompts))
		for i, p := range prompts {
			v, err := getPassword(a.term.out, p)
			if err != nil {
				return err
			}
			answers[i] = v
		}

		if err := a.account.ChangePassword(ctx, answers[0], answers[1], answers[2]); err != nil {
			return err
		}
		a.term.Success("Password changed.")
		return nil
	})
}

// Image sets the profile image from an image file.
func (a *App) Image(ctx context.Context, path string) error {
	return a.run(func() error {
		uri, kind, err := readMedia(path)
		if err != nil {
			return err
		}
		if kind != models.MediaImage {
			return &services.Error{Kind: services.ErrValidation, Msg: "Profile image must be an image."}
		}
		if err := a.account.UpdateImage(ctx, uri); err != nil {
			return err
		}
		a.term.Success("Profile image updated.")
		return nil
	})
}

// DeleteAccount removes the current user after the email is typed back.
func (a *App) DeleteAccount(ctx context.Context) error {
	return a.run(func() error {
		sess, ok := a.session.Current()
		if !ok {
			return services.ErrNotAuthenticated
		}
		answer, err := getSimpleText(a.reader, "Type your email to delete the account", a.term.out)
		if err != nil {
			return err
		}
		if !strings.EqualFold(strings.TrimSpace(answer), sess.Email) {
			a.term.Info("Account not deleted.")
			return nil
		}

		if err := a.account.DeleteAccount(ctx); err != nil {
			return err
		}
		a.browse.Reset()
		a.media = ""
		a.tab = TabHome
		return nil
	})
}

// WhoAmI prints the cached profile of the current user.
func (a *App) WhoAmI(ctx context.Context) error {
	return a.run(func() error {
		p, ok := a.session.Profile()
		if !ok {
			return services.ErrNotAuthenticated
		}
		a.term.showProfile(p)
		return nil
	})
}
