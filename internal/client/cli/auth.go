package cli

import (
	"context"

	"github.com/dmitrijs2005/twidder/internal/client/services"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for the sign-up form, creates the account and logs in.
func (a *App) Register(ctx context.Context) error {
	return a.run(func() error {
		var f services.SignUpForm
		fields := []struct {
			prompt string
			dst    *string
		}{
			{"Enter email", &f.Email},
			{"First name", &f.FirstName},
			{"Last name", &f.LastName},
			{"Gender (Male, Female, Other)", &f.Gender},
			{"City", &f.City},
			{"Country", &f.Country},
		}
		for _, fl := range fields {
			v, err := getSimpleText(a.reader, fl.prompt, a.term.out)
			if err != nil {
				return err
			}
			*fl.dst = v
		}

		var err error
		if f.Password, err = getPassword(a.term.out, "Password"); err != nil {
			return err
		}
		if f.Repeat, err = getPassword(a.term.out, "Repeat password"); err != nil {
			return err
		}

		if err := a.account.SignUp(ctx, f); err != nil {
			return err
		}
		a.term.Success("Account created.")
		a.show(TabHome)
		return nil
	})
}

// Login prompts for credentials and opens a session. Rejected credentials
// and transport failures are reported by the session service itself.
func (a *App) Login(ctx context.Context) error {
	return a.run(func() error {
		email, err := getSimpleText(a.reader, "Enter email", a.term.out)
		if err != nil {
			return err
		}
		password, err := getPassword(a.term.out, "Password")
		if err != nil {
			return err
		}

		if err := a.session.Login(ctx, email, password); err != nil {
			return err
		}
		a.browse.Reset()
		a.show(TabHome)
		return nil
	})
}

// Logout ends the session and forgets everything tied to it.
func (a *App) Logout(ctx context.Context) error {
	return a.run(func() error {
		err := a.session.Logout(ctx)
		a.browse.Reset()
		a.media = ""
		a.tab = TabHome
		return err
	})
}
