package services

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/twidder/internal/client/client"
	"github.com/dmitrijs2005/twidder/internal/client/models"
	"github.com/dmitrijs2005/twidder/internal/logging"
)

// SignUpForm is what the user enters to register.
type SignUpForm struct {
	Email     string
	Password  string
	Repeat    string
	FirstName string
	LastName  string
	Gender    string
	City      string
	Country   string
}

// DetailsForm holds the editable profile fields.
type DetailsForm struct {
	FirstName string
	LastName  string
	Gender    string
	City      string
	Country   string
}

// AccountService covers sign-up and changes to the current user's account.
// Validation failures are returned before any backend call.
type AccountService struct {
	client  client.Client
	session *SessionService
	log     logging.Logger
}

func NewAccountService(c client.Client, session *SessionService, log logging.Logger) *AccountService {
	return &AccountService{client: c, session: session, log: log.With("component", "account")}
}

// SignUp registers a user and logs them in.
func (a *AccountService) SignUp(ctx context.Context, f SignUpForm) error {
	for _, v := range []string{f.Email, f.Password, f.Repeat, f.FirstName, f.LastName, f.Gender, f.City, f.Country} {
		if strings.TrimSpace(v) == "" {
			return validationError("All fields are required.")
		}
	}
	if !strings.Contains(f.Email, "@") {
		return validationError("Invalid email.")
	}
	if f.Password != f.Repeat {
		return validationError(msgPasswordsMismatch)
	}
	gender, err := models.ParseGender(f.Gender)
	if err != nil {
		return newError(ErrValidation, msgInvalidGender, err)
	}

	user := models.NewUser{
		Email:     strings.TrimSpace(f.Email),
		Password:  f.Password,
		FirstName: strings.TrimSpace(f.FirstName),
		LastName:  strings.TrimSpace(f.LastName),
		Gender:    gender,
		City:      strings.TrimSpace(f.City),
		Country:   strings.TrimSpace(f.Country),
	}
	if err := a.client.CreateUser(ctx, user); err != nil {
		return translate(err, map[error]string{
			client.ErrConflict:  "User already exists.",
			client.ErrForbidden: "Invalid sign up data.",
		})
	}
	a.log.Info(ctx, "user created", "email", user.Email)

	return a.session.Login(ctx, user.Email, user.Password)
}

// UpdateDetails changes the profile fields and echoes them into the cached
// profile once the backend accepts them.
func (a *AccountService) UpdateDetails(ctx context.Context, f DetailsForm) error {
	gender, err := models.ParseGender(f.Gender)
	if err != nil {
		return newError(ErrValidation, msgInvalidGender, err)
	}
	first, last := strings.TrimSpace(f.FirstName), strings.TrimSpace(f.LastName)
	city, country := strings.TrimSpace(f.City), strings.TrimSpace(f.Country)
	if first == "" || last == "" || city == "" || country == "" {
		return validationError("All fields are required.")
	}

	return a.update(ctx, models.UserUpdate{
		FirstName: &first,
		LastName:  &last,
		Gender:    &gender,
		City:      &city,
		Country:   &country,
	}, nil)
}

func (a *AccountService) ChangePassword(ctx context.Context, oldPassword, newPassword, repeat string) error {
	if oldPassword == "" || newPassword == "" {
		return validationError("All fields are required.")
	}
	if newPassword == oldPassword {
		return validationError(msgSamePassword)
	}
	if newPassword != repeat {
		return validationError(msgPasswordsMismatch)
	}

	return a.update(ctx, models.UserUpdate{OldPassword: &oldPassword, NewPassword: &newPassword},
		map[error]string{client.ErrForbidden: msgInvalidPassword})
}

// UpdateImage sets the profile image from an image data-URI.
func (a *AccountService) UpdateImage(ctx context.Context, dataURI string) error {
	kind, err := models.ParseMedia(dataURI)
	if err != nil || kind != models.MediaImage {
		return newError(ErrValidation, "Profile image must be an image.", err)
	}
	return a.update(ctx, models.UserUpdate{Image: &dataURI}, nil)
}

// DeleteAccount removes the current user. The backend drops the session
// with the account, so it is only cleared locally.
func (a *AccountService) DeleteAccount(ctx context.Context) error {
	sess, ok := a.session.Current()
	if !ok {
		return newError(ErrNotAuthenticated, "You are not logged in.", nil)
	}

	// the backend closes the channel along with the account
	a.session.releaseChannel()

	if err := a.client.DeleteUser(ctx, sess, sess.Email); err != nil {
		err = a.fail(ctx, translate(err, nil))
		a.session.reattach(ctx)
		return err
	}

	a.log.Info(ctx, "account deleted", "email", sess.Email)
	a.session.endSession(ctx, msgAccountDeleted)
	return nil
}

func (a *AccountService) update(ctx context.Context, upd models.UserUpdate, msgs map[error]string) error {
	sess, ok := a.session.Current()
	if !ok {
		return newError(ErrNotAuthenticated, "You are not logged in.", nil)
	}

	if err := a.client.UpdateUser(ctx, sess, sess.Email, upd); err != nil {
		return a.fail(ctx, translate(err, msgs))
	}

	a.session.updateProfile(sess.Email, upd)
	return nil
}

func (a *AccountService) fail(ctx context.Context, err error) error {
	if errors.Is(err, ErrSessionInvalid) {
		a.session.Invalidate(ctx)
	}
	return err
}
