package models

import (
	"errors"
	"strings"
)

// Gender is the closed set of values the backend accepts.
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

var ErrInvalidGender = errors.New("invalid gender")

// ParseGender accepts the three enum values case-insensitively.
func ParseGender(s string) (Gender, error) {
	for _, g := range []Gender{GenderMale, GenderFemale, GenderOther} {
		if strings.EqualFold(strings.TrimSpace(s), string(g)) {
			return g, nil
		}
	}
	return "", ErrInvalidGender
}

// UserProfile is the public profile of a user as returned by the backend.
type UserProfile struct {
	Email     string `json:"email"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Gender    Gender `json:"gender"`
	City      string `json:"city"`
	Country   string `json:"country"`

	// ProfileImage is an optional data-URI.
	ProfileImage string `json:"image,omitempty"`
}

func (u UserProfile) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u UserProfile) Location() string {
	switch {
	case u.City == "":
		return u.Country
	case u.Country == "":
		return u.City
	default:
		return u.City + ", " + u.Country
	}
}

// NewUser is the sign-up payload.
type NewUser struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Gender    Gender `json:"gender"`
	City      string `json:"city"`
	Country   string `json:"country"`
}

// UserUpdate is a partial set of profile fields. Only non-nil fields are
// sent; a request carries profile details, a password change or an image.
type UserUpdate struct {
	FirstName   *string `json:"firstname,omitempty"`
	LastName    *string `json:"lastname,omitempty"`
	Gender      *Gender `json:"gender,omitempty"`
	City        *string `json:"city,omitempty"`
	Country     *string `json:"country,omitempty"`
	OldPassword *string `json:"old_password,omitempty"`
	NewPassword *string `json:"new_password,omitempty"`
	Image       *string `json:"image,omitempty"`
}

// ApplyTo copies the profile fields of the update onto p. Password fields
// are ignored.
func (u UserUpdate) ApplyTo(p *UserProfile) {
	if u.FirstName != nil {
		p.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		p.LastName = *u.LastName
	}
	if u.Gender != nil {
		p.Gender = *u.Gender
	}
	if u.City != nil {
		p.City = *u.City
	}
	if u.Country != nil {
		p.Country = *u.Country
	}
	if u.Image != nil {
		p.ProfileImage = *u.Image
	}
}
