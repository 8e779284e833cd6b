package profile

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

var ErrProfileNotFound = errors.New("profile not found")

// Profile is the single owner profile row.
type Profile struct {
	FullName  string            `json:"full_name"`
	Headline  string            `json:"headline"`
	Bio       string            `json:"bio"`
	Location  string            `json:"location"`
	Email     string            `json:"email"`
	AvatarURL string            `json:"avatar_url"`
	Links     map[string]string `json:"links"`
}

func (p Profile) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.FullName, validation.Required, validation.Length(1, 120)),
		validation.Field(&p.Headline, validation.Length(0, 200)),
		validation.Field(&p.Email, is.Email),
		validation.Field(&p.AvatarURL, is.URL),
		validation.Field(&p.Links, validation.Each(is.URL)),
	)
}
