package certificates

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

var ErrCertificateNotFound = errors.New("certificate not found")

type Certificate struct {
	ID            int       `json:"id"`
	Title         string    `json:"title"`
	Issuer        string    `json:"issuer"`
	IssuedAt      time.Time `json:"issued_at"`
	CredentialURL string    `json:"credential_url"`
	ImageURL      string    `json:"image_url"`
}

func (c Certificate) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&c.Issuer, validation.Required, validation.Length(1, 200)),
		validation.Field(&c.IssuedAt, validation.Required),
		validation.Field(&c.CredentialURL, is.URL),
		validation.Field(&c.ImageURL, is.URL),
	)
}
