package messages

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

var ErrMessageNotFound = errors.New("message not found")

type Message struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Country   string    `json:"country"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

func (m Message) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&m.Email, validation.Required, is.Email),
		validation.Field(&m.Subject, validation.Length(0, 200)),
		validation.Field(&m.Body, validation.Required, validation.Length(1, 5000)),
	)
}
