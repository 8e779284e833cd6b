package projects

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

var ErrProjectNotFound = errors.New("project not found")

type Project struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	TechStack   []string  `json:"tech_stack"`
	RepoURL     string    `json:"repo_url"`
	LiveURL     string    `json:"live_url"`
	ImageURL    string    `json:"image_url"`
	Featured    bool      `json:"featured"`
	SortOrder   int       `json:"sort_order"`
	CreatedAt   time.Time `json:"created_at"`
}

func (p Project) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&p.Description, validation.Required, validation.Length(1, 5000)),
		validation.Field(&p.TechStack, validation.Length(0, 30)),
		validation.Field(&p.RepoURL, is.URL),
		validation.Field(&p.LiveURL, is.URL),
		validation.Field(&p.ImageURL, is.URL),
	)
}
