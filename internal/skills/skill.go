package skills

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
)

var (
	ErrSkillNotFound = errors.New("skill not found")
	ErrSkillExists   = errors.New("skill exists already")
)

type Skill struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	Level     int    `json:"level"`
	SortOrder int    `json:"sort_order"`
}

func (s Skill) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&s.Category, validation.Required, validation.Length(1, 100)),
		validation.Field(&s.Level, validation.Min(0), validation.Max(100)),
	)
}
