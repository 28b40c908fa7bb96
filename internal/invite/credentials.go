package invite

import (
	"errors"
	"strings"

	"github.com/badoux/checkmail"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Credentials are the form fields collected for the password based modes.
type Credentials struct {
	Name     string `json:"name" validate:"max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=128"`
	Phone    string `json:"phone" validate:"omitempty,min=7,max=20"`
}

func (c *Credentials) normalize() {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.Phone = strings.TrimSpace(c.Phone)
}

// Validate checks the fields required by mode before any provider call.
func (c *Credentials) Validate(mode Mode) error {
	c.normalize()

	var problems []string
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return newError(KindInvalidInput, "invalid form", err)
		}
		for _, fe := range verrs {
			problems = append(problems, describeFieldError(fe))
		}
	} else if err := checkmail.ValidateFormat(c.Email); err != nil {
		problems = append(problems, "email must be a valid email")
	}

	if mode == ModeNewAccount && c.Name == "" {
		problems = append(problems, "name is required")
	}

	if len(problems) > 0 {
		return newError(KindInvalidInput, strings.Join(problems, ", "), nil)
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return field + " must be at least " + fe.Param() + " characters"
	case "max":
		return field + " must be at most " + fe.Param() + " characters"
	case "email":
		return field + " must be a valid email"
	}
	return field + " is invalid"
}
