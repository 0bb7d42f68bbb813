package http

import (
	"fmt"
	"net/mail"
	"strings"
)

// FieldErrors maps form field names to their validation messages. Empty map
// means the form passed.
type FieldErrors map[string]string

func (e FieldErrors) Valid() bool {
	return len(e) == 0
}

type LoginForm struct {
	Email    string `form:"email"`
	Password string `form:"password"`
}

func (f *LoginForm) Validate() FieldErrors {
	errs := FieldErrors{}
	if strings.TrimSpace(f.Email) == "" {
		errs["email"] = "Email is required."
	} else if !validEmail(f.Email) {
		errs["email"] = "Please enter a valid email address."
	}
	if f.Password == "" {
		errs["password"] = "Password is required."
	}
	return errs
}

type SignupForm struct {
	Email           string `form:"email"`
	Password        string `form:"password"`
	PasswordConfirm string `form:"passwordConfirm"`
}

func (f *SignupForm) Validate(passwordMinLength int) FieldErrors {
	errs := FieldErrors{}
	if strings.TrimSpace(f.Email) == "" {
		errs["email"] = "Email is required."
	} else if !validEmail(f.Email) {
		errs["email"] = "Please enter a valid email address."
	}
	if len(f.Password) < passwordMinLength {
		errs["password"] = fmt.Sprintf("Password must contain at least %d characters.", passwordMinLength)
	}
	if f.PasswordConfirm == "" {
		errs["passwordConfirm"] = "Password confirmation is required."
	} else if f.Password != f.PasswordConfirm {
		errs["passwordConfirm"] = "Passwords do not match."
	}
	return errs
}

type ListingForm struct {
	Title       string `form:"title"`
	Description string `form:"description"`
}

func (f *ListingForm) Validate() FieldErrors {
	errs := FieldErrors{}
	if strings.TrimSpace(f.Title) == "" {
		errs["title"] = "Title is required."
	}
	return errs
}

type InviteForm struct {
	Email string `form:"email"`
}

func (f *InviteForm) Validate() FieldErrors {
	errs := FieldErrors{}
	if strings.TrimSpace(f.Email) == "" {
		errs["email"] = "Email is required."
	} else if !validEmail(f.Email) {
		errs["email"] = "Please enter a valid email address."
	}
	return errs
}

func validEmail(address string) bool {
	_, err := mail.ParseAddress(strings.TrimSpace(address))
	return err == nil
}
