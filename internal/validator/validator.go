package validator

import (
	"fmt"
	"net/mail"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ValidationErrors maps a field to the reason it was rejected
type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, v[f]))
	}
	return strings.Join(parts, "; ")
}

// Err returns v as an error, or nil when empty
func (v ValidationErrors) Err() error {
	if v.HasErrors() {
		return v
	}
	return nil
}

var handleRegex = regexp.MustCompile(`^@[a-z0-9_.]+$`)

func ValidateSignUp(email, password, handle string) ValidationErrors {
	errs := make(ValidationErrors)
	validateEmail(email, errs)
	validatePassword(password, errs)
	if handle != "" {
		validateHandle(handle, errs)
	}
	return errs
}

func ValidateSignIn(email, password string) ValidationErrors {
	errs := make(ValidationErrors)
	validateEmail(email, errs)
	if password == "" {
		errs.Add("password", "Password is required")
	}
	return errs
}

func ValidatePassword(password string) ValidationErrors {
	errs := make(ValidationErrors)
	validatePassword(password, errs)
	return errs
}

// ValidateHandle checks an already normalized handle
func ValidateHandle(handle string) ValidationErrors {
	errs := make(ValidationErrors)
	validateHandle(handle, errs)
	return errs
}

func ValidateName(name string) ValidationErrors {
	errs := make(ValidationErrors)
	name = strings.TrimSpace(name)
	if name == "" {
		errs.Add("name", "Name is required")
	} else if utf8.RuneCountInString(name) > 100 {
		errs.Add("name", "Name is too long")
	}
	return errs
}

func validateEmail(email string, errs ValidationErrors) {
	email = strings.TrimSpace(email)
	if email == "" {
		errs.Add("email", "Email is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		errs.Add("email", "Invalid email address")
	}
}

func validateHandle(handle string, errs ValidationErrors) {
	bare := strings.TrimPrefix(handle, "@")
	switch {
	case len(bare) < 3:
		errs.Add("handle", "Handle must be at least 3 characters")
	case len(bare) > 30:
		errs.Add("handle", "Handle is too long")
	case !handleRegex.MatchString(handle):
		errs.Add("handle", "Handle can only contain letters, numbers, _ and .")
	}
}

func validatePassword(password string, errs ValidationErrors) {
	if len(password) < 8 {
		errs.Add("password", "Password must be at least 8 characters")
		return
	}

	var hasUpper, hasLower, hasDigit bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}

	missing := []string{}
	if !hasUpper {
		missing = append(missing, "one uppercase letter")
	}
	if !hasLower {
		missing = append(missing, "one lowercase letter")
	}
	if !hasDigit {
		missing = append(missing, "one number")
	}

	if len(missing) > 0 {
		errs.Add("password", fmt.Sprintf("Password must contain at least %s", strings.Join(missing, ", ")))
	}
}
