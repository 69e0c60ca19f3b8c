package authsdk

import (
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	requiredReason = "required"

	maxEmailLength    = 254
	minPasswordLength = 8
	maxPasswordLength = 128
	minNameLength     = 2
	maxNameLength     = 100
	minPhoneDigits    = 9
	maxPhoneDigits    = 15
)

// Validate checks the registration fields.
// Returns a map of field names to error messages, or nil if all fields are valid.
func (r RegisterRequest) Validate() map[string]string {
	errs := make(map[string]string)

	validateEmail(errs, r.Email)
	validatePassword(errs, r.Password)
	validateName(errs, "given_name", r.GivenName)
	validateName(errs, "family_name", r.FamilyName)
	if r.Phone != nil {
		validatePhone(errs, *r.Phone)
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Validate only checks presence; credential checks belong to the engine.
func (r LoginRequest) Validate() map[string]string {
	errs := make(map[string]string)
	if strings.TrimSpace(r.Email) == "" {
		errs["email"] = requiredReason
	}
	if r.Password == "" {
		errs["password"] = requiredReason
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func (r RefreshRequest) Validate() map[string]string {
	if strings.TrimSpace(r.RefreshToken) == "" {
		return map[string]string{"refresh_token": requiredReason}
	}
	return nil
}

func validateEmail(errs map[string]string, email string) {
	email = strings.TrimSpace(email)
	switch {
	case email == "":
		errs["email"] = requiredReason
	case len(email) > maxEmailLength:
		errs["email"] = "too long (max 254)"
	default:
		addr, err := mail.ParseAddress(email)
		// Reject display-name forms like "Bob <bob@example.com>".
		if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
			errs["email"] = "must be a valid email address"
		}
	}
}

func validatePassword(errs map[string]string, pw string) {
	n := utf8.RuneCountInString(pw)
	switch {
	case pw == "":
		errs["password"] = requiredReason
		return
	case n < minPasswordLength:
		errs["password"] = "too short (min 8)"
		return
	case n > maxPasswordLength:
		errs["password"] = "too long (max 128)"
		return
	}

	var upper, lower, digit bool
	for _, c := range pw {
		switch {
		case unicode.IsUpper(c):
			upper = true
		case unicode.IsLower(c):
			lower = true
		case unicode.IsDigit(c):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		errs["password"] = "must contain an upper-case letter, a lower-case letter and a digit"
	}
}

func validateName(errs map[string]string, field, name string) {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	switch {
	case n == 0:
		errs[field] = requiredReason
	case n < minNameLength:
		errs[field] = "too short (min 2)"
	case n > maxNameLength:
		errs[field] = "too long (max 100)"
	}
}

func validatePhone(errs map[string]string, phone string) {
	digits := strings.TrimPrefix(strings.TrimSpace(phone), "+")
	if len(digits) < minPhoneDigits || len(digits) > maxPhoneDigits {
		errs["phone"] = "must be 9-15 digits"
		return
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			errs["phone"] = "must be 9-15 digits"
			return
		}
	}
}
