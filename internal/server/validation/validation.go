// Package validation checks user input for the auth flows. Every failure is
// reported as a *common.ValidationError carrying field-level messages that
// are safe to show verbatim.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/dmitrijs2005/lostfound/internal/common"
	"github.com/go-playground/validator/v10"
)

const (
	MinPasswordLength = 8
	// bcrypt ignores everything past 72 bytes, so the limit is in bytes.
	MaxPasswordBytes = 72
)

// Registration is the input of a new account.
type Registration struct {
	Email           string `json:"email" validate:"required,email,max=254,emaildomain"`
	Password        string `json:"password" validate:"required,min=8,bcryptlen,strongpassword"`
	PasswordConfirm string `json:"password_confirm" validate:"eqfield=Password"`
	FullName        string `json:"full_name" validate:"required,max=200"`
}

// PasswordChange is the input of a password reset.
type PasswordChange struct {
	Password string `json:"password" validate:"required,min=8,bcryptlen,strongpassword"`
}

// Profile is a self-service profile edit. Empty fields are not changed.
type Profile struct {
	Email    string `json:"email" validate:"omitempty,email,max=254,emaildomain"`
	FullName string `json:"full_name" validate:"omitempty,max=200"`
}

// Validator wraps a validator.Validate configured with the lostfound rules.
// It is safe for concurrent use.
type Validator struct {
	validate *validator.Validate
	domains  []string
}

// New returns a Validator. allowedDomains restricts registration e-mail
// addresses to those domains and their subdomains; an empty list allows any.
func New(allowedDomains []string) *Validator {
	v := &Validator{validate: validator.New(validator.WithRequiredStructEnabled())}
	for _, d := range allowedDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			v.domains = append(v.domains, strings.TrimPrefix(d, "@"))
		}
	}

	v.validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	// Registration of static rules cannot fail at runtime.
	_ = v.validate.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
		return StrongPassword(fl.Field().String())
	})
	_ = v.validate.RegisterValidation("bcryptlen", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= MaxPasswordBytes
	})
	_ = v.validate.RegisterValidation("emaildomain", func(fl validator.FieldLevel) bool {
		return v.DomainAllowed(fl.Field().String())
	})

	return v
}

// Struct validates one of the input types of this package.
func (v *Validator) Struct(in any) error {
	err := v.validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &common.ValidationError{}
	for _, fe := range verrs {
		out.Add(fe.Field(), message(fe))
	}
	return out.OrNil()
}

// DomainAllowed reports whether the domain part of email passes the policy.
func (v *Validator) DomainAllowed(email string) bool {
	if len(v.domains) == 0 {
		return true
	}
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return false
	}
	domain := strings.ToLower(email[at+1:])
	for _, d := range v.domains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}

// StrongPassword reports whether pw mixes upper and lower case letters,
// digits and symbols. Length is checked separately.
func StrongPassword(pw string) bool {
	var upper, lower, digit, symbol bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	return upper && lower && digit && symbol
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "emaildomain":
		return "email domain is not allowed"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "bcryptlen":
		return fmt.Sprintf("must be at most %d bytes", MaxPasswordBytes)
	case "strongpassword":
		return "must contain upper and lower case letters, a digit and a symbol"
	case "eqfield":
		return "does not match"
	default:
		return "is invalid"
	}
}
