package gotrue

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"
)

// MinPasswordLength is the shortest password ValidatePassword accepts.
const MinPasswordLength = 8

const maxEmailLength = 254

// ValidateEmail checks that email is a bare address such as "a@example.com".
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidEmail)
	}
	if len(email) > maxEmailLength {
		return fmt.Errorf("%w: email is too long", ErrInvalidEmail)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	at := strings.LastIndexByte(email, '@')
	if at <= 0 || !strings.Contains(email[at+1:], ".") {
		return fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	return nil
}

// ValidatePassword requires MinPasswordLength characters including a letter and a digit.
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidPassword)
	}
	if len([]rune(password)) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidPassword, MinPasswordLength)
	}
	var letter, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !letter || !digit {
		return fmt.Errorf("%w: password must contain a letter and a digit", ErrInvalidPassword)
	}
	return nil
}
