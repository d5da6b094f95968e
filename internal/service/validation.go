package service

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

const (
	minPasswordLength = 6
	maxPasswordLength = 128
	maxNameLength     = 100
)

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func validateEmail(email string) error {
	if email == "" {
		return validationError("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return validationError("invalid email")
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return validationError("name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return validationError("name is too long")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return validationError("password must be at least 6 characters")
	}
	if len(password) > maxPasswordLength {
		return validationError("password is too long")
	}
	return nil
}
