package service

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"
)

// maxPasswordBytes — предел bcrypt на стороне бэкенда.
const maxPasswordBytes = 72

func validateEmail(raw string) (string, error) {
	const op = "service.validateEmail"

	email := strings.TrimSpace(raw)
	if email == "" {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	return strings.ToLower(email), nil
}

// validatePassword проверяет требования бэкенда к паролю при регистрации:
// 8–72 байта, хотя бы одна строчная, заглавная, цифра и спецсимвол.
func validatePassword(pw string) error {
	const op = "service.validatePassword"

	if len(pw) == 0 {
		return fmt.Errorf("%s: %w", op, ErrEmptyPassword)
	}

	if len([]rune(pw)) < 8 || len(pw) > maxPasswordBytes {
		return fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if !(hasLower && hasUpper && hasDigit && hasSpecial) {
		return fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	return nil
}
