package main

import (
	"fmt"
	"regexp"
)

// Input validation mirrors the server's rules so bad input never reaches
// the wire.
var (
	phoneRe    = regexp.MustCompile(`^\+?\d{7,15}$`)
	passwordRe = regexp.MustCompile(`^[A-Za-z\d@$!%*?&]{8,}$`)
	nameRe     = regexp.MustCompile(`^[a-zA-Z]{2,}$`)

	hasLowerRe   = regexp.MustCompile(`[a-z]`)
	hasUpperRe   = regexp.MustCompile(`[A-Z]`)
	hasDigitRe   = regexp.MustCompile(`\d`)
	hasSpecialRe = regexp.MustCompile(`[@$!%*?&]`)
)

func validatePhone(phone string) error {
	if !phoneRe.MatchString(phone) {
		return fmt.Errorf("invalid phone number: must be 7-15 digits with an optional leading +")
	}
	return nil
}

func validatePassword(password string) error {
	if !passwordRe.MatchString(password) ||
		!hasLowerRe.MatchString(password) ||
		!hasUpperRe.MatchString(password) ||
		!hasDigitRe.MatchString(password) ||
		!hasSpecialRe.MatchString(password) {
		return fmt.Errorf("invalid password: need at least 8 characters with upper, lower, digit, and one of @$!%%*?&")
	}
	return nil
}

func validateName(field, name string) error {
	if !nameRe.MatchString(name) {
		return fmt.Errorf("invalid %s: must be at least 2 letters", field)
	}
	return nil
}
