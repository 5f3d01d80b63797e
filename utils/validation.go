package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	EmailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	// PhoneRegex accepts Indian mobile numbers with the country code, e.g. +919876543210.
	PhoneRegex = regexp.MustCompile(`^\+91\d{10}$`)
	OTPRegex   = regexp.MustCompile(`^\d{6}$`)
)

// ValidateEmail checks if email format is valid
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if !EmailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidatePhone checks the +91XXXXXXXXXX format
func ValidatePhone(phone string) error {
	if phone == "" {
		return fmt.Errorf("phone is required")
	}
	if !PhoneRegex.MatchString(phone) {
		return fmt.Errorf("invalid phone format (use +91XXXXXXXXXX)")
	}
	return nil
}

func ValidateOTP(code string) error {
	if !OTPRegex.MatchString(code) {
		return fmt.Errorf("otp must be 6 digits")
	}
	return nil
}

// NormalizeEmail lowercases and trims an address so the same inbox always maps to the same key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
