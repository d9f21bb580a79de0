package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	emailRegex     = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	orderCodeRegex = regexp.MustCompile(`^[A-Za-z0-9]+$`)
	snowflakeRegex = regexp.MustCompile(`^[0-9]{5,20}$`)
)

// Registration form limits.
const (
	OrderCodeMinLen = 5
	OrderCodeMaxLen = 9
	NameMinLen      = 1
	NameMaxLen      = 50
	NicknameMaxLen  = 32
)

// ValidateEmail checks if an email address is valid.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidateOrderCode checks the order code typed into the registration form.
func ValidateOrderCode(code string) error {
	if strings.TrimSpace(code) == "" {
		return fmt.Errorf("order id is required")
	}
	n := utf8.RuneCountInString(code)
	if n < OrderCodeMinLen || n > OrderCodeMaxLen {
		return fmt.Errorf("order id must be %d-%d characters, got %d", OrderCodeMinLen, OrderCodeMaxLen, n)
	}
	if !orderCodeRegex.MatchString(code) {
		return fmt.Errorf("order id must be alphanumeric")
	}
	return nil
}

// ValidateAttendeeName checks the attendee name typed into the registration form.
func ValidateAttendeeName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name is required")
	}
	if n := utf8.RuneCountInString(name); n > NameMaxLen {
		return fmt.Errorf("name must be at most %d characters, got %d", NameMaxLen, n)
	}
	return nil
}

// ValidateSnowflake checks a chat platform id (user, role, channel).
func ValidateSnowflake(id string) error {
	if !snowflakeRegex.MatchString(id) {
		return fmt.Errorf("invalid platform id %q", id)
	}
	return nil
}

// Nickname truncates an attendee name to the chat platform's nickname limit.
func Nickname(name string) string {
	if utf8.RuneCountInString(name) <= NicknameMaxLen {
		return name
	}
	return string([]rune(name)[:NicknameMaxLen])
}
