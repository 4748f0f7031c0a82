// Package validation checks the customer fields collected at checkout.
// Checks are local heuristics; nothing is verified against an outside
// service.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	ErrValidation     = errors.New("invalid input")
	ErrInvalidPhone   = errors.New("invalid phone number")
	ErrInvalidHandle  = errors.New("invalid instagram handle")
	ErrInvalidAddress = errors.New("invalid address")
	ErrMissingField   = errors.New("missing field")
	ErrDateInPast     = errors.New("date in the past")
	ErrInvalidChoice  = errors.New("not one of the offered choices")
)

// Error names the offending field. It matches both ErrValidation and its
// specific sentinel with errors.Is.
type Error struct {
	Field string
	Err   error
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.Field, e.Err) }

func (e *Error) Unwrap() []error { return []error{ErrValidation, e.Err} }

func fieldErr(field string, err error) error { return &Error{Field: field, Err: err} }

var (
	phoneSeparators = strings.NewReplacer(" ", "", ".", "", "-", "", "(", "", ")", "")
	mobilePattern   = regexp.MustCompile(`^(?:\+33|0033|0)[67]\d{8}$`)
	handlePattern   = regexp.MustCompile(`^[A-Za-z0-9._]{1,30}$`)
	digitPattern    = regexp.MustCompile(`\d`)
)

const minAddressLen = 10

// NormalizePhone strips separators and returns the number in national form
// (06XXXXXXXX).
func NormalizePhone(raw string) (string, error) {
	p := phoneSeparators.Replace(strings.TrimSpace(raw))
	if !mobilePattern.MatchString(p) {
		return "", fieldErr("phone", ErrInvalidPhone)
	}
	switch {
	case strings.HasPrefix(p, "+33"):
		p = "0" + p[3:]
	case strings.HasPrefix(p, "0033"):
		p = "0" + p[4:]
	}
	return p, nil
}

func Phone(raw string) error {
	_, err := NormalizePhone(raw)
	return err
}

// Handle accepts an instagram handle with or without the leading @.
func Handle(raw string) error {
	h := strings.TrimPrefix(strings.TrimSpace(raw), "@")
	if !handlePattern.MatchString(h) || strings.Contains(h, "..") {
		return fieldErr("instagram", ErrInvalidHandle)
	}
	return nil
}

// Address requires a minimum length and a digit, as a rough house number
// check.
func Address(raw string) error {
	a := strings.TrimSpace(raw)
	if len([]rune(a)) < minAddressLen || !digitPattern.MatchString(a) {
		return fieldErr("address", ErrInvalidAddress)
	}
	return nil
}

func Required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fieldErr(field, ErrMissingField)
	}
	return nil
}

// OneOf requires value to be one of allowed.
func OneOf(field, value string, allowed []string) error {
	if strings.TrimSpace(value) == "" {
		return fieldErr(field, ErrMissingField)
	}
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fieldErr(field, ErrInvalidChoice)
}

// NotBefore rejects a day earlier than today. Times are compared by calendar
// date in today's location.
func NotBefore(field string, day, today time.Time) error {
	if day.IsZero() {
		return fieldErr(field, ErrMissingField)
	}
	y, m, d := today.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, today.Location())
	if day.In(today.Location()).Before(start) {
		return fieldErr(field, ErrDateInPast)
	}
	return nil
}

// Join collects every failing check so the form can flag all fields at once.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
