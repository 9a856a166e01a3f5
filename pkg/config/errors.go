package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid matches every configuration error via errors.Is.
var ErrInvalid = errors.New("invalid configuration")

// Error describes one invalid setting: where it is, which key, the
// offending value and why it was rejected.
type Error struct {
	// Stage locates the stage ("stages[2]", "intro"); empty for top-level
	// settings.
	Stage string

	// Key is the offending key, if any.
	Key string

	// Value is the offending value, if any.
	Value any

	// Reason says what is wrong.
	Reason string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("config")
	if e.Stage != "" {
		b.WriteString(": ")
		b.WriteString(e.Stage)
	}
	if e.Key != "" {
		b.WriteString(": ")
		b.WriteString(e.Key)
		if e.Value != nil {
			fmt.Fprintf(&b, "=%v", e.Value)
		}
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	return b.String()
}

// Is makes every *Error match ErrInvalid.
func (e *Error) Is(target error) bool {
	return target == ErrInvalid
}

// Errorf builds an *Error with a formatted reason.
func Errorf(stage, key string, value any, format string, args ...any) *Error {
	return &Error{Stage: stage, Key: key, Value: value, Reason: fmt.Sprintf(format, args...)}
}

// errorList accumulates errors so one pass reports every offending stage.
type errorList []error

func (l *errorList) add(err error) {
	if err != nil {
		*l = append(*l, err)
	}
}

func (l errorList) err() error {
	return errors.Join(l...)
}
