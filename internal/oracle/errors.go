package oracle

import (
	"errors"
	"fmt"
)

// Kind classifies an oracle failure.
type Kind string

const (
	KindValidation Kind = "validation"
	KindStore      Kind = "store"
	KindInference  Kind = "inference"
	KindEncoding   Kind = "encoding"
)

// ErrEmptyQuestion is returned for an empty question.
var ErrEmptyQuestion = errors.New("question is empty")

// Error is returned by Resolve for every failure.
type Error struct {
	Kind     Kind
	Op       string // "validate", "get", "set", "generate", "decode"
	Question string
	Err      error
}

func (e *Error) Error() string {
	if e.Question == "" {
		return fmt.Sprintf("oracle %s %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("oracle %s %s %q: %v", e.Kind, e.Op, e.Question, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return ""
}

func newError(kind Kind, op, question string, err error) *Error {
	return &Error{Kind: kind, Op: op, Question: question, Err: err}
}
