// Package generator produces oracle answers, either by drawing from a fixed
// list of canned answers or by prompting a chat completion model.
package generator

import "context"

// Placeholder is the canned answer that means "not resolved yet".
const Placeholder = "Ask again later."

// DefaultAnswers is the canned answer list of the classic oracle.
var DefaultAnswers = []string{
	Placeholder,
	"Absolutely!",
	"Unlikely",
	"Simply put, no",
}

// Generator produces an answer for question. Implementations keep no state
// between calls; question may be empty for uncached draws.
type Generator interface {
	Generate(ctx context.Context, question string) (string, error)
}
