// Package intent classifies free-text messages into an intent plus parameters.
package intent

import (
	"context"
)

// Request is one utterance to classify.
type Request struct {
	Text      string
	SessionID string
	Language  string
}

// Result is the classifier's verdict. Params holds the raw parameter values
// as decoded from the provider (strings, float64 numbers, lists).
type Result struct {
	Intent          string
	Params          map[string]any
	FulfillmentText string
}

// Classifier detects the intent of a message.
type Classifier interface {
	Classify(ctx context.Context, req Request) (Result, error)
}
