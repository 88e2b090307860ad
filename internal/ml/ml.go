// Package ml wraps the external Python model processes behind narrow
// interfaces so services never deal with subprocess mechanics directly.
package ml

import (
	"context"
	"fmt"

	"github.com/AlvinLimo/GrowFrika/internal/errs"
)

// Classification outcome statuses emitted by the prediction script.
const (
	StatusSuccess    = "success"
	StatusLowQuality = "low_quality_prediction"
	StatusInvalid    = "invalid_image"
)

// Turn is one role/content pair in the rolling context handed to the chat model.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ClassificationResult is the parsed output of the prediction script. Which
// fields are populated depends on Status.
type ClassificationResult struct {
	Status         string             `json:"status"`
	PredictedClass string             `json:"predicted_class"`
	Confidence     float64            `json:"confidence"`
	Probabilities  map[string]float64 `json:"all_probabilities,omitempty"`
	Reliable       bool               `json:"reliable,omitempty"`
	ImageQuality   float64            `json:"image_quality,omitempty"`
	Advice         string             `json:"advice,omitempty"`
	Warning        string             `json:"warning,omitempty"`
	Suggestion     string             `json:"suggestion,omitempty"`
	Error          string             `json:"error,omitempty"`
	LLMResponse    string             `json:"llm_response,omitempty"`
}

// Reply returns the assistant-facing text for a classification, preferring
// the model-generated response over the templated advice.
func (r *ClassificationResult) Reply() string {
	if r.LLMResponse != "" {
		return r.LLMResponse
	}
	if r.Advice != "" {
		return r.Advice
	}
	return r.Suggestion
}

// Classifier diagnoses an uploaded leaf image.
type Classifier interface {
	Classify(ctx context.Context, imagePath string) (*ClassificationResult, error)
}

// ChatResponder produces one assistant reply for a rolling context whose last
// entry is the new user message.
type ChatResponder interface {
	Respond(ctx context.Context, history []Turn) (string, error)
}

// AdapterError reports a failed model process invocation: non-zero exit,
// unparseable output, or timeout. It carries the process stderr for diagnostics.
type AdapterError struct {
	Op     string // "predict" or "chat"
	Stderr string
	cause  error
}

func (e *AdapterError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s adapter: %v: %s", e.Op, e.cause, e.Stderr)
	}
	return fmt.Sprintf("%s adapter: %v", e.Op, e.cause)
}

func NewAdapterError(op, stderr string, cause error) *AdapterError {
	return &AdapterError{Op: op, Stderr: stderr, cause: cause}
}

func (e *AdapterError) Unwrap() error { return e.cause }

// Is lets errors.Is match any adapter failure against errs.ErrAdapter.
func (e *AdapterError) Is(target error) bool { return target == errs.ErrAdapter }
