// Package classifier is the only place that knows the request and response
// shapes of the external sentiment classification providers. It never
// persists anything and never retries; callers own retry policy.
package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/huangang/brandsentry/internal/models"
)

// Result is the strict classification contract. Every field is required and
// no other field is accepted.
type Result struct {
	Language   string                `json:"language" jsonschema:"required,description=ISO 639-1 code of the text language"`
	Label      models.SentimentLabel `json:"label" jsonschema:"required,enum=VERY_NEGATIVE,enum=NEGATIVE,enum=NEUTRAL,enum=POSITIVE,enum=VERY_POSITIVE"`
	Score      float64               `json:"score" jsonschema:"required,description=Polarity from -1 (negative) to 1 (positive)"`
	Intensity  float64               `json:"intensity" jsonschema:"required,description=Emotional strength from 0 to 1"`
	Urgency    int                   `json:"urgency" jsonschema:"required,description=Integer percentage 0-100 of how urgently the brand must respond"`
	Topics     []string              `json:"topics" jsonschema:"required,description=Short lowercase nouns naming what the feedback is about"`
	KeyPhrases []string              `json:"keyPhrases" jsonschema:"required"`
	Summary    string                `json:"summary" jsonschema:"required,description=One sentence summary"`
}

// Classification is a Result plus the provenance the event store keeps.
type Classification struct {
	Result
	Provider string
	Model    string
	Raw      json.RawMessage
	Latency  time.Duration
}

// Classifier classifies canonical feedback text.
type Classifier interface {
	Classify(ctx context.Context, text string) (*Classification, error)
}

type FailureKind string

const (
	FailureTransport     FailureKind = "transport"
	FailureTimeout       FailureKind = "timeout"
	FailureEmpty         FailureKind = "empty"
	FailureNonconforming FailureKind = "nonconforming"
	FailureInput         FailureKind = "input"
)

// Failure is the single error type returned by Classify.
type Failure struct {
	Kind     FailureKind
	Provider string
	Err      error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("classification %s failure (%s): %v", f.Kind, f.Provider, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

var (
	ErrEmptyInput    = errors.New("empty input text")
	ErrEmptyResponse = errors.New("empty response body")
)
