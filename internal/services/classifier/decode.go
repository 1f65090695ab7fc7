package classifier

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/huangang/brandsentry/internal/models"
)

// wireResult mirrors Result with pointers so missing fields are detectable.
type wireResult struct {
	Language   *string   `json:"language"`
	Label      *string   `json:"label"`
	Score      *float64  `json:"score"`
	Intensity  *float64  `json:"intensity"`
	Urgency    *float64  `json:"urgency"`
	Topics     *[]string `json:"topics"`
	KeyPhrases *[]string `json:"keyPhrases"`
	Summary    *string   `json:"summary"`
}

// resultKeys are the top-level keys of the contract, matched case-sensitively.
var resultKeys = map[string]bool{
	"language":   true,
	"label":      true,
	"score":      true,
	"intensity":  true,
	"urgency":    true,
	"topics":     true,
	"keyPhrases": true,
	"summary":    true,
}

// checkKeys walks the top-level object and rejects keys outside resultKeys
// and repeated keys. encoding/json alone accepts both: it matches names
// case-insensitively and lets the last duplicate win.
func checkKeys(body []byte) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("expected a JSON object")
	}

	seen := make(map[string]bool, len(resultKeys))
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return errors.New("expected an object key")
		}
		if !resultKeys[key] {
			return fmt.Errorf("unknown field %q", key)
		}
		if seen[key] {
			return fmt.Errorf("duplicate field %q", key)
		}
		seen[key] = true

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return err
		}
	}
	return nil
}

// DecodeResult parses a provider body against the strict contract. Unknown,
// repeated, wrongly cased or missing fields, malformed JSON, trailing data,
// unknown labels, fractional urgency and out-of-domain numbers are all errors.
func DecodeResult(body []byte) (*Result, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, ErrEmptyResponse
	}

	if err := checkKeys(body); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()

	var w wireResult
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, errors.New("malformed response: trailing data after JSON object")
	}

	var missing []string
	if w.Language == nil {
		missing = append(missing, "language")
	}
	if w.Label == nil {
		missing = append(missing, "label")
	}
	if w.Score == nil {
		missing = append(missing, "score")
	}
	if w.Intensity == nil {
		missing = append(missing, "intensity")
	}
	if w.Urgency == nil {
		missing = append(missing, "urgency")
	}
	if w.Topics == nil {
		missing = append(missing, "topics")
	}
	if w.KeyPhrases == nil {
		missing = append(missing, "keyPhrases")
	}
	if w.Summary == nil {
		missing = append(missing, "summary")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}

	label := models.SentimentLabel(*w.Label)
	if !label.Valid() {
		return nil, fmt.Errorf("invalid label %q", *w.Label)
	}
	if *w.Score < -1 || *w.Score > 1 {
		return nil, fmt.Errorf("score %v outside [-1, 1]", *w.Score)
	}
	if *w.Intensity < 0 || *w.Intensity > 1 {
		return nil, fmt.Errorf("intensity %v outside [0, 1]", *w.Intensity)
	}
	if *w.Urgency != math.Trunc(*w.Urgency) {
		return nil, fmt.Errorf("urgency %v is not an integer", *w.Urgency)
	}
	if *w.Urgency < 0 || *w.Urgency > 100 {
		return nil, fmt.Errorf("urgency %v outside [0, 100]", *w.Urgency)
	}

	language := strings.TrimSpace(*w.Language)
	if language == "" {
		language = "en"
	}

	return &Result{
		Language:   strings.ToLower(language),
		Label:      label,
		Score:      *w.Score,
		Intensity:  *w.Intensity,
		Urgency:    int(*w.Urgency),
		Topics:     normalizeTopics(*w.Topics),
		KeyPhrases: nonNil(*w.KeyPhrases),
		Summary:    *w.Summary,
	}, nil
}

// normalizeTopics lowercases and trims topics, dropping blanks. Order and
// repeats are preserved; aggregation counts repeats.
func normalizeTopics(topics []string) []string {
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
