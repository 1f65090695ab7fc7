package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/huangang/brandsentry/internal/config"
)

type stubCompleter struct {
	body  string
	err   error
	delay time.Duration
	calls int
}

func (s *stubCompleter) complete(ctx context.Context, system, text string) (string, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.body, s.err
}

func TestGateway_Classify(t *testing.T) {
	tests := []struct {
		name     string
		stub     *stubCompleter
		text     string
		timeout  time.Duration
		wantKind FailureKind
	}{
		{name: "success", stub: &stubCompleter{body: validBody}, text: "late parcel"},
		{name: "empty input", stub: &stubCompleter{body: validBody}, text: "   ", wantKind: FailureInput},
		{name: "transport", stub: &stubCompleter{err: errors.New("connection refused")}, text: "x", wantKind: FailureTransport},
		{name: "empty body", stub: &stubCompleter{body: "  "}, text: "x", wantKind: FailureEmpty},
		{name: "nonconforming", stub: &stubCompleter{body: `{"label":"NEUTRAL"}`}, text: "x", wantKind: FailureNonconforming},
		{name: "timeout", stub: &stubCompleter{body: validBody, delay: time.Second}, text: "x", timeout: 20 * time.Millisecond, wantKind: FailureTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGatewayWith("stub", "stub-model", tt.timeout, 0, tt.stub)
			c, err := g.Classify(context.Background(), tt.text)
			if tt.wantKind == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if c.Provider != "stub" || c.Model != "stub-model" {
					t.Errorf("provenance = %s/%s", c.Provider, c.Model)
				}
				if !json.Valid(c.Raw) {
					t.Errorf("raw is not valid JSON: %s", c.Raw)
				}
				return
			}
			f, ok := AsFailure(err)
			if !ok {
				t.Fatalf("expected *Failure, got %v", err)
			}
			if f.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", f.Kind, tt.wantKind)
			}
		})
	}
}

func TestGateway_NoRetry(t *testing.T) {
	stub := &stubCompleter{err: errors.New("boom")}
	g := newGatewayWith("stub", "m", 0, 0, stub)
	_, _ = g.Classify(context.Background(), "hello")
	if stub.calls != 1 {
		t.Errorf("calls = %d, want 1", stub.calls)
	}
}

func TestGateway_TruncatesInput(t *testing.T) {
	if got := truncateUTF8("héllo", 2); got != "h" {
		t.Errorf("truncateUTF8 = %q, want %q", got, "h")
	}
	if got := truncateUTF8("abc", 10); got != "abc" {
		t.Errorf("truncateUTF8 = %q, want abc", got)
	}
}

func TestNewGateway_UnsupportedProvider(t *testing.T) {
	_, err := NewGateway(&config.ClassifierConfig{Provider: "watson"})
	if err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestNewGateway_DefaultModel(t *testing.T) {
	g, err := NewGateway(&config.ClassifierConfig{Provider: "anthropic", APIKey: "k"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Model() != DefaultModels["anthropic"] {
		t.Errorf("model = %s, want %s", g.Model(), DefaultModels["anthropic"])
	}
}

func TestOpenAIProvider_SendsStrictSchema(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": time.Now().Unix(),
			"model":   "gpt-4o-mini",
			"choices": []map[string]interface{}{
				{"index": 0, "finish_reason": "stop", "message": map[string]interface{}{"role": "assistant", "content": validBody}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	g, err := NewGateway(&config.ClassifierConfig{
		Provider: "openai",
		BaseURL:  srv.URL,
		APIKey:   "test",
		Timeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}

	c, err := g.Classify(context.Background(), "My parcel never arrived")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if c.Urgency != 80 {
		t.Errorf("urgency = %d, want 80", c.Urgency)
	}

	rf, ok := got["response_format"].(map[string]interface{})
	if !ok {
		t.Fatalf("request had no response_format: %v", got)
	}
	if rf["type"] != "json_schema" {
		t.Errorf("response_format.type = %v, want json_schema", rf["type"])
	}
	js, _ := rf["json_schema"].(map[string]interface{})
	if js["strict"] != true || js["name"] != schemaName {
		t.Errorf("json_schema = %v", js)
	}
}

func TestOpenAIProvider_ServerErrorIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream down","type":"server_error"}}`))
	}))
	defer srv.Close()

	g, err := NewGateway(&config.ClassifierConfig{Provider: "openai", BaseURL: srv.URL, APIKey: "test"})
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	_, err = g.Classify(context.Background(), "hello")
	f, ok := AsFailure(err)
	if !ok || f.Kind != FailureTransport {
		t.Errorf("expected transport failure, got %v", err)
	}
}
