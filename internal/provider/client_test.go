package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"labelflow/internal/config"
)

func writeTestImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "label.jpg")
	if err := os.WriteFile(path, []byte{0xff, 0xd8, 0xff, 0xd9}, 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}
	return path
}

func completionPayload(content string) map[string]any {
	return map[string]any{
		"choices": []any{
			map[string]any{
				"message": map[string]any{
					"content": content,
				},
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     1000,
			"completion_tokens": 200,
		},
	}
}

func TestClientProcessImage(t *testing.T) {
	var captured chatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization header = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if err := json.NewEncoder(w).Encode(completionPayload(`{"country":"Australia"}`)); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(config.Provider{
		Name:              "gemini",
		Model:             "demo-model",
		APIKey:            "test-key",
		BaseURL:           server.URL,
		InputCostPerMTok:  2.0,
		OutputCostPerMTok: 10.0,
	})
	result, err := client.ProcessImage(context.Background(), Request{
		ImagePath: writeTestImage(t),
		Prompt:    "transcribe the label",
	})
	if err != nil {
		t.Fatalf("ProcessImage returned error: %v", err)
	}
	if result.RawContent != `{"country":"Australia"}` {
		t.Fatalf("unexpected content %q", result.RawContent)
	}
	if result.Costs.InputUnits != 1000 || result.Costs.OutputUnits != 200 {
		t.Fatalf("unexpected token counts %+v", result.Costs)
	}
	if result.Costs.InputCost != 0.002 {
		t.Fatalf("input cost = %v, want 0.002", result.Costs.InputCost)
	}
	if result.Costs.OutputCost != 0.002 {
		t.Fatalf("output cost = %v, want 0.002", result.Costs.OutputCost)
	}

	if captured.Model != "demo-model" {
		t.Fatalf("request model = %q", captured.Model)
	}
	if captured.ResponseFormat["type"] != jsonResponseType {
		t.Fatalf("response format = %v", captured.ResponseFormat)
	}
	if len(captured.Messages) != 1 || len(captured.Messages[0].Content) != 2 {
		t.Fatalf("unexpected message shape: %+v", captured.Messages)
	}
	imagePart := captured.Messages[0].Content[1]
	if imagePart.Type != "image_url" || imagePart.ImageURL == nil {
		t.Fatalf("missing image part: %+v", imagePart)
	}
	if !strings.HasPrefix(imagePart.ImageURL.URL, "data:image/jpeg;base64,") {
		t.Fatalf("image url = %q", imagePart.ImageURL.URL)
	}
}

func TestClientProcessImageRetriesOnServerError(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		if err := json.NewEncoder(w).Encode(completionPayload(`{"country":"Peru"}`)); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(
		config.Provider{Name: "gemini", Model: "demo", APIKey: "test", BaseURL: server.URL},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
	)
	result, err := client.ProcessImage(context.Background(), Request{
		ImagePath: writeTestImage(t),
		Prompt:    "transcribe",
	})
	if err != nil {
		t.Fatalf("ProcessImage returned error: %v", err)
	}
	if result.RawContent != `{"country":"Peru"}` {
		t.Fatalf("unexpected content %q", result.RawContent)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("expected one 1s sleep from Retry-After, got %v", slept)
	}
}

func TestClientProcessImageDoesNotRetryAuthFailure(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	}))
	defer server.Close()

	client := NewClient(
		config.Provider{Name: "gemini", Model: "demo", APIKey: "bad", BaseURL: server.URL},
		WithSleeper(func(time.Duration) {}),
	)
	_, err := client.ProcessImage(context.Background(), Request{
		ImagePath: writeTestImage(t),
		Prompt:    "transcribe",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("auth failures must not retry, got %d calls", calls)
	}
}

func TestClientProcessImageRejectsUnknownImageType(t *testing.T) {
	client := NewClient(config.Provider{Name: "gemini", Model: "demo", APIKey: "test", BaseURL: "http://localhost"})
	_, err := client.ProcessImage(context.Background(), Request{
		ImagePath: "scan.pdf",
		Prompt:    "transcribe",
	})
	if err == nil || !strings.Contains(err.Error(), "unsupported image type") {
		t.Fatalf("expected unsupported image type error, got %v", err)
	}
}

func TestClientHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := completionPayload("```json\n{\"ok\":true}\n```")
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(config.Provider{Name: "gemini", Model: "demo", APIKey: "test", BaseURL: server.URL})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	}))
	defer server.Close()

	client := NewClient(config.Provider{Name: "gemini", Model: "demo", APIKey: "bad", BaseURL: server.URL})
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health check to fail")
	}
}

func TestDecodeModelJSONProseWrapper(t *testing.T) {
	var parsed struct {
		Country string `json:"country"`
	}
	content := "Here is the transcription:\n{\"country\": \"Brazil\"}\nLet me know if anything is unclear."
	if err := DecodeModelJSON(content, &parsed); err != nil {
		t.Fatalf("DecodeModelJSON returned error: %v", err)
	}
	if parsed.Country != "Brazil" {
		t.Fatalf("country = %q", parsed.Country)
	}
}
