package processors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Abhijeetkumar8582/NewCode/core"
)

func customClientFor(t *testing.T, url string) VisionClient {
	t.Helper()
	client, err := NewVisionClient(core.VisionBackendConfig{
		Kind:        core.BackendCustomHTTP,
		BaseURL:     url,
		BearerToken: "secret",
		Model:       "custom-model",
	})
	if err != nil {
		t.Fatalf("build client: %v", err)
	}
	return client
}

func TestNewVisionClientNoBackend(t *testing.T) {
	_, err := NewVisionClient(core.VisionBackendConfig{Kind: core.BackendNone})
	if !errors.Is(err, core.ErrNoVisionBackend) {
		t.Errorf("expected ErrNoVisionBackend, got %v", err)
	}
}

func TestCustomClientSend(t *testing.T) {
	var gotAuth string
	var gotReq customChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "{\"description\": \"ok\"}"}}]}`))
	}))
	defer srv.Close()

	client := customClientFor(t, srv.URL)
	out, err := client.Send(context.Background(), "analyze", [][]byte{[]byte("img")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"description": "ok"}` {
		t.Errorf("content = %q", out)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotReq.Model != "custom-model" {
		t.Errorf("model = %q", gotReq.Model)
	}
	if gotReq.MaxTokens != singleFrameTokens {
		t.Errorf("max_tokens = %d, want %d for one image", gotReq.MaxTokens, singleFrameTokens)
	}
}

func TestCustomClientBatchTokenBudget(t *testing.T) {
	var gotReq customChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "{}"}}]}`))
	}))
	defer srv.Close()

	client := customClientFor(t, srv.URL)
	if _, err := client.Send(context.Background(), "analyze",
		[][]byte{[]byte("a"), []byte("b")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotReq.MaxTokens != batchFrameTokens {
		t.Errorf("max_tokens = %d, want %d for a batch", gotReq.MaxTokens, batchFrameTokens)
	}
}

func TestCustomClientPayloadTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
	}))
	defer srv.Close()

	client := customClientFor(t, srv.URL)
	_, err := client.Send(context.Background(), "analyze", [][]byte{[]byte("img")})
	if !errors.Is(err, core.ErrPayloadTooLarge) {
		t.Errorf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestCustomClientUnauthenticated(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))
		client := customClientFor(t, srv.URL)
		_, err := client.Send(context.Background(), "analyze", [][]byte{[]byte("img")})
		srv.Close()
		if !errors.Is(err, core.ErrUnauthenticated) {
			t.Errorf("status %d: expected ErrUnauthenticated, got %v", status, err)
		}
	}
}

func TestCustomClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := customClientFor(t, srv.URL)
	_, err := client.Send(context.Background(), "analyze", [][]byte{[]byte("img")})
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, core.ErrPayloadTooLarge) || errors.Is(err, core.ErrUnauthenticated) {
		t.Errorf("500 must not map to a sentinel: %v", err)
	}
}

func TestCustomClientBareContentFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"content": "bare reply"}`))
	}))
	defer srv.Close()

	client := customClientFor(t, srv.URL)
	out, err := client.Send(context.Background(), "analyze", [][]byte{[]byte("img")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "bare reply" {
		t.Errorf("content = %q", out)
	}
}
