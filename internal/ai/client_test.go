package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(Config{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func candidateBody(text string) string {
	payload, _ := json.Marshal(map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"role": "model", "parts": []any{map[string]any{"text": text}}}},
		},
	})
	return string(payload)
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(Config{}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled got %v", err)
	}
}

func TestClientGenerate(t *testing.T) {
	var got generateRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-2.5-flash:generateContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		fmt.Fprint(w, candidateBody(`{"address":"MG Road"}`))
	})

	input := sampleListing()
	input.Photo = &Image{Data: []byte("jpeg-bytes"), MIMEType: "image/jpeg"}
	text, err := client.Generate(context.Background(), BuildListingRequest(input))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text != `{"address":"MG Road"}` {
		t.Fatalf("unexpected text %q", text)
	}

	if len(got.Contents) != 1 || len(got.Contents[0].Parts) != 3 {
		t.Fatalf("expected one content with three parts got %+v", got.Contents)
	}
	inline := got.Contents[0].Parts[2].InlineData
	if inline == nil || inline.MimeType != "image/jpeg" || inline.Data != base64.StdEncoding.EncodeToString([]byte("jpeg-bytes")) {
		t.Fatalf("unexpected inline data %+v", inline)
	}
	if len(got.Tools) != 2 || got.Tools[0].GoogleSearch == nil || got.Tools[1].GoogleMaps == nil {
		t.Fatalf("expected search and maps tools got %+v", got.Tools)
	}
}

func TestClientGenerateErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"server error", http.StatusServiceUnavailable, `{"error":{"message":"overloaded"}}`, nil},
		{"no candidates", http.StatusOK, `{"candidates":[]}`, ErrEmptyResponse},
		{"garbage", http.StatusOK, `not json`, nil},
		{"error body with ok status", http.StatusOK, `{"error":{"code":500,"message":"internal","status":"INTERNAL"}}`, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			})
			_, err := client.Generate(context.Background(), BuildGeocodeRequest(1, 2, English))
			if err == nil {
				t.Fatalf("expected error")
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v got %v", tc.wantErr, err)
			}
			if tc.wantErr == nil && errors.Is(err, ErrEmptyResponse) {
				t.Fatalf("expected transport error got %v", err)
			}
		})
	}
}

func TestClientStream(t *testing.T) {
	var got generateRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-3-pro-preview:streamGenerateContent" || r.URL.Query().Get("alt") != "sse" {
			t.Errorf("unexpected url %s", r.URL.String())
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range []string{"Hel", "lo, ", "friend."} {
			fmt.Fprintf(w, "data: %s\r\n\r\n", candidateBody(chunk))
		}
	})

	history := []ChatTurn{{Role: RoleAssistant, Text: "Welcome"}, {Role: RoleUser, Text: "Hi"}}
	stream, err := client.Stream(context.Background(), BuildChatRequest("Is a wire deposit safe?", history, English))
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	reply, err := Collect(stream)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if reply != "Hello, friend." {
		t.Fatalf("expected %q got %q", "Hello, friend.", reply)
	}

	if len(got.Contents) != 3 || got.Contents[0].Role != "model" || got.Contents[2].Role != "user" {
		t.Fatalf("unexpected contents %+v", got.Contents)
	}
	if got.SystemInstruction == nil || !strings.Contains(got.SystemInstruction.Parts[0].Text, "English") {
		t.Fatalf("expected system instruction with language")
	}
}

func TestClientStreamBadChunk(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "data: %s\n\n", candidateBody("ok"))
		fmt.Fprint(w, "data: {broken\n\n")
	})
	stream, err := client.Stream(context.Background(), BuildChatRequest("hi", nil, English))
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	reply, err := Collect(stream)
	if err == nil {
		t.Fatalf("expected decode error")
	}
	if reply != "ok" {
		t.Fatalf("expected partial reply got %q", reply)
	}
	if stream.State() != StreamErrored {
		t.Fatalf("expected errored got %s", stream.State())
	}
}

func TestClientStreamErrorChunk(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "data: %s\n\n", candidateBody("Hel"))
		fmt.Fprint(w, "data: {\"error\":{\"code\":503,\"message\":\"model overloaded\",\"status\":\"UNAVAILABLE\"}}\n\n")
		fmt.Fprintf(w, "data: %s\n\n", candidateBody("lo"))
	})
	stream, err := client.Stream(context.Background(), BuildChatRequest("hi", nil, English))
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	reply, err := Collect(stream)
	if err == nil || !strings.Contains(err.Error(), "model overloaded") {
		t.Fatalf("expected gemini error got %v", err)
	}
	if reply != "Hel" {
		t.Fatalf("expected partial reply got %q", reply)
	}
	if stream.State() != StreamErrored {
		t.Fatalf("expected errored got %s", stream.State())
	}
}
