package llamacpp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func chatServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}

		var req ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if req.Stream {
			t.Error("Expected non-streaming request")
		}

		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

func completion(content string) string {
	resp := ChatCompletionResponse{
		Choices: []Choice{{Message: Message{Role: "assistant", Content: content}}},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestNewClientDefaults(t *testing.T) {
	c, err := NewClient("")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if c.baseURL != "http://localhost:8080" {
		t.Errorf("Unexpected default base URL %s", c.baseURL)
	}

	c, _ = NewClient("http://example.com/")
	if c.baseURL != "http://example.com" {
		t.Errorf("Expected trailing slash to be trimmed, got %s", c.baseURL)
	}
}

func TestClassify(t *testing.T) {
	srv := chatServer(t, http.StatusOK, completion(`{"categories":[{"label":"Malignant","score":0.62},{"label":"Benign","score":0.38}]}`))
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	categories, err := c.Classify(context.Background(), "model", "classify", "aGVsbG8=")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if len(categories) != 2 {
		t.Fatalf("Expected 2 categories, got %d", len(categories))
	}
	if categories[0].Label != "Malignant" || categories[0].Score != 0.62 {
		t.Errorf("Unexpected category %+v", categories[0])
	}
}

func TestClassifyServerError(t *testing.T) {
	srv := chatServer(t, http.StatusInternalServerError, "model not loaded")
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	_, err := c.Classify(context.Background(), "model", "classify", "aGVsbG8=")
	if err == nil {
		t.Fatal("Expected error on server failure")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("Expected status code in error, got %v", err)
	}
}

func TestClassifyEmptyReply(t *testing.T) {
	srv := chatServer(t, http.StatusOK, completion(""))
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	if _, err := c.Classify(context.Background(), "model", "classify", "aGVsbG8="); err == nil {
		t.Error("Expected error on empty reply")
	}
}

func TestSimpleQueryArrayContent(t *testing.T) {
	body := `{"choices":[{"index":0,"message":{"role":"assistant","content":[{"type":"text","text":"a mole"}]}}]}`
	srv := chatServer(t, http.StatusOK, body)
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	got, err := c.SimpleQuery(context.Background(), "model", "describe", "")
	if err != nil {
		t.Fatalf("SimpleQuery failed: %v", err)
	}
	if got != "a mole" {
		t.Errorf("Unexpected reply %q", got)
	}
}
