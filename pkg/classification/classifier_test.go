package classification

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/menta2k/image-classifier/pkg/types"
)

type stubClient struct {
	mu         sync.Mutex
	categories []types.Category
	err        error
	calls      int
	lastPrompt string
	block      chan struct{}
}

func (s *stubClient) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	s.mu.Lock()
	s.lastPrompt = prompt
	s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	return "  a close-up of skin \n", nil
}

func (s *stubClient) Classify(ctx context.Context, model, prompt, imgB64 string) ([]types.Category, error) {
	s.mu.Lock()
	s.calls++
	s.lastPrompt = prompt
	block := s.block
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.categories, nil
}

func TestClassifyKeepsModelOrder(t *testing.T) {
	stub := &stubClient{categories: []types.Category{{Label: "Benign", Score: 0.38}, {Label: "Malignant", Score: 0.62}}}
	c := New(stub, Config{Model: "test"})

	result, err := c.Classify(context.Background(), "aW1n")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if result.Model != "test" {
		t.Errorf("Expected model test, got %s", result.Model)
	}
	if len(result.Categories) != 2 || result.Categories[0].Label != "Benign" {
		t.Errorf("Unexpected categories %+v", result.Categories)
	}
	if result.InferenceTime < 0 {
		t.Errorf("Negative inference time %v", result.InferenceTime)
	}
}

func TestClassifyNormalizesCategories(t *testing.T) {
	stub := &stubClient{categories: []types.Category{
		{Label: "  cat ", Score: 0.5},
		{Label: "", Score: 0.3},
		{Label: "Cat", Score: 0.1},
		{Label: "dog", Score: 1.4},
		{Label: "bird", Score: 0.05},
	}}
	c := New(stub, Config{Model: "test", MaxResults: 2})

	result, err := c.Classify(context.Background(), "aW1n")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	want := []types.Category{{Label: "cat", Score: 0.5}, {Label: "dog", Score: 1.4}}
	if len(result.Categories) != len(want) {
		t.Fatalf("Expected %d categories, got %+v", len(want), result.Categories)
	}
	for i := range want {
		if result.Categories[i] != want[i] {
			t.Errorf("Position %d: expected %+v, got %+v", i, want[i], result.Categories[i])
		}
	}
}

func TestClassifyLimitKeepsHighestScores(t *testing.T) {
	stub := &stubClient{categories: []types.Category{
		{Label: "a", Score: 0.05},
		{Label: "b", Score: 0.05},
		{Label: "c", Score: 0.05},
		{Label: "d", Score: 0.05},
		{Label: "e", Score: 0.05},
		{Label: "Malignant", Score: 0.75},
	}}
	c := New(stub, Config{Model: "test", Labels: []string{"a", "b", "c", "d", "e", "Malignant"}, MaxResults: 5})

	result, err := c.Classify(context.Background(), "aW1n")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	want := []types.Category{
		{Label: "a", Score: 0.05},
		{Label: "b", Score: 0.05},
		{Label: "c", Score: 0.05},
		{Label: "d", Score: 0.05},
		{Label: "Malignant", Score: 0.75},
	}
	if len(result.Categories) != len(want) {
		t.Fatalf("Expected %d categories, got %+v", len(want), result.Categories)
	}
	for i := range want {
		if result.Categories[i] != want[i] {
			t.Errorf("Position %d: expected %+v, got %+v", i, want[i], result.Categories[i])
		}
	}
}

func TestTopN(t *testing.T) {
	categories := []types.Category{
		{Label: "low", Score: 0.1},
		{Label: "high", Score: 0.6},
		{Label: "tie-first", Score: 0.3},
		{Label: "tie-second", Score: 0.3},
	}

	got := topN(categories, 2)
	if len(got) != 2 || got[0].Label != "high" || got[1].Label != "tie-first" {
		t.Errorf("Unexpected top 2: %+v", got)
	}

	got = topN(categories, 3)
	if len(got) != 3 || got[0].Label != "high" || got[1].Label != "tie-first" || got[2].Label != "tie-second" {
		t.Errorf("Unexpected top 3: %+v", got)
	}

	if got := topN(categories, 0); len(got) != len(categories) {
		t.Errorf("No limit should keep everything, got %+v", got)
	}
}

func TestClassifyError(t *testing.T) {
	boom := errors.New("model unavailable")
	c := New(&stubClient{err: boom}, Config{Model: "test"})

	if _, err := c.Classify(context.Background(), "aW1n"); !errors.Is(err, boom) {
		t.Errorf("Expected wrapped model error, got %v", err)
	}
}

func TestPromptWithLabels(t *testing.T) {
	c := New(&stubClient{}, Config{Labels: []string{"Cancer", "Non Cancer"}})
	prompt := c.Prompt()
	if !strings.Contains(prompt, `"Cancer", "Non Cancer"`) {
		t.Errorf("Prompt should list labels, got %s", prompt)
	}

	if New(&stubClient{}, Config{}).Prompt() != DefaultPrompt {
		t.Error("Expected default prompt without labels")
	}
}

func TestClassifyUsesCache(t *testing.T) {
	stub := &stubClient{categories: []types.Category{{Label: "cat", Score: 0.9}}}
	c := New(stub, Config{Model: "test"}, WithCache(NewMemoryCache()))

	first, err := c.Classify(context.Background(), "aW1n")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	second, err := c.Classify(context.Background(), "aW1n")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	if stub.calls != 1 {
		t.Errorf("Expected one model call, got %d", stub.calls)
	}
	if second.Categories[0] != first.Categories[0] {
		t.Errorf("Cached result differs: %+v vs %+v", first, second)
	}

	if _, err := c.Classify(context.Background(), "b3RoZXI="); err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if stub.calls != 2 {
		t.Errorf("Different image should miss the cache, calls=%d", stub.calls)
	}
}

type failingCache struct{}

func (failingCache) Set(context.Context, string, string, time.Duration) error {
	return errors.New("connection refused")
}

func (failingCache) Get(context.Context, string) (string, error) {
	return "", errors.New("connection refused")
}

func TestClassifyIgnoresCacheErrors(t *testing.T) {
	stub := &stubClient{categories: []types.Category{{Label: "cat", Score: 0.9}}}
	c := New(stub, Config{Model: "test"}, WithCache(failingCache{}))

	if _, err := c.Classify(context.Background(), "aW1n"); err != nil {
		t.Fatalf("Cache failure should not fail classification: %v", err)
	}
}

func TestDescribe(t *testing.T) {
	stub := &stubClient{}
	c := New(stub, Config{Model: "test"})

	text, err := c.Describe(context.Background(), "aW1n")
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if text != "a close-up of skin" {
		t.Errorf("Expected trimmed description, got %q", text)
	}
	if stub.lastPrompt != DescribePrompt {
		t.Errorf("Expected describe prompt, got %q", stub.lastPrompt)
	}

	boom := errors.New("offline")
	if _, err := New(&stubClient{err: boom}, Config{}).Describe(context.Background(), "aW1n"); !errors.Is(err, boom) {
		t.Errorf("Expected model error, got %v", err)
	}
}

func TestClassifyAsync(t *testing.T) {
	stub := &stubClient{categories: []types.Category{{Label: "cat", Score: 0.9}}}
	c := New(stub, Config{Model: "test"})

	outcome, ok := <-c.ClassifyAsync(context.Background(), "aW1n")
	if !ok {
		t.Fatal("Expected an outcome")
	}
	if outcome.Err != nil {
		t.Fatalf("Unexpected error: %v", outcome.Err)
	}
	if len(outcome.Result.Categories) != 1 {
		t.Errorf("Unexpected result %+v", outcome.Result)
	}
}

func TestClassifyAsyncCancelled(t *testing.T) {
	stub := &stubClient{block: make(chan struct{})}
	c := New(stub, Config{Model: "test"})

	ctx, cancel := context.WithCancel(context.Background())
	ch := c.ClassifyAsync(ctx, "aW1n")
	cancel()

	select {
	case outcome := <-ch:
		if !errors.Is(outcome.Err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", outcome.Err)
		}
		if outcome.Result != nil {
			t.Error("Cancelled outcome should carry no result")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for cancelled outcome")
	}

	if _, ok := <-ch; ok {
		t.Error("Channel should be closed after the outcome")
	}
}
