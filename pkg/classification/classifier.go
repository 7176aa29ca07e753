// Package classification runs image classification through a vision model backend.
package classification

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/menta2k/image-classifier/pkg/client"
	"github.com/menta2k/image-classifier/pkg/ranker"
	"github.com/menta2k/image-classifier/pkg/types"
)

// DefaultPrompt is the default prompt for open-set classification
const DefaultPrompt = `You are an image classifier.

Return JSON only:
{
  "categories": [
    {"label": "string", "score": 0.0}
  ]
}

RULES
- score is a confidence in [0,1].
- Return at most 5 categories.
- Labels are short nouns, no punctuation.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// DescribePrompt asks for a short free-text description of the image
const DescribePrompt = `What do you see in this image? Describe it briefly.`

const labelsPromptTemplate = `You are an image classifier.

Classify the image into exactly these labels: %s.

Return JSON only:
{
  "categories": [
    {"label": "string", "score": 0.0}
  ]
}

RULES
- Return one entry per label, using the labels exactly as given.
- score is a confidence in [0,1] and the scores sum to 1.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// Config holds classifier settings
type Config struct {
	Model      string
	Labels     []string
	MaxResults int
	CacheTTL   time.Duration
}

// Classifier classifies images using a vision client
type Classifier struct {
	client client.VisionClient
	config Config
	cache  Cache
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Classifier
type Option func(*Classifier)

// WithCache stores results keyed by model and image payload
func WithCache(cache Cache) Option {
	return func(c *Classifier) {
		c.cache = cache
	}
}

// WithLogger sets the logger used for non-fatal failures
func WithLogger(logger *zap.Logger) Option {
	return func(c *Classifier) {
		c.logger = logger.Named("classifier")
	}
}

// New creates a new Classifier
func New(visionClient client.VisionClient, config Config, opts ...Option) *Classifier {
	if config.CacheTTL <= 0 {
		config.CacheTTL = time.Hour
	}
	c := &Classifier{
		client: visionClient,
		config: config,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Prompt returns the prompt sent to the model
func (c *Classifier) Prompt() string {
	if len(c.config.Labels) == 0 {
		return DefaultPrompt
	}
	quoted := make([]string, len(c.config.Labels))
	for i, l := range c.config.Labels {
		quoted[i] = fmt.Sprintf("%q", l)
	}
	return fmt.Sprintf(labelsPromptTemplate, strings.Join(quoted, ", "))
}

// Classify runs a single inference over a base64 encoded image.
// Categories are returned in model order.
func (c *Classifier) Classify(ctx context.Context, imageB64 string) (*types.Classification, error) {
	key := c.cacheKey(imageB64)
	if cached, ok := c.lookup(ctx, key); ok {
		return cached, nil
	}

	start := c.now()
	categories, err := c.client.Classify(ctx, c.config.Model, c.Prompt(), imageB64)
	if err != nil {
		return nil, err
	}

	result := &types.Classification{
		Categories:    normalizeCategories(categories, c.config.MaxResults),
		InferenceTime: c.now().Sub(start),
		Model:         c.config.Model,
	}
	c.store(ctx, key, result)

	return result, nil
}

// Describe asks the model for a short free-text description of the image
func (c *Classifier) Describe(ctx context.Context, imageB64 string) (string, error) {
	text, err := c.client.SimpleQuery(ctx, c.config.Model, DescribePrompt, imageB64)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (c *Classifier) cacheKey(imageB64 string) string {
	h := sha1.New()
	h.Write([]byte(c.config.Model))
	h.Write([]byte{0})
	h.Write([]byte(c.Prompt()))
	h.Write([]byte{0})
	h.Write([]byte(imageB64))
	return "classification:" + hex.EncodeToString(h.Sum(nil))
}

func (c *Classifier) lookup(ctx context.Context, key string) (*types.Classification, bool) {
	if c.cache == nil {
		return nil, false
	}
	raw, err := c.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.logger.Warn("cache lookup failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var result types.Classification
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		c.logger.Warn("discarding corrupt cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &result, true
}

func (c *Classifier) store(ctx context.Context, key string, result *types.Classification) {
	if c.cache == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, string(data), c.config.CacheTTL); err != nil {
		c.logger.Warn("cache store failed", zap.String("key", key), zap.Error(err))
	}
}

// normalizeCategories trims labels, drops empty and duplicate labels and
// keeps the limit highest-scoring categories. Survivors stay in model order
// and scores are left untouched.
func normalizeCategories(categories []types.Category, limit int) []types.Category {
	seen := map[string]struct{}{}
	out := make([]types.Category, 0, len(categories))
	for _, cat := range categories {
		label := strings.TrimSpace(cat.Label)
		if label == "" {
			continue
		}
		key := strings.ToLower(label)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, types.Category{Label: label, Score: cat.Score})
	}
	return topN(out, limit)
}

// topN keeps the n highest scores; on a tie at the cut the earlier category wins.
// Labels must already be unique.
func topN(categories []types.Category, n int) []types.Category {
	if n <= 0 || len(categories) <= n {
		return categories
	}
	keep := make(map[string]struct{}, n)
	for _, c := range ranker.Sort(categories)[:n] {
		keep[c.Label] = struct{}{}
	}
	out := make([]types.Category, 0, n)
	for _, c := range categories {
		if _, ok := keep[c.Label]; ok {
			out = append(out, c)
		}
	}
	return out
}
