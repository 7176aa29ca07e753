// Package imageclassifier picks an image, crops it, classifies it with a
// vision model and produces a ranked, human-readable report.
//
// Basic usage:
//
//	visionClient, _ := ollama.NewClient("http://localhost:11434")
//	session := imageclassifier.New(visionClient, imageclassifier.DefaultConfig())
//
//	if err := session.Pick("photo.jpg"); err != nil {
//		log.Fatal(err)
//	}
//	if err := session.Crop(nil); err != nil { // centered square
//		log.Fatal(err)
//	}
//	handoff, err := session.Analyze(context.Background())
//	if err != nil {
//		log.Fatal(err)
//	}
//	view.Render(os.Stdout, handoff)
//
// A Session mirrors a single interactive screen: it remembers the image the
// user selected, whether it has been cropped, and hands the cropped image
// reference together with the report to whatever displays the result.
package imageclassifier

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/menta2k/image-classifier/internal/logging"
	"github.com/menta2k/image-classifier/pkg/classification"
	"github.com/menta2k/image-classifier/pkg/client"
	"github.com/menta2k/image-classifier/pkg/processing"
	"github.com/menta2k/image-classifier/pkg/ranker"
	"github.com/menta2k/image-classifier/pkg/types"
)

// Version of the image classifier library
const Version = "1.0.0"

var (
	// ErrNoImage means no image has been selected, or the selection was never cropped
	ErrNoImage = errors.New("no image selected")
	// ErrCropFailed means the selected image could not be cropped
	ErrCropFailed = errors.New("image crop failed")
	// ErrClassification means the model call failed
	ErrClassification = errors.New("classification failed")
	// ErrNoCategories means the model returned no categories for the image
	ErrNoCategories = errors.New("no categories returned")
)

// Config holds session settings
type Config struct {
	Classifier  classification.Config
	Processing  types.ProcessingOptions
	CropQuality int
	Locale      language.Tag
}

// DefaultConfig returns the settings used by the CLI when no file is given
func DefaultConfig() Config {
	return Config{
		Classifier: classification.Config{
			Model:      "openbmb/minicpm-v4.5",
			MaxResults: 5,
		},
		Processing: types.ProcessingOptions{
			CacheDir:    filepath.Join(os.TempDir(), "image-classifier"),
			SendFormat:  "jpg",
			SendSize:    1536,
			SendQuality: 85,
			MinSize:     32,
		},
		CropQuality: 90,
		Locale:      ranker.DefaultLocale,
	}
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the session logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithCache memoizes classifications in cache
func WithCache(cache classification.Cache) Option {
	return func(s *Session) {
		s.cache = cache
	}
}

// Session holds the state of one pick/crop/analyze flow.
// It is not safe for concurrent use.
type Session struct {
	id         string
	config     Config
	processor  *processing.Processor
	classifier *classification.Classifier
	ranker     *ranker.Ranker
	logger     *zap.Logger
	cache      classification.Cache

	source   string
	picked   image.Image
	cropped  image.Image
	imageRef string
}

// New creates a Session that classifies through visionClient
func New(visionClient client.VisionClient, config Config, opts ...Option) *Session {
	s := &Session{
		id:        uuid.NewString(),
		config:    config,
		processor: processing.NewProcessor(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	classifierOpts := []classification.Option{classification.WithLogger(s.logger)}
	if s.cache != nil {
		classifierOpts = append(classifierOpts, classification.WithCache(s.cache))
	}
	s.classifier = classification.New(visionClient, config.Classifier, classifierOpts...)
	s.ranker = ranker.New(ranker.WithLocale(config.Locale))
	s.logger = s.logger.Named("session")

	return s
}

// ID returns the session identifier used in logs
func (s *Session) ID() string {
	return s.id
}

// ImageRef returns the reference of the current image, empty before a successful crop
func (s *Session) ImageRef() string {
	return s.imageRef
}

// CanAnalyze reports whether a cropped image is ready for classification
func (s *Session) CanAnalyze() bool {
	return s.cropped != nil && s.imageRef != ""
}

// Pick selects a new image from a file path or URL. Any previous crop is discarded.
func (s *Session) Pick(source string) error {
	log := logging.WithOperation(s.logger, logging.OpPick, s.id)

	source = strings.TrimSpace(source)
	if source == "" {
		log.Debug("no image selected")
		return ErrNoImage
	}

	img, err := s.processor.LoadImageSmart(source)
	if err != nil {
		log.Error("failed to load image", zap.String("source", source), zap.Error(err))
		return logging.NewOperationError(logging.OpPick, s.id, source, fmt.Errorf("failed to load image: %w", err))
	}
	if err := s.processor.ValidateImage(img, s.config.Processing.MinSize); err != nil {
		log.Error("image rejected", zap.String("source", source), zap.Error(err))
		return logging.NewOperationError(logging.OpPick, s.id, source, err)
	}

	s.source = source
	s.picked = img
	s.cropped = nil
	s.imageRef = ""
	log.Info("image selected", zap.String("source", source),
		zap.Int("width", img.Bounds().Dx()), zap.Int("height", img.Bounds().Dy()))

	return nil
}

// Crop crops the picked image to box, or to the centered square when box is nil,
// and stores the result as JPEG in the cache directory.
func (s *Session) Crop(box *types.Box) error {
	log := logging.WithOperation(s.logger, logging.OpCrop, s.id)

	if s.picked == nil {
		return ErrNoImage
	}

	b := s.picked.Bounds()
	target := processing.CenterSquareBox(b.Dx(), b.Dy())
	if box != nil {
		target = *box
	}

	cropped, err := s.processor.CropImageToBox(s.picked, target)
	if err != nil {
		log.Error("image crop failed", zap.Error(err))
		return logging.NewOperationError(logging.OpCrop, s.id, s.source, fmt.Errorf("%w: %w", ErrCropFailed, err))
	}

	path, err := s.processor.SaveCropped(cropped, s.config.Processing.CacheDir, s.config.CropQuality)
	if err != nil {
		log.Error("failed to store cropped image", zap.Error(err))
		return logging.NewOperationError(logging.OpCrop, s.id, s.source, fmt.Errorf("%w: %w", ErrCropFailed, err))
	}

	s.cropped = cropped
	s.imageRef = path
	log.Info("image cropped", zap.String("path", path),
		zap.Int("width", cropped.Bounds().Dx()), zap.Int("height", cropped.Bounds().Dy()))

	return nil
}

// Analyze classifies the cropped image and returns the handoff for the result view.
// ErrNoCategories is returned when the model produced nothing to show.
func (s *Session) Analyze(ctx context.Context) (types.Handoff, error) {
	log := logging.WithOperation(s.logger, logging.OpAnalyze, s.id)

	if !s.CanAnalyze() {
		return types.Handoff{}, ErrNoImage
	}

	opts := s.config.Processing
	imgB64, err := s.processor.PrepareImageForModel(s.cropped, opts.SendFormat, opts.SendSize, opts.SendQuality)
	if err != nil {
		log.Error("failed to encode image", zap.Error(err))
		return types.Handoff{}, logging.NewOperationError(logging.OpAnalyze, s.id, s.imageRef, fmt.Errorf("%w: %w", ErrClassification, err))
	}

	var outcome classification.Outcome
	select {
	case outcome = <-s.classifier.ClassifyAsync(ctx, imgB64):
	case <-ctx.Done():
		outcome = classification.Outcome{Err: ctx.Err()}
	}
	if outcome.Err != nil {
		log.Error("classification failed", zap.Error(outcome.Err))
		return types.Handoff{}, logging.NewOperationError(logging.OpAnalyze, s.id, s.imageRef, fmt.Errorf("%w: %w", ErrClassification, outcome.Err))
	}

	result := outcome.Result
	if len(result.Categories) == 0 {
		log.Warn("model returned no categories", zap.String("model", result.Model))
		return types.Handoff{}, ErrNoCategories
	}

	handoff := types.Handoff{
		ImageRef: s.imageRef,
		Report:   s.ranker.Rank(result.Categories),
	}
	log.Info("image classified",
		zap.String("model", result.Model),
		zap.Int("categories", len(result.Categories)),
		zap.Duration("inference_time", result.InferenceTime))

	return handoff, nil
}

// Describe asks the model for a free-text description of the cropped image
func (s *Session) Describe(ctx context.Context) (string, error) {
	log := logging.WithOperation(s.logger, logging.OpDescribe, s.id)

	if !s.CanAnalyze() {
		return "", ErrNoImage
	}

	opts := s.config.Processing
	imgB64, err := s.processor.PrepareImageForModel(s.cropped, opts.SendFormat, opts.SendSize, opts.SendQuality)
	if err != nil {
		return "", logging.NewOperationError(logging.OpDescribe, s.id, s.imageRef, err)
	}

	text, err := s.classifier.Describe(ctx, imgB64)
	if err != nil {
		log.Error("description failed", zap.Error(err))
		return "", logging.NewOperationError(logging.OpDescribe, s.id, s.imageRef, err)
	}
	return text, nil
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
