package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	imageclassifier "github.com/menta2k/image-classifier"
	"github.com/menta2k/image-classifier/internal/config"
	"github.com/menta2k/image-classifier/internal/logging"
	"github.com/menta2k/image-classifier/internal/utils"
	"github.com/menta2k/image-classifier/pkg/classification"
	"github.com/menta2k/image-classifier/pkg/client"
	"github.com/menta2k/image-classifier/pkg/llamacpp"
	"github.com/menta2k/image-classifier/pkg/ollama"
	"github.com/menta2k/image-classifier/pkg/types"
	"github.com/menta2k/image-classifier/pkg/view"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	var in, crop, configPath, labels string
	var backend, url, model, locale, cacheDir, outDir string
	var sendFmt string
	var sendSize, sendQ int
	var redisAddr, logFile string
	var describe bool

	flag.StringVar(&in, "in", "", "input image path or URL (jpg/png/webp)")
	flag.StringVar(&crop, "crop", "", "normalized crop box x,y,w,h (default: centered square)")
	flag.StringVar(&configPath, "config", "", "JSON config file (default: ~/.config/image-classifier/config.json if present)")
	flag.StringVar(&backend, "backend", "", "backend to use: ollama or llamacpp")
	flag.StringVar(&url, "url", "", "server URL (defaults: ollama=http://localhost:11435/api/chat, llamacpp=http://localhost:8080)")
	flag.StringVar(&model, "model", "", "model name")
	flag.StringVar(&labels, "labels", "", "comma separated label set to classify into")
	flag.StringVar(&locale, "locale", "", "locale for percentages (BCP-47, e.g. en, de)")
	flag.StringVar(&cacheDir, "cache", "", "directory for the cropped image")
	flag.StringVar(&outDir, "out", "", "output directory for result.json")
	flag.StringVar(&sendFmt, "sendfmt", "", "format sent to the model: jpg|png")
	flag.IntVar(&sendSize, "sendsize", -1, "max long side sent to the model (px), 0=original")
	flag.IntVar(&sendQ, "sendq", 0, "JPEG quality for image sent to the model (1-100)")
	flag.StringVar(&redisAddr, "redis", "", "redis address for caching classifications")
	flag.StringVar(&logFile, "logfile", "", "write logs to a rotating file")
	flag.BoolVar(&describe, "describe", false, "also print a free-text description of the cropped image")
	flag.Parse()

	if in == "" {
		return fmt.Errorf("usage: %s -in input.jpg|URL [-crop x,y,w,h] [-backend ollama|llamacpp] [-url server_url] [-labels a,b] [-locale en]", filepath.Base(os.Args[0]))
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// Flags override the config file
	setString(&cfg.Backend.Name, backend)
	setString(&cfg.Backend.URL, url)
	setString(&cfg.Classifier.Model, model)
	setString(&cfg.Report.Locale, locale)
	setString(&cfg.Processing.CacheDir, cacheDir)
	setString(&cfg.Output.OutputDir, outDir)
	setString(&cfg.Processing.SendFormat, sendFmt)
	setString(&cfg.Cache.RedisAddr, redisAddr)
	setString(&cfg.Output.LogFile, logFile)
	if sendSize >= 0 {
		cfg.Processing.SendSize = sendSize
	}
	if sendQ > 0 {
		cfg.Processing.SendQuality = sendQ
	}
	if labels != "" {
		cfg.Classifier.Labels = splitLabels(labels)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLogger(cfg.Output.LogFile)
	if err != nil {
		return err
	}
	defer logger.Sync()

	visionClient, err := newVisionClient(cfg)
	if err != nil {
		return err
	}

	sessionCfg, err := sessionConfig(cfg)
	if err != nil {
		return err
	}

	opts := []imageclassifier.Option{imageclassifier.WithLogger(logger)}
	if cfg.Cache.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
		defer rdb.Close()
		opts = append(opts, imageclassifier.WithCache(classification.NewRedisCache(rdb)))
	}

	session := imageclassifier.New(visionClient, sessionCfg, opts...)
	log := logging.WithOperation(logger, logging.OpCLI, session.ID())

	var box *types.Box
	if crop != "" {
		b, err := utils.ParseBox(crop)
		if err != nil {
			return err
		}
		box = &b
	}

	if !utils.IsURL(in) && !utils.IsImageFile(in) {
		log.Warn("input does not have an image extension", zap.String("in", in))
	}

	if err := session.Pick(in); err != nil {
		return err
	}
	if err := session.Crop(box); err != nil {
		return err
	}
	if info, err := os.Stat(session.ImageRef()); err == nil {
		log.Info("cropped image ready", zap.String("path", session.ImageRef()), zap.String("size", utils.FormatFileSize(info.Size())))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	handoff, err := session.Analyze(ctx)
	if errors.Is(err, imageclassifier.ErrNoCategories) {
		fmt.Fprintln(os.Stderr, "the model did not return any categories for this image")
		return nil
	}
	if err != nil {
		return err
	}

	if err := view.Render(os.Stdout, handoff); err != nil {
		return err
	}
	if describe {
		text, err := session.Describe(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("description: %s\n", text)
	}

	if err := utils.EnsureDir(cfg.Output.OutputDir); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	resultPath := filepath.Join(cfg.Output.OutputDir, "result.json")
	if err := view.WriteJSON(resultPath, handoff); err != nil {
		return err
	}
	log.Info("wrote result", zap.String("path", resultPath))

	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = config.GetConfigPath()
		if !utils.FileExists(path) {
			return config.Default(), nil
		}
	}
	return config.LoadFromFile(path)
}

func newLogger(logFile string) (*zap.Logger, error) {
	if logFile != "" {
		return logging.NewFileLogger(logFile), nil
	}
	return logging.NewLogger()
}

func newVisionClient(cfg *config.Config) (client.VisionClient, error) {
	switch cfg.Backend.Name {
	case "ollama":
		c, err := ollama.NewClient(cfg.BackendURL())
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		return c, nil
	case "llamacpp":
		c, err := llamacpp.NewClient(cfg.BackendURL())
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown backend: %s (use 'ollama' or 'llamacpp')", cfg.Backend.Name)
	}
}

func sessionConfig(cfg *config.Config) (imageclassifier.Config, error) {
	tag, err := cfg.LocaleTag()
	if err != nil {
		return imageclassifier.Config{}, err
	}
	ttl, err := cfg.CacheTTL()
	if err != nil {
		return imageclassifier.Config{}, err
	}

	return imageclassifier.Config{
		Classifier: classification.Config{
			Model:      cfg.Classifier.Model,
			Labels:     cfg.Classifier.Labels,
			MaxResults: cfg.Classifier.MaxResults,
			CacheTTL:   ttl,
		},
		Processing: types.ProcessingOptions{
			CacheDir:    cfg.Processing.CacheDir,
			SendFormat:  cfg.Processing.SendFormat,
			SendSize:    cfg.Processing.SendSize,
			SendQuality: cfg.Processing.SendQuality,
			MinSize:     cfg.Processing.MinSize,
		},
		CropQuality: cfg.Processing.CropQuality,
		Locale:      tag,
	}, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func splitLabels(s string) []string {
	var out []string
	for _, l := range strings.Split(s, ",") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
