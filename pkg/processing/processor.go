package processing

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/image-classifier/pkg/types"
)

// CroppedFileName is the name of the crop output inside the cache directory
const CroppedFileName = "cropped_image.jpg"

// MaxDownloadSize caps the body read by LoadImageFromURL
const MaxDownloadSize = 32 << 20

// ErrEmptyCrop is returned when a crop box does not intersect the image
var ErrEmptyCrop = errors.New("empty crop rectangle")

// Processor handles image loading, cropping and encoding
type Processor struct {
	httpClient  *http.Client
	maxDownload int64
}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		maxDownload: MaxDownloadSize,
	}
}

// LoadImageFromURL downloads and loads an image from a URL
func (p *Processor) LoadImageFromURL(imageURL string) (image.Image, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	req, err := http.NewRequest(http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Image-Classifier/1.0")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %d %s", resp.StatusCode, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("URL does not point to an image (Content-Type: %s)", contentType)
	}

	imageData, err := io.ReadAll(io.LimitReader(resp.Body, p.maxDownload+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if int64(len(imageData)) > p.maxDownload {
		return nil, fmt.Errorf("image exceeds %d bytes", p.maxDownload)
	}

	return p.decodeImageFromBytes(imageData)
}

// LoadImage loads an image from a file path with WebP support
func (p *Processor) LoadImage(path string) (image.Image, error) {
	// Registered decoders first, honouring EXIF orientation
	if img, err := imaging.Open(path, imaging.AutoOrientation(true)); err == nil {
		return img, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := p.decodeImageFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("image: unknown format for %s", path)
	}
	return img, nil
}

// LoadImageSmart loads an image from either a file path or URL
func (p *Processor) LoadImageSmart(source string) (image.Image, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return p.LoadImageFromURL(source)
	}
	return p.LoadImage(source)
}

// decodeImageFromBytes decodes an image from byte data with WebP support
func (p *Processor) decodeImageFromBytes(data []byte) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	return nil, fmt.Errorf("image: unknown or unsupported format")
}

// ValidateImage checks that both sides are at least minSize pixels
func (p *Processor) ValidateImage(img image.Image, minSize int) error {
	b := img.Bounds()
	if b.Dx() < minSize || b.Dy() < minSize {
		return fmt.Errorf("image too small: %dx%d (minimum: %d)", b.Dx(), b.Dy(), minSize)
	}
	return nil
}

// PrepareImageForModel converts an image to base64 for sending to vision models
func (p *Processor) PrepareImageForModel(img image.Image, format string, maxDim int, quality int) (string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return "", err
		}
	default: // jpg
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return "", err
		}
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// CenterSquareBox returns the largest centered square for an image of the given size
func CenterSquareBox(width, height int) types.Box {
	if width <= 0 || height <= 0 {
		return types.Box{}
	}
	side := min(width, height)
	fw, fh := float64(width), float64(height)
	return types.Box{
		X: float64(width-side) / 2 / fw,
		Y: float64(height-side) / 2 / fh,
		W: float64(side) / fw,
		H: float64(side) / fh,
	}
}

// CropImageToBox crops an image to the specified normalized box
func (p *Processor) CropImageToBox(img image.Image, box types.Box) (image.Image, error) {
	bounds := img.Bounds()
	fw, fh := float64(bounds.Dx()), float64(bounds.Dy())

	x0 := bounds.Min.X + int(clamp(box.X, 0, 1)*fw+0.5)
	y0 := bounds.Min.Y + int(clamp(box.Y, 0, 1)*fh+0.5)
	x1 := bounds.Min.X + int(clamp(box.X+box.W, 0, 1)*fw+0.5)
	y1 := bounds.Min.Y + int(clamp(box.Y+box.H, 0, 1)*fh+0.5)

	rect := image.Rect(x0, y0, x1, y1).Intersect(bounds)
	if rect.Empty() {
		return nil, ErrEmptyCrop
	}

	return imaging.Crop(img, rect), nil
}

// SaveCropped writes img as JPEG to dir/cropped_image.jpg and returns the path
func (p *Processor) SaveCropped(img image.Image, dir string, quality int) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache dir: %w", err)
	}
	path := filepath.Join(dir, CroppedFileName)
	if err := p.SaveImage(img, path, "jpg", quality, false); err != nil {
		return "", err
	}
	return path, nil
}

// SaveImage saves an image to a file with the specified format and quality
func (p *Processor) SaveImage(img image.Image, path, format string, quality int, lossless bool) error {
	switch strings.ToLower(format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		opts := &webp.Options{Lossless: lossless, Quality: float32(quality)}
		return webp.Encode(f, img, opts)
	case "png":
		return imaging.Save(img, path, imaging.PNGCompressionLevel(png.DefaultCompression))
	default: // jpg/jpeg
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
