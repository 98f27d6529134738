package storage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"bigpartner/internal/config"
)

// ErrNotImage is returned when the upload cannot be decoded as an image
var ErrNotImage = errors.New("file is not a supported image")

// ErrTooLarge is returned when the upload exceeds the size limit
var ErrTooLarge = errors.New("file exceeds the upload size limit")

// ErrTooManyPixels is returned when the declared dimensions exceed the pixel cap
var ErrTooManyPixels = errors.New("image dimensions exceed the upload limit")

const (
	jpegQuality      = 85
	defaultMaxPixels = 40_000_000
)

// ImageStore writes normalized listing images to a local directory that is
// served under a public URL prefix.
type ImageStore struct {
	dir        string
	publicPath string
	maxBytes   int64
	maxWidth   int
	maxPixels  int64
	now        func() time.Time
}

// NewImageStore creates the upload directory if needed
func NewImageStore(cfg config.StorageConfig) (*ImageStore, error) {
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	maxPixels := int64(cfg.MaxPixels)
	if maxPixels <= 0 {
		maxPixels = defaultMaxPixels
	}
	return &ImageStore{
		dir:        cfg.UploadDir,
		publicPath: "/" + strings.Trim(cfg.PublicPath, "/"),
		maxBytes:   int64(cfg.MaxUploadMB) << 20,
		maxWidth:   cfg.MaxWidth,
		maxPixels:  maxPixels,
		now:        time.Now,
	}, nil
}

// Dir returns the directory files are written to
func (s *ImageStore) Dir() string { return s.dir }

// PublicPath returns the URL prefix images are served under
func (s *ImageStore) PublicPath() string { return s.publicPath }

// MaxBytes returns the upload size limit
func (s *ImageStore) MaxBytes() int64 { return s.maxBytes }

// Save decodes r, applies EXIF orientation, shrinks it to the configured
// width and stores it as JPEG. It returns the public URL of the new file.
// The header is checked against the pixel cap before any pixel data is
// decoded.
func (s *ImageStore) Save(r io.Reader) (string, error) {
	lr := &io.LimitedReader{R: r, N: s.maxBytes + 1}

	var head bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(lr, &head))
	if lr.N <= 0 {
		return "", ErrTooLarge
	}
	if err != nil {
		return "", notImage(err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > s.maxPixels {
		log.Printf("[STORAGE] Rejected image header %dx%d (cap %d pixels)", cfg.Width, cfg.Height, s.maxPixels)
		return "", ErrTooManyPixels
	}

	img, err := imaging.Decode(io.MultiReader(&head, lr), imaging.AutoOrientation(true))
	if lr.N <= 0 {
		return "", ErrTooLarge
	}
	if err != nil {
		return "", notImage(err)
	}

	if s.maxWidth > 0 && img.Bounds().Dx() > s.maxWidth {
		img = imaging.Resize(img, s.maxWidth, 0, imaging.Lanczos)
	}

	folder := s.now().UTC().Format("200601")
	name := uuid.NewString() + ".jpg"
	if err := os.MkdirAll(filepath.Join(s.dir, folder), 0o755); err != nil {
		return "", fmt.Errorf("create upload folder: %w", err)
	}

	full := filepath.Join(s.dir, folder, name)
	f, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	if err := imaging.Encode(f, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		f.Close()
		os.Remove(full)
		return "", fmt.Errorf("encode image: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close file: %w", err)
	}

	url := path.Join(s.publicPath, folder, name)
	log.Printf("[STORAGE] Saved image %s (%dx%d)", url, img.Bounds().Dx(), img.Bounds().Dy())
	return url, nil
}

func notImage(err error) error {
	if errors.Is(err, image.ErrFormat) {
		return ErrNotImage
	}
	return fmt.Errorf("%w: %v", ErrNotImage, err)
}

// Remove deletes a previously stored image by its public URL. URLs outside
// the public prefix and missing files are ignored.
func (s *ImageStore) Remove(url string) error {
	rel, ok := strings.CutPrefix(url, s.publicPath+"/")
	if !ok || rel == "" || strings.Contains(rel, "..") {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, filepath.FromSlash(rel)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// RemoveAll deletes every stored image in urls. Failures are logged and
// skipped; it returns the number of URLs processed without error.
func (s *ImageStore) RemoveAll(urls ...string) int {
	n := 0
	for _, u := range urls {
		if u == "" {
			continue
		}
		if err := s.Remove(u); err != nil {
			log.Printf("[STORAGE] Warning: failed to remove %s: %v", u, err)
			continue
		}
		n++
	}
	return n
}
