package storage

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bigpartner/internal/config"
)

func newStore(t *testing.T, maxMB int) *ImageStore {
	t.Helper()
	s, err := NewImageStore(config.StorageConfig{
		UploadDir:   t.TempDir(),
		PublicPath:  "/uploads/",
		MaxUploadMB: maxMB,
		MaxWidth:    800,
	})
	require.NoError(t, err)
	return s
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 80, B: 40, A: 255})
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

func TestSave_ResizesAndStoresJPEG(t *testing.T) {
	s := newStore(t, 5)

	url, err := s.Save(bytes.NewReader(pngBytes(t, 1600, 400)))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/"), url)
	assert.True(t, strings.HasSuffix(url, ".jpg"), url)

	full := filepath.Join(s.Dir(), filepath.FromSlash(strings.TrimPrefix(url, "/uploads/")))
	img, err := imaging.Open(full)
	require.NoError(t, err)
	assert.Equal(t, 800, img.Bounds().Dx())
	assert.Equal(t, 200, img.Bounds().Dy())

	require.NoError(t, s.Remove(url))
	_, err = os.Stat(full)
	assert.True(t, os.IsNotExist(err))
}

func TestSave_KeepsSmallImages(t *testing.T) {
	s := newStore(t, 5)

	url, err := s.Save(bytes.NewReader(pngBytes(t, 300, 200)))
	require.NoError(t, err)

	img, err := imaging.Open(filepath.Join(s.Dir(), filepath.FromSlash(strings.TrimPrefix(url, "/uploads/"))))
	require.NoError(t, err)
	assert.Equal(t, 300, img.Bounds().Dx())
}

func TestSave_RejectsNonImage(t *testing.T) {
	s := newStore(t, 5)

	_, err := s.Save(strings.NewReader("definitely not a picture"))
	assert.ErrorIs(t, err, ErrNotImage)
}

func TestSave_RejectsOversized(t *testing.T) {
	s := newStore(t, 0)

	_, err := s.Save(bytes.NewReader(pngBytes(t, 50, 50)))
	assert.ErrorIs(t, err, ErrTooLarge)
}

// hugeHeader rewrites the IHDR of a tiny PNG to declare w x h pixels
func hugeHeader(t *testing.T, w, h uint32) []byte {
	t.Helper()
	b := pngBytes(t, 4, 4)
	require.Equal(t, "IHDR", string(b[12:16]))
	binary.BigEndian.PutUint32(b[16:20], w)
	binary.BigEndian.PutUint32(b[20:24], h)
	binary.BigEndian.PutUint32(b[29:33], crc32.ChecksumIEEE(b[12:29]))
	return b
}

func TestSave_RejectsHugeDimensions(t *testing.T) {
	s := newStore(t, 5)

	_, err := s.Save(bytes.NewReader(hugeHeader(t, 40000, 40000)))
	assert.ErrorIs(t, err, ErrTooManyPixels)

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSave_PixelCapFromConfig(t *testing.T) {
	s, err := NewImageStore(config.StorageConfig{
		UploadDir:   t.TempDir(),
		PublicPath:  "/uploads",
		MaxUploadMB: 5,
		MaxPixels:   100 * 100,
	})
	require.NoError(t, err)

	_, err = s.Save(bytes.NewReader(pngBytes(t, 101, 100)))
	assert.ErrorIs(t, err, ErrTooManyPixels)

	_, err = s.Save(bytes.NewReader(pngBytes(t, 100, 100)))
	assert.NoError(t, err)
}

func TestRemoveAll(t *testing.T) {
	s := newStore(t, 5)

	a, err := s.Save(bytes.NewReader(pngBytes(t, 20, 20)))
	require.NoError(t, err)
	b, err := s.Save(bytes.NewReader(pngBytes(t, 20, 20)))
	require.NoError(t, err)

	assert.Equal(t, 3, s.RemoveAll(a, "", b, "https://cdn.example.com/x.jpg"))
	for _, u := range []string{a, b} {
		_, err := os.Stat(filepath.Join(s.Dir(), filepath.FromSlash(strings.TrimPrefix(u, "/uploads/"))))
		assert.True(t, os.IsNotExist(err), u)
	}
}

func TestRemove_IgnoresForeignURLs(t *testing.T) {
	s := newStore(t, 5)

	assert.NoError(t, s.Remove("https://cdn.example.com/a.jpg"))
	assert.NoError(t, s.Remove("/uploads/../etc/passwd"))
	assert.NoError(t, s.Remove("/uploads/202601/missing.jpg"))
}
