// Package capture obtains a photo for analysis, either from a file the user
// picked or from a live camera, and normalizes it to bytes plus a MIME type
// detected from the content.
//
// Capture errors end the current attempt. They are reported to the user and
// never reach the offline queue.
package capture

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxImageBytes bounds a single photo. Larger inputs fail with ErrImageTooLarge.
const MaxImageBytes = 8 << 20

var (
	ErrEmptyImage    = errors.New("capture: image is empty")
	ErrNotImage      = errors.New("capture: content is not an image")
	ErrImageTooLarge = errors.New("capture: image too large")
)

// Image is a captured photo.
type Image struct {
	Data     []byte
	MIMEType string
}

// Base64 returns the standard base64 encoding used on the wire.
func (i Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// FromBytes sniffs b and returns it as an Image.
func FromBytes(b []byte) (Image, error) {
	if len(b) == 0 {
		return Image{}, ErrEmptyImage
	}
	if len(b) > MaxImageBytes {
		return Image{}, ErrImageTooLarge
	}
	mt := mimetype.Detect(b)
	if !strings.HasPrefix(mt.String(), "image/") {
		return Image{}, fmt.Errorf("%w: detected %s", ErrNotImage, mt.String())
	}
	// Drop parameters such as "; charset=" that some detectors attach.
	mime, _, _ := strings.Cut(mt.String(), ";")
	return Image{Data: b, MIMEType: mime}, nil
}

// FromReader reads a whole photo from r.
func FromReader(r io.Reader) (Image, error) {
	b, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return Image{}, fmt.Errorf("capture: read image: %w", err)
	}
	return FromBytes(b)
}

// FromFile reads the photo at path, as chosen with a file picker.
func FromFile(path string) (Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return Image{}, fmt.Errorf("capture: open image: %w", err)
	}
	defer f.Close()
	return FromReader(f)
}
