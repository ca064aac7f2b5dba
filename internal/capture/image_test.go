package capture

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

var (
	pngBytes  = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	jpegBytes = append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, make([]byte, 32)...)
)

func TestFromBytes_DetectsType(t *testing.T) {
	img, err := FromBytes(pngBytes)
	if err != nil || img.MIMEType != "image/png" {
		t.Fatalf("png: got (%+v, %v)", img.MIMEType, err)
	}
	img, err = FromBytes(jpegBytes)
	if err != nil || img.MIMEType != "image/jpeg" {
		t.Fatalf("jpeg: got (%+v, %v)", img.MIMEType, err)
	}
}

func TestFromBytes_Rejects(t *testing.T) {
	if _, err := FromBytes(nil); !errors.Is(err, ErrEmptyImage) {
		t.Fatalf("empty: %v", err)
	}
	if _, err := FromBytes([]byte("just some text, not a photo")); !errors.Is(err, ErrNotImage) {
		t.Fatalf("text: %v", err)
	}
	if _, err := FromBytes(make([]byte, MaxImageBytes+1)); !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("large: %v", err)
	}
}

func TestFromReader_TooLarge(t *testing.T) {
	big := append(append([]byte{}, pngBytes...), make([]byte, MaxImageBytes)...)
	if _, err := FromReader(bytes.NewReader(big)); !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("expected ErrImageTooLarge, got %v", err)
	}
}

func TestFromFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "rash.jpg")
	if err := os.WriteFile(p, jpegBytes, 0o600); err != nil {
		t.Fatal(err)
	}
	img, err := FromFile(p)
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	if img.MIMEType != "image/jpeg" || !bytes.Equal(img.Data, jpegBytes) {
		t.Fatalf("unexpected image %q (%d bytes)", img.MIMEType, len(img.Data))
	}
	if img.Base64() == "" {
		t.Fatalf("expected base64 payload")
	}

	if _, err := FromFile(filepath.Join(t.TempDir(), "missing.jpg")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
