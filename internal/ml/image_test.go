package ml

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/png"
	"testing"

	"github.com/franckalain/leafmetric/internal/models"
)

// pngHeader builds a PNG that declares the given size but carries no pixel data
func pngHeader(width, height uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], width)
	binary.BigEndian.PutUint32(ihdr[4:], height)
	ihdr[8] = 8 // bit depth, grayscale
	chunk := append([]byte("IHDR"), ihdr...)
	binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	buf.Write(chunk)
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestCheckImage(t *testing.T) {
	format, err := CheckImage(solidJPEG(t, 120))
	if err != nil || format != "jpeg" {
		t.Fatalf("jpeg: format %q, err %v", format, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}
	format, err = CheckImage(buf.Bytes())
	if err != nil || format != "png" {
		t.Fatalf("png: format %q, err %v", format, err)
	}

	if _, err := CheckImage(pngHeader(16000, 16000)); !errors.Is(err, ErrImageTooLarge) {
		t.Errorf("expected ErrImageTooLarge, got %v", err)
	}
	if _, err := CheckImage(pngHeader(8000, 8000)); !errors.Is(err, ErrImageTooLarge) {
		t.Errorf("64 megapixels: expected ErrImageTooLarge, got %v", err)
	}
	if _, err := CheckImage(pngHeader(MaxImageSide, 1)); err != nil {
		t.Errorf("image at the limit should pass: %v", err)
	}
}

func TestLocalRejectsOversizedImage(t *testing.T) {
	m := newLocal(t)
	_, err := m.Grade(context.Background(), pngHeader(16000, 16000), models.SensoryScores{Aroma: 3, Color: 3, Taste: 3, AfterTaste: 3, Acceptability: 3})
	if !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("expected ErrImageTooLarge, got %v", err)
	}
}

func TestImagePartMIMEType(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}
	part, err := imagePart(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if part.MIMEType != "image/png" {
		t.Errorf("png sent as %q", part.MIMEType)
	}

	part, err = imagePart(solidJPEG(t, 80))
	if err != nil {
		t.Fatal(err)
	}
	if part.MIMEType != "image/jpeg" {
		t.Errorf("jpeg sent as %q", part.MIMEType)
	}
}
