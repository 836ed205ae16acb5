package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"net/http"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// toPNG converts PDFs, HEIC photos and other images to PNG, which every
// recognizer accepts. PNG input is returned unchanged.
func toPNG(data []byte, contentType string) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image")
	}

	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}

	var (
		img image.Image
		err error
	)
	switch {
	case mimeType == "application/pdf":
		img, err = pdfFirstPage(data)
	case isHEIC(data, mimeType):
		img, err = heic.Decode(bytes.NewReader(data))
		if err != nil {
			err = fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
	case mimeType == "image/png":
		return data, nil
	default:
		img, _, err = image.Decode(bytes.NewReader(data))
		if err != nil {
			err = fmt.Errorf("decoding image (supported: JPEG, PNG, GIF, HEIC, PDF): %w", err)
		}
	}
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// pdfFirstPage renders the first page; receipts and statement photos
// exported as PDF are single page.
func pdfFirstPage(data []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return img, nil
}

// isHEIC checks the MIME type and the ftyp box brand.
func isHEIC(data []byte, mimeType string) bool {
	if strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif") {
		return true
	}
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}
