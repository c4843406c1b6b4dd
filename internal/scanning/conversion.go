package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
	_ "golang.org/x/image/bmp"  // Register BMP decoder
	_ "golang.org/x/image/tiff" // Register TIFF decoder
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	// MaxImageEdge is the longest edge, in pixels, of an image sent to a backend
	MaxImageEdge = 3072

	// MaxImagePixels caps the decoded size of an upload. Headers are checked
	// before decoding, so a small file claiming huge dimensions is rejected
	// without allocating its pixel buffer.
	MaxImagePixels = 50_000_000

	pdfRenderDPI = 300
)

// PrepareImage decodes an upload (JPEG, PNG, GIF, WebP, TIFF, BMP, HEIC/HEIF or
// the first page of a PDF), shrinks it to fit MaxImageEdge and re-encodes it as
// PNG. Anything that cannot be decoded, or that decodes to more than
// MaxImagePixels, yields ErrUnreadableImage.
func PrepareImage(data []byte, contentType string) (Image, error) {
	if len(data) == 0 {
		return Image{}, fmt.Errorf("%w: empty upload", ErrUnreadableImage)
	}

	mimeType := strings.ToLower(strings.TrimSpace(contentType))

	img, err := decode(data, mimeType)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %w", ErrUnreadableImage, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > MaxImageEdge || bounds.Dy() > MaxImageEdge {
		img = imaging.Fit(img, MaxImageEdge, MaxImageEdge, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Image{}, fmt.Errorf("encoding PNG: %w", err)
	}

	return Image{Data: buf.Bytes(), MIMEType: "image/png"}, nil
}

func decode(data []byte, mimeType string) (image.Image, error) {
	switch {
	case mimeType == "application/pdf" || isPDF(data):
		return pdfToImage(data)
	case isHEICFormat(data) || isHEICMimeType(mimeType):
		cfg, err := heic.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("reading HEIC/HEIF header: %w", err)
		}
		if err := checkDimensions(cfg.Width, cfg.Height); err != nil {
			return nil, err
		}
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return img, nil
	default:
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("reading image header: %w", err)
		}
		if err := checkDimensions(cfg.Width, cfg.Height); err != nil {
			return nil, err
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding image: %w", err)
		}
		return img, nil
	}
}

// pdfToImage renders the first page of a PDF
func pdfToImage(data []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	// Page bounds are in points, 72 to the inch
	bounds, err := doc.Bound(0)
	if err != nil {
		return nil, fmt.Errorf("reading PDF page size: %w", err)
	}
	width := bounds.Dx() * pdfRenderDPI / 72
	height := bounds.Dy() * pdfRenderDPI / 72
	if err := checkDimensions(width, height); err != nil {
		return nil, err
	}

	img, err := doc.ImageDPI(0, pdfRenderDPI)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return img, nil
}

func checkDimensions(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d", width, height)
	}
	if int64(width)*int64(height) > MaxImagePixels {
		return fmt.Errorf("image of %dx%d pixels exceeds the %d pixel limit", width, height, MaxImagePixels)
	}
	return nil
}

func isPDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

// isHEICFormat checks for an ftyp box with a HEIC/HEIF brand at offset 4
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}

func isHEICMimeType(mimeType string) bool {
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}
