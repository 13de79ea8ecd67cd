package embedding

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

const octetStream = "application/octet-stream"

// signatures maps leading magic bytes to the MIME type of the supported image formats.
var signatures = []struct {
	magic []byte
	mime  string
}{
	{[]byte{0xFF, 0xD8, 0xFF}, "image/jpeg"},
	{[]byte{0x89, 'P', 'N', 'G'}, "image/png"},
	{[]byte("GIF8"), "image/gif"},
	{[]byte("BM"), "image/bmp"},
}

// fitWithin scales w x h down so that neither edge exceeds maxSize, keeping the aspect ratio.
func fitWithin(w, h, maxSize int) (int, int) {
	if maxSize <= 0 || (w <= maxSize && h <= maxSize) {
		return w, h
	}
	if w > h {
		return maxSize, max(h*maxSize/w, 1)
	}
	return max(w*maxSize/h, 1), maxSize
}

// ResizeImage downscales an image to fit within maxSize and re-encodes it as JPEG, so the
// embedding server always receives one format. maxSize 0 only re-encodes.
func ResizeImage(data []byte, maxSize int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	src := img.Bounds()
	if w, h := fitWithin(src.Dx(), src.Dy(), maxSize); w != src.Dx() || h != src.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, src, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// DetectMIMEType sniffs the image type from its magic bytes.
func DetectMIMEType(data []byte) string {
	if len(data) < 8 {
		return octetStream
	}
	for _, s := range signatures {
		if bytes.HasPrefix(data, s.magic) {
			return s.mime
		}
	}
	return octetStream
}

// IsImage reports whether data starts with a supported image signature.
func IsImage(data []byte) bool {
	return DetectMIMEType(data) != octetStream
}
