package ocr

import "bytes"

// ImageFormat is the sniffed content type of a card image.
type ImageFormat string

const (
	FormatJPEG ImageFormat = "image/jpeg"
	FormatPNG  ImageFormat = "image/png"
	FormatGIF  ImageFormat = "image/gif"
	FormatWebP ImageFormat = "image/webp"
)

var pngMagic = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// SniffImage identifies the image format by magic numbers. Unrecognized
// bytes fail card validation upstream.
func SniffImage(data []byte) (ImageFormat, bool) {
	switch {
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return FormatJPEG, true
	case len(data) >= 8 && bytes.Equal(data[:8], pngMagic):
		return FormatPNG, true
	case len(data) >= 6 && (bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a"))):
		return FormatGIF, true
	case len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return FormatWebP, true
	}
	return "", false
}
