package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/leadscan/internal/config"
)

func configOCR(engine string) config.OCRConfig {
	return config.OCRConfig{Engine: engine}
}

func TestSniffImage(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		format ImageFormat
		ok     bool
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00}, FormatJPEG, true},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00}, FormatPNG, true},
		{"gif87", []byte("GIF87a...."), FormatGIF, true},
		{"gif89", []byte("GIF89a...."), FormatGIF, true},
		{"webp", append([]byte("RIFF"), append([]byte{1, 2, 3, 4}, []byte("WEBPVP8 ")...)...), FormatWebP, true},
		{"pdf", []byte("%PDF-1.7"), "", false},
		{"empty", nil, "", false},
		{"truncated jpeg", []byte{0xFF, 0xD8}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format, ok := SniffImage(tt.data)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.format, format)
		})
	}
}
