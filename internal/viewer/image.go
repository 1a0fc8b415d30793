package viewer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/raine/dermadict/internal/analysis"
)

// ErrNotImage is returned when a selected file is not an image.
var ErrNotImage = errors.New("please select an image file")

// Image is a validated image ready to be sent for analysis.
type Image struct {
	MIMEType string
	Data     []byte
}

// DecodeImage validates a selected file. The declared type (from a file
// picker, upload header or Telegram document) is checked first, then the
// content itself is sniffed. An empty declared type is allowed.
func DecodeImage(declaredType string, data []byte) (*Image, error) {
	if declaredType != "" && !strings.HasPrefix(declaredType, "image/") {
		return nil, fmt.Errorf("%w: declared type %s", ErrNotImage, declaredType)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrNotImage)
	}

	detected := mimetype.Detect(data)
	if !strings.HasPrefix(detected.String(), "image/") {
		return nil, fmt.Errorf("%w: detected %s", ErrNotImage, detected.String())
	}

	return &Image{MIMEType: detected.String(), Data: data}, nil
}

// DataURI returns the image encoded as a base64 data URI.
func (i *Image) DataURI() string {
	return analysis.EncodeDataURI(i.MIMEType, i.Data)
}
