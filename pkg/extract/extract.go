package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/clausewise-backend/pkg/enums"
)

// ErrNoText is returned when a document yields no readable text.
var ErrNoText = errors.New("no text extracted from document")

// Text extracts sanitized plain text from a document of the given type.
func Text(fileType enums.FileType, data []byte) (string, error) {
	var (
		text string
		err  error
	)
	switch fileType {
	case enums.FileTypePDF:
		text, err = PDF(data)
	case enums.FileTypeDOCX:
		text, err = DOCX(data)
	default:
		return "", fmt.Errorf("unsupported file type %q", fileType)
	}
	if err != nil {
		return "", err
	}
	text = Sanitize(text)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// Sanitize drops NUL bytes and invalid UTF-8 and collapses all whitespace,
// including line breaks, to single spaces.
func Sanitize(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")
	text = strings.ToValidUTF8(text, "")
	return strings.Join(strings.Fields(text), " ")
}
