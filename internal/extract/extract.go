// Package extract turns uploaded file bytes into plain text, choosing among
// OCR, PDF text-layer extraction and Word-document parsing by media type.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"taskmate/internal/util"
)

var (
	// ErrUnsupportedType is returned before any extraction work for media
	// types outside the image/PDF/Word set.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrEmptyExtraction means extraction succeeded but produced no usable text.
	ErrEmptyExtraction = errors.New("no text could be extracted from the file")
)

// Recognizer is the OCR engine contract (see extract/yandex).
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

type Extractor struct {
	ocr Recognizer

	// parser hooks, replaceable in tests
	pdfText  func(data []byte) (string, error)
	docxText func(data []byte) (string, error)
}

func New(ocr Recognizer) *Extractor {
	return &Extractor{
		ocr:      ocr,
		pdfText:  pdfPlainText,
		docxText: docxPlainText,
	}
}

// Extract applies the media-type policy:
//   - images go straight to OCR;
//   - PDFs try the text layer first, then OCR over the raw bytes;
//   - Word documents are parsed structurally, with no OCR fallback;
//   - everything else is rejected up front.
//
// A whitespace-only result is an error, never an empty success.
func (e *Extractor) Extract(ctx context.Context, data []byte, mediaType, filename string) (string, error) {
	var (
		text string
		err  error
	)
	switch {
	case util.IsImageType(mediaType):
		text, err = e.ocr.Recognize(ctx, data)
		if err != nil {
			return "", fmt.Errorf("ocr: %w", err)
		}

	case util.IsPDFType(mediaType):
		text, err = e.pdfText(data)
		if err != nil || strings.TrimSpace(text) == "" {
			if err != nil {
				logrus.WithError(err).WithField("file", filename).Warn("pdf text layer failed, falling back to OCR")
			}
			text, err = e.ocr.Recognize(ctx, data)
			if err != nil {
				return "", fmt.Errorf("pdf ocr fallback: %w", err)
			}
		}

	case util.IsWordType(mediaType, filename):
		text, err = e.docxText(data)
		if err != nil {
			return "", fmt.Errorf("word document: %w", err)
		}

	default:
		return "", ErrUnsupportedType
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyExtraction
	}
	return text, nil
}
