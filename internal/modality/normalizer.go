// Package modality converts image, audio, and document input into plain
// query text, delegating recognition to external collaborators.
package modality

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
)

// Source is the input channel a query arrived on.
type Source string

const (
	SourceText     Source = "text"
	SourceImage    Source = "image"
	SourceAudio    Source = "audio"
	SourceDocument Source = "document"
)

// Query is normalized query text plus its source modality. Produced fresh
// per request, never persisted.
type Query struct {
	Text   string
	Source Source
}

// RecognitionError reports that image or document input could not be turned
// into text (corrupt bytes, collaborator failure, or no recognizable text).
type RecognitionError struct {
	Err error
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("recognition failed: %v", e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

// ErrUnintelligibleAudio means the speech collaborator could not make out
// any speech. Distinct from service unavailability so the caller can tell
// the user to try again versus try later.
var ErrUnintelligibleAudio = errors.New("could not understand the audio")

// ErrSpeechUnavailable means the speech collaborator's backing service is
// unreachable.
var ErrSpeechUnavailable = errors.New("speech service unavailable")

// OCR recognizes text in a preprocessed PNG image.
type OCR interface {
	Recognize(ctx context.Context, png []byte) (string, error)
}

// Speech transcribes a recorded audio file. Implementations must return
// ErrUnintelligibleAudio or ErrSpeechUnavailable (possibly wrapped) to keep
// the two outcomes distinguishable.
type Speech interface {
	Recognize(ctx context.Context, audioPath string) (string, error)
}

const collaboratorTimeout = 30 * time.Second

// Normalizer converts raw input of any modality into a Query.
type Normalizer struct {
	ocr        OCR
	speech     Speech
	uploadsDir string
}

// New creates a Normalizer. uploadsDir holds transient audio files; it is
// created on first use.
func New(ocr OCR, speech Speech, uploadsDir string) *Normalizer {
	return &Normalizer{ocr: ocr, speech: speech, uploadsDir: uploadsDir}
}

// NormalizeText passes typed text through with whitespace trimmed.
func (n *Normalizer) NormalizeText(text string) Query {
	return Query{Text: strings.TrimSpace(text), Source: SourceText}
}

// NormalizeImage decodes the image, applies the fixed preprocessing policy
// (grayscale, contrast boost, sharpen), and passes the result to the OCR
// collaborator. Corrupt bytes, a collaborator failure, or an empty
// recognition result all yield a RecognitionError.
func (n *Normalizer) NormalizeImage(ctx context.Context, imageBytes []byte) (Query, error) {
	png, err := preprocess(imageBytes)
	if err != nil {
		return Query{}, &RecognitionError{Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, collaboratorTimeout)
	defer cancel()

	text, err := n.ocr.Recognize(ctx, png)
	if err != nil {
		return Query{}, &RecognitionError{Err: err}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Query{}, &RecognitionError{Err: errors.New("no text recognized")}
	}
	return Query{Text: text, Source: SourceImage}, nil
}

// NormalizeAudio persists the audio under a collision-resistant name and
// hands the file to the speech collaborator. The temporary file is removed
// before returning.
func (n *Normalizer) NormalizeAudio(ctx context.Context, audioBytes []byte) (Query, error) {
	if err := os.MkdirAll(n.uploadsDir, 0o755); err != nil {
		return Query{}, fmt.Errorf("creating uploads directory: %w", err)
	}

	// Random filename: avoids path traversal from client-supplied names and
	// overwrite collisions between concurrent requests.
	path := filepath.Join(n.uploadsDir, uuid.New().String()+".wav")
	if err := os.WriteFile(path, audioBytes, 0o600); err != nil {
		return Query{}, fmt.Errorf("writing audio file: %w", err)
	}
	defer os.Remove(path)

	ctx, cancel := context.WithTimeout(ctx, collaboratorTimeout)
	defer cancel()

	text, err := n.speech.Recognize(ctx, path)
	if err != nil {
		if errors.Is(err, ErrUnintelligibleAudio) || errors.Is(err, ErrSpeechUnavailable) {
			return Query{}, err
		}
		return Query{}, fmt.Errorf("%w: %v", ErrSpeechUnavailable, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Query{}, ErrUnintelligibleAudio
	}
	return Query{Text: text, Source: SourceAudio}, nil
}

// NormalizeDocument extracts the plain text of a PDF statement. No OCR is
// involved; scanned-image statements go through NormalizeImage instead.
func (n *Normalizer) NormalizeDocument(_ context.Context, pdfBytes []byte) (Query, error) {
	r, err := pdf.NewReader(bytes.NewReader(pdfBytes), int64(len(pdfBytes)))
	if err != nil {
		return Query{}, &RecognitionError{Err: fmt.Errorf("opening pdf: %w", err)}
	}

	plain, err := r.GetPlainText()
	if err != nil {
		return Query{}, &RecognitionError{Err: fmt.Errorf("extracting pdf text: %w", err)}
	}
	raw, err := io.ReadAll(plain)
	if err != nil {
		return Query{}, &RecognitionError{Err: fmt.Errorf("reading pdf text: %w", err)}
	}

	text := strings.TrimSpace(string(raw))
	if text == "" {
		return Query{}, &RecognitionError{Err: errors.New("no text in document")}
	}
	return Query{Text: text, Source: SourceDocument}, nil
}
