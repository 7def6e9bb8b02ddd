// Package ocr runs the tesseract CLI to recognize text in images.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	defaultBinary = "tesseract"
	// Multi-script set matching the documents this assistant sees:
	// Hindi, English, Kannada, Tamil, Bengali.
	defaultLanguages = "hin+eng+kan+tam+ben"
)

// Tesseract shells out to the tesseract binary. It satisfies modality.OCR.
type Tesseract struct {
	binary    string
	languages string
}

// NewTesseract creates a runner. Empty arguments select the defaults.
func NewTesseract(binary, languages string) *Tesseract {
	if binary == "" {
		binary = defaultBinary
	}
	if languages == "" {
		languages = defaultLanguages
	}
	return &Tesseract{binary: binary, languages: languages}
}

// Recognize writes the PNG to a temporary file and runs tesseract over it,
// returning the recognized text from stdout.
func (t *Tesseract) Recognize(ctx context.Context, png []byte) (string, error) {
	path := filepath.Join(os.TempDir(), uuid.New().String()+".png")
	if err := os.WriteFile(path, png, 0o600); err != nil {
		return "", fmt.Errorf("writing image file: %w", err)
	}
	defer os.Remove(path)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.binary, path, "stdout", "-l", t.languages)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("running %s: %w (%s)", t.binary, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
