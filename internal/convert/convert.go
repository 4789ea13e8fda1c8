// Package convert is the document conversion collaborator: it turns an input
// file into a document.Document exposing text, tables, pictures, page count,
// key/value items and form items.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docextract/internal/document"
)

// ErrUnsupported is returned for file extensions no parser handles.
var ErrUnsupported = errors.New("unsupported file extension")

// Converter turns an input file into a Document.
type Converter interface {
	Convert(ctx context.Context, path string) (*document.Document, error)
}

// Parser converts raw document bytes into a Document.
type Parser interface {
	Parse(r io.Reader, filename string) (*document.Document, error)
}

// Options configures a FileConverter.
type Options struct {
	FallbackPdftotext bool  // Shell out to pdftotext when the Go PDF reader fails
	MaxFileSize       int64 // 0 means unlimited
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// BaseName is the input's file name without directory or extension; every
// artifact for the input is named after it.
func BaseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// FileConverter reads a file from disk and dispatches on its extension.
type FileConverter struct {
	opts Options
}

// New creates a FileConverter. Each pipeline invocation may own its own.
func New(opts Options) *FileConverter {
	return &FileConverter{opts: opts}
}

// Convert implements Converter.
func (c *FileConverter) Convert(ctx context.Context, path string) (*document.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := ForFile(path)
	if err != nil {
		return nil, err
	}
	if pdf, ok := p.(*PDFParser); ok {
		pdf.FallbackPdftotext = c.opts.FallbackPdftotext
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if c.opts.MaxFileSize > 0 && info.Size() > c.opts.MaxFileSize {
		return nil, fmt.Errorf("file too large: %d bytes (max %d)", info.Size(), c.opts.MaxFileSize)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	doc, err := p.Parse(f, filepath.Base(path))
	if err != nil {
		return nil, err
	}
	doc.Name = BaseName(path)
	if doc.Title == "" {
		doc.Title = doc.Name
	}
	return doc, nil
}
