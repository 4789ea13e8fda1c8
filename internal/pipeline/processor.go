package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dgallion1/docextract/internal/convert"
	"github.com/dgallion1/docextract/internal/document"
	"github.com/dgallion1/docextract/internal/export"
	"github.com/dgallion1/docextract/internal/values"
)

// ExportOptions selects the artifacts produced for one document. The
// processor takes it by value, so it cannot change mid-run.
type ExportOptions struct {
	JSON          bool `json:"json"`
	Markdown      bool `json:"markdown"`
	CSV           bool `json:"csv"`
	Excel         bool `json:"excel"`
	HTML          bool `json:"html"`
	Images        bool `json:"images"`
	ExtractValues bool `json:"extract_values"`
}

// DefaultExportOptions enables every artifact.
func DefaultExportOptions() ExportOptions {
	return ExportOptions{
		JSON:          true,
		Markdown:      true,
		CSV:           true,
		Excel:         true,
		HTML:          true,
		Images:        true,
		ExtractValues: true,
	}
}

// ProcessingResult is the outcome of one document. OutputFiles is in
// production order.
type ProcessingResult struct {
	Success      bool     `json:"success"`
	Message      string   `json:"message"`
	OutputFiles  []string `json:"output_files"`
	TableCount   int      `json:"table_count"`
	PageCount    int      `json:"page_count"`
	PictureCount int      `json:"picture_count"`
	ValueCount   int      `json:"value_count"`
}

// ProgressFunc receives stage messages with a percentage in 0..100.
type ProgressFunc func(message string, percent int)

// ConversionError is the fatal per-document failure.
type ConversionError struct {
	File string
	Err  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert %s: %v", e.File, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// Progress milestones.
const (
	PercentConverting = 10
	PercentConverted  = 50
	PercentText       = 60
	PercentTables     = 65
	PercentValues     = 70
	PercentImages     = 80
	PercentStructured = 90
	PercentComplete   = 100
)

// Processor runs the export pipeline for one document at a time. It holds no
// per-document state, so one Processor may serve sequential invocations and
// separate Processors may run concurrently.
type Processor struct {
	conv convert.Converter
	log  *slog.Logger
}

// NewProcessor creates a Processor. A nil logger uses slog.Default().
func NewProcessor(conv convert.Converter, log *slog.Logger) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{conv: conv, log: log}
}

// run is the mutable state of one invocation.
type run struct {
	log      *slog.Logger
	names    export.Names
	opts     ExportOptions
	progress ProgressFunc
	outputs  []string
}

func (r *run) report(message string, percent int) {
	if r.progress != nil {
		r.progress(message, percent)
	}
}

// produce writes one artifact. A failure, including a panic, is logged and
// the artifact is skipped.
func (r *run) produce(artifact, path string, write func(path string) error) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Warn("artifact skipped", "artifact", artifact, "path", path, "error", fmt.Sprint(rec))
			ok = false
		}
	}()
	if err := write(path); err != nil {
		r.log.Warn("artifact skipped", "artifact", artifact, "path", path, "error", err)
		return false
	}
	r.outputs = append(r.outputs, path)
	return true
}

// Process converts the file at path and writes the enabled artifacts into
// outDir. Only conversion failure makes the result unsuccessful; ctx is used
// for conversion only.
func (p *Processor) Process(ctx context.Context, path, outDir string, opts ExportOptions, progress ProgressFunc) ProcessingResult {
	file := filepath.Base(path)
	r := &run{
		log:      p.log.With("file", file),
		names:    export.Names{Dir: outDir, Base: convert.BaseName(path)},
		opts:     opts,
		progress: progress,
	}

	r.report("Converting document...", PercentConverting)
	doc, err := p.conv.Convert(ctx, path)
	if err == nil && doc == nil {
		err = errors.New("converter returned no document")
	}
	if err != nil {
		cerr := &ConversionError{File: file, Err: err}
		r.log.Error("conversion failed", "error", cerr)
		return ProcessingResult{
			Success:     false,
			Message:     fmt.Sprintf("Error processing %s: %v", file, err),
			OutputFiles: []string{},
		}
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		r.log.Warn("create output folder", "dir", outDir, "error", err)
	}
	r.report("Document converted, exporting...", PercentConverted)

	// Each table is converted once and the grids feed every artifact.
	grids := doc.Grids(func(index int, err error) {
		r.log.Warn("table skipped", "table", index, "error", err)
	})

	r.report("Exporting text formats...", PercentText)
	r.exportText(doc, grids)

	r.report("Extracting tables...", PercentTables)
	tableCount := r.exportTables(grids)

	valueCount := 0
	if tableCount == 0 && opts.ExtractValues {
		r.report("Extracting values...", PercentValues)
		valueCount = r.exportValues(doc)
	}

	r.report("Exporting images...", PercentImages)
	pictureCount := 0
	if opts.Images {
		pictureCount = r.exportImages(doc)
	}

	r.report("Exporting structured data...", PercentStructured)
	r.exportStructured(doc)

	r.report("Complete!", PercentComplete)

	pages, _ := doc.PageCount()
	result := ProcessingResult{
		Success:      true,
		Message:      completionMessage(file, tableCount, valueCount, opts.ExtractValues),
		OutputFiles:  r.outputs,
		TableCount:   tableCount,
		PageCount:    pages,
		PictureCount: pictureCount,
		ValueCount:   valueCount,
	}
	if result.OutputFiles == nil {
		result.OutputFiles = []string{}
	}
	r.log.Info("document processed",
		"outputs", len(result.OutputFiles),
		"tables", tableCount,
		"values", valueCount,
		"pictures", pictureCount,
	)
	return result
}

func completionMessage(file string, tables, vals int, extractEnabled bool) string {
	msg := "Successfully processed " + file
	if tables > 0 {
		return msg
	}
	switch {
	case !extractEnabled:
		return msg + " (no tables found)"
	case vals > 0:
		return msg + fmt.Sprintf(" (no tables found, extracted %d values instead)", vals)
	default:
		return msg + " (no tables or numeric values found)"
	}
}

func (r *run) exportText(doc *document.Document, grids []document.TableGrid) {
	if r.opts.JSON {
		r.produce("json", r.names.JSON(), func(path string) error {
			return export.WriteJSON(path, doc.Dump(grids))
		})
	}
	if r.opts.Markdown {
		r.produce("markdown", r.names.Markdown(), func(path string) error {
			return export.WriteText(path, doc.RenderMarkdown(grids))
		})
	}
	if r.opts.HTML {
		r.produce("html", r.names.HTML(), func(path string) error {
			return export.WriteHTML(path, r.names.Base, doc.RenderMarkdown(grids))
		})
	}
}

// exportTables writes the CSV files and the workbook for the converted
// grids. A table counts when at least one of its enabled artifacts was
// written; with both disabled every converted table counts.
func (r *run) exportTables(grids []document.TableGrid) int {
	if !r.opts.CSV && !r.opts.Excel {
		return len(grids)
	}

	written := make(map[int]bool, len(grids))
	sheets := make([]export.TableSheet, 0, len(grids))
	for _, g := range grids {
		sheets = append(sheets, export.TableSheet{Index: g.Index, Grid: g.Rows})
	}

	if r.opts.CSV {
		for _, s := range sheets {
			if r.produce("table_csv", r.names.TableCSV(s.Index), func(path string) error {
				return export.WriteCSV(path, s.Grid)
			}) {
				written[s.Index] = true
			}
		}
	}
	if r.opts.Excel && len(sheets) > 0 {
		if r.produce("tables_xlsx", r.names.TablesXLSX(), func(path string) error {
			return export.WriteTablesXLSX(path, sheets)
		}) {
			for _, s := range sheets {
				written[s.Index] = true
			}
		}
	}
	return len(written)
}

func (r *run) exportValues(doc *document.Document) int {
	vals := values.Extract(doc.Text())
	if len(vals) == 0 {
		return 0
	}
	r.produce("values_json", r.names.Values("json"), func(path string) error {
		return export.WriteValuesJSON(path, r.names.Base, vals)
	})
	r.produce("values_csv", r.names.Values("csv"), func(path string) error {
		return export.WriteValuesCSV(path, vals)
	})
	r.produce("values_xlsx", r.names.Values("xlsx"), func(path string) error {
		return export.WriteValuesXLSX(path, vals)
	})
	return len(vals)
}

// exportImages writes each picture that materializes as figure_N.png, where
// N is the picture's 1-based position. The folder is created on first success.
func (r *run) exportImages(doc *document.Document) int {
	count := 0
	dirReady := false
	for i, pic := range doc.Pictures {
		ok := r.produce("image", r.names.Image(i+1), func(path string) error {
			img, err := pic.Image()
			if err != nil {
				return err
			}
			if img == nil {
				return errors.New("picture has no image")
			}
			if !dirReady {
				if err := os.MkdirAll(r.names.ImagesDir(), 0o755); err != nil {
					return err
				}
				dirReady = true
			}
			return export.WritePNG(path, img)
		})
		if ok {
			count++
		}
	}
	return count
}

func (r *run) exportStructured(doc *document.Document) {
	if len(doc.KeyValues) > 0 {
		r.produce("key_values", r.names.KeyValues(), func(path string) error {
			return export.WriteJSON(path, doc.KeyValues)
		})
	}
	if len(doc.FormItems) > 0 {
		r.produce("form_data", r.names.FormData(), func(path string) error {
			return export.WriteJSON(path, doc.FormItems)
		})
	}
}
