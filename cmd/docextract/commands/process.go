package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgallion1/docextract/internal/convert"
	"github.com/dgallion1/docextract/internal/history"
	"github.com/dgallion1/docextract/internal/pipeline"
)

var processCmd = &cobra.Command{
	Use:   "process <file|dir>...",
	Short: "Export artifacts for documents, one at a time",
	Long: `Process converts each document and writes its artifacts into the
output folder, named after the input file. Folders are scanned for supported
documents. A document that fails to convert is reported and skipped.

Examples:
  docextract process report.pdf notes.md -o out
  docextract process ./inbox -r -o out --no-excel --max-size 10MB
  docextract process ./inbox -o out --history runs.db --skip-unchanged`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	flags := processCmd.Flags()

	flags.StringP("output", "o", "output", "output folder")
	flags.BoolP("recursive", "r", false, "descend into subfolders")
	flags.String("max-size", "50MB", "largest input accepted (e.g. 500KB, 10MB, 0=unlimited)")
	flags.Bool("pdftotext", true, "fall back to pdftotext when PDF text extraction fails")
	flags.Bool("skip-unchanged", false, "skip inputs the history shows were already exported to this folder (requires --history)")

	// Artifact switches
	flags.Bool("no-json", false, "skip the JSON document dump")
	flags.Bool("no-markdown", false, "skip the Markdown rendering")
	flags.Bool("no-csv", false, "skip per-table CSV files")
	flags.Bool("no-excel", false, "skip Excel workbooks")
	flags.Bool("no-html", false, "skip the HTML rendering")
	flags.Bool("no-images", false, "skip figure export")
	flags.Bool("no-values", false, "skip numeric value extraction when no tables are found")

	for _, name := range []string{
		"output", "recursive", "max-size", "pdftotext", "skip-unchanged",
		"no-json", "no-markdown", "no-csv", "no-excel", "no-html", "no-images", "no-values",
	} {
		_ = viper.BindPFlag(strings.ReplaceAll(name, "-", "_"), flags.Lookup(name))
	}
}

// exportOptions reads the artifact switches from flags, env and config file.
func exportOptions() pipeline.ExportOptions {
	return pipeline.ExportOptions{
		JSON:          !viper.GetBool("no_json"),
		Markdown:      !viper.GetBool("no_markdown"),
		CSV:           !viper.GetBool("no_csv"),
		Excel:         !viper.GetBool("no_excel"),
		HTML:          !viper.GetBool("no_html"),
		Images:        !viper.GetBool("no_images"),
		ExtractValues: !viper.GetBool("no_values"),
	}
}

func runProcess(cmd *cobra.Command, args []string) error {
	log := newLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	inputs, err := collectInputs(args, viper.GetBool("recursive"))
	if err != nil {
		logError("%v", err)
		return err
	}
	if len(inputs) == 0 {
		err := errors.New("no supported documents found")
		logError("%v", err)
		return err
	}

	var maxSize int64
	if s := strings.TrimSpace(viper.GetString("max_size")); s != "" && s != "0" {
		n, err := humanize.ParseBytes(s)
		if err != nil {
			logError("invalid max-size %q: %v", s, err)
			return err
		}
		maxSize = int64(n)
	}
	convOpts := convert.Options{
		FallbackPdftotext: viper.GetBool("pdftotext"),
		MaxFileSize:       maxSize,
	}

	var (
		ledger pipeline.Ledger
		store  *history.Store
	)
	if path := viper.GetString("history_db"); path != "" {
		store, err = history.Open(ctx, path)
		if err != nil {
			logError("open history: %v", err)
			return err
		}
		defer store.Close()
		ledger = store
	}
	skipUnchanged := viper.GetBool("skip_unchanged")
	if skipUnchanged && store == nil {
		err := errors.New("--skip-unchanged requires --history")
		logError("%v", err)
		return err
	}

	outDir := viper.GetString("output")
	opts := exportOptions()
	log.Debug("process command starting", "inputs", len(inputs), "output", outDir, "options", opts)

	w := pipeline.NewWorker(func() convert.Converter { return convert.New(convOpts) }, ledger, log)
	w.OnProgress(func(message string, percent int) {
		logInfo("[%3d%%] %s", percent, message)
	})

	out := cmd.OutOrStdout()
	failed, done, skipped := 0, 0, 0
	for i, input := range inputs {
		if ctx.Err() != nil {
			break
		}
		if skipUnchanged {
			if prev, ok := unchanged(ctx, store, input, outDir, log); ok {
				fmt.Fprintf(out, "Skipped %s (unchanged, exported %s)\n",
					filepath.Base(input), humanize.Time(prev.ProcessedAt))
				skipped++
				continue
			}
		}
		logInfo("(%d/%d) %s", i+1, len(inputs), input)
		job := pipeline.NewJob(filepath.Base(input), input, outDir, opts)
		w.Process(ctx, job)

		snap := job.Snapshot()
		printResult(out, outDir, snap.Result)
		done++
		if !snap.Result.Success {
			failed++
		}
	}

	fmt.Fprintf(out, "\nProcessed %d of %d documents: %d succeeded, %d failed\n",
		done, len(inputs), done-failed, failed)
	if skipped > 0 {
		fmt.Fprintf(out, "Skipped %d unchanged documents\n", skipped)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(inputs))
	}
	return nil
}

// unchanged reports whether the same file name and content was last exported
// successfully into outDir and every artifact of that run is still on disk.
func unchanged(ctx context.Context, store *history.Store, input, outDir string, log *slog.Logger) (history.Entry, bool) {
	hash, err := pipeline.FileHash(input)
	if err != nil {
		return history.Entry{}, false
	}
	prev, err := store.LastSuccessByHash(ctx, hash)
	if err != nil {
		if !errors.Is(err, history.ErrNotFound) {
			log.Warn("history lookup", "input", input, "error", err)
		}
		return history.Entry{}, false
	}
	if prev.Filename != filepath.Base(input) || filepath.Clean(prev.OutputDir) != filepath.Clean(outDir) {
		return history.Entry{}, false
	}
	for _, p := range prev.OutputFiles {
		if _, err := os.Stat(p); err != nil {
			return history.Entry{}, false
		}
	}
	return prev, true
}

// collectInputs expands folders into the supported documents they contain.
// Explicit file arguments are kept as given so unsupported files are reported
// by the pipeline.
func collectInputs(args []string, recursive bool) ([]string, error) {
	var inputs []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			inputs = append(inputs, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != arg && !recursive {
					return fs.SkipDir
				}
				return nil
			}
			if convert.IsSupportedExtension(path) {
				inputs = append(inputs, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", arg, err)
		}
	}
	return inputs, nil
}

// printResult writes the document's outcome and its artifacts with sizes.
func printResult(w io.Writer, outDir string, res *pipeline.ProcessingResult) {
	if res == nil {
		return
	}
	fmt.Fprintln(w, res.Message)
	for _, p := range res.OutputFiles {
		name := p
		if rel, err := filepath.Rel(outDir, p); err == nil {
			name = rel
		}
		size := "?"
		if info, err := os.Stat(p); err == nil {
			size = humanize.Bytes(uint64(info.Size()))
		}
		fmt.Fprintf(w, "  %-48s %8s\n", name, size)
	}
}
