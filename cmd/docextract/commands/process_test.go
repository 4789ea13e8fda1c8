package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/dgallion1/docextract/internal/pipeline"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCollectInputs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.pdf"), "")
	writeFile(t, filepath.Join(dir, "b.exe"), "")
	writeFile(t, filepath.Join(dir, "c.md"), "")
	writeFile(t, filepath.Join(dir, "sub", "d.csv"), "")
	loose := filepath.Join(t.TempDir(), "notes.bin")
	writeFile(t, loose, "")

	got, err := collectInputs([]string{dir, loose}, false)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(dir, "a.pdf"), filepath.Join(dir, "c.md"), loose}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("flat scan: got %v, want %v", got, want)
	}

	got, err = collectInputs([]string{dir}, true)
	if err != nil {
		t.Fatal(err)
	}
	want = []string{filepath.Join(dir, "a.pdf"), filepath.Join(dir, "c.md"), filepath.Join(dir, "sub", "d.csv")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("recursive scan: got %v, want %v", got, want)
	}

	if _, err := collectInputs([]string{filepath.Join(dir, "missing.pdf")}, false); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestExportOptions(t *testing.T) {
	flags := processCmd.Flags()
	t.Cleanup(func() {
		_ = flags.Set("no-excel", "false")
		_ = flags.Set("no-values", "false")
	})
	if err := flags.Set("no-excel", "true"); err != nil {
		t.Fatal(err)
	}
	if err := flags.Set("no-values", "true"); err != nil {
		t.Fatal(err)
	}

	opts := exportOptions()
	want := pipeline.DefaultExportOptions()
	want.Excel = false
	want.ExtractValues = false
	if opts != want {
		t.Errorf("got %+v, want %+v", opts, want)
	}
}

func TestPrintResult(t *testing.T) {
	out := t.TempDir()
	md := filepath.Join(out, "memo.md")
	writeFile(t, md, strings.Repeat("x", 2048))

	var buf bytes.Buffer
	printResult(&buf, out, &pipeline.ProcessingResult{
		Success:     true,
		Message:     "Successfully processed memo.txt",
		OutputFiles: []string{md},
	})
	got := buf.String()
	if !strings.HasPrefix(got, "Successfully processed memo.txt\n") {
		t.Errorf("unexpected header in %q", got)
	}
	if !strings.Contains(got, "memo.md") || !strings.Contains(got, "2.0 kB") {
		t.Errorf("expected artifact line with size, got %q", got)
	}
}

func TestProcessCommand(t *testing.T) {
	in := filepath.Join(t.TempDir(), "memo.txt")
	writeFile(t, in, "Invoice total: $1,250.00\n")
	out := filepath.Join(t.TempDir(), "out")
	db := filepath.Join(t.TempDir(), "runs.db")

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetArgs([]string{"process", in, "-o", out, "-q", "--no-html", "--no-excel", "--history", db})
	if err := Execute(); err != nil {
		t.Fatalf("process: %v\n%s", err, stdout.String())
	}
	if !strings.Contains(stdout.String(), "Processed 1 of 1 documents: 1 succeeded, 0 failed") {
		t.Errorf("unexpected summary:\n%s", stdout.String())
	}
	if _, err := os.Stat(filepath.Join(out, "memo.md")); err != nil {
		t.Errorf("expected markdown artifact: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "memo.html")); err == nil {
		t.Error("html export should be disabled")
	}

	stdout.Reset()
	rootCmd.SetArgs([]string{"history", "--history", db})
	if err := Execute(); err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(stdout.String(), "memo.txt") || !strings.Contains(stdout.String(), "ok") {
		t.Errorf("unexpected history output:\n%s", stdout.String())
	}
}

func TestProcessCommand_SkipUnchanged(t *testing.T) {
	flags := processCmd.Flags()
	t.Cleanup(func() { _ = flags.Set("skip-unchanged", "false") })

	in := filepath.Join(t.TempDir(), "memo.txt")
	writeFile(t, in, "Total: 1500\n")
	out := filepath.Join(t.TempDir(), "out")
	db := filepath.Join(t.TempDir(), "runs.db")
	args := []string{"process", in, "-o", out, "-q", "--history", db, "--skip-unchanged"}

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetArgs(args)
	if err := Execute(); err != nil {
		t.Fatalf("first run: %v\n%s", err, stdout.String())
	}
	if strings.Contains(stdout.String(), "Skipped") {
		t.Fatalf("first run should not skip:\n%s", stdout.String())
	}

	stdout.Reset()
	rootCmd.SetArgs(args)
	if err := Execute(); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !strings.Contains(stdout.String(), "Skipped memo.txt (unchanged") {
		t.Errorf("expected unchanged input to be skipped:\n%s", stdout.String())
	}

	writeFile(t, in, "Total: 2500\n")
	stdout.Reset()
	rootCmd.SetArgs(args)
	if err := Execute(); err != nil {
		t.Fatalf("third run: %v", err)
	}
	if strings.Contains(stdout.String(), "Skipped memo.txt") {
		t.Errorf("changed input should be processed again:\n%s", stdout.String())
	}
}

func TestProcessCommand_SkipUnchangedNeedsHistory(t *testing.T) {
	flags := processCmd.Flags()
	t.Cleanup(func() { _ = flags.Set("skip-unchanged", "false") })
	_ = rootCmd.PersistentFlags().Set("history", "")

	in := filepath.Join(t.TempDir(), "memo.txt")
	writeFile(t, in, "Total: 1500\n")
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"process", in, "-o", t.TempDir(), "-q", "--skip-unchanged"})
	if err := Execute(); err == nil {
		t.Error("expected error without --history")
	}
}
