package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/yuanying/clip2epub/internal/config"
	"github.com/yuanying/clip2epub/internal/epub"
)

// isolate points HOME and the working directory at fresh temp dirs so no
// real configuration leaks into a test.
func isolate(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	chdir(t, dir)
	return dir
}

func convertCmd(t *testing.T, flagArgs ...string) *cobra.Command {
	t.Helper()
	cmd, _, err := newRootCmd().Find([]string{"convert"})
	if err != nil {
		t.Fatalf("Find(convert) error = %v", err)
	}
	if err := cmd.ParseFlags(flagArgs); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	return cmd
}

// run executes the CLI and returns its standard output.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestReadCLIOptions_Defaults(t *testing.T) {
	isolate(t)
	opts, err := readCLIOptions(convertCmd(t), []string{"notes.md"})
	if err != nil {
		t.Fatalf("readCLIOptions() error = %v", err)
	}

	o := opts.Request.Options
	if !o.SplitChapters || o.WordsPerChapter != 3000 || o.CSSTemplate != "default" || o.ForceTOC {
		t.Fatalf("Options = %+v", o)
	}
	if len(opts.Inputs) != 1 || opts.Inputs[0] != "notes.md" {
		t.Fatalf("Inputs = %v", opts.Inputs)
	}
	if opts.Separate || opts.NoCache {
		t.Fatalf("Separate/NoCache = %v/%v, want false", opts.Separate, opts.NoCache)
	}
	if opts.Logger == nil {
		t.Fatal("Logger is nil, want non-nil")
	}
	if !opts.Logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("Logger should be enabled at INFO level by default")
	}
	if opts.Logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("Logger should not be enabled at DEBUG level by default")
	}
}

func TestReadCLIOptions_CustomFlags(t *testing.T) {
	isolate(t)
	cmd := convertCmd(t,
		"--title", "Reading List",
		"--author", "Ann",
		"--author", "Bob",
		"--language", "fr",
		"--style", "modern",
		"--words-per-chapter", "500",
		"--no-split",
		"--toc",
		"--tag", "work",
		"--separate",
		"--no-cache",
		"--output-dir", "./books",
		"--verbose",
	)

	opts, err := readCLIOptions(cmd, nil)
	if err != nil {
		t.Fatalf("readCLIOptions() error = %v", err)
	}

	o := opts.Request.Options
	if o.SplitChapters || o.WordsPerChapter != 500 || o.CSSTemplate != "modern" || !o.ForceTOC {
		t.Fatalf("Options = %+v", o)
	}
	ov := opts.Request.Overrides
	if ov.Title != "Reading List" || ov.Language != "fr" || strings.Join(ov.Authors, ",") != "Ann,Bob" {
		t.Fatalf("Overrides = %+v", ov)
	}
	if len(opts.Request.Tags) != 1 || opts.Request.Tags[0] != "work" {
		t.Fatalf("Tags = %v", opts.Request.Tags)
	}
	if !opts.Separate || !opts.NoCache {
		t.Fatal("Separate and NoCache should be set")
	}
	if opts.Config.OutputDir != "./books" {
		t.Fatalf("OutputDir = %q", opts.Config.OutputDir)
	}
	if !opts.Logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("--verbose should enable DEBUG logging")
	}
}

func TestReadCLIOptions_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"log level", []string{"--log-level", "trace"}, "--log-level"},
		{"log format", []string{"--log-format", "xml"}, "--log-format"},
		{"words per chapter", []string{"--words-per-chapter", "0"}, "--words-per-chapter"},
		{"style", []string{"--style", "../evil"}, "--style"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			_, err := readCLIOptions(convertCmd(t, tt.args...), nil)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("readCLIOptions() error = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestReadCLIOptions_ConfigFile(t *testing.T) {
	dir := isolate(t)
	cfg := "default_style: minimal\nwords_per_chapter: 42\nsplit_chapters: false\n"
	if err := os.WriteFile(filepath.Join(dir, "clip2epub.yaml"), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	opts, err := readCLIOptions(convertCmd(t), nil)
	if err != nil {
		t.Fatalf("readCLIOptions() error = %v", err)
	}
	o := opts.Request.Options
	if o.CSSTemplate != "minimal" || o.WordsPerChapter != 42 || o.SplitChapters {
		t.Fatalf("Options = %+v", o)
	}
}

func TestBuildLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := buildLogger(&buf, "warn", "json")
	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if rec["msg"] != "shown" || rec["key"] != "value" {
		t.Fatalf("record = %v", rec)
	}
}

func outputPaths(t *testing.T, out string) []string {
	t.Helper()
	var paths []string
	for _, l := range strings.Split(strings.TrimSpace(out), "\n") {
		if l != "" {
			paths = append(paths, l)
		}
	}
	return paths
}

func TestConvert_Stdin(t *testing.T) {
	dir := isolate(t)
	books := filepath.Join(dir, "books")

	out, err := run(t, "# Alpha\n\nFirst.\n\n# Beta\n\nSecond.", "convert", "-o", books, "--title", "Piped")
	if err != nil {
		t.Fatalf("convert error = %v", err)
	}
	paths := outputPaths(t, out)
	if len(paths) != 1 || filepath.Dir(paths[0]) != books {
		t.Fatalf("output = %q", out)
	}

	rep, err := epub.Inspect(paths[0])
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if !rep.Valid() {
		t.Fatalf("problems: %v", rep.Problems)
	}
	if rep.Metadata.Title != "Piped" || rep.Metadata.Type != "clipboard_markdown" {
		t.Fatalf("metadata = %+v", rep.Metadata)
	}
}

func TestConvert_Files(t *testing.T) {
	dir := isolate(t)
	books := filepath.Join(dir, "books")
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	os.WriteFile(a, []byte("First clip."), 0o644)
	os.WriteFile(b, []byte("Second clip."), 0o644)

	out, err := run(t, "", "convert", "-o", books, a, b)
	if err != nil {
		t.Fatalf("convert error = %v", err)
	}
	paths := outputPaths(t, out)
	if len(paths) != 1 {
		t.Fatalf("combined convert wrote %d books, want 1", len(paths))
	}
	rep, err := epub.Inspect(paths[0])
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if rep.Metadata.Title != "Combined Clips (2 items)" {
		t.Fatalf("title = %q", rep.Metadata.Title)
	}

	out, err = run(t, "", "convert", "-o", books, "--separate", a, b)
	if err != nil {
		t.Fatalf("convert --separate error = %v", err)
	}
	if n := len(outputPaths(t, out)); n != 2 {
		t.Fatalf("--separate wrote %d books, want 2", n)
	}
}

func TestConvert_Empty(t *testing.T) {
	dir := isolate(t)
	if _, err := run(t, "  \n", "convert", "-o", dir); err == nil {
		t.Fatal("convert of blank input should fail")
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "*.epub"))
	if len(matches) != 0 {
		t.Fatalf("blank input wrote %v", matches)
	}
}

func TestInspectCmd(t *testing.T) {
	dir := isolate(t)
	out, err := run(t, "Some words.", "convert", "-o", dir, "--title", "Checked")
	if err != nil {
		t.Fatalf("convert error = %v", err)
	}
	path := strings.TrimSpace(out)

	out, err = run(t, "", "inspect", path)
	if err != nil {
		t.Fatalf("inspect error = %v", err)
	}
	if !strings.Contains(out, "Checked") || strings.Contains(out, "problem:") {
		t.Fatalf("inspect output = %q", out)
	}

	if _, err := run(t, "", "inspect", filepath.Join(dir, "missing.epub")); err == nil {
		t.Fatal("inspect of a missing file should fail")
	}
}

func TestHistoryCmd_SQLite(t *testing.T) {
	dir := isolate(t)
	cfg := "cache:\n  backend: sqlite\n  path: " + filepath.Join(dir, "state.db") + "\n"
	if err := os.WriteFile(filepath.Join(dir, "clip2epub.yaml"), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := run(t, "Remember this.", "convert", "-o", dir, "--title", "Kept"); err != nil {
		t.Fatalf("convert error = %v", err)
	}
	out, err := run(t, "", "history", "--limit", "5")
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	if !strings.Contains(out, "TITLE") || !strings.Contains(out, "Kept") {
		t.Fatalf("history output = %q", out)
	}

	if _, err := run(t, "", "history", "--limit", "0"); err == nil {
		t.Fatal("history --limit 0 should fail")
	}
}

func TestConfigInit(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "conf", "clip2epub.yaml")

	out, err := run(t, "", "config", "init", path)
	if err != nil {
		t.Fatalf("config init error = %v", err)
	}
	if strings.TrimSpace(out) != path {
		t.Fatalf("output = %q", out)
	}
	if _, err := config.Load(path); err != nil {
		t.Fatalf("written config does not load: %v", err)
	}

	if _, err := run(t, "", "config", "init", path); err == nil {
		t.Fatal("config init should refuse to overwrite")
	}
	if _, err := run(t, "", "config", "init", "--force", path); err != nil {
		t.Fatalf("config init --force error = %v", err)
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent to testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
