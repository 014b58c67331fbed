package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

const (
	defaultLogLevel  = "info"
	defaultLogFormat = "text"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "clip2epub",
		Short: "Turn clipboard content into EPUB books",
		Long: `clip2epub converts copied text into EPUB 3 books.

Input may be plain text, Markdown, HTML, RTF or a single URL; the format is
detected automatically. Images become single-page books.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "Config file (default: ./clip2epub.yaml or ~/.clip2epub/config.yaml)")
	pf.String("log-level", defaultLogLevel, "Log level: debug|info|warn|error")
	pf.String("log-format", defaultLogFormat, "Log format: text|json")
	pf.BoolP("verbose", "v", false, "Enable verbose logging (same as --log-level debug)")
	pf.StringP("output-dir", "o", "", "Directory for produced EPUB files (overrides output_dir)")

	root.AddCommand(
		newConvertCmd(),
		newImageCmd(),
		newInspectCmd(),
		newHistoryCmd(),
		newConfigCmd(),
	)
	return root
}

// buildLogger creates a slog logger writing to w.
func buildLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
