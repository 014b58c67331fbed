package main

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yuanying/clip2epub/internal/cache"
	"github.com/yuanying/clip2epub/internal/clip"
	"github.com/yuanying/clip2epub/internal/config"
	"github.com/yuanying/clip2epub/internal/content"
	"github.com/yuanying/clip2epub/internal/epub"
	"github.com/yuanying/clip2epub/internal/history"
	"github.com/yuanying/clip2epub/internal/imagebook"
	"github.com/yuanying/clip2epub/internal/sqlitedb"
)

var styleNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// globalOptions are shared by every subcommand.
type globalOptions struct {
	Config *config.Config
	Logger *slog.Logger
}

// cliOptions are the validated settings of the convert command.
type cliOptions struct {
	globalOptions
	Inputs   []string
	Request  clip.Request
	Separate bool
	NoCache  bool
}

func readGlobalOptions(cmd *cobra.Command) (*globalOptions, error) {
	flags := cmd.Flags()
	cfgPath, _ := flags.GetString("config")
	level, _ := flags.GetString("log-level")
	format, _ := flags.GetString("log-format")
	verbose, _ := flags.GetBool("verbose")
	outputDir, _ := flags.GetString("output-dir")

	level = strings.ToLower(level)
	switch level {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("--log-level must be one of debug|info|warn|error, got %q", level)
	}
	format = strings.ToLower(format)
	if format != "text" && format != "json" {
		return nil, fmt.Errorf("--log-format must be text or json, got %q", format)
	}
	if verbose {
		level = "debug"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if flags.Changed("output-dir") {
		cfg.OutputDir = outputDir
	}

	return &globalOptions{
		Config: cfg,
		Logger: buildLogger(cmd.ErrOrStderr(), level, format),
	}, nil
}

func readCLIOptions(cmd *cobra.Command, args []string) (*cliOptions, error) {
	g, err := readGlobalOptions(cmd)
	if err != nil {
		return nil, err
	}
	cfg := g.Config
	flags := cmd.Flags()

	opts := &cliOptions{
		globalOptions: *g,
		Inputs:        args,
		Request: clip.Request{
			Options: content.Options{
				SplitChapters:   cfg.SplitChapters,
				WordsPerChapter: cfg.WordsPerChapter,
				CSSTemplate:     cfg.DefaultStyle,
				ForceTOC:        cfg.ForceTOC,
			},
		},
	}

	if flags.Changed("style") {
		opts.Request.Options.CSSTemplate, _ = flags.GetString("style")
	}
	if s := opts.Request.Options.CSSTemplate; s != "" && !styleNameRe.MatchString(s) {
		return nil, fmt.Errorf("--style must contain only letters, digits, '-' and '_', got %q", s)
	}
	if flags.Changed("words-per-chapter") {
		n, _ := flags.GetInt("words-per-chapter")
		if n <= 0 {
			return nil, fmt.Errorf("--words-per-chapter must be positive, got %d", n)
		}
		opts.Request.Options.WordsPerChapter = n
	}
	if noSplit, _ := flags.GetBool("no-split"); noSplit {
		opts.Request.Options.SplitChapters = false
	}
	if toc, _ := flags.GetBool("toc"); toc {
		opts.Request.Options.ForceTOC = true
	}

	opts.Request.Overrides.Title, _ = flags.GetString("title")
	opts.Request.Overrides.Authors, _ = flags.GetStringSlice("author")
	opts.Request.Overrides.Language, _ = flags.GetString("language")
	opts.Request.Tags, _ = flags.GetStringSlice("tag")
	opts.Separate, _ = flags.GetBool("separate")
	opts.NoCache, _ = flags.GetBool("no-cache")
	return opts, nil
}

// buildService wires the conversion stack from the configuration. style
// names the template embedded in converted documents. The returned function
// releases the database, if one was opened.
func buildService(g *globalOptions, style string, noCache bool) (*clip.Service, func(), error) {
	cfg, logger := g.Config, g.Logger
	if style == "" {
		style = cfg.DefaultStyle
	}

	css := content.NewCSSProvider(cfg.TemplateDirs, logger)
	conv := content.NewConverter(content.ConverterOptions{
		FetchTimeout: cfg.FetchTimeout,
		CSS:          css.Template(style),
		Logger:       logger,
	})

	var (
		c       *cache.Cache
		hist    history.Store = history.NewMemoryStore(cfg.History.Limit)
		cleanup               = func() {}
	)
	useCache := cfg.Cache.Enabled && !noCache

	switch cfg.Cache.Backend {
	case config.BackendSQLite:
		db, err := sqlitedb.Open(cfg.Cache.Path)
		if err != nil {
			return nil, nil, err
		}
		cleanup = func() { db.Close() }
		if hist, err = history.NewSQLiteStore(db); err != nil {
			cleanup()
			return nil, nil, err
		}
		if useCache {
			store, err := cache.NewSQLiteStore(db, cfg.Cache.MaxEntries, cfg.Cache.TTL)
			if err != nil {
				cleanup()
				return nil, nil, err
			}
			c = cache.New(store, logger)
		}
	default:
		if useCache {
			c = cache.New(cache.NewMemoryStore(cfg.Cache.MaxEntries, cfg.Cache.TTL), logger)
		}
	}

	svc := clip.NewService(clip.Config{
		Processor: content.NewProcessor(content.ProcessorConfig{Converter: conv, CSS: css, Logger: logger}),
		Assembler: epub.NewAssembler(epub.Config{
			OutputDir:       cfg.OutputDir,
			DefaultAuthor:   cfg.DefaultAuthor,
			DefaultLanguage: cfg.DefaultLanguage,
			Logger:          logger,
		}),
		Cache:   c,
		History: hist,
		Images: imagebook.NewOptimizer(imagebook.OptimizerOptions{
			MaxWidth:    cfg.Image.MaxWidth,
			JPEGQuality: cfg.Image.JPEGQuality,
		}),
		Logger: logger,
	})
	return svc, cleanup, nil
}
