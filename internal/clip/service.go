// Package clip runs clipboard conversions end to end: cache lookup,
// processing, assembly and history.
package clip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yuanying/clip2epub/internal/cache"
	"github.com/yuanying/clip2epub/internal/content"
	"github.com/yuanying/clip2epub/internal/epub"
	"github.com/yuanying/clip2epub/internal/history"
	"github.com/yuanying/clip2epub/internal/imagebook"
)

// ErrNothingToConvert is returned for empty input. No file is written.
var ErrNothingToConvert = errors.New("nothing to convert")

// Request carries per-conversion choices.
type Request struct {
	Options   content.Options
	Overrides epub.Overrides
	Tags      []string
}

// Result describes a produced book.
type Result struct {
	Path     string
	Title    string
	Format   content.Format
	Chapters int
	Size     int64
	CacheHit bool
	Warning  string
}

// Config wires a Service. Processor and Assembler are required; a nil Cache
// disables caching and a nil History keeps an in-memory log.
type Config struct {
	Processor *content.Processor
	Assembler *epub.Assembler
	Cache     *cache.Cache
	History   history.Store
	Images    *imagebook.Optimizer
	Logger    *slog.Logger
	Now       func() time.Time
}

// Service converts clipboard payloads into EPUB files.
type Service struct {
	processor *content.Processor
	assembler *epub.Assembler
	cache     *cache.Cache
	history   history.Store
	images    *imagebook.Optimizer
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a Service.
func NewService(cfg Config) *Service {
	s := &Service{
		processor: cfg.Processor,
		assembler: cfg.Assembler,
		cache:     cfg.Cache,
		history:   cfg.History,
		images:    cfg.Images,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.processor == nil {
		s.processor = content.NewProcessor(content.ProcessorConfig{Logger: s.logger, Now: s.now})
	}
	if s.assembler == nil {
		s.assembler = epub.NewAssembler(epub.Config{Logger: s.logger, Now: s.now})
	}
	if s.history == nil {
		s.history = history.NewMemoryStore(history.DefaultLimit)
	}
	if s.images == nil {
		s.images = imagebook.NewOptimizer(imagebook.OptimizerOptions{})
	}
	return s
}

// Convert turns text into an EPUB. A cached pipeline result is reused, but
// every call writes a new file with a fresh identifier.
func (s *Service) Convert(ctx context.Context, text string, req Request) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrNothingToConvert
	}

	process := func(ctx context.Context) (*content.Processed, error) {
		return s.processor.Process(ctx, text, req.Options)
	}

	var (
		processed *content.Processed
		hit       bool
		err       error
	)
	if s.cache != nil {
		processed, hit, err = s.cache.GetOrProcess(ctx, text, req.Options, process)
	} else {
		processed, err = process(ctx)
	}
	if err != nil {
		if errors.Is(err, content.ErrNoContent) {
			return nil, ErrNothingToConvert
		}
		return nil, fmt.Errorf("failed to process content: %w", err)
	}

	res, err := s.assemble(ctx, processed, req)
	if err != nil {
		return nil, err
	}
	res.CacheHit = hit
	return res, nil
}

// ConvertImage turns encoded image data into a single-image EPUB.
func (s *Service) ConvertImage(ctx context.Context, data []byte, req Request) (*Result, error) {
	if len(data) == 0 {
		return nil, ErrNothingToConvert
	}
	img, err := s.images.Optimize(data)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare image: %w", err)
	}
	if img.Warning != "" {
		s.logger.Warn("image exceeds size target", "warning", img.Warning)
	}

	res, err := s.assemble(ctx, imagebook.Build(img, req.Overrides.Title, s.now()), req)
	if err != nil {
		return nil, err
	}
	res.Warning = img.Warning
	return res, nil
}

func (s *Service) assemble(ctx context.Context, processed *content.Processed, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := s.assembler.Write(processed, req.Overrides)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble epub: %w", err)
	}

	res := &Result{
		Path:     out.Path,
		Title:    out.Title,
		Format:   processed.Format,
		Chapters: out.Chapters,
		Size:     out.Size,
	}
	entry := history.Entry{
		Path:      out.Path,
		Title:     out.Title,
		Format:    string(processed.Format),
		Chapters:  out.Chapters,
		Size:      out.Size,
		Author:    strings.Join(out.Authors, ", "),
		Tags:      req.Tags,
		CreatedAt: s.now(),
	}
	if err := s.history.Add(ctx, entry); err != nil {
		s.logger.Warn("failed to record history", "path", out.Path, "error", err)
	}
	return res, nil
}

// Recent lists produced books, newest first.
func (s *Service) Recent(ctx context.Context, limit int) ([]history.Entry, error) {
	return s.history.Recent(ctx, limit)
}
