package clip

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yuanying/clip2epub/internal/cache"
	"github.com/yuanying/clip2epub/internal/content"
	"github.com/yuanying/clip2epub/internal/epub"
	"github.com/yuanying/clip2epub/internal/history"
)

const twoPartMarkdown = "# Part One\n\nSome **bold** text.\n\n# Part Two\n\nMore text here."

// tickingClock advances one second per call so every book gets its own name.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func newTestService(t *testing.T, withCache bool) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := tickingClock()

	cfg := Config{
		Processor: content.NewProcessor(content.ProcessorConfig{Logger: logger, Now: now}),
		Assembler: epub.NewAssembler(epub.Config{OutputDir: dir, Logger: logger, Now: now}),
		History:   history.NewMemoryStore(10),
		Logger:    logger,
		Now:       now,
	}
	if withCache {
		cfg.Cache = cache.New(cache.NewMemoryStore(10, time.Hour), logger)
	}
	return NewService(cfg), dir
}

func countEPUBs(t *testing.T, dir string) int {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.epub"))
	if err != nil {
		t.Fatalf("Glob() failed: %v", err)
	}
	return len(matches)
}

func TestService_Convert(t *testing.T) {
	s, dir := newTestService(t, true)
	ctx := context.Background()

	res, err := s.Convert(ctx, twoPartMarkdown, Request{Options: content.DefaultOptions(), Tags: []string{"notes"}})
	if err != nil {
		t.Fatalf("Convert() failed: %v", err)
	}
	if res.Format != content.FormatMarkdown || res.Chapters != 2 || res.CacheHit {
		t.Errorf("result = %+v", res)
	}
	if filepath.Dir(res.Path) != dir || res.Size == 0 {
		t.Errorf("path/size = %q/%d", res.Path, res.Size)
	}

	rep, err := epub.Inspect(res.Path)
	if err != nil {
		t.Fatalf("Inspect() failed: %v", err)
	}
	if !rep.Valid() {
		t.Fatalf("problems: %v", rep.Problems)
	}
	if rep.Metadata.Type != "clipboard_markdown" {
		t.Errorf("dc:type = %q", rep.Metadata.Type)
	}

	again, err := s.Convert(ctx, twoPartMarkdown, Request{Options: content.DefaultOptions()})
	if err != nil {
		t.Fatalf("second Convert() failed: %v", err)
	}
	if !again.CacheHit {
		t.Error("identical input should hit the cache")
	}
	if again.Path == res.Path {
		t.Error("a cache hit should still produce a new file")
	}
	rep2, err := epub.Inspect(again.Path)
	if err != nil {
		t.Fatalf("Inspect() failed: %v", err)
	}
	if rep2.Metadata.Identifier == rep.Metadata.Identifier {
		t.Error("each book needs a fresh identifier")
	}

	recent, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() failed: %v", err)
	}
	if len(recent) != 2 || recent[0].Path != again.Path || recent[1].Path != res.Path {
		t.Errorf("Recent() = %+v", recent)
	}
	if len(recent[1].Tags) != 1 || recent[1].Tags[0] != "notes" {
		t.Errorf("tags = %v", recent[1].Tags)
	}
	if recent[1].Author != epub.DefaultAuthor {
		t.Errorf("author = %q", recent[1].Author)
	}
}

func TestService_ConvertNothing(t *testing.T) {
	s, dir := newTestService(t, true)
	for _, in := range []string{"", "   \n\t "} {
		if _, err := s.Convert(context.Background(), in, Request{}); !errors.Is(err, ErrNothingToConvert) {
			t.Errorf("Convert(%q) error = %v, want ErrNothingToConvert", in, err)
		}
	}
	if n := countEPUBs(t, dir); n != 0 {
		t.Errorf("%d files written for empty input", n)
	}
}

func TestService_ConvertCancelled(t *testing.T) {
	s, dir := newTestService(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Convert(ctx, "plain words", Request{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Convert() error = %v, want context.Canceled", err)
	}
	if n := countEPUBs(t, dir); n != 0 {
		t.Errorf("%d files written for a cancelled conversion", n)
	}
}

func TestService_Overrides(t *testing.T) {
	s, _ := newTestService(t, false)
	res, err := s.Convert(context.Background(), "just some plain words", Request{
		Options:   content.DefaultOptions(),
		Overrides: epub.Overrides{Title: "My Notes", Authors: []string{"Me"}},
	})
	if err != nil {
		t.Fatalf("Convert() failed: %v", err)
	}
	if res.Title != "My Notes" || !strings.HasPrefix(filepath.Base(res.Path), "My Notes_") {
		t.Errorf("title/path = %q/%q", res.Title, res.Path)
	}
	rep, err := epub.Inspect(res.Path)
	if err != nil {
		t.Fatalf("Inspect() failed: %v", err)
	}
	if got := rep.Metadata.Authors(); len(got) != 1 || got[0] != "Me" {
		t.Errorf("authors = %v", got)
	}
}

func testPNG(t *testing.T, w, h int, alpha bool) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a := uint8(255)
			if alpha && x < w/2 {
				a = 100
			}
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 80, A: a})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() failed: %v", err)
	}
	return buf.Bytes()
}

func TestService_ConvertImage(t *testing.T) {
	s, _ := newTestService(t, false)
	res, err := s.ConvertImage(context.Background(), testPNG(t, 40, 30, false), Request{Overrides: epub.Overrides{Title: "Screenshot"}})
	if err != nil {
		t.Fatalf("ConvertImage() failed: %v", err)
	}
	if res.Format != content.FormatImage || res.Chapters != 1 || res.Title != "Screenshot" {
		t.Errorf("result = %+v", res)
	}

	rep, err := epub.Inspect(res.Path)
	if err != nil {
		t.Fatalf("Inspect() failed: %v", err)
	}
	if !rep.Valid() {
		t.Fatalf("problems: %v", rep.Problems)
	}
	if rep.Cover == nil || rep.Cover.MediaType != "image/jpeg" {
		t.Errorf("cover = %+v, want an opaque image re-encoded as jpeg", rep.Cover)
	}
}

func TestService_ConvertImage_Errors(t *testing.T) {
	s, dir := newTestService(t, false)
	if _, err := s.ConvertImage(context.Background(), nil, Request{}); !errors.Is(err, ErrNothingToConvert) {
		t.Errorf("ConvertImage(nil) error = %v", err)
	}
	if _, err := s.ConvertImage(context.Background(), []byte("not an image"), Request{}); err == nil {
		t.Error("ConvertImage() should reject non-image data")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("%d files written on failure", len(entries))
	}
}
