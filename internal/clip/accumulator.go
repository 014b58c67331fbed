package clip

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MaxClips bounds an Accumulator; the oldest clip is dropped beyond it.
const MaxClips = 50

// Accumulator collects clips to be converted as one book.
type Accumulator struct {
	mu    sync.Mutex
	clips []string
	max   int
}

// NewAccumulator creates an Accumulator holding at most max clips
// (MaxClips when max <= 0).
func NewAccumulator(max int) *Accumulator {
	if max <= 0 {
		max = MaxClips
	}
	return &Accumulator{max: max}
}

// Add appends a clip. Blank clips are rejected with ErrNothingToConvert.
// It reports whether an older clip was dropped to make room.
func (a *Accumulator) Add(text string) (dropped bool, err error) {
	if strings.TrimSpace(text) == "" {
		return false, ErrNothingToConvert
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clips = append(a.clips, text)
	if len(a.clips) > a.max {
		a.clips = append([]string(nil), a.clips[len(a.clips)-a.max:]...)
		return true, nil
	}
	return false, nil
}

// Len is the number of held clips.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.clips)
}

// Combine joins the clips in insertion order, separated by a blank line.
func (a *Accumulator) Combine() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return strings.Join(a.clips, "\n\n")
}

// Clear drops all clips.
func (a *Accumulator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clips = nil
}

// Drain takes every held clip and leaves the accumulator empty.
func (a *Accumulator) Drain() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	clips := a.clips
	a.clips = nil
	return clips
}

// restore puts drained clips back ahead of any added since, keeping the
// newest max.
func (a *Accumulator) restore(clips []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	merged := append(append([]string(nil), clips...), a.clips...)
	if len(merged) > a.max {
		merged = merged[len(merged)-a.max:]
	}
	a.clips = merged
}

// ConvertAccumulated drains acc and converts the combined clips. The clips
// are put back when the conversion fails. Without a title override the
// book is named after the clip count.
func (s *Service) ConvertAccumulated(ctx context.Context, acc *Accumulator, req Request) (*Result, error) {
	clips := acc.Drain()
	if len(clips) == 0 {
		return nil, ErrNothingToConvert
	}
	if req.Overrides.Title == "" && len(clips) > 1 {
		req.Overrides.Title = fmt.Sprintf("Combined Clips (%d items)", len(clips))
	}
	res, err := s.Convert(ctx, strings.Join(clips, "\n\n"), req)
	if err != nil {
		acc.restore(clips)
		return nil, err
	}
	return res, nil
}
