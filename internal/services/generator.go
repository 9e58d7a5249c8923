package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Generator produces the activity log payload for one date
type Generator interface {
	Generate(ctx context.Context, date string) ([]byte, error)
}

// GeneratorFunc adapts a plain function to the Generator interface
type GeneratorFunc func(ctx context.Context, date string) ([]byte, error)

func (f GeneratorFunc) Generate(ctx context.Context, date string) ([]byte, error) {
	return f(ctx, date)
}

// ArchiveGenerator copies the daily application log archive for the requested date
type ArchiveGenerator struct {
	dir     string
	pattern string
	delay   time.Duration
}

// NewArchiveGenerator creates a generator reading dir/pattern, where pattern
// holds one %s replaced by the date. delay simulates slow generation.
func NewArchiveGenerator(dir, pattern string, delay time.Duration) *ArchiveGenerator {
	return &ArchiveGenerator{dir: dir, pattern: pattern, delay: delay}
}

// GetArchivePath returns the archive file path for date
func (g *ArchiveGenerator) GetArchivePath(date string) string {
	return filepath.Join(g.dir, fmt.Sprintf(g.pattern, date))
}

func (g *ArchiveGenerator) Generate(ctx context.Context, date string) ([]byte, error) {
	path := g.GetArchivePath(date)

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("log file for date %s not found", date)
		}
		return nil, fmt.Errorf("failed to stat log file: %w", err)
	}

	if g.delay > 0 {
		timer := time.NewTimer(g.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("generation cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}
	return payload, nil
}
