// Package replay plays newline-delimited JSON snapshot events from a file.
package replay

import (
	"bufio"
	"context"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/fd1az/mev-bundler/business/market/domain"
	"github.com/fd1az/mev-bundler/internal/apperror"
	"github.com/fd1az/mev-bundler/internal/logger"
)

const maxLineBytes = 1 << 20

// Source replays events from an ndjson file, optionally pacing them.
type Source struct {
	path     string
	open     func() (io.ReadCloser, error)
	interval time.Duration
	logger   logger.LoggerInterface
	skipped  atomic.Int64
}

// New creates a replay source for path. interval 0 emits as fast as the
// consumer reads.
func New(path string, interval time.Duration, log logger.LoggerInterface) *Source {
	return &Source{
		path:     path,
		open:     func() (io.ReadCloser, error) { return os.Open(path) },
		interval: interval,
		logger:   log,
	}
}

// NewFromReader replays events read from r.
func NewFromReader(name string, r io.Reader, interval time.Duration, log logger.LoggerInterface) *Source {
	return &Source{
		path:     name,
		open:     func() (io.ReadCloser, error) { return io.NopCloser(r), nil },
		interval: interval,
		logger:   log,
	}
}

func (s *Source) Name() string { return "replay:" + s.path }

func (s *Source) Skipped() int64 { return s.skipped.Load() }

// Run emits every decodable line and returns nil at end of file.
func (s *Source) Run(ctx context.Context, out chan<- domain.Event) error {
	f, err := s.open()
	if err != nil {
		return apperror.New(apperror.CodeNotFound, apperror.WithCause(err), apperror.WithContext(s.path))
	}
	defer f.Close()

	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 || raw[0] == '#' {
			continue
		}

		ev, err := domain.DecodeEvent(raw)
		if err != nil {
			s.skipped.Add(1)
			s.logger.Debug(ctx, "skipping replay line", "line", line, "error", err)
			continue
		}

		if tick != nil {
			select {
			case <-tick:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := scanner.Err(); err != nil {
		return apperror.New(apperror.CodeMalformedInput, apperror.WithCause(err), apperror.WithContext(s.path))
	}
	return nil
}
