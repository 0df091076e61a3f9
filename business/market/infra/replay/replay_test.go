package replay

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fd1az/mev-bundler/business/market/domain"
	"github.com/fd1az/mev-bundler/internal/logger"
)

const events = `# two venues quoting SOL/USDC
{"type":"quote","venue":"orca","pair":"SOL/USDC","price":"100.00","volume_usd":"10000","fee_rate":"0.0025","observed_at":"2024-03-04T14:00:00Z"}
{"type":"quote","venue":"raydium","pair":"SOL/USDC","price":"100.50","volume_usd":"10000","fee_rate":"0.003","observed_at":"2024-03-04T14:00:01Z"}
not json

{"type":"position","position_id":"p1","collateral":"1000","debt":"900","threshold":"0.85","asset":"SOL","observed_at":"2024-03-04T14:00:02Z"}
`

func collect(t *testing.T, s *Source) []domain.Event {
	t.Helper()
	out := make(chan domain.Event, 16)
	if err := s.Run(context.Background(), out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	close(out)

	var got []domain.Event
	for ev := range out {
		got = append(got, ev)
	}
	return got
}

func TestSource_Reader(t *testing.T) {
	s := NewFromReader("inline", strings.NewReader(events), 0, logger.NewDiscard())
	got := collect(t, s)

	if len(got) != 3 {
		t.Fatalf("events = %d, want 3", len(got))
	}
	if got[0].Quote == nil || got[0].Quote.Venue != "orca" {
		t.Errorf("first event = %+v", got[0])
	}
	if got[2].Position == nil || got[2].Position.PositionID != "p1" {
		t.Errorf("last event = %+v", got[2])
	}
	if s.Skipped() != 1 {
		t.Errorf("Skipped() = %d, want 1", s.Skipped())
	}
}

func TestSource_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.ndjson")
	if err := os.WriteFile(path, []byte(events), 0o600); err != nil {
		t.Fatal(err)
	}

	s := New(path, 0, logger.NewDiscard())
	if got := collect(t, s); len(got) != 3 {
		t.Errorf("events = %d, want 3", len(got))
	}
	if !strings.HasSuffix(s.Name(), "events.ndjson") {
		t.Errorf("Name() = %s", s.Name())
	}
}

func TestSource_MissingFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing.ndjson"), 0, logger.NewDiscard())
	if err := s.Run(context.Background(), make(chan domain.Event, 1)); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSource_StopsOnCancel(t *testing.T) {
	s := NewFromReader("inline", strings.NewReader(events), 0, logger.NewDiscard())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Run(ctx, make(chan domain.Event)); err == nil {
		t.Error("expected context error")
	}
}
