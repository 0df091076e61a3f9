package app

import (
	"hash/fnv"
	"sort"
	"time"

	marketdomain "github.com/fd1az/mev-bundler/business/market/domain"
)

// book is a detector worker's view of the latest quote per venue for the
// pairs routed to it.
type book struct {
	maxAge time.Duration
	quotes map[marketdomain.Pair]map[string]marketdomain.VenueQuote
}

func newBook(maxAge time.Duration) *book {
	return &book{
		maxAge: maxAge,
		quotes: map[marketdomain.Pair]map[string]marketdomain.VenueQuote{},
	}
}

// batch folds ev into the book and returns what the detector should see:
// every fresh quote on the event's pair, or the single position.
// Invalid quotes pass through alone so the detector counts them as skipped,
// and are never stored.
func (b *book) batch(ev marketdomain.Event) marketdomain.Batch {
	switch {
	case ev.Position != nil:
		return marketdomain.Batch{Positions: []marketdomain.PositionSnapshot{*ev.Position}}
	case ev.Quote == nil:
		return marketdomain.Batch{}
	}

	q := *ev.Quote
	if err := q.Validate(); err != nil {
		return marketdomain.Batch{Quotes: []marketdomain.VenueQuote{q}}
	}

	venues, ok := b.quotes[q.Pair]
	if !ok {
		venues = map[string]marketdomain.VenueQuote{}
		b.quotes[q.Pair] = venues
	}
	venues[q.Venue] = q

	out := make([]marketdomain.VenueQuote, 0, len(venues))
	for venue, vq := range venues {
		if b.maxAge > 0 && q.ObservedAt.Sub(vq.ObservedAt) > b.maxAge {
			delete(venues, venue)
			continue
		}
		out = append(out, vq)
	}
	if len(out) < 2 {
		return marketdomain.Batch{}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Venue < out[j].Venue })
	return marketdomain.Batch{Quotes: out}
}

// shard routes quotes by pair and positions by id, so one worker sees every
// update for a key in arrival order.
func shard(ev marketdomain.Event, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New32a()
	switch {
	case ev.Quote != nil:
		h.Write([]byte("q:" + ev.Quote.Pair.String()))
	case ev.Position != nil:
		h.Write([]byte("p:" + ev.Position.PositionID))
	}
	return int(h.Sum32() % uint32(n))
}
