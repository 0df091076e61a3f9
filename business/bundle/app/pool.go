package app

import (
	"sort"
	"time"

	oppdomain "github.com/fd1az/mev-bundler/business/opportunity/domain"
	"github.com/fd1az/mev-bundler/internal/apperror"
)

// Pool holds Queued opportunities. It is owned by the composer goroutine and
// is not safe for concurrent use.
//
// Every exclusive resource has at most one holder in the pool. The detector
// re-emits the same arbitrage or position on every update, so the newest
// detection of a resource supersedes older ones. A resource used by a
// validated bundle stays retired until that item's ExpiresAt.
type Pool struct {
	items   map[string]*oppdomain.Opportunity
	holders map[string]string    // resource -> opportunity id
	retired map[string]time.Time // resource -> retired until
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{
		items:   make(map[string]*oppdomain.Opportunity),
		holders: make(map[string]string),
		retired: make(map[string]time.Time),
	}
}

// Add moves opp to Queued and keeps it. A second submission of the same id
// replaces the first. The returned opportunities were dropped as Rejected with
// EXCLUSIVE_RESOURCE: either opp itself, when it claims a retired resource or
// one held by a newer detection, or the older holders it supersedes.
// An error means opp could not be queued at all.
func (p *Pool) Add(opp *oppdomain.Opportunity) ([]*oppdomain.Opportunity, error) {
	if !oppdomain.CanTransition(opp.Status(), oppdomain.StatusQueued) {
		return nil, apperror.New(apperror.CodeInvalidStatusTransition,
			apperror.WithContext(opp.ID+": "+string(opp.Status())+" -> "+string(oppdomain.StatusQueued)))
	}

	var older []*oppdomain.Opportunity
	for _, r := range opp.Resources() {
		if until, ok := p.retired[r]; ok && opp.DetectedAt.Before(until) {
			return p.drop(opp, r+" used by a validated bundle"), nil
		}
		id, ok := p.holders[r]
		if !ok || id == opp.ID {
			continue
		}
		holder := p.items[id]
		if holder.DetectedAt.After(opp.DetectedAt) {
			return p.drop(opp, "superseded by "+holder.ID), nil
		}
		older = append(older, holder)
	}

	var dropped []*oppdomain.Opportunity
	for _, holder := range older {
		if _, ok := p.items[holder.ID]; !ok {
			continue // held two of opp's resources
		}
		p.Remove(holder.ID)
		dropped = append(dropped, p.drop(holder, "superseded by "+opp.ID)...)
	}

	if err := opp.Transition(oppdomain.StatusQueued); err != nil {
		return dropped, err
	}
	p.items[opp.ID] = opp
	for _, r := range opp.Resources() {
		p.holders[r] = opp.ID
	}
	return dropped, nil
}

func (p *Pool) drop(opp *oppdomain.Opportunity, detail string) []*oppdomain.Opportunity {
	_ = opp.Reject(oppdomain.Reason{Code: apperror.CodeExclusiveResource, Detail: detail})
	return []*oppdomain.Opportunity{opp}
}

// Remove drops ids from the pool.
func (p *Pool) Remove(ids ...string) {
	for _, id := range ids {
		opp, ok := p.items[id]
		if !ok {
			continue
		}
		delete(p.items, id)
		for _, r := range opp.Resources() {
			if p.holders[r] == id {
				delete(p.holders, r)
			}
		}
	}
}

// Retire blocks the resources of items until each item's ExpiresAt.
func (p *Pool) Retire(items ...*oppdomain.Opportunity) {
	for _, o := range items {
		for _, r := range o.Resources() {
			if until, ok := p.retired[r]; !ok || o.ExpiresAt.After(until) {
				p.retired[r] = o.ExpiresAt
			}
		}
	}
}

// Has reports whether id is in the pool.
func (p *Pool) Has(id string) bool {
	_, ok := p.items[id]
	return ok
}

func (p *Pool) Len() int { return len(p.items) }

// Sweep removes items that can no longer be bundled: expired ones become
// Expired, non-positive net ones Rejected with UNPROFITABLE. Retired resources
// past their deadline are released.
func (p *Pool) Sweep(now time.Time) []*oppdomain.Opportunity {
	for r, until := range p.retired {
		if !now.Before(until) {
			delete(p.retired, r)
		}
	}

	var out []*oppdomain.Opportunity
	for _, opp := range p.sorted() {
		switch {
		case opp.IsExpired(now):
			_ = opp.Expire()
		case !opp.NetProfit().IsPositive():
			_ = opp.Reject(oppdomain.Reason{
				Code:   apperror.CodeUnprofitable,
				Detail: "net " + opp.NetProfit().StringFixed(6),
			})
		default:
			continue
		}
		p.Remove(opp.ID)
		out = append(out, opp)
	}
	return out
}

// Eligible returns scored items ordered by net profit, highest first, with
// SortKey and id as tiebreaks.
func (p *Pool) Eligible() []*oppdomain.Opportunity {
	var out []*oppdomain.Opportunity
	for _, opp := range p.sorted() {
		if !opp.NeedsScoring() {
			out = append(out, opp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].NetProfit().GreaterThan(out[j].NetProfit())
	})
	return out
}

func (p *Pool) sorted() []*oppdomain.Opportunity {
	out := make([]*oppdomain.Opportunity, 0, len(p.items))
	for _, opp := range p.items {
		out = append(out, opp)
	}
	sort.Slice(out, func(i, j int) bool {
		ki, kj := out[i].SortKey(), out[j].SortKey()
		if ki != kj {
			return ki < kj
		}
		return out[i].ID < out[j].ID
	})
	return out
}
