package domain

import (
	"sort"
	"strings"
	"time"
)

// DefaultCompetition is the competition level of a venue without configuration.
const DefaultCompetition = 5.0

// InstrumentConditions summarizes recent price behaviour of one instrument pair.
// Volatility is an EWMA of absolute log returns; Drift an EWMA of signed ones.
type InstrumentConditions struct {
	Volatility float64
	Drift      float64
	LastPrice  float64
	Samples    int
	UpdatedAt  time.Time
}

// Conditions is an immutable snapshot read by factor assessment.
type Conditions struct {
	Instruments map[string]InstrumentConditions
	Competition map[string]float64 // lowercase venue -> level in [1,10]
	PublishedAt time.Time
}

// EmptyConditions returns a snapshot with no observations.
func EmptyConditions() *Conditions {
	return &Conditions{
		Instruments: map[string]InstrumentConditions{},
		Competition: map[string]float64{},
	}
}

// Instrument returns conditions for pair; ok is false when never observed.
func (c *Conditions) Instrument(pair string) (InstrumentConditions, bool) {
	if c == nil {
		return InstrumentConditions{}, false
	}
	ic, ok := c.Instruments[pair]
	return ic, ok
}

// ForAsset returns the conditions of the first pair, in lexical order, whose
// base is symbol. Positions carry an asset rather than a pair.
func (c *Conditions) ForAsset(symbol string) (InstrumentConditions, bool) {
	if c == nil {
		return InstrumentConditions{}, false
	}
	prefix := strings.ToUpper(symbol) + "/"

	var pairs []string
	for pair := range c.Instruments {
		if strings.HasPrefix(pair, prefix) {
			pairs = append(pairs, pair)
		}
	}
	if len(pairs) == 0 {
		return InstrumentConditions{}, false
	}
	sort.Strings(pairs)
	return c.Instruments[pairs[0]], true
}

// CompetitionLevel returns the venue's level, DefaultCompetition when unknown.
func (c *Conditions) CompetitionLevel(venue string) float64 {
	if c == nil {
		return DefaultCompetition
	}
	if lvl, ok := c.Competition[strings.ToLower(venue)]; ok {
		return lvl
	}
	return DefaultCompetition
}
