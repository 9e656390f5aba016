package market

import (
	"regexp"
	"strings"
	"time"

	"github.com/polydeck/polydeck/internal/domain"
	"github.com/polydeck/polydeck/internal/platform/polymarket"
)

// minRemaining is the minimum time a market must have left before its end
// date to be shown; markets about to close are noise.
const minRemaining = time.Hour

// tagBlacklist marks short-cycle auto-generated markets that should never
// surface in browsing views.
var tagBlacklist = map[string]struct{}{
	"Recurring":     {},
	"Hide From New": {},
}

// recurringSlugPatterns match the slug naming of short-interval markets
// ("price up or down in 5 minutes" and friends).
var recurringSlugPatterns = []*regexp.Regexp{
	regexp.MustCompile(`-(5m|15m|1h|6h)-`),
	regexp.MustCompile(`updown-\d+m`),
	regexp.MustCompile(`up-or-down.*\d+[mh]-`),
}

// Admit reports whether a raw market belongs in the given view at time now.
// All rules must hold; the rules are deliberately conservative because
// cross-category fetches surface a lot of noise.
func Admit(m polymarket.APIMarket, e polymarket.APIEvent, view domain.View, now time.Time) bool {
	if bool(e.Closed) || bool(e.Archived) {
		return false
	}
	if !bool(m.Active) || bool(m.Closed) {
		return false
	}
	if isRecurring(m, e) {
		return false
	}

	end := parseTime(firstNonEmpty(m.EndDate, e.EndDate))
	if end != nil {
		remaining := end.Sub(now)
		if remaining > 0 && remaining < minRemaining {
			return false
		}
		// Already ended with no 24h activity: stale, no longer relevant.
		if remaining <= 0 && float64(m.Volume24h) == 0 {
			return false
		}
	}

	volume := float64(m.Volume)
	volume24h := float64(m.Volume24h)
	liquidity := float64(m.Liquidity)

	switch view {
	case domain.ViewSports:
		if end != nil && end.Before(now) {
			return false
		}
		if volume == 0 && volume24h == 0 && liquidity < 10 {
			return false
		}
		if strings.HasPrefix(strings.ToLower(m.Question), "spread:") && liquidity < 10 {
			return false
		}
	case domain.ViewTrending:
		if volume == 0 && volume24h == 0 && liquidity == 0 {
			return false
		}
	}

	return true
}

// isRecurring detects short-cycle instruments by tag blacklist or slug
// naming pattern.
func isRecurring(m polymarket.APIMarket, e polymarket.APIEvent) bool {
	for _, tags := range [][]polymarket.APITag{m.Tags, e.Tags} {
		for _, t := range tags {
			if _, banned := tagBlacklist[t.Label]; banned {
				return true
			}
		}
	}
	slug := strings.ToLower(m.Slug)
	for _, pattern := range recurringSlugPatterns {
		if pattern.MatchString(slug) {
			return true
		}
	}
	return false
}

// Deduper tracks canonical identities seen within one fetch/sync batch.
// Cross-category fetches return overlapping events; the first occurrence of
// an identity wins and later duplicates are dropped silently.
type Deduper struct {
	seen map[string]struct{}
}

// NewDeduper creates an empty dedup set for one batch.
func NewDeduper() *Deduper {
	return &Deduper{seen: make(map[string]struct{})}
}

// Admit reports whether the identity is new to this batch, recording it.
func (d *Deduper) Admit(id string) bool {
	if _, dup := d.seen[id]; dup {
		return false
	}
	d.seen[id] = struct{}{}
	return true
}
