// Package market implements the aggregation pipeline that turns raw Gamma
// catalog records into canonical market records: normalization, category
// classification, eligibility filtering, view resolution, and real-time
// price enrichment.
package market

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/polydeck/polydeck/internal/domain"
	"github.com/polydeck/polydeck/internal/platform/polymarket"
)

// Normalize is the pure transform from one upstream event+market pair to one
// canonical market record. It never fails: malformed JSON-encoded sub-fields
// degrade to empty lists and unparsable numbers degrade to 0.
func Normalize(m polymarket.APIMarket, e polymarket.APIEvent, now time.Time) domain.Market {
	outcomes := decodeStringList(m.Outcomes)
	priceStrs := decodeStringList(m.OutcomePrices)
	tokenIDs := decodeStringList(m.ClobTokenIDs)

	// Zip outcome names with prices index-wise.
	prices := make(map[string]float64, len(outcomes))
	for i, name := range outcomes {
		if i >= len(priceStrs) {
			break
		}
		p, err := strconv.ParseFloat(priceStrs[i], 64)
		if err != nil {
			p = 0
		}
		prices[name] = p
	}

	// Zip instrument ids with outcome names. When outcome names run out,
	// fall back to the upstream two-outcome convention.
	tokens := make([]domain.OutcomeToken, 0, len(tokenIDs))
	unmatched := 0
	for i, id := range tokenIDs {
		var name string
		switch {
		case i < len(outcomes):
			name = outcomes[i]
		case unmatched == 0:
			name = "Yes"
			unmatched++
		case unmatched == 1:
			name = "No"
			unmatched++
		default:
			name = "Outcome " + strconv.Itoa(i+1)
		}
		tokens = append(tokens, domain.OutcomeToken{TokenID: id, Outcome: name})
	}

	tags := mergeTags(e.Tags, m.Tags)

	identity := m.ConditionID
	if identity == "" {
		identity = m.ID
	}

	out := domain.Market{
		ID:          identity,
		UpstreamID:  m.ID,
		ConditionID: m.ConditionID,
		Slug:        m.Slug,
		EventID:     e.ID,
		EventSlug:   e.Slug,
		Question:    m.Question,
		Description: firstNonEmpty(m.Description, e.Description),
		Category:    Classify(tags, e.Category),
		Tags:        tags,
		Outcomes:    outcomes,
		Prices:      prices,
		Tokens:      tokens,
		Volume:      float64(m.Volume),
		Volume24h:   float64(m.Volume24h),
		Liquidity:   float64(m.Liquidity),
		Active:      bool(m.Active),
		Closed:      bool(m.Closed),
		Archived:    bool(m.Archived),
		New:         bool(m.New) || bool(e.New),
		Featured:    bool(m.Featured) || bool(e.Featured),
		Image:       firstNonEmpty(m.Image, e.Image),
		Icon:        firstNonEmpty(m.Icon, e.Icon),
		StartDate:   parseTime(firstNonEmpty(m.StartDate, e.StartDate)),
		EndDate:     parseTime(firstNonEmpty(m.EndDate, e.EndDate)),

		LastSyncedAt: now,
	}
	out.Spread = computeSpread(out.Outcomes, out.Prices)

	return out
}

// EventOf converts the upstream event to the persisted parent event record.
func EventOf(e polymarket.APIEvent) domain.Event {
	return domain.Event{
		ID:          e.ID,
		Slug:        e.Slug,
		Title:       e.Title,
		Description: e.Description,
		Category:    e.Category,
		Tags:        tagLabels(e.Tags),
		Volume:      float64(e.Volume),
		Volume24h:   float64(e.Volume24h),
		Liquidity:   float64(e.Liquidity),
		Active:      bool(e.Active),
		Closed:      bool(e.Closed),
		Archived:    bool(e.Archived),
		New:         bool(e.New),
		Featured:    bool(e.Featured),
		StartDate:   parseTime(e.StartDate),
		EndDate:     parseTime(e.EndDate),
	}
}

// computeSpread returns the absolute difference between the first two
// outcome prices, rounded to 6 decimal places. It is absent unless at least
// two outcomes have resolved prices.
func computeSpread(outcomes []string, prices map[string]float64) *float64 {
	if len(outcomes) < 2 {
		return nil
	}
	p0, ok0 := prices[outcomes[0]]
	p1, ok1 := prices[outcomes[1]]
	if !ok0 || !ok1 {
		return nil
	}
	spread := math.Round(math.Abs(p0-p1)*1e6) / 1e6
	return &spread
}

// decodeStringList decodes one of the JSON-encoded list fields. A decode
// failure yields an empty list rather than an error.
func decodeStringList(raw string) []string {
	if raw == "" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		return list
	}
	// Some catalog rows carry bare numbers instead of numeric strings.
	var nums []float64
	if err := json.Unmarshal([]byte(raw), &nums); err == nil {
		list = make([]string, len(nums))
		for i, n := range nums {
			list[i] = strconv.FormatFloat(n, 'f', -1, 64)
		}
		return list
	}
	return nil
}

// mergeTags combines event and market tag labels into one deduplicated set,
// preserving first-seen order.
func mergeTags(groups ...[]polymarket.APITag) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, tags := range groups {
		for _, t := range tags {
			if t.Label == "" {
				continue
			}
			if _, dup := seen[t.Label]; dup {
				continue
			}
			seen[t.Label] = struct{}{}
			out = append(out, t.Label)
		}
	}
	return out
}

func tagLabels(tags []polymarket.APITag) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t.Label != "" {
			out = append(out, t.Label)
		}
	}
	return out
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}
