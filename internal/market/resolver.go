package market

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/polydeck/polydeck/internal/domain"
	"github.com/polydeck/polydeck/internal/platform/polymarket"
)

// Catalog is the slice of the Gamma client the resolver needs.
type Catalog interface {
	ListEvents(ctx context.Context, query polymarket.EventQuery) ([]polymarket.APIEvent, error)
	SearchEvents(ctx context.Context, term string, limit int) ([]polymarket.APIEvent, error)
}

// categoryTagIDs maps the static categories to their Gamma tag ids, used for
// tag-filtered catalog fetches.
var categoryTagIDs = map[domain.Category]string{
	domain.CategoryCrypto:     "21",
	domain.CategoryPolitics:   "2",
	domain.CategorySports:     "1",
	domain.CategoryEconomy:    "120",
	domain.CategoryTechnology: "1401",
	domain.CategoryCulture:    "596",
}

// endingSoonHorizon is the window for the ending-soon view.
const endingSoonHorizon = 48 * time.Hour

// newViewPadding oversizes the fetch for the new view so enough flagged
// records survive filtering.
const newViewPadding = 40

// Resolver maps a requested view name to an upstream fetch plan and a
// post-fetch ordering, then runs the plan: fetch, filter, normalize, dedup,
// sort, slice. It holds no state between calls.
type Resolver struct {
	catalog    Catalog
	batchLimit int
	logger     *slog.Logger
}

// NewResolver creates a Resolver. batchLimit caps broad catalog fetches
// (the upstream itself caps pages at 100).
func NewResolver(catalog Catalog, batchLimit int, logger *slog.Logger) *Resolver {
	if batchLimit <= 0 {
		batchLimit = 100
	}
	return &Resolver{
		catalog:    catalog,
		batchLimit: batchLimit,
		logger:     logger.With(slog.String("component", "resolver")),
	}
}

// Fetch returns the canonical markets for a view, sliced by offset/limit.
// A non-empty search term overrides the view.
func (r *Resolver) Fetch(ctx context.Context, view string, limit, offset int, search string, now time.Time) ([]domain.Market, error) {
	markets, _, err := r.fetch(ctx, view, limit, offset, search, now)
	return markets, err
}

// FetchWithEvents is Fetch plus the parent events of every admitted market,
// deduplicated, for callers that persist referential parents.
func (r *Resolver) FetchWithEvents(ctx context.Context, view string, limit, offset int, now time.Time) ([]domain.Market, []domain.Event, error) {
	return r.fetch(ctx, view, limit, offset, "", now)
}

func (r *Resolver) fetch(ctx context.Context, viewName string, limit, offset int, search string, now time.Time) ([]domain.Market, []domain.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	c := newCollector(now)

	var err error
	switch {
	case search != "":
		err = r.fetchSearch(ctx, c, search)

	default:
		switch normalizeView(viewName) {
		case domain.ViewBreaking:
			err = r.fetchBroad(ctx, c, domain.ViewBreaking, r.batchLimit)
			c.drop(func(m domain.Market) bool { return m.Volume24h == 0 })
			c.sortBy(func(a, b domain.Market) bool { return a.Volume24h > b.Volume24h })

		case domain.ViewEndingSoon:
			err = r.fetchEndingSoon(ctx, c, limit, offset, now)

		case domain.ViewHighestVolume:
			err = r.fetchBroad(ctx, c, domain.ViewHighestVolume, r.batchLimit)
			c.sortBy(func(a, b domain.Market) bool { return a.Volume > b.Volume })

		case domain.ViewNew:
			err = r.fetchNew(ctx, c, limit, offset)

		case domain.ViewSports:
			err = r.fetchTagged(ctx, c, domain.ViewSports, categoryTagIDs[domain.CategorySports], "startDate", false)

		case domain.ViewTrending:
			if cat, ok := staticCategory(viewName); ok {
				err = r.fetchTagged(ctx, c, "", categoryTagIDs[cat], "", true)
			} else {
				size := 2 * (limit + offset)
				err = r.fetchBroad(ctx, c, domain.ViewTrending, size)
			}
		}
	}

	if err != nil {
		return nil, nil, err
	}

	return page(c.markets, limit, offset), c.eventList(), nil
}

// fetchSearch runs the free-text branch: fetch order is preserved.
func (r *Resolver) fetchSearch(ctx context.Context, c *collector, term string) error {
	events, err := r.catalog.SearchEvents(ctx, term, r.batchLimit)
	if err != nil {
		return fmt.Errorf("market: search %q: %w", term, err)
	}
	c.add(events, "")
	return nil
}

// fetchBroad runs an unfiltered open-markets fetch.
func (r *Resolver) fetchBroad(ctx context.Context, c *collector, view domain.View, size int) error {
	q := polymarket.EventQuery{Limit: size, Closed: boolPtr(false)}
	events, err := r.catalog.ListEvents(ctx, q)
	if err != nil {
		return fmt.Errorf("market: list events: %w", err)
	}
	c.add(events, view)
	return nil
}

// fetchTagged runs a tag-filtered fetch, optionally expanding related tags.
func (r *Resolver) fetchTagged(ctx context.Context, c *collector, view domain.View, tagID, order string, relatedTags bool) error {
	q := polymarket.EventQuery{
		Limit:       r.batchLimit,
		Closed:      boolPtr(false),
		TagID:       tagID,
		Order:       order,
		RelatedTags: relatedTags,
	}
	events, err := r.catalog.ListEvents(ctx, q)
	if err != nil {
		return fmt.Errorf("market: list tagged events: %w", err)
	}
	c.add(events, view)
	return nil
}

// fetchEndingSoon uses the dedicated 48h-horizon fetch, falling back to a
// broad fetch when the dedicated one errors or returns too few results. Only
// markets ending strictly between now and now+48h survive, ordered by end
// time ascending.
func (r *Resolver) fetchEndingSoon(ctx context.Context, c *collector, limit, offset int, now time.Time) error {
	q := polymarket.EventQuery{
		Limit:      r.batchLimit,
		Closed:     boolPtr(false),
		EndDateMin: now,
		EndDateMax: now.Add(endingSoonHorizon),
		Order:      "endDate",
		Ascending:  true,
	}
	events, err := r.catalog.ListEvents(ctx, q)
	if err != nil {
		r.logger.Warn("ending-soon fetch failed, falling back to broad fetch",
			slog.String("error", err.Error()),
		)
	} else {
		c.add(events, domain.ViewEndingSoon)
	}

	if len(c.markets) < limit+offset {
		if err := r.fetchBroad(ctx, c, domain.ViewEndingSoon, r.batchLimit); err != nil {
			// Both plans failed: nothing to serve.
			if len(c.markets) == 0 {
				return err
			}
			r.logger.Warn("ending-soon broad fallback failed",
				slog.String("error", err.Error()),
			)
		}
	}

	horizon := now.Add(endingSoonHorizon)
	c.drop(func(m domain.Market) bool {
		return m.EndDate == nil || !m.EndDate.After(now) || m.EndDate.After(horizon)
	})
	c.sortBy(func(a, b domain.Market) bool { return a.EndDate.Before(*b.EndDate) })
	return nil
}

// fetchNew prefers events flagged new, falling back to the full batch when
// too few; it then prefers canonical records flagged new with the same
// fallback.
func (r *Resolver) fetchNew(ctx context.Context, c *collector, limit, offset int) error {
	size := limit + offset + newViewPadding
	q := polymarket.EventQuery{Limit: size, Closed: boolPtr(false)}
	events, err := r.catalog.ListEvents(ctx, q)
	if err != nil {
		return fmt.Errorf("market: list events: %w", err)
	}

	flagged := make([]polymarket.APIEvent, 0, len(events))
	for _, e := range events {
		if bool(e.New) {
			flagged = append(flagged, e)
		}
	}
	if len(flagged) < limit {
		flagged = events
	}
	c.add(flagged, domain.ViewNew)

	newOnly := make([]domain.Market, 0, len(c.markets))
	for _, m := range c.markets {
		if m.New {
			newOnly = append(newOnly, m)
		}
	}
	if len(newOnly) >= limit {
		c.markets = newOnly
	}
	return nil
}

// collector accumulates admitted, normalized, deduplicated markets and their
// parent events across one or more fetches.
type collector struct {
	now     time.Time
	dedup   *Deduper
	markets []domain.Market
	events  map[string]domain.Event
	order   []string
}

func newCollector(now time.Time) *collector {
	return &collector{
		now:    now,
		dedup:  NewDeduper(),
		events: make(map[string]domain.Event),
	}
}

func (c *collector) add(events []polymarket.APIEvent, view domain.View) {
	for _, e := range events {
		admitted := false
		for _, m := range e.Markets {
			if !Admit(m, e, view, c.now) {
				continue
			}
			cm := Normalize(m, e, c.now)
			if !c.dedup.Admit(cm.ID) {
				continue
			}
			c.markets = append(c.markets, cm)
			admitted = true
		}
		if admitted {
			if _, dup := c.events[e.ID]; !dup {
				c.events[e.ID] = EventOf(e)
				c.order = append(c.order, e.ID)
			}
		}
	}
}

func (c *collector) drop(reject func(domain.Market) bool) {
	kept := c.markets[:0]
	for _, m := range c.markets {
		if !reject(m) {
			kept = append(kept, m)
		}
	}
	c.markets = kept
}

func (c *collector) sortBy(less func(a, b domain.Market) bool) {
	sort.SliceStable(c.markets, func(i, j int) bool {
		return less(c.markets[i], c.markets[j])
	})
}

func (c *collector) eventList() []domain.Event {
	out := make([]domain.Event, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.events[id])
	}
	return out
}

// normalizeView folds a client-supplied view name onto the known view set.
// Unknown names fall through to the trending default; static category names
// are detected separately by staticCategory.
func normalizeView(name string) domain.View {
	switch domain.View(strings.ToLower(strings.TrimSpace(name))) {
	case domain.ViewBreaking:
		return domain.ViewBreaking
	case domain.ViewEndingSoon:
		return domain.ViewEndingSoon
	case domain.ViewHighestVolume:
		return domain.ViewHighestVolume
	case domain.ViewNew:
		return domain.ViewNew
	case domain.ViewSports:
		return domain.ViewSports
	default:
		return domain.ViewTrending
	}
}

// staticCategory matches a view name against the static category set,
// case-insensitively.
func staticCategory(name string) (domain.Category, bool) {
	trimmed := strings.ToLower(strings.TrimSpace(name))
	for cat := range categoryTagIDs {
		if strings.ToLower(string(cat)) == trimmed {
			return cat, true
		}
	}
	return "", false
}

func page(markets []domain.Market, limit, offset int) []domain.Market {
	if offset >= len(markets) {
		return []domain.Market{}
	}
	end := offset + limit
	if end > len(markets) {
		end = len(markets)
	}
	return markets[offset:end]
}

func boolPtr(b bool) *bool { return &b }
