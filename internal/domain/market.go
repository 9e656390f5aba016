package domain

import "time"

// Category is the single resolved category label of a market. Classification
// is a best-effort keyword heuristic (see internal/market), so Category is
// approximate; CategoryTrending doubles as the catch-all bucket.
type Category string

const (
	CategoryCrypto     Category = "Crypto"
	CategoryPolitics   Category = "Politics"
	CategorySports     Category = "Sports"
	CategoryEconomy    Category = "Economy"
	CategoryTechnology Category = "Technology"
	CategoryCulture    Category = "Culture"
	CategoryTrending   Category = "Trending"
)

// Categories lists every category in classification precedence order,
// catch-all last.
var Categories = []Category{
	CategoryCrypto,
	CategoryPolitics,
	CategorySports,
	CategoryEconomy,
	CategoryTechnology,
	CategoryCulture,
	CategoryTrending,
}

// View is a logical market listing surfaced to clients.
type View string

const (
	ViewTrending      View = "trending"
	ViewBreaking      View = "breaking"
	ViewEndingSoon    View = "ending-soon"
	ViewHighestVolume View = "highest-volume"
	ViewNew           View = "new"
	ViewSports        View = "sports"
)

// OutcomeToken pairs a CLOB instrument id with the outcome it represents.
type OutcomeToken struct {
	TokenID string `json:"tokenId"`
	Outcome string `json:"outcome"`
}

// Market is the canonical, normalized market record produced from one Gamma
// event+market pair. Identity prefers the on-chain condition id and falls
// back to the upstream internal id.
type Market struct {
	ID          string   `json:"id"`
	UpstreamID  string   `json:"upstreamId"`
	ConditionID string   `json:"conditionId"`
	Slug        string   `json:"slug"`
	EventID     string   `json:"eventId"`
	EventSlug   string   `json:"eventSlug"`
	Question    string   `json:"question"`
	Description string   `json:"description,omitempty"`
	Category    Category `json:"category"`
	Tags        []string `json:"tags"`

	Outcomes []string           `json:"outcomes"`
	Prices   map[string]float64 `json:"prices"`
	Tokens   []OutcomeToken     `json:"tokens"`

	Volume    float64  `json:"volume"`
	Volume24h float64  `json:"volume24h"`
	Liquidity float64  `json:"liquidity"`
	Spread    *float64 `json:"spread,omitempty"`

	Active   bool `json:"active"`
	Closed   bool `json:"closed"`
	Archived bool `json:"archived"`
	New      bool `json:"new"`
	Featured bool `json:"featured"`

	Image string `json:"image,omitempty"`
	Icon  string `json:"icon,omitempty"`

	StartDate    *time.Time `json:"startDate,omitempty"`
	EndDate      *time.Time `json:"endDate,omitempty"`
	LastSyncedAt time.Time  `json:"lastSyncedAt"`
}
