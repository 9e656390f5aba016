package market

import (
	"strings"

	"github.com/polydeck/polydeck/internal/domain"
)

// categoryKeywords maps each category to its keyword set, in classification
// precedence order. Matching is case-insensitive substring membership over
// the concatenated tag labels and category hint, so classification is a
// best-effort heuristic: ambiguous titles will be misclassified and that is
// accepted. First match wins.
var categoryKeywords = []struct {
	category domain.Category
	keywords []string
}{
	{domain.CategoryCrypto, []string{
		"crypto", "bitcoin", "btc", "ethereum", "solana", "blockchain",
		"defi", "nft", "stablecoin", "altcoin", "dogecoin", "xrp",
		"halving", "memecoin", "airdrop",
	}},
	{domain.CategoryPolitics, []string{
		"politics", "election", "president", "senate", "congress",
		"governor", "democrat", "republican", "parliament", "geopolitics",
		"supreme court", "prime minister", "impeach", "white house",
		"legislation", "ceasefire",
	}},
	{domain.CategorySports, []string{
		"sports", "nba", "nfl", "mlb", "nhl", "soccer", "football",
		"basketball", "baseball", "tennis", "golf", "ufc", "boxing",
		"olympics", "premier league", "champions league", "formula 1",
		"world cup", "super bowl", "finals", "grand slam",
	}},
	{domain.CategoryEconomy, []string{
		"economy", "inflation", "gdp", "recession", "interest rate",
		"fed ", "federal reserve", "cpi", "unemployment", "tariff",
		"s&p", "nasdaq", "treasury", "earnings", "ipo",
	}},
	{domain.CategoryTechnology, []string{
		"technology", "tech", "artificial intelligence", "openai",
		"software", "semiconductor", "chip", "spacex", "apple", "google",
		"microsoft", "tesla", "nvidia", "robotics",
	}},
	{domain.CategoryCulture, []string{
		"culture", "movie", "film", "music", "album", "celebrity",
		"oscars", "grammys", "box office", "entertainment", "awards",
		"television", "streaming",
	}},
}

// Classify resolves exactly one category from the combined tag labels and
// raw category hint. No match falls into the Trending catch-all bucket, so
// the result is never empty. Identical input always yields identical output.
func Classify(tags []string, hint string) domain.Category {
	parts := make([]string, 0, len(tags)+1)
	parts = append(parts, tags...)
	if hint != "" {
		parts = append(parts, hint)
	}
	haystack := strings.ToLower(strings.Join(parts, " "))

	for _, set := range categoryKeywords {
		for _, kw := range set.keywords {
			if strings.Contains(haystack, kw) {
				return set.category
			}
		}
	}
	return domain.CategoryTrending
}
