package registry

const (
	// Swap routing service. Quotes carry ready-to-submit router calldata.
	RouterBaseURL = "https://api.1inch.dev/swap/v6.0"

	// Spot price service feeding the display-price cache.
	PricesBaseURL = "https://coins.llama.fi"
)

// Chain slugs as the price service keys them. Falls back to the slug itself
// for chains not listed here.
var priceSlugByCAIP2 = map[string]string{
	"eip155:1":     "ethereum",
	"eip155:10":    "optimism",
	"eip155:56":    "bsc",
	"eip155:100":   "xdai",
	"eip155:137":   "polygon",
	"eip155:8453":  "base",
	"eip155:42161": "arbitrum",
	"eip155:43114": "avax",
}

func PriceSlug(caip2, fallback string) string {
	if slug, ok := priceSlugByCAIP2[caip2]; ok {
		return slug
	}
	return fallback
}
