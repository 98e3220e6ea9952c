package pricing

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	clierr "github.com/safeops/sweep/internal/errors"
	"github.com/safeops/sweep/internal/httpx"
	"github.com/safeops/sweep/internal/id"
	"github.com/safeops/sweep/internal/registry"
)

// zeroAddress is the price service's key for a chain's native unit.
const zeroAddress = "0x0000000000000000000000000000000000000000"

// Client fetches spot prices in USD for display aggregates. Prices never
// affect quote correctness; callers degrade to "no price" on any failure.
type Client struct {
	http    *httpx.Client
	baseURL string
	now     func() time.Time
}

func New(httpClient *httpx.Client) *Client {
	return &Client{http: httpClient, baseURL: registry.PricesBaseURL, now: time.Now}
}

// WithBaseURL returns a copy of the client pointed at a non-default price
// endpoint. The receiver is left untouched.
func (c *Client) WithBaseURL(baseURL string) *Client {
	clone := *c
	clone.baseURL = strings.TrimRight(baseURL, "/")
	return &clone
}

type coinsResponse struct {
	Coins map[string]struct {
		Price     float64 `json:"price"`
		Symbol    string  `json:"symbol"`
		Timestamp int64   `json:"timestamp"`
	} `json:"coins"`
}

// CurrentPrices returns USD prices keyed by asset identifier for every asset
// the service knows. Unknown assets are simply absent from the result.
func (c *Client) CurrentPrices(ctx context.Context, chain id.Chain, assets []id.Asset) (map[string]float64, error) {
	if len(assets) == 0 {
		return map[string]float64{}, nil
	}

	slug := registry.PriceSlug(chain.CAIP2, chain.Slug)
	keys := make([]string, 0, len(assets))
	keyToAssetID := make(map[string]string, len(assets))
	for _, asset := range assets {
		address := strings.ToLower(asset.Address)
		if asset.Native {
			address = zeroAddress
		}
		key := slug + ":" + address
		keys = append(keys, key)
		keyToAssetID[key] = asset.AssetID
	}

	url := fmt.Sprintf("%s/prices/current/%s", c.baseURL, strings.Join(keys, ","))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "build price request", err)
	}
	var resp coinsResponse
	if _, err := c.http.DoJSON(ctx, req, &resp); err != nil {
		return nil, err
	}

	out := make(map[string]float64, len(resp.Coins))
	for key, coin := range resp.Coins {
		assetID, ok := keyToAssetID[key]
		if !ok {
			continue
		}
		if coin.Price > 0 {
			out[assetID] = coin.Price
		}
	}
	return out, nil
}
