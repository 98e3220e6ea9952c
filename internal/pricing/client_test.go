package pricing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/safeops/sweep/internal/httpx"
	"github.com/safeops/sweep/internal/id"
	"github.com/safeops/sweep/internal/registry"
)

func TestCurrentPricesMapsKeysToAssetIDs(t *testing.T) {
	var requestedPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.Path
		_, _ = w.Write([]byte(`{"coins":{
			"ethereum:0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48":{"price":1.0,"symbol":"USDC","timestamp":1700000000},
			"ethereum:0x0000000000000000000000000000000000000000":{"price":3100.5,"symbol":"ETH","timestamp":1700000000}
		}}`))
	}))
	defer srv.Close()

	chain, _ := id.ParseChain("ethereum")
	usdc, _ := id.ParseAsset("USDC", chain)
	eth := id.NativeAsset(chain)

	c := New(httpx.New(2*time.Second, 0))
	c.baseURL = srv.URL
	prices, err := c.CurrentPrices(context.Background(), chain, []id.Asset{usdc, eth})
	if err != nil {
		t.Fatalf("CurrentPrices failed: %v", err)
	}
	if prices[usdc.AssetID] != 1.0 {
		t.Fatalf("expected USDC price 1.0, got %v", prices[usdc.AssetID])
	}
	if prices[eth.AssetID] != 3100.5 {
		t.Fatalf("expected native price 3100.5, got %v", prices[eth.AssetID])
	}
	if !strings.Contains(requestedPath, "ethereum:0x0000000000000000000000000000000000000000") {
		t.Fatalf("expected native zero-address key in request, got %s", requestedPath)
	}
}

func TestCurrentPricesSkipsUnknownAssets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"coins":{}}`))
	}))
	defer srv.Close()

	chain, _ := id.ParseChain("ethereum")
	dai, _ := id.ParseAsset("DAI", chain)

	c := New(httpx.New(2*time.Second, 0))
	c.baseURL = srv.URL
	prices, err := c.CurrentPrices(context.Background(), chain, []id.Asset{dai})
	if err != nil {
		t.Fatalf("CurrentPrices failed: %v", err)
	}
	if len(prices) != 0 {
		t.Fatalf("expected empty result, got %v", prices)
	}
}

func TestWithBaseURLLeavesReceiverUntouched(t *testing.T) {
	base := New(httpx.New(time.Second, 0))
	derived := base.WithBaseURL("http://localhost:9/")
	if derived == base || derived.baseURL == base.baseURL {
		t.Fatalf("expected an independent copy, base=%q derived=%q", base.baseURL, derived.baseURL)
	}
	if base.baseURL != registry.PricesBaseURL {
		t.Fatalf("receiver baseURL changed: %q", base.baseURL)
	}
}

func TestCurrentPricesEmptyInput(t *testing.T) {
	chain, _ := id.ParseChain("ethereum")
	c := New(httpx.New(2*time.Second, 0))
	prices, err := c.CurrentPrices(context.Background(), chain, nil)
	if err != nil {
		t.Fatalf("CurrentPrices failed: %v", err)
	}
	if len(prices) != 0 {
		t.Fatalf("expected empty map, got %v", prices)
	}
}
