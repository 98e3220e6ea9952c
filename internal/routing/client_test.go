package routing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/safeops/sweep/internal/httpx"
	"github.com/safeops/sweep/internal/id"
	"github.com/safeops/sweep/internal/registry"
)

func testRequest(t *testing.T) QuoteRequest {
	t.Helper()
	chain, _ := id.ParseChain("ethereum")
	dai, _ := id.ParseAsset("DAI", chain)
	usdc, _ := id.ParseAsset("USDC", chain)
	return QuoteRequest{
		Chain:           chain,
		From:            dai,
		To:              usdc,
		AmountBaseUnits: "1000000000000000000",
		SlippagePct:     0.5,
	}
}

func TestQuoteRequiresAPIKey(t *testing.T) {
	c := New(httpx.New(time.Second, 0), "")
	_, err := c.Quote(context.Background(), testRequest(t))
	var qe *QuoteError
	if !errors.As(err, &qe) || qe.Reason != ReasonAuth {
		t.Fatalf("expected auth quote error, got %v", err)
	}
}

func TestQuoteValidatesInput(t *testing.T) {
	c := New(httpx.New(time.Second, 0), "key")

	req := testRequest(t)
	req.SlippagePct = 0
	if _, err := c.Quote(context.Background(), req); err == nil {
		t.Fatal("expected slippage validation error")
	}
	req = testRequest(t)
	req.SlippagePct = 101
	if _, err := c.Quote(context.Background(), req); err == nil {
		t.Fatal("expected slippage range error")
	}
	req = testRequest(t)
	req.AmountBaseUnits = "0"
	if _, err := c.Quote(context.Background(), req); err == nil {
		t.Fatal("expected amount validation error")
	}
	req = testRequest(t)
	req.AmountBaseUnits = "1.5"
	if _, err := c.Quote(context.Background(), req); err == nil {
		t.Fatal("expected integer amount error")
	}
}

func TestQuoteSuccess(t *testing.T) {
	var gotAuth string
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = map[string]string{
			"src":      r.URL.Query().Get("src"),
			"dst":      r.URL.Query().Get("dst"),
			"amount":   r.URL.Query().Get("amount"),
			"slippage": r.URL.Query().Get("slippage"),
		}
		_, _ = w.Write([]byte(`{
			"dstAmount":"995000",
			"priceImpact":0.12,
			"tx":{"to":"0x1111111254eeb25477b68fb85ed929f73a960582","data":"0xabcdef","value":"0"}
		}`))
	}))
	defer srv.Close()

	c := New(httpx.New(2*time.Second, 0), "test-key").WithBaseURL(srv.URL)
	quote, err := c.Quote(context.Background(), testRequest(t))
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("unexpected auth header: %s", gotAuth)
	}
	if gotQuery["slippage"] != "0.5" || gotQuery["amount"] != "1000000000000000000" {
		t.Fatalf("unexpected query: %v", gotQuery)
	}
	if quote.Router != "0x1111111254eeb25477b68fb85ed929f73a960582" || quote.Calldata != "0xabcdef" {
		t.Fatalf("unexpected quote: %+v", quote)
	}
	if quote.ExpectedOut != "995000" {
		t.Fatalf("unexpected expected out: %s", quote.ExpectedOut)
	}
	// 0.5% slippage derived from expected output.
	if quote.MinOut != "990025" {
		t.Fatalf("unexpected min out: %s", quote.MinOut)
	}
	if quote.PriceImpactPct != 0.12 {
		t.Fatalf("unexpected price impact: %v", quote.PriceImpactPct)
	}
}

func TestQuoteNativeSourceUsesSentinelAndValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("src") != id.NativeSentinel {
			t.Errorf("expected native sentinel src, got %s", r.URL.Query().Get("src"))
		}
		_, _ = w.Write([]byte(`{
			"dstAmount":"3100000000",
			"tx":{"to":"0x1111111254eeb25477b68fb85ed929f73a960582","data":"0xdeadbeef","value":""}
		}`))
	}))
	defer srv.Close()

	chain, _ := id.ParseChain("ethereum")
	usdc, _ := id.ParseAsset("USDC", chain)
	req := QuoteRequest{
		Chain:           chain,
		From:            id.NativeAsset(chain),
		To:              usdc,
		AmountBaseUnits: "1000000000000000000",
		SlippagePct:     1,
	}
	c := New(httpx.New(2*time.Second, 0), "key").WithBaseURL(srv.URL)
	quote, err := c.Quote(context.Background(), req)
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if quote.NativeValue != "1000000000000000000" {
		t.Fatalf("expected native value to equal input amount, got %s", quote.NativeValue)
	}
}

func TestQuoteUpstreamFailureCarriesStatusAndBody(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"description":"insufficient liquidity"}`))
	}))
	defer srv.Close()

	c := New(httpx.New(2*time.Second, 0), "key").WithBaseURL(srv.URL)
	_, err := c.Quote(context.Background(), testRequest(t))
	var qe *QuoteError
	if !errors.As(err, &qe) {
		t.Fatalf("expected QuoteError, got %v", err)
	}
	if qe.Reason != ReasonUpstream || qe.Status != http.StatusBadRequest {
		t.Fatalf("unexpected quote error: %+v", qe)
	}
	if qe.Body == "" {
		t.Fatal("expected upstream body for diagnostics")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly one upstream request, got %d", got)
	}
}

func TestQuoteMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"dstAmount":"995000","tx":{"to":"","data":""}}`))
	}))
	defer srv.Close()

	c := New(httpx.New(2*time.Second, 0), "key").WithBaseURL(srv.URL)
	_, err := c.Quote(context.Background(), testRequest(t))
	var qe *QuoteError
	if !errors.As(err, &qe) || qe.Reason != ReasonMalformed {
		t.Fatalf("expected malformed quote error, got %v", err)
	}
}

func TestQuoteRejectsInvalidRouterAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"dstAmount":"995000",
			"tx":{"to":"junk-not-an-address","data":"0xabcdef","value":"0"}
		}`))
	}))
	defer srv.Close()

	c := New(httpx.New(2*time.Second, 0), "key").WithBaseURL(srv.URL)
	_, err := c.Quote(context.Background(), testRequest(t))
	var qe *QuoteError
	if !errors.As(err, &qe) || qe.Reason != ReasonMalformed {
		t.Fatalf("expected malformed quote error for bad router address, got %v", err)
	}
}

func TestWithBaseURLLeavesReceiverUntouched(t *testing.T) {
	base := New(httpx.New(time.Second, 0), "key")
	derived := base.WithBaseURL("http://localhost:9/")
	if derived == base || derived.baseURL == base.baseURL {
		t.Fatalf("expected an independent copy, base=%q derived=%q", base.baseURL, derived.baseURL)
	}
	if base.baseURL != registry.RouterBaseURL {
		t.Fatalf("receiver baseURL changed: %q", base.baseURL)
	}
}

func TestQuoteUsesServiceMinReturn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"dstAmount":"1000000",
			"minReturnAmount":"990000",
			"tx":{"to":"0x1111111254eeb25477b68fb85ed929f73a960582","data":"0x01","value":"0"}
		}`))
	}))
	defer srv.Close()

	c := New(httpx.New(2*time.Second, 0), "key").WithBaseURL(srv.URL)
	quote, err := c.Quote(context.Background(), testRequest(t))
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if quote.MinOut != "990000" {
		t.Fatalf("expected service min return, got %s", quote.MinOut)
	}
}
