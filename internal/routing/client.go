package routing

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	clierr "github.com/safeops/sweep/internal/errors"
	"github.com/safeops/sweep/internal/httpx"
	"github.com/safeops/sweep/internal/id"
	"github.com/safeops/sweep/internal/registry"
)

const (
	ReasonUpstream  = "upstream"
	ReasonMalformed = "malformed"
	ReasonAuth      = "auth"
)

// QuoteError is a per-asset quote failure. It is never fatal to a bundle on
// its own; the assembler collects these for diagnostics.
type QuoteError struct {
	AssetID string
	Reason  string
	Status  int
	Body    string
	Cause   error
}

func (e *QuoteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("quote %s failed (%s, status %d)", e.AssetID, e.Reason, e.Status)
	}
	return fmt.Sprintf("quote %s failed (%s)", e.AssetID, e.Reason)
}

func (e *QuoteError) Unwrap() error { return e.Cause }

type QuoteRequest struct {
	Chain           id.Chain
	From            id.Asset
	To              id.Asset
	AmountBaseUnits string
	SlippagePct     float64
	Recipient       string
}

// RouteQuote is one routing answer: the router call to submit plus the
// amounts it promises. Quotes are point-in-time and never cached.
type RouteQuote struct {
	Router         string  `json:"router"`
	Calldata       string  `json:"calldata"`
	NativeValue    string  `json:"native_value"`
	ExpectedOut    string  `json:"expected_out"`
	MinOut         string  `json:"min_out"`
	PriceImpactPct float64 `json:"price_impact_pct"`
}

// Client asks the routing service for swap quotes. It issues exactly one
// request per call; retry policy belongs to the caller.
type Client struct {
	http    *httpx.Client
	baseURL string
	apiKey  string
}

func New(httpClient *httpx.Client, apiKey string) *Client {
	return &Client{http: httpClient, baseURL: registry.RouterBaseURL, apiKey: apiKey}
}

// WithBaseURL returns a copy of the client pointed at a non-default routing
// endpoint. The receiver is left untouched.
func (c *Client) WithBaseURL(baseURL string) *Client {
	clone := *c
	clone.baseURL = strings.TrimRight(baseURL, "/")
	return &clone
}

type swapResponse struct {
	DstAmount       string  `json:"dstAmount"`
	MinReturnAmount string  `json:"minReturnAmount"`
	PriceImpact     float64 `json:"priceImpact"`
	Tx              struct {
		To    string `json:"to"`
		Data  string `json:"data"`
		Value string `json:"value"`
	} `json:"tx"`
}

func (c *Client) Quote(ctx context.Context, req QuoteRequest) (RouteQuote, error) {
	if !req.Chain.IsEVM() {
		return RouteQuote{}, clierr.New(clierr.CodeUnsupported, "routing supports only EVM chains")
	}
	if req.SlippagePct <= 0 || req.SlippagePct > 100 {
		return RouteQuote{}, clierr.New(clierr.CodeUsage, "slippage must be in (0, 100]")
	}
	amount, ok := new(big.Int).SetString(strings.TrimSpace(req.AmountBaseUnits), 10)
	if !ok || amount.Sign() <= 0 {
		return RouteQuote{}, clierr.New(clierr.CodeUsage, "amount must be a positive integer in base units")
	}
	if c.apiKey == "" {
		return RouteQuote{}, &QuoteError{
			AssetID: req.From.AssetID,
			Reason:  ReasonAuth,
			Cause:   clierr.New(clierr.CodeAuth, "missing routing service API key (SWEEP_ROUTER_API_KEY)"),
		}
	}

	src := req.From.Address
	if req.From.Native {
		src = id.NativeSentinel
	}
	dst := req.To.Address
	if req.To.Native {
		dst = id.NativeSentinel
	}

	vals := url.Values{}
	vals.Set("src", src)
	vals.Set("dst", dst)
	vals.Set("amount", amount.String())
	vals.Set("slippage", strconv.FormatFloat(req.SlippagePct, 'f', -1, 64))
	vals.Set("disableEstimate", "true")
	if req.Recipient != "" {
		vals.Set("receiver", req.Recipient)
	}

	endpoint := fmt.Sprintf("%s/%d/swap?%s", c.baseURL, req.Chain.EVMChainID, vals.Encode())
	hReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return RouteQuote{}, clierr.Wrap(clierr.CodeInternal, "build routing request", err)
	}
	hReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	var resp swapResponse
	if _, err := c.http.DoJSON(ctx, hReq, &resp); err != nil {
		return RouteQuote{}, upstreamError(req.From.AssetID, err)
	}

	if resp.Tx.To == "" || resp.Tx.Data == "" || resp.DstAmount == "" {
		return RouteQuote{}, &QuoteError{AssetID: req.From.AssetID, Reason: ReasonMalformed}
	}
	if !common.IsHexAddress(resp.Tx.To) {
		return RouteQuote{}, &QuoteError{AssetID: req.From.AssetID, Reason: ReasonMalformed}
	}
	expected, ok := new(big.Int).SetString(resp.DstAmount, 10)
	if !ok || expected.Sign() < 0 {
		return RouteQuote{}, &QuoteError{AssetID: req.From.AssetID, Reason: ReasonMalformed}
	}

	minOut := strings.TrimSpace(resp.MinReturnAmount)
	if minOut == "" {
		minOut = deriveMinOut(expected, req.SlippagePct)
	} else if _, ok := new(big.Int).SetString(minOut, 10); !ok {
		return RouteQuote{}, &QuoteError{AssetID: req.From.AssetID, Reason: ReasonMalformed}
	}

	value := strings.TrimSpace(resp.Tx.Value)
	if value == "" {
		value = "0"
	}
	if req.From.Native && value == "0" {
		value = amount.String()
	}

	return RouteQuote{
		Router:         resp.Tx.To,
		Calldata:       resp.Tx.Data,
		NativeValue:    value,
		ExpectedOut:    expected.String(),
		MinOut:         minOut,
		PriceImpactPct: resp.PriceImpact,
	}, nil
}

func upstreamError(assetID string, err error) error {
	qe := &QuoteError{AssetID: assetID, Reason: ReasonUpstream, Cause: err}
	var status *httpx.StatusError
	if errors.As(err, &status) {
		qe.Status = status.Status
		qe.Body = status.Body
	}
	if cliErr, ok := clierr.As(err); ok && cliErr.Code == clierr.CodeAuth {
		qe.Reason = ReasonAuth
	}
	return qe
}

// deriveMinOut applies the slippage tolerance to the expected output when the
// service does not return a minimum itself.
func deriveMinOut(expected *big.Int, slippagePct float64) string {
	bps := int64(slippagePct * 100)
	if bps < 0 {
		bps = 0
	}
	if bps > 10000 {
		bps = 10000
	}
	out := new(big.Int).Mul(expected, big.NewInt(10000-bps))
	out.Quo(out, big.NewInt(10000))
	return out.String()
}
