package bundle

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	clierr "github.com/safeops/sweep/internal/errors"
	"github.com/safeops/sweep/internal/id"
	"github.com/safeops/sweep/internal/routing"
)

// Quoter is the routing-service dependency. Fakes replace it in tests.
type Quoter interface {
	Quote(ctx context.Context, req routing.QuoteRequest) (routing.RouteQuote, error)
}

// PriceSource supplies last-known display prices in USD. A missing price is
// never an error; the asset simply contributes zero to the input total.
type PriceSource interface {
	Get(assetID string) (float64, bool)
}

type Request struct {
	Chain       id.Chain
	Target      id.Asset
	Selections  []Selection
	SlippagePct float64
	Recipient   string
}

// Assembler fans quote requests out across the selected assets and folds the
// answers into one atomic operation list.
type Assembler struct {
	quoter Quoter
	prices PriceSource
	now    func() time.Time
}

func NewAssembler(quoter Quoter, prices PriceSource) *Assembler {
	return &Assembler{quoter: quoter, prices: prices, now: time.Now}
}

type quoteResult struct {
	quote routing.RouteQuote
	err   error
}

// Assemble builds the swap bundle for one consolidation attempt. Individual
// quote failures drop their selection and are reported on the Bundle; only an
// empty input or a fully failed fan-out is terminal.
func (a *Assembler) Assemble(ctx context.Context, req Request) (Bundle, error) {
	if req.SlippagePct <= 0 || req.SlippagePct > 100 {
		return Bundle{}, clierr.New(clierr.CodeUsage, "slippage must be in (0, 100]")
	}

	type candidate struct {
		sel       Selection
		baseUnits string
	}
	candidates := make([]candidate, 0, len(req.Selections))
	for _, sel := range req.Selections {
		baseUnits, err := id.ToBaseUnits(sel.Amount, sel.Asset.Decimals)
		if err != nil {
			// Zero, negative, or unparseable amounts are discarded up front.
			continue
		}
		candidates = append(candidates, candidate{sel: sel, baseUnits: baseUnits})
	}
	if len(candidates) == 0 {
		return Bundle{}, &Error{Reason: ReasonEmpty}
	}

	// One concurrent quote per selection. Quotes are point-in-time price
	// snapshots; serializing them would let early answers go stale while
	// later ones are still in flight. Every request runs to completion:
	// a failed route must not discard the swaps that succeeded.
	results := make([]quoteResult, len(candidates))
	var wg sync.WaitGroup
	for i, cand := range candidates {
		wg.Add(1)
		go func(index int, cand candidate) {
			defer wg.Done()
			quote, err := a.quoter.Quote(ctx, routing.QuoteRequest{
				Chain:           req.Chain,
				From:            cand.sel.Asset,
				To:              req.Target,
				AmountBaseUnits: cand.baseUnits,
				SlippagePct:     req.SlippagePct,
				Recipient:       req.Recipient,
			})
			results[index] = quoteResult{quote: quote, err: err}
		}(i, cand)
	}
	wg.Wait()

	out := Bundle{
		BundleID:      NewBundleID(),
		ChainID:       req.Chain.CAIP2,
		TargetAssetID: req.Target.AssetID,
		TargetSymbol:  req.Target.Symbol,
		SlippagePct:   req.SlippagePct,
		CreatedAt:     a.now().UTC().Format(time.RFC3339),
	}

	totalOut := new(big.Int)
	totalMin := new(big.Int)
	for i, cand := range candidates {
		result := results[i]
		if result.err != nil {
			out.Skipped = append(out.Skipped, skippedFromError(cand.sel.Asset, result.err))
			continue
		}

		ops, err := BuildOperations(cand.sel.Asset, cand.baseUnits, result.quote)
		if err != nil {
			// An unbuildable quote drops only its own selection.
			out.Skipped = append(out.Skipped, SkippedAsset{
				AssetID: cand.sel.Asset.AssetID,
				Symbol:  cand.sel.Asset.Symbol,
				Reason:  routing.ReasonMalformed,
				Detail:  err.Error(),
			})
			continue
		}
		out.Operations = append(out.Operations, ops...)

		if price, ok := a.price(cand.sel.Asset.AssetID); ok {
			out.TotalInputUSD += id.ParseDecimalFloat(cand.sel.Amount) * price
		}
		if n, ok := new(big.Int).SetString(result.quote.ExpectedOut, 10); ok {
			totalOut.Add(totalOut, n)
		}
		if n, ok := new(big.Int).SetString(result.quote.MinOut, 10); ok {
			totalMin.Add(totalMin, n)
		}
	}

	if len(out.Operations) == 0 {
		return Bundle{}, &Error{Reason: ReasonNoValidSwaps, Failures: out.Skipped}
	}

	out.TotalEstimatedOut = id.FormatBig(totalOut, req.Target.Decimals)
	out.TotalMinOut = id.FormatBig(totalMin, req.Target.Decimals)
	return out, nil
}

func (a *Assembler) price(assetID string) (float64, bool) {
	if a.prices == nil {
		return 0, false
	}
	return a.prices.Get(assetID)
}

func skippedFromError(asset id.Asset, err error) SkippedAsset {
	skipped := SkippedAsset{AssetID: asset.AssetID, Symbol: asset.Symbol}
	var qe *routing.QuoteError
	if errors.As(err, &qe) {
		skipped.Reason = qe.Reason
		skipped.Detail = qe.Body
		if skipped.Detail == "" && qe.Cause != nil {
			skipped.Detail = qe.Cause.Error()
		}
		return skipped
	}
	skipped.Reason = routing.ReasonUpstream
	skipped.Detail = err.Error()
	return skipped
}
