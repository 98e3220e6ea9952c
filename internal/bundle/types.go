package bundle

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/safeops/sweep/internal/id"
)

const (
	OpApprove = "approve"
	OpSwap    = "swap"
)

const (
	ReasonEmpty        = "empty"
	ReasonNoValidSwaps = "no_valid_swaps"
)

// Selection pairs an asset with the caller-chosen amount in human units.
type Selection struct {
	Asset  id.Asset
	Amount string
}

// Operation is one on-chain call, normalized to the {to, value, data} shape
// the wallet layer submits. The wallet must execute a bundle's operations
// atomically; a partially applied bundle is meaningless.
type Operation struct {
	Kind    string `json:"kind"`
	AssetID string `json:"asset_id"`
	To      string `json:"to"`
	Value   string `json:"value"`
	Data    string `json:"data"`
}

// SkippedAsset records one selection whose quote failed and was dropped.
type SkippedAsset struct {
	AssetID string `json:"asset_id"`
	Symbol  string `json:"symbol,omitempty"`
	Reason  string `json:"reason"`
	Detail  string `json:"detail,omitempty"`
}

// Bundle is an assembled, ready-to-submit batch plus its summary figures.
// TotalInputUSD treats assets with no known price as contributing zero.
type Bundle struct {
	BundleID          string         `json:"bundle_id"`
	ChainID           string         `json:"chain_id"`
	TargetAssetID     string         `json:"target_asset_id"`
	TargetSymbol      string         `json:"target_symbol,omitempty"`
	SlippagePct       float64        `json:"slippage_pct"`
	Operations        []Operation    `json:"operations"`
	TotalInputUSD     float64        `json:"total_input_usd"`
	TotalEstimatedOut string         `json:"total_estimated_out"`
	TotalMinOut       string         `json:"total_min_out"`
	Skipped           []SkippedAsset `json:"skipped,omitempty"`
	CreatedAt         string         `json:"created_at"`
}

// SwapCount reports how many swap operations the bundle carries.
func (b Bundle) SwapCount() int {
	n := 0
	for _, op := range b.Operations {
		if op.Kind == OpSwap {
			n++
		}
	}
	return n
}

// Error is a terminal assembly failure. Per-asset quote failures never take
// this form; only an empty input or a fully failed fan-out does.
type Error struct {
	Reason   string
	Failures []SkippedAsset
}

func (e *Error) Error() string {
	if len(e.Failures) == 0 {
		return fmt.Sprintf("bundle assembly failed (%s)", e.Reason)
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %s", f.AssetID, f.Reason))
	}
	return fmt.Sprintf("bundle assembly failed (%s): %s", e.Reason, strings.Join(parts, "; "))
}

// PriceMap is a PriceSource backed by a fixed map.
type PriceMap map[string]float64

func (m PriceMap) Get(assetID string) (float64, bool) {
	price, ok := m[assetID]
	return price, ok
}

func NewBundleID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "bndl-unknown"
	}
	return fmt.Sprintf("bndl_%s", hex.EncodeToString(b))
}
