package bundle

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	clierr "github.com/safeops/sweep/internal/errors"
	"github.com/safeops/sweep/internal/id"
	"github.com/safeops/sweep/internal/registry"
	"github.com/safeops/sweep/internal/routing"
)

var erc20ABI = mustABI(registry.ERC20MinimalABI)

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// BuildOperations turns one quoted selection into its ordered on-chain calls.
// A native source needs no allowance and yields a single swap; an ERC-20
// source gets an exact-amount approval for the router first; the allowance
// always matches the swapped amount, never unlimited.
func BuildOperations(asset id.Asset, amountBaseUnits string, quote routing.RouteQuote) ([]Operation, error) {
	swap := Operation{
		Kind:    OpSwap,
		AssetID: asset.AssetID,
		To:      quote.Router,
		Value:   quote.NativeValue,
		Data:    quote.Calldata,
	}

	if asset.Native {
		if swap.Value == "" || swap.Value == "0" {
			swap.Value = amountBaseUnits
		}
		return []Operation{swap}, nil
	}

	amount, ok := new(big.Int).SetString(strings.TrimSpace(amountBaseUnits), 10)
	if !ok || amount.Sign() <= 0 {
		return nil, clierr.New(clierr.CodeInternal, "approval amount must be a positive integer in base units")
	}
	if !common.IsHexAddress(quote.Router) {
		return nil, clierr.New(clierr.CodeInternal, "quote router is not a valid address")
	}
	approveData, err := erc20ABI.Pack("approve", common.HexToAddress(quote.Router), amount)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "pack approval calldata", err)
	}

	approve := Operation{
		Kind:    OpApprove,
		AssetID: asset.AssetID,
		To:      common.HexToAddress(asset.Address).Hex(),
		Value:   "0",
		Data:    "0x" + common.Bytes2Hex(approveData),
	}
	swap.Value = "0"
	return []Operation{approve, swap}, nil
}
