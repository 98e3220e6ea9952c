package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/safeops/sweep/internal/bundle"
	clierr "github.com/safeops/sweep/internal/errors"
	"github.com/safeops/sweep/internal/id"
	"github.com/safeops/sweep/internal/model"
)

func (s *runtimeState) newQuoteCommand() *cobra.Command {
	var (
		chainFlag     string
		targetFlag    string
		fromFlag      []string
		slippageFlag  float64
		recipientFlag string
		saveFlag      bool
	)
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote a consolidation of held assets into one target asset",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := trimRootPath(cmd.CommandPath())

			chain, err := id.ParseChain(chainFlag)
			if err != nil {
				return err
			}
			target, err := id.ParseAsset(targetFlag, chain)
			if err != nil {
				return err
			}
			selections, warnings, err := parseSelections(fromFlag, chain, target)
			if err != nil {
				return err
			}

			inputs := make([]id.Asset, 0, len(selections))
			for _, sel := range selections {
				inputs = append(inputs, sel.Asset)
			}
			priceStatus, priceWarnings := s.loadPrices(ctx, chain, inputs)
			warnings = append(warnings, priceWarnings...)
			s.lastPrices = priceStatus

			var prices bundle.PriceSource
			if s.settings.PricesEnabled {
				prices = s.priceCache
			}
			assembler := bundle.NewAssembler(s.router, prices)
			result, err := assembler.Assemble(ctx, bundle.Request{
				Chain:       chain,
				Target:      target,
				Selections:  selections,
				SlippagePct: slippageFlag,
				Recipient:   recipientFlag,
			})
			if err != nil {
				s.lastWarnings = warnings
				return mapAssemblyError(err)
			}

			if len(result.Skipped) > 0 {
				warnings = append(warnings, fmt.Sprintf("%d of %d assets could not be quoted and were skipped", len(result.Skipped), len(selections)))
				for _, skipped := range result.Skipped {
					warnings = append(warnings, skipWarning(skipped))
				}
			}

			if saveFlag {
				store, err := s.openStore()
				if err != nil {
					return err
				}
				if err := store.Save(result); err != nil {
					return clierr.Wrap(clierr.CodeInternal, "save bundle", err)
				}
			}
			return s.emitSuccess(path, result, warnings, priceStatus, len(result.Skipped) > 0)
		},
	}
	cmd.Flags().StringVar(&chainFlag, "chain", "", "Chain slug, numeric ID, or CAIP-2 (required)")
	cmd.Flags().StringVar(&targetFlag, "target", "", "Target asset: symbol, address, or CAIP-19 (required)")
	cmd.Flags().StringSliceVar(&fromFlag, "from", nil, "Assets to consolidate as SYMBOL=AMOUNT, repeatable")
	cmd.Flags().Float64Var(&slippageFlag, "slippage", 1.0, "Max slippage percent per swap")
	cmd.Flags().StringVar(&recipientFlag, "recipient", "", "Receive swapped funds at this address instead of the sender")
	cmd.Flags().BoolVar(&saveFlag, "save", false, "Persist the bundle for later inspection")
	_ = cmd.MarkFlagRequired("chain")
	_ = cmd.MarkFlagRequired("target")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

func (s *runtimeState) newBundleCommand() *cobra.Command {
	root := &cobra.Command{Use: "bundle", Short: "Inspect saved bundles"}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List saved bundles, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := s.openStore()
			if err != nil {
				return err
			}
			bundles, err := store.List(limit)
			if err != nil {
				return clierr.Wrap(clierr.CodeInternal, "list bundles", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), bundles, nil, model.PriceStatus{Status: "bypass"}, false)
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "Maximum bundles to return")

	show := &cobra.Command{
		Use:   "show <bundle-id>",
		Short: "Show one saved bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := s.openStore()
			if err != nil {
				return err
			}
			b, err := store.Get(args[0])
			if err != nil {
				if errors.Is(err, bundle.ErrNotFound) {
					return clierr.Wrap(clierr.CodeUsage, "load bundle", err)
				}
				return clierr.Wrap(clierr.CodeInternal, "load bundle", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), b, nil, model.PriceStatus{Status: "bypass"}, false)
		},
	}

	root.AddCommand(list)
	root.AddCommand(show)
	return root
}

func (s *runtimeState) newAssetsCommand() *cobra.Command {
	root := &cobra.Command{Use: "assets", Short: "Asset identity commands"}

	var chainFlag string
	resolve := &cobra.Command{
		Use:   "resolve <asset>...",
		Short: "Resolve symbols, addresses, or CAIP-19 IDs to canonical asset identities",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chain, err := id.ParseChain(chainFlag)
			if err != nil {
				return err
			}
			resolutions := make([]model.AssetResolution, 0, len(args))
			for _, input := range args {
				asset, err := id.ParseAsset(input, chain)
				if err != nil {
					return err
				}
				resolutions = append(resolutions, model.AssetResolution{
					Input:    input,
					ChainID:  asset.ChainID,
					Symbol:   asset.Symbol,
					AssetID:  asset.AssetID,
					Address:  asset.Address,
					Decimals: asset.Decimals,
					Native:   asset.Native,
				})
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), resolutions, nil, model.PriceStatus{Status: "bypass"}, false)
		},
	}
	resolve.Flags().StringVar(&chainFlag, "chain", "", "Chain slug, numeric ID, or CAIP-2 (required)")
	_ = resolve.MarkFlagRequired("chain")

	root.AddCommand(resolve)
	return root
}

// parseSelections turns --from entries of the form SYMBOL=AMOUNT into
// resolved selections. A selection matching the target is dropped with a
// warning rather than routed to the swap service as a self-swap.
func parseSelections(entries []string, chain id.Chain, target id.Asset) ([]bundle.Selection, []string, error) {
	selections := make([]bundle.Selection, 0, len(entries))
	var warnings []string
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		asset, amount, ok := strings.Cut(entry, "=")
		if !ok || strings.TrimSpace(amount) == "" {
			return nil, nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("invalid --from entry %q, expected SYMBOL=AMOUNT", entry))
		}
		resolved, err := id.ParseAsset(strings.TrimSpace(asset), chain)
		if err != nil {
			return nil, nil, err
		}
		if resolved.AssetID == target.AssetID {
			warnings = append(warnings, fmt.Sprintf("%s is already the target asset, skipped", resolved.Symbol))
			continue
		}
		selections = append(selections, bundle.Selection{Asset: resolved, Amount: strings.TrimSpace(amount)})
	}
	return selections, warnings, nil
}

// loadPrices warms the price cache for the given assets. Prices are advisory
// display data: any failure here degrades the status and never aborts the
// command.
func (s *runtimeState) loadPrices(ctx context.Context, chain id.Chain, assets []id.Asset) (model.PriceStatus, []string) {
	if !s.settings.PricesEnabled {
		return model.PriceStatus{Status: "bypass"}, nil
	}
	if len(assets) == 0 {
		return model.PriceStatus{Status: "bypass"}, nil
	}

	assetIDs := make([]string, 0, len(assets))
	missing := make([]id.Asset, 0, len(assets))
	for _, asset := range assets {
		assetIDs = append(assetIDs, asset.AssetID)
		if _, ok := s.priceCache.Get(asset.AssetID); !ok {
			missing = append(missing, asset)
		}
	}

	status := "cached"
	var warnings []string
	if len(missing) > 0 {
		status = "fetched"
		fetched, err := s.prices.CurrentPrices(ctx, chain, missing)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("price lookup failed, input totals may be incomplete: %v", err))
		} else {
			for assetID, price := range fetched {
				s.priceCache.Put(assetID, price)
			}
		}
	}

	hits := 0
	for _, assetID := range assetIDs {
		if _, ok := s.priceCache.Get(assetID); ok {
			hits++
		}
	}
	switch {
	case hits == 0:
		status = "unavailable"
	case hits < len(assetIDs):
		status = "partial"
	}

	result := model.PriceStatus{Status: status}
	if age, ok := s.priceCache.Age(assetIDs); ok {
		result.AgeMS = age.Milliseconds()
	}
	return result, warnings
}

func mapAssemblyError(err error) error {
	var bErr *bundle.Error
	if !errors.As(err, &bErr) {
		return err
	}
	switch bErr.Reason {
	case bundle.ReasonEmpty:
		return clierr.New(clierr.CodeUsage, "no assets selected to consolidate")
	case bundle.ReasonNoValidSwaps:
		details := make([]string, 0, len(bErr.Failures))
		for _, failure := range bErr.Failures {
			details = append(details, skipWarning(failure))
		}
		message := "no swap could be quoted"
		if len(details) > 0 {
			message = message + ": " + strings.Join(details, "; ")
		}
		return clierr.New(clierr.CodeNoQuotes, message)
	default:
		return clierr.Wrap(clierr.CodeInternal, "assemble bundle", err)
	}
}

func skipWarning(skipped bundle.SkippedAsset) string {
	label := skipped.Symbol
	if label == "" {
		label = skipped.AssetID
	}
	if skipped.Detail == "" {
		return fmt.Sprintf("%s skipped (%s)", label, skipped.Reason)
	}
	return fmt.Sprintf("%s skipped (%s): %s", label, skipped.Reason, skipped.Detail)
}
