package app

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/safeops/sweep/internal/bundle"
	clierr "github.com/safeops/sweep/internal/errors"
	"github.com/safeops/sweep/internal/id"
	"github.com/safeops/sweep/internal/version"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv("SWEEP_ROUTER_API_KEY", "")
}

func TestTrimRootPath(t *testing.T) {
	if got := trimRootPath("sweep bundle list"); got != "bundle list" {
		t.Fatalf("unexpected trim result: %s", got)
	}
	if got := trimRootPath("sweep"); got != "sweep" {
		t.Fatalf("expected bare root to pass through, got %s", got)
	}
}

func TestRunnerVersion(t *testing.T) {
	isolateEnv(t)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	r := NewRunnerWithWriters(&stdout, &stderr)
	code := r.Run([]string{"version"})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, stderr.String())
	}
	if strings.TrimSpace(stdout.String()) != version.CLIVersion {
		t.Fatalf("unexpected version output: %q", stdout.String())
	}
}

func TestRunnerAssetsResolve(t *testing.T) {
	isolateEnv(t)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	r := NewRunnerWithWriters(&stdout, &stderr)
	code := r.Run([]string{"assets", "resolve", "USDC", "eth", "--chain", "ethereum"})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, stderr.String())
	}
	var env map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &env); err != nil {
		t.Fatalf("failed to parse output json: %v output=%s", err, stdout.String())
	}
	if env["success"] != true {
		t.Fatalf("expected success=true, got %v", env["success"])
	}
	data, ok := env["data"].([]any)
	if !ok || len(data) != 2 {
		t.Fatalf("expected two resolutions, got %v", env["data"])
	}
	first := data[0].(map[string]any)
	if first["symbol"] != "USDC" || first["asset_id"] != "eip155:1/erc20:0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48" {
		t.Fatalf("unexpected first resolution: %v", first)
	}
	second := data[1].(map[string]any)
	if second["native"] != true {
		t.Fatalf("expected eth to resolve native, got %v", second)
	}
}

func TestRunnerUnknownCommandIsUsageError(t *testing.T) {
	isolateEnv(t)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	r := NewRunnerWithWriters(&stdout, &stderr)
	code := r.Run([]string{"consolidate"})
	if code != int(clierr.CodeUsage) {
		t.Fatalf("expected usage exit, got %d stderr=%s", code, stderr.String())
	}
	var env map[string]any
	if err := json.Unmarshal(stderr.Bytes(), &env); err != nil {
		t.Fatalf("failed to parse error envelope: %v output=%s", err, stderr.String())
	}
	if env["success"] != false {
		t.Fatalf("expected success=false, got %v", env["success"])
	}
	errBody := env["error"].(map[string]any)
	if errBody["type"] != "usage_error" {
		t.Fatalf("unexpected error type: %v", errBody["type"])
	}
}

func TestRunnerQuoteRequiresFlags(t *testing.T) {
	isolateEnv(t)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	r := NewRunnerWithWriters(&stdout, &stderr)
	code := r.Run([]string{"quote", "--chain", "ethereum"})
	if code != int(clierr.CodeUsage) {
		t.Fatalf("expected usage exit for missing flags, got %d stderr=%s", code, stderr.String())
	}
}

func TestParseSelections(t *testing.T) {
	chain, err := id.ParseChain("ethereum")
	if err != nil {
		t.Fatalf("parse chain: %v", err)
	}
	target, err := id.ParseAsset("USDC", chain)
	if err != nil {
		t.Fatalf("parse target: %v", err)
	}

	selections, warnings, err := parseSelections([]string{"DAI=1.5", "ETH=0.25"}, chain, target)
	if err != nil {
		t.Fatalf("parseSelections failed: %v", err)
	}
	if len(selections) != 2 || len(warnings) != 0 {
		t.Fatalf("unexpected selections=%d warnings=%d", len(selections), len(warnings))
	}
	if selections[0].Asset.Symbol != "DAI" || selections[0].Amount != "1.5" {
		t.Fatalf("unexpected first selection: %+v", selections[0])
	}
	if !selections[1].Asset.Native {
		t.Fatalf("expected ETH selection to be native: %+v", selections[1])
	}

	selections, warnings, err = parseSelections([]string{"USDC=10", "DAI=1"}, chain, target)
	if err != nil {
		t.Fatalf("parseSelections with target entry failed: %v", err)
	}
	if len(selections) != 1 || selections[0].Asset.Symbol != "DAI" {
		t.Fatalf("expected target selection to be dropped, got %+v", selections)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "already the target") {
		t.Fatalf("expected target-skip warning, got %v", warnings)
	}

	if _, _, err := parseSelections([]string{"DAI"}, chain, target); err == nil {
		t.Fatal("expected error for malformed entry")
	}
}

func TestMapAssemblyError(t *testing.T) {
	err := mapAssemblyError(&bundle.Error{Reason: bundle.ReasonEmpty})
	cErr, ok := clierr.As(err)
	if !ok || cErr.Code != clierr.CodeUsage {
		t.Fatalf("expected usage error for empty bundle, got %v", err)
	}

	err = mapAssemblyError(&bundle.Error{
		Reason: bundle.ReasonNoValidSwaps,
		Failures: []bundle.SkippedAsset{
			{Symbol: "DAI", Reason: "upstream", Detail: "bad gateway"},
		},
	})
	cErr, ok = clierr.As(err)
	if !ok || cErr.Code != clierr.CodeNoQuotes {
		t.Fatalf("expected no-quotes error, got %v", err)
	}
	if !strings.Contains(cErr.Message, "DAI") || !strings.Contains(cErr.Message, "bad gateway") {
		t.Fatalf("expected failure details in message, got %q", cErr.Message)
	}
}
