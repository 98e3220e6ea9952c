package bundle

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	tmp := t.TempDir()
	store, err := OpenStore(filepath.Join(tmp, "bundles.db"), filepath.Join(tmp, "bundles.lock"))
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testBundle(id string, createdAt time.Time) Bundle {
	return Bundle{
		BundleID:          id,
		ChainID:           "eip155:1",
		TargetAssetID:     "eip155:1/erc20:0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
		SlippagePct:       0.5,
		Operations:        []Operation{{Kind: OpSwap, To: testRouter, Value: "0", Data: "0x01"}},
		TotalEstimatedOut: "99.5",
		TotalMinOut:       "99",
		CreatedAt:         createdAt.UTC().Format(time.RFC3339),
	}
}

func TestStoreSaveGetRoundtrip(t *testing.T) {
	store := openTestStore(t)
	want := testBundle("bndl_test1", time.Now())
	if err := store.Save(want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Get("bndl_test1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.BundleID != want.BundleID || got.TotalEstimatedOut != want.TotalEstimatedOut {
		t.Fatalf("roundtrip mismatch: %+v", got)
	}
	if len(got.Operations) != 1 || got.Operations[0].Data != "0x01" {
		t.Fatalf("operations lost in roundtrip: %+v", got.Operations)
	}
}

func TestStoreGetMissing(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.Get("bndl_absent"); err == nil {
		t.Fatal("expected not-found error")
	}
}

func TestStoreListNewestFirst(t *testing.T) {
	store := openTestStore(t)
	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"bndl_a", "bndl_b", "bndl_c"} {
		b := testBundle(id, base.Add(time.Duration(i)*time.Minute))
		if err := store.Save(b); err != nil {
			t.Fatalf("Save %s failed: %v", id, err)
		}
	}

	bundles, err := store.List(2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(bundles) != 2 {
		t.Fatalf("expected limit applied, got %d", len(bundles))
	}
	if bundles[0].BundleID != "bndl_c" || bundles[1].BundleID != "bndl_b" {
		t.Fatalf("expected newest first, got %s, %s", bundles[0].BundleID, bundles[1].BundleID)
	}
}

func TestStoreSaveRequiresID(t *testing.T) {
	store := openTestStore(t)
	if err := store.Save(Bundle{}); err == nil {
		t.Fatal("expected missing id error")
	}
}
