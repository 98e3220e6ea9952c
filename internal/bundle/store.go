package bundle

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

// ErrNotFound reports a lookup for a bundle ID the store has never seen.
var ErrNotFound = errors.New("bundle not found")

// Store persists assembled bundles for audit and later inspection. Bundles
// are immutable once saved; the wallet layer owns their execution status.
type Store struct {
	db   *sql.DB
	lock *flock.Flock
}

func OpenStore(path, lockPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create bundle store directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create bundle lock directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open bundle sqlite: %w", err)
	}

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS bundles (
			bundle_id TEXT PRIMARY KEY,
			chain_id TEXT NOT NULL,
			target_asset_id TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			payload BLOB NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_bundles_created ON bundles(created_at DESC);",
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init bundle schema: %w", err)
		}
	}
	return &Store{db: db, lock: flock.New(lockPath)}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Save(b Bundle) error {
	if strings.TrimSpace(b.BundleID) == "" {
		return fmt.Errorf("save bundle: missing bundle id")
	}
	locked, err := s.lock.TryLockContext(context.Background(), 5*time.Second)
	if err != nil {
		return fmt.Errorf("lock bundle store: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock bundle store: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	payload, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal bundle: %w", err)
	}
	createdUnix, ok := parseRFC3339Unix(b.CreatedAt)
	if !ok {
		createdUnix = time.Now().UTC().Unix()
	}

	_, err = s.db.Exec(`
		INSERT INTO bundles (bundle_id, chain_id, target_asset_id, created_at, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(bundle_id) DO UPDATE SET
			chain_id=excluded.chain_id,
			target_asset_id=excluded.target_asset_id,
			created_at=excluded.created_at,
			payload=excluded.payload
	`, b.BundleID, b.ChainID, b.TargetAssetID, createdUnix, payload)
	if err != nil {
		return fmt.Errorf("save bundle: %w", err)
	}
	return nil
}

func (s *Store) Get(bundleID string) (Bundle, error) {
	var payload []byte
	err := s.db.QueryRow("SELECT payload FROM bundles WHERE bundle_id = ?", bundleID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Bundle{}, fmt.Errorf("%w: %s", ErrNotFound, bundleID)
		}
		return Bundle{}, fmt.Errorf("read bundle: %w", err)
	}
	var b Bundle
	if err := json.Unmarshal(payload, &b); err != nil {
		return Bundle{}, fmt.Errorf("decode bundle payload: %w", err)
	}
	return b, nil
}

func (s *Store) List(limit int) ([]Bundle, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query("SELECT payload FROM bundles ORDER BY created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list bundles: %w", err)
	}
	defer rows.Close()

	bundles := make([]Bundle, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan bundle row: %w", err)
		}
		var b Bundle
		if err := json.Unmarshal(payload, &b); err != nil {
			return nil, fmt.Errorf("decode bundle row: %w", err)
		}
		bundles = append(bundles, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bundle rows: %w", err)
	}
	return bundles, nil
}

func parseRFC3339Unix(v string) (int64, bool) {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return 0, false
	}
	return t.UTC().Unix(), true
}
