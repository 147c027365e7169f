package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/fuzzysearch/internal/fingerprint"
)

// Entry is one cached fingerprint.
type Entry struct {
	ID          int64                   `json:"id"`
	SHA256      string                  `json:"sha256"`
	Path        string                  `json:"path"`
	Size        int64                   `json:"size"`
	Fingerprint fingerprint.Fingerprint `json:"hash"`
	CreatedAt   time.Time               `json:"created_at"`
}

// StoredFingerprint makes Entry a ranking candidate. Cached entries always
// carry a fingerprint.
func (e Entry) StoredFingerprint() (fingerprint.Fingerprint, bool) {
	return e.Fingerprint, true
}

// ContentKey returns the cache key for raw image bytes.
func ContentKey(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Get returns the cached entry for the image content key. The boolean is
// false when nothing is cached.
func (s *Store) Get(ctx context.Context, key string) (Entry, bool, error) {
	e, err := scanEntry(s.db.QueryRowContext(ctx, `
		SELECT id, sha256, path, size, fingerprint, created_at
		FROM fingerprints WHERE sha256 = ?
	`, key))
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("get fingerprint: %w", err)
	}
	return e, true, nil
}

// Put stores a fingerprint for data and returns the stored entry. Storing the
// same content again updates the path and keeps the original ID.
func (s *Store) Put(ctx context.Context, path string, data []byte, fp fingerprint.Fingerprint) (Entry, error) {
	key := ContentKey(data)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fingerprints (sha256, path, size, fingerprint)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(sha256) DO UPDATE SET path = excluded.path
	`, key, path, len(data), int64(fp))
	if err != nil {
		return Entry{}, fmt.Errorf("store fingerprint: %w", err)
	}

	e, ok, err := s.Get(ctx, key)
	if err != nil {
		return Entry{}, err
	}
	if !ok {
		return Entry{}, fmt.Errorf("stored fingerprint %s not found", key)
	}
	return e, nil
}

// GetOrCompute returns the cached fingerprint for data, computing and storing
// it with compute on a miss.
func (s *Store) GetOrCompute(ctx context.Context, path string, data []byte, compute func([]byte) (fingerprint.Fingerprint, error)) (Entry, bool, error) {
	if e, ok, err := s.Get(ctx, ContentKey(data)); err != nil || ok {
		return e, ok, err
	}

	fp, err := compute(data)
	if err != nil {
		return Entry{}, false, err
	}
	e, err := s.Put(ctx, path, data, fp)
	return e, false, err
}

// All returns every cached entry ordered by ID.
func (s *Store) All(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sha256, path, size, fingerprint, created_at
		FROM fingerprints ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query fingerprints: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fingerprint: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fingerprints: %w", err)
	}
	return entries, nil
}

// Count returns the number of cached fingerprints.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM fingerprints").Scan(&n); err != nil {
		return 0, fmt.Errorf("count fingerprints: %w", err)
	}
	return n, nil
}

// Delete removes the entry for key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM fingerprints WHERE sha256 = ?", key); err != nil {
		return fmt.Errorf("delete fingerprint: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var e Entry
	var fp int64
	var createdAt string
	if err := row.Scan(&e.ID, &e.SHA256, &e.Path, &e.Size, &fp, &createdAt); err != nil {
		return Entry{}, err
	}
	e.Fingerprint = fingerprint.Fingerprint(fp)
	e.CreatedAt = parseTimestamp(createdAt)
	return e, nil
}

// parseTimestamp accepts the formats sqlite and the driver produce for DATETIME columns.
func parseTimestamp(s string) time.Time {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
