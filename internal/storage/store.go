package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/raine/dermadict/internal/analysis"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// CacheEntry is a cached analysis result.
type CacheEntry struct {
	ImageHash string
	Result    analysis.Result
	CreatedAt time.Time
}

// AnalysisCache defines the persistence used by the cached analyzer.
type AnalysisCache interface {
	GetAnalysis(imageHash string, maxAge time.Duration) (*CacheEntry, error)
	SetAnalysis(imageHash string, result analysis.Result) error
	PruneAnalyses(olderThan time.Duration) (int64, error)
	Close() error
}

// SQLiteStore implements AnalysisCache using SQLite. Results are stored
// encrypted since they describe a user's skin condition.
type SQLiteStore struct {
	db            *sql.DB
	encryptionKey []byte
	mu            sync.RWMutex
	now           func() time.Time
}

// NewSQLiteStore opens (or creates) the cache database at dbPath.
func NewSQLiteStore(dbPath string, encryptionKey []byte) (*SQLiteStore, error) {
	// WAL mode and busy timeout for concurrent readers
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across queries.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{
		db:            db,
		encryptionKey: encryptionKey,
		now:           time.Now,
	}

	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}

	// Only works once the file exists
	if err := os.Chmod(dbPath, 0600); err != nil && !os.IsNotExist(err) {
		log.Debug().Err(err).Str("path", dbPath).Msg("could not restrict cache file permissions")
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	query := `
	CREATE TABLE IF NOT EXISTS analysis_cache (
		image_hash TEXT PRIMARY KEY,
		encrypted_result TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create analysis_cache table: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetAnalysis retrieves a cached result by image hash. Entries older than
// maxAge are treated as missing; maxAge <= 0 disables the age check.
// Returns nil, nil if no usable entry exists.
func (s *SQLiteStore) GetAnalysis(imageHash string, maxAge time.Duration) (*CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var encrypted string
	var createdAt int64
	err := s.db.QueryRow(
		"SELECT encrypted_result, created_at FROM analysis_cache WHERE image_hash = ?",
		imageHash,
	).Scan(&encrypted, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis cache: %w", err)
	}

	entry := &CacheEntry{
		ImageHash: imageHash,
		CreatedAt: time.Unix(createdAt, 0),
	}
	if maxAge > 0 && s.now().Sub(entry.CreatedAt) > maxAge {
		return nil, nil
	}

	plaintext, err := Decrypt(encrypted, s.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt cached analysis: %w", err)
	}
	if err := json.Unmarshal(plaintext, &entry.Result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached analysis: %w", err)
	}

	return entry, nil
}

// SetAnalysis stores a result, replacing any previous entry for the hash.
func (s *SQLiteStore) SetAnalysis(imageHash string, result analysis.Result) error {
	plaintext, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}
	encrypted, err := Encrypt(plaintext, s.encryptionKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt analysis: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO analysis_cache (image_hash, encrypted_result, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(image_hash) DO UPDATE SET
			encrypted_result = excluded.encrypted_result,
			created_at = excluded.created_at
	`, imageHash, encrypted, s.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to cache analysis: %w", err)
	}
	return nil
}

// PruneAnalyses deletes entries older than the given age and returns how
// many were removed.
func (s *SQLiteStore) PruneAnalyses(olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-olderThan).Unix()
	res, err := s.db.Exec("DELETE FROM analysis_cache WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune analysis cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned rows: %w", err)
	}
	return n, nil
}
