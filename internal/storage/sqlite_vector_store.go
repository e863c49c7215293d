package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3" // Import sqlite3 driver
)

func init() {
	sqlite_vec.Auto()
}

// SQLiteVectorStore is a Backend on sqlite-vec. Each collection gets its
// own vec0 table, named by the collection's row id, created on first add
// once the embedding dimension is known.
type SQLiteVectorStore struct {
	db *sql.DB
	// serialises table creation and dimension checks
	mu sync.Mutex
}

// NewSQLiteVectorStore opens dsn and creates the bookkeeping tables.
func NewSQLiteVectorStore(dsn string) (*SQLiteVectorStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// vec0 tables and :memory: databases are per connection
	db.SetMaxOpenConns(1)

	// Test the connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &SQLiteVectorStore{db: db}
	if err := store.initDB(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

func (s *SQLiteVectorStore) initDB() error {
	schema := `
	CREATE TABLE IF NOT EXISTS collections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		dimension INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS sections (
		collection_id INTEGER NOT NULL REFERENCES collections(id),
		doc_id TEXT NOT NULL,
		content TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		PRIMARY KEY (collection_id, doc_id)
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// Name implements Backend.
func (s *SQLiteVectorStore) Name() string { return BackendSQLiteVec }

// Close closes the database connection
func (s *SQLiteVectorStore) Close() error {
	return s.db.Close()
}

// serializeFloat32Vector converts a float32 slice to the byte format expected by sqlite-vec
func serializeFloat32Vector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:(i+1)*4], math.Float32bits(v))
	}
	return buf
}

func vecTable(collectionID int64) string {
	return fmt.Sprintf("vec_collection_%d", collectionID)
}

// CreateOrGet implements Backend.
func (s *SQLiteVectorStore) CreateOrGet(ctx context.Context, collection string) error {
	if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO collections (name) VALUES (?)`, collection); err != nil {
		return fmt.Errorf("failed to create collection %q: %w", collection, err)
	}
	return nil
}

func (s *SQLiteVectorStore) lookup(ctx context.Context, collection string) (id int64, dimension int, err error) {
	err = s.db.QueryRowContext(ctx, `SELECT id, dimension FROM collections WHERE name = ?`, collection).Scan(&id, &dimension)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, &ErrCollectionNotFound{Collection: collection}
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to look up collection %q: %w", collection, err)
	}
	return id, dimension, nil
}

// Has implements Backend.
func (s *SQLiteVectorStore) Has(ctx context.Context, collection, id string) (bool, error) {
	cid, _, err := s.lookup(ctx, collection)
	if err != nil {
		return false, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sections WHERE collection_id = ? AND doc_id = ?`, cid, id).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check %q: %w", id, err)
	}
	return n > 0, nil
}

// ensureVecTableExists creates the collection's vec0 table on first use and
// rejects embeddings whose dimension differs from the stored one.
func (s *SQLiteVectorStore) ensureVecTableExists(ctx context.Context, tx *sql.Tx, cid int64, dimension, embeddingLen int) error {
	if dimension != 0 {
		if dimension != embeddingLen {
			return fmt.Errorf("cannot change embedding length from %d to %d with existing documents", dimension, embeddingLen)
		}
		return nil
	}

	vecQuery := fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(
			doc_id TEXT PRIMARY KEY,
			embedding FLOAT[%d] distance_metric=cosine
		)
	`, vecTable(cid), embeddingLen)
	if _, err := tx.ExecContext(ctx, vecQuery); err != nil {
		return fmt.Errorf("failed to create %s: %w", vecTable(cid), err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE collections SET dimension = ? WHERE id = ?`, embeddingLen, cid); err != nil {
		return fmt.Errorf("failed to record dimension: %w", err)
	}
	return nil
}

// Add implements Backend. All rows are written in one transaction.
func (s *SQLiteVectorStore) Add(ctx context.Context, collection string, ids []string, embeddings [][]float32, metadatas []map[string]string, documents []string) error {
	if err := checkAddArgs(ids, embeddings, metadatas, documents); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cid, dimension, err := s.lookup(ctx, collection)
	if err != nil {
		return err
	}

	// Start transaction
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, id := range ids {
		if err := s.ensureVecTableExists(ctx, tx, cid, dimension, len(embeddings[i])); err != nil {
			return err
		}
		dimension = len(embeddings[i])

		meta := []byte("{}")
		if metadatas != nil && metadatas[i] != nil {
			if meta, err = json.Marshal(metadatas[i]); err != nil {
				return fmt.Errorf("failed to encode metadata for %q: %w", id, err)
			}
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO sections (collection_id, doc_id, content, metadata) VALUES (?, ?, ?, ?)`,
			cid, id, documents[i], string(meta)); err != nil {
			return fmt.Errorf("failed to insert section %q: %w", id, err)
		}

		vecQuery := fmt.Sprintf(`INSERT INTO %s (doc_id, embedding) VALUES (?, ?)`, vecTable(cid))
		if _, err := tx.ExecContext(ctx, vecQuery, id, serializeFloat32Vector(embeddings[i])); err != nil {
			return fmt.Errorf("failed to insert vector %q: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Query implements Backend using sqlite-vec's KNN search.
func (s *SQLiteVectorStore) Query(ctx context.Context, collection string, embedding []float32, n int) (*QueryResult, error) {
	cid, dimension, err := s.lookup(ctx, collection)
	if err != nil {
		return nil, err
	}

	result := &QueryResult{}
	// no vec table until the first add
	if dimension == 0 || n <= 0 {
		return result, nil
	}

	// sqlite-vec requires the k parameter to be passed as part of the MATCH expression
	query := fmt.Sprintf(`
		SELECT
			s.doc_id,
			s.content,
			s.metadata,
			v.distance
		FROM %s v
		JOIN sections s ON s.collection_id = ? AND s.doc_id = v.doc_id
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, vecTable(cid))

	rows, err := s.db.QueryContext(ctx, query, cid, serializeFloat32Vector(embedding), n)
	if err != nil {
		return nil, fmt.Errorf("failed to perform vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id, content, rawMeta string
		var distance float64
		if err := rows.Scan(&id, &content, &rawMeta, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		var meta map[string]string
		if err := json.Unmarshal([]byte(rawMeta), &meta); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for %q: %w", id, err)
		}

		result.IDs = append(result.IDs, id)
		result.Documents = append(result.Documents, content)
		result.Metadatas = append(result.Metadatas, meta)
		result.Distances = append(result.Distances, distance)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}
	return result, nil
}

// Count implements Backend.
func (s *SQLiteVectorStore) Count(ctx context.Context, collection string) (int, error) {
	cid, _, err := s.lookup(ctx, collection)
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sections WHERE collection_id = ?`, cid).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %q: %w", collection, err)
	}
	return n, nil
}

// Reset implements Backend.
func (s *SQLiteVectorStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM collections WHERE dimension > 0`)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	var cids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return fmt.Errorf("failed to scan collection id: %w", err)
		}
		cids = append(cids, id)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating collections: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range cids {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+vecTable(id)); err != nil {
			return fmt.Errorf("failed to drop %s: %w", vecTable(id), err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sections; DELETE FROM collections;`); err != nil {
		return fmt.Errorf("failed to clear tables: %w", err)
	}
	return tx.Commit()
}
