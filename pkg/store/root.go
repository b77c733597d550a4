package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/sefs-dev/sefs/pkg/model"
	"github.com/sefs-dev/sefs/pkg/sqliteutil"
)

// RootStore is the per-root SQLite database: file records, clusters,
// and the event log for one managed root folder (spec.md §4.3). It
// lives at <root>/.sefs.db and is swapped wholesale when the daemon
// switches roots (spec.md §4.11).
type RootStore struct {
	// mu serializes writes so multi-statement operations (e.g.
	// ClearClusters, BulkUpdateClusterID) appear atomic to readers
	// even though the driver itself already limits the pool to one
	// connection.
	mu sync.Mutex
	db *sql.DB
}

// OpenRootStore opens (creating if needed) the root database at path.
func OpenRootStore(path string) (*RootStore, error) {
	db, err := sqliteutil.OpenDB(path)
	if err != nil {
		return nil, fmt.Errorf("open root store: %w", err)
	}
	if _, err := db.Exec(rootSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init root store schema: %w", err)
	}
	return &RootStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *RootStore) Close() error {
	return s.db.Close()
}

const fileColumns = `id, current_path, original_path, filename, content_hash, embedding,
	model_tag, cluster_id, x, y, summary, file_type, size_bytes, word_count,
	page_count, created_at, modified_at`

func scanFile(row interface{ Scan(...any) error }) (*model.FileRecord, error) {
	var (
		f                     model.FileRecord
		embedding             []byte
		createdAt, modifiedAt int64
	)
	if err := row.Scan(&f.ID, &f.CurrentPath, &f.OriginalPath, &f.Filename, &f.ContentHash,
		&embedding, &f.ModelTag, &f.ClusterID, &f.X, &f.Y, &f.Summary, &f.FileType,
		&f.SizeBytes, &f.WordCount, &f.PageCount, &createdAt, &modifiedAt); err != nil {
		return nil, err
	}
	f.Embedding = decodeEmbedding(embedding)
	f.CreatedAt = time.Unix(createdAt, 0).UTC()
	f.ModifiedAt = time.Unix(modifiedAt, 0).UTC()
	return &f, nil
}

// UpsertFileByOriginalPath inserts a new file row, or updates the
// existing one sharing f.OriginalPath, and returns the row id.
// original_path is the durable key used to recognize a file across
// renames performed outside SEFS's own sync engine — see spec.md
// §4.8's move-vs-delete disambiguation by content hash, which falls
// back to this when hashes collide across unrelated files.
func (s *RootStore) UpsertFileByOriginalPath(ctx context.Context, f *model.FileRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	if f.ModifiedAt.IsZero() {
		f.ModifiedAt = now
	}

	var existingID int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM files WHERE original_path = ?`, f.OriginalPath).Scan(&existingID)
	switch {
	case err == sql.ErrNoRows:
		res, err := s.db.ExecContext(ctx, `
INSERT INTO files (current_path, original_path, filename, content_hash, embedding,
	model_tag, cluster_id, x, y, summary, file_type, size_bytes, word_count,
	page_count, created_at, modified_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			f.CurrentPath, f.OriginalPath, f.Filename, f.ContentHash, encodeEmbedding(f.Embedding),
			f.ModelTag, f.ClusterID, f.X, f.Y, f.Summary, f.FileType, f.SizeBytes, f.WordCount,
			f.PageCount, f.CreatedAt.Unix(), f.ModifiedAt.Unix())
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	case err != nil:
		return 0, err
	default:
		_, err := s.db.ExecContext(ctx, `
UPDATE files SET current_path = ?, filename = ?, content_hash = ?, embedding = ?,
	model_tag = ?, x = ?, y = ?, summary = ?, file_type = ?, size_bytes = ?,
	word_count = ?, page_count = ?, modified_at = ?
WHERE id = ?`,
			f.CurrentPath, f.Filename, f.ContentHash, encodeEmbedding(f.Embedding),
			f.ModelTag, f.X, f.Y, f.Summary, f.FileType, f.SizeBytes, f.WordCount,
			f.PageCount, f.ModifiedAt.Unix(), existingID)
		return existingID, err
	}
}

// GetByID returns the file with the given row id, or nil if none.
func (s *RootStore) GetByID(ctx context.Context, id int64) (*model.FileRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE id = ?`, id)
	f, err := scanFile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return f, err
}

// GetByPath returns the file currently at path, or nil if none.
func (s *RootStore) GetByPath(ctx context.Context, path string) (*model.FileRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE current_path = ?`, path)
	f, err := scanFile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return f, err
}

// GetByHash returns the most recently modified file with content_hash
// equal to hash, or nil if none. Used by the pipeline's move detector:
// a new path whose hash matches a missing file's hash is a move, not
// a delete-plus-create (spec.md §4.8).
func (s *RootStore) GetByHash(ctx context.Context, hash string) (*model.FileRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE content_hash = ? ORDER BY modified_at DESC LIMIT 1`, hash)
	f, err := scanFile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return f, err
}

// ListAll returns every tracked file.
func (s *RootStore) ListAll(ctx context.Context) ([]*model.FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+fileColumns+` FROM files ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.FileRecord
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ListByCluster returns every file currently assigned to clusterID.
func (s *RootStore) ListByCluster(ctx context.Context, clusterID int64) ([]*model.FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+fileColumns+` FROM files WHERE cluster_id = ? ORDER BY id`, clusterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.FileRecord
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// UpdateClusterID reassigns a single file to clusterID, used by
// incremental assignment (spec.md §4.9's fast path for one new file).
func (s *RootStore) UpdateClusterID(ctx context.Context, fileID, clusterID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `UPDATE files SET cluster_id = ? WHERE id = ?`, clusterID, fileID)
	return err
}

// UpdateCoords sets a file's 2D layout position.
func (s *RootStore) UpdateCoords(ctx context.Context, fileID int64, x, y float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `UPDATE files SET x = ?, y = ? WHERE id = ?`, x, y, fileID)
	return err
}

// UpdateEmbedding replaces a file's embedding and the model tag it was
// produced with, used after a provider switch's re-embed pass.
func (s *RootStore) UpdateEmbedding(ctx context.Context, fileID int64, embedding []float32, modelTag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `UPDATE files SET embedding = ?, model_tag = ? WHERE id = ?`,
		encodeEmbedding(embedding), modelTag, fileID)
	return err
}

// UpdatePaths rewrites a file's current path, original path, and
// filename together, used when the sync engine physically relocates
// the file into its cluster's folder (spec.md §4.10).
func (s *RootStore) UpdatePaths(ctx context.Context, fileID int64, currentPath, originalPath, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`UPDATE files SET current_path = ?, original_path = ?, filename = ? WHERE id = ?`,
		currentPath, originalPath, filename, fileID)
	return err
}

// DeleteFile removes a file row by id.
func (s *RootStore) DeleteFile(ctx context.Context, fileID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, fileID)
	return err
}

// BulkUpdateClusterID reassigns many files to clusterID in one
// transaction. FullRecluster does not use it; it assigns files one at
// a time with UpdateClusterID.
func (s *RootStore) BulkUpdateClusterID(ctx context.Context, fileIDs []int64, clusterID int64) error {
	if len(fileIDs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE files SET cluster_id = ? WHERE id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, id := range fileIDs {
		if _, err := stmt.ExecContext(ctx, clusterID, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ClearClusters deletes every cluster row and resets every file to
// the Uncategorised bucket. Called at the start of a full recluster
// before the new partition is written (spec.md §4.9).
func (s *RootStore) ClearClusters(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE files SET cluster_id = ?`, model.UncategorisedClusterID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM clusters`); err != nil {
		return err
	}
	return tx.Commit()
}

const clusterColumns = `id, name, description, folder_path, centroid, file_count, created_at`

func scanCluster(row interface{ Scan(...any) error }) (*model.ClusterRecord, error) {
	var (
		c         model.ClusterRecord
		centroid  []byte
		createdAt int64
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.FolderPath, &centroid, &c.FileCount, &createdAt); err != nil {
		return nil, err
	}
	c.Centroid = decodeEmbedding(centroid)
	c.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &c, nil
}

// UpsertCluster inserts a new cluster, or updates the existing one
// sharing c.Name, and returns its row id.
func (s *RootStore) UpsertCluster(ctx context.Context, c *model.ClusterRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	var existingID int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM clusters WHERE name = ?`, c.Name).Scan(&existingID)
	switch {
	case err == sql.ErrNoRows:
		res, err := s.db.ExecContext(ctx, `
INSERT INTO clusters (name, description, folder_path, centroid, file_count, created_at)
VALUES (?, ?, ?, ?, ?, ?)`,
			c.Name, c.Description, c.FolderPath, encodeEmbedding(c.Centroid), c.FileCount, c.CreatedAt.Unix())
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	case err != nil:
		return 0, err
	default:
		_, err := s.db.ExecContext(ctx, `
UPDATE clusters SET description = ?, folder_path = ?, centroid = ?, file_count = ? WHERE id = ?`,
			c.Description, c.FolderPath, encodeEmbedding(c.Centroid), c.FileCount, existingID)
		return existingID, err
	}
}

// GetCluster returns the cluster with the given id.
func (s *RootStore) GetCluster(ctx context.Context, id int64) (*model.ClusterRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+clusterColumns+` FROM clusters WHERE id = ?`, id)
	c, err := scanCluster(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// ListClusters returns every cluster.
func (s *RootStore) ListClusters(ctx context.Context) ([]*model.ClusterRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+clusterColumns+` FROM clusters ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.ClusterRecord
	for rows.Next() {
		c, err := scanCluster(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteCluster removes a cluster row by id. Callers are responsible
// for reassigning its files beforehand (ClearClusters or
// BulkUpdateClusterID) — this does not cascade.
func (s *RootStore) DeleteCluster(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM clusters WHERE id = ?`, id)
	return err
}

// AddEvent appends one entry to the event log (spec.md §4.12).
func (s *RootStore) AddEvent(ctx context.Context, ev *model.Event) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO events (file_id, type, detail, timestamp) VALUES (?, ?, ?, ?)`,
		ev.FileID, string(ev.Type), ev.Detail, ev.Timestamp.Unix())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// RecentEvents returns up to limit of the most recently logged
// events, newest first, for the API's event history endpoint.
func (s *RootStore) RecentEvents(ctx context.Context, limit int) ([]*model.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_id, type, detail, timestamp FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Event
	for rows.Next() {
		var (
			ev  model.Event
			typ string
			ts  int64
		)
		if err := rows.Scan(&ev.ID, &ev.FileID, &typ, &ev.Detail, &ts); err != nil {
			return nil, err
		}
		ev.Type = model.EventType(typ)
		ev.Timestamp = time.Unix(ts, 0).UTC()
		out = append(out, &ev)
	}
	return out, rows.Err()
}
