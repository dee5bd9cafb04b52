package sync

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pilehq/pilebox/internal/db"
)

const journalSchema = `
CREATE TABLE IF NOT EXISTS doc_journal (
    doc_id TEXT PRIMARY KEY,
    rel_path TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    size INTEGER NOT NULL,
    local_updated_at TEXT NOT NULL,  -- RFC3339Nano
    remote_updated_at TEXT NOT NULL  -- RFC3339Nano
);

CREATE INDEX IF NOT EXISTS idx_doc_journal_rel_path ON doc_journal(rel_path);
`

// DocRecord is the last-synced observation of one document: where it
// lived, what its content hashed to, and both sides' update times.
type DocRecord struct {
	DocumentID      string
	RelPath         string
	ContentHash     string
	Size            int64
	LocalUpdatedAt  time.Time
	RemoteUpdatedAt time.Time
}

// dbDocRecord is the scan form; timestamps are stored as TEXT.
type dbDocRecord struct {
	DocumentID      string `db:"doc_id"`
	RelPath         string `db:"rel_path"`
	ContentHash     string `db:"content_hash"`
	Size            int64  `db:"size"`
	LocalUpdatedAt  string `db:"local_updated_at"`
	RemoteUpdatedAt string `db:"remote_updated_at"`
}

func (r *dbDocRecord) toRecord() (*DocRecord, error) {
	localAt, err := time.Parse(time.RFC3339Nano, r.LocalUpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse local_updated_at for %s: %w", r.DocumentID, err)
	}
	remoteAt, err := time.Parse(time.RFC3339Nano, r.RemoteUpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse remote_updated_at for %s: %w", r.DocumentID, err)
	}
	return &DocRecord{
		DocumentID:      r.DocumentID,
		RelPath:         r.RelPath,
		ContentHash:     r.ContentHash,
		Size:            r.Size,
		LocalUpdatedAt:  localAt,
		RemoteUpdatedAt: remoteAt,
	}, nil
}

// DocJournal tracks per-document sync observations in SQLite. Documents
// are keyed by id, not path, so renames do not look like delete+create.
type DocJournal struct {
	db     *sqlx.DB
	dbPath string
}

func NewDocJournal(dbPath string) *DocJournal {
	return &DocJournal{dbPath: dbPath}
}

// Open the journal and the underlying database
func (j *DocJournal) Open() error {
	if j.db != nil {
		return fmt.Errorf("journal already open")
	}

	sqlDb, err := db.NewSqliteDb(db.WithPath(j.dbPath), db.WithMaxOpenConns(1))
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}

	if _, err := sqlDb.Exec(journalSchema); err != nil {
		sqlDb.Close()
		return fmt.Errorf("init journal schema: %w", err)
	}

	j.db = sqlDb
	return nil
}

// Close closes the underlying database connection.
func (j *DocJournal) Close() error {
	if j.db == nil {
		return nil
	}
	if err := j.db.Close(); err != nil {
		return err
	}
	j.db = nil
	slog.Debug("journal closed", "path", j.dbPath)
	return nil
}

// Get retrieves the record for a document id. Missing records return nil.
func (j *DocJournal) Get(docID string) (*DocRecord, error) {
	var rec dbDocRecord
	err := j.db.Get(&rec, "SELECT doc_id, rel_path, content_hash, size, local_updated_at, remote_updated_at FROM doc_journal WHERE doc_id = ?", docID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query doc %s: %w", docID, err)
	}
	return rec.toRecord()
}

// GetByPath retrieves the record for a pile-relative path. Missing records
// return nil.
func (j *DocJournal) GetByPath(relPath string) (*DocRecord, error) {
	var rec dbDocRecord
	err := j.db.Get(&rec, "SELECT doc_id, rel_path, content_hash, size, local_updated_at, remote_updated_at FROM doc_journal WHERE rel_path = ?", relPath)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query path %s: %w", relPath, err)
	}
	return rec.toRecord()
}

// Set inserts or updates the record for a document.
func (j *DocJournal) Set(record *DocRecord) error {
	if record == nil {
		return fmt.Errorf("cannot set nil record")
	}

	data := dbDocRecord{
		DocumentID:      record.DocumentID,
		RelPath:         record.RelPath,
		ContentHash:     record.ContentHash,
		Size:            record.Size,
		LocalUpdatedAt:  record.LocalUpdatedAt.UTC().Format(time.RFC3339Nano),
		RemoteUpdatedAt: record.RemoteUpdatedAt.UTC().Format(time.RFC3339Nano),
	}

	query := `INSERT OR REPLACE INTO doc_journal (doc_id, rel_path, content_hash, size, local_updated_at, remote_updated_at)
	          VALUES (:doc_id, :rel_path, :content_hash, :size, :local_updated_at, :remote_updated_at)`
	if _, err := j.db.NamedExec(query, data); err != nil {
		return fmt.Errorf("set record for %s: %w", record.DocumentID, err)
	}
	slog.Debug("journal set", "doc", record.DocumentID, "path", record.RelPath, "hash", record.ContentHash[:min(8, len(record.ContentHash))])
	return nil
}

// Delete removes a document's record.
func (j *DocJournal) Delete(docID string) error {
	if _, err := j.db.Exec("DELETE FROM doc_journal WHERE doc_id = ?", docID); err != nil {
		return fmt.Errorf("delete doc %s: %w", docID, err)
	}
	return nil
}

// List retrieves all records keyed by document id.
func (j *DocJournal) List() (map[string]*DocRecord, error) {
	var recs []dbDocRecord
	if err := j.db.Select(&recs, "SELECT doc_id, rel_path, content_hash, size, local_updated_at, remote_updated_at FROM doc_journal"); err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}

	records := make(map[string]*DocRecord, len(recs))
	for i := range recs {
		record, err := recs[i].toRecord()
		if err != nil {
			slog.Error("journal record corrupt, skipping", "doc", recs[i].DocumentID, "error", err)
			continue
		}
		records[record.DocumentID] = record
	}
	return records, nil
}

// Count returns the number of tracked documents.
func (j *DocJournal) Count() (int, error) {
	var count int
	if err := j.db.Get(&count, "SELECT COUNT(*) FROM doc_journal"); err != nil {
		return 0, fmt.Errorf("count journal: %w", err)
	}
	return count, nil
}
