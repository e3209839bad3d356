package mirror

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/agentstation/kbmirror/pkg/constants"
	"github.com/agentstation/kbmirror/pkg/documents"
	"github.com/agentstation/kbmirror/pkg/errors"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// dialect holds the few statements that differ between SQL engines.
type dialect struct {
	name         string
	driver       string
	columnsQuery string
}

var (
	sqliteDialect = dialect{
		name:         "sqlite",
		driver:       "sqlite",
		columnsQuery: `SELECT name FROM pragma_table_info('documents')`,
	}
	postgresDialect = dialect{
		name:   "postgres",
		driver: "postgres",
		columnsQuery: `SELECT column_name FROM information_schema.columns
			WHERE table_schema = current_schema() AND table_name = 'documents'`,
	}
)

// The schema only uses types both engines understand.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		doc_id      TEXT PRIMARY KEY,
		kb_id       TEXT NOT NULL,
		name        TEXT NOT NULL DEFAULT '',
		file_hash   TEXT,
		create_date TEXT NOT NULL DEFAULT '',
		update_date TEXT NOT NULL DEFAULT '',
		status      TEXT,
		process_msg TEXT NOT NULL DEFAULT '',
		process     DOUBLE PRECISION NOT NULL DEFAULT 0,
		size        BIGINT NOT NULL DEFAULT 0,
		source_type TEXT NOT NULL DEFAULT '',
		chunk_num   INTEGER NOT NULL DEFAULT 0,
		run         TEXT,
		seq         BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_kb_hash ON documents (kb_id, file_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_kb_seq ON documents (kb_id, seq)`,
}

const selectColumns = `doc_id, kb_id, name, file_hash, create_date, update_date,
	status, process_msg, process, size, source_type, chunk_num, run, seq`

const upsertQuery = `INSERT INTO documents (
		doc_id, kb_id, name, file_hash, create_date, update_date,
		status, process_msg, process, size, source_type, chunk_num, run, seq
	) VALUES (
		:doc_id, :kb_id, :name, :file_hash, :create_date, :update_date,
		:status, :process_msg, :process, :size, :source_type, :chunk_num, :run,
		(SELECT COALESCE(MAX(seq), 0) + 1 FROM documents)
	)
	ON CONFLICT (doc_id) DO UPDATE SET
		kb_id       = excluded.kb_id,
		name        = excluded.name,
		file_hash   = COALESCE(excluded.file_hash, documents.file_hash),
		create_date = excluded.create_date,
		update_date = excluded.update_date,
		status      = excluded.status,
		process_msg = excluded.process_msg,
		process     = excluded.process,
		size        = excluded.size,
		source_type = excluded.source_type,
		chunk_num   = excluded.chunk_num,
		run         = excluded.run`

// row is the storage shape of a documents.Record.
type row struct {
	DocID      string             `db:"doc_id"`
	KBID       string             `db:"kb_id"`
	Name       string             `db:"name"`
	FileHash   sql.NullString     `db:"file_hash"`
	CreateDate string             `db:"create_date"`
	UpdateDate string             `db:"update_date"`
	Status     documents.Status   `db:"status"`
	ProcessMsg string             `db:"process_msg"`
	Process    float64            `db:"process"`
	Size       int64              `db:"size"`
	SourceType string             `db:"source_type"`
	ChunkNum   int                `db:"chunk_num"`
	Run        documents.RunState `db:"run"`
	Seq        int64              `db:"seq"`
}

func toRow(rec documents.Record) row {
	return row{
		DocID:      rec.DocID,
		KBID:       rec.KBID,
		Name:       rec.Name,
		FileHash:   sql.NullString{String: rec.FileHash, Valid: rec.FileHash != ""},
		CreateDate: rec.CreateDate,
		UpdateDate: rec.UpdateDate,
		Status:     rec.Status,
		ProcessMsg: rec.ProcessMsg,
		Process:    rec.Process,
		Size:       rec.Size,
		SourceType: rec.SourceType,
		ChunkNum:   rec.ChunkNum,
		Run:        rec.Run,
	}
}

func (r row) record() documents.Record {
	return documents.Record{
		DocID:      r.DocID,
		KBID:       r.KBID,
		Name:       r.Name,
		FileHash:   r.FileHash.String,
		CreateDate: r.CreateDate,
		UpdateDate: r.UpdateDate,
		Status:     r.Status,
		ProcessMsg: r.ProcessMsg,
		Process:    r.Process,
		Size:       r.Size,
		SourceType: r.SourceType,
		ChunkNum:   r.ChunkNum,
		Run:        r.Run,
	}
}

func records(rows []row) []documents.Record {
	out := make([]documents.Record, len(rows))
	for i, r := range rows {
		out[i] = r.record()
	}
	return out
}

// SQLStore is the Store backed by SQLite or Postgres.
type SQLStore struct {
	db      *sqlx.DB
	dialect dialect
}

var _ Store = (*SQLStore)(nil)

// OpenSQLite opens (creating if needed) the SQLite mirror at path.
func OpenSQLite(path string) (*SQLStore, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.WrapIO("resolve", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), constants.DirPermissions); err != nil {
		return nil, errors.WrapIO("create", filepath.Dir(abs), err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", abs, constants.SQLiteBusyTimeout)
	return openSQL(sqliteDialect, dsn)
}

// OpenPostgres opens the Postgres mirror at dsn.
func OpenPostgres(dsn string) (*SQLStore, error) {
	return openSQL(postgresDialect, dsn)
}

func openSQL(d dialect, dsn string) (*SQLStore, error) {
	db, err := sqlx.Open(d.driver, dsn)
	if err != nil {
		return nil, errors.WrapResource("open", "mirror", d.name, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), constants.SQLiteBusyTimeout*time.Millisecond)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.WrapResource("connect", "mirror", d.name, err)
	}
	return &SQLStore{db: db, dialect: d}, nil
}

// Initialize implements Store.
func (s *SQLStore) Initialize(ctx context.Context) (*ResetEvent, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.WrapResource("begin", "mirror", s.dialect.name, err)
	}
	defer func() { _ = tx.Rollback() }()

	var columns []string
	if err := tx.SelectContext(ctx, &columns, s.dialect.columnsQuery); err != nil {
		return nil, errors.WrapResource("inspect", "mirror", "documents", err)
	}

	var event *ResetEvent
	if len(columns) > 0 {
		if missing := missingColumns(columns); len(missing) > 0 {
			var dropped int
			if err := tx.GetContext(ctx, &dropped, `SELECT COUNT(*) FROM documents`); err != nil {
				return nil, errors.WrapResource("count", "mirror", "documents", err)
			}
			if _, err := tx.ExecContext(ctx, `DROP TABLE documents`); err != nil {
				return nil, errors.WrapResource("drop", "mirror", "documents", err)
			}
			event = &ResetEvent{
				Backend:        s.dialect.name,
				MissingColumns: missing,
				DroppedRecords: dropped,
				At:             time.Now().UTC(),
			}
		}
	}

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return nil, errors.WrapResource("migrate", "mirror", "documents", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.WrapResource("commit", "mirror", "documents", err)
	}
	return event, nil
}

// Staleness implements Store.
func (s *SQLStore) Staleness(ctx context.Context, docID string) (string, bool, error) {
	var updateDate string
	err := s.db.GetContext(ctx, &updateDate, s.db.Rebind(`SELECT update_date FROM documents WHERE doc_id = ?`), docID)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.WrapResource("read", "document", docID, err)
	}
	return updateDate, true, nil
}

// Get implements Store.
func (s *SQLStore) Get(ctx context.Context, docID string) (*documents.Record, error) {
	var r row
	err := s.db.GetContext(ctx, &r, s.db.Rebind(`SELECT `+selectColumns+` FROM documents WHERE doc_id = ?`), docID)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("document", docID)
	}
	if err != nil {
		return nil, errors.WrapResource("read", "document", docID, err)
	}
	rec := r.record()
	return &rec, nil
}

// Upsert implements Store.
func (s *SQLStore) Upsert(ctx context.Context, rec documents.Record) error {
	if rec.DocID == "" {
		return errors.NewValidationError("doc_id", rec.DocID, "document id is required")
	}
	if _, err := s.db.NamedExecContext(ctx, upsertQuery, toRow(rec)); err != nil {
		return errors.WrapResource("upsert", "document", rec.DocID, err)
	}
	return nil
}

// FindByHash implements Store.
func (s *SQLStore) FindByHash(ctx context.Context, kbID, fileHash string) (*documents.Record, error) {
	if fileHash == "" {
		return nil, nil
	}
	var r row
	query := s.db.Rebind(`SELECT ` + selectColumns + ` FROM documents
		WHERE kb_id = ? AND file_hash = ? ORDER BY seq LIMIT 1`)
	err := s.db.GetContext(ctx, &r, query, kbID, fileHash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapResource("find", "hash", fileHash, err)
	}
	rec := r.record()
	return &rec, nil
}

// GroupDuplicates implements Store.
func (s *SQLStore) GroupDuplicates(ctx context.Context, kbID string) ([]documents.DuplicateGroup, error) {
	var hashes []string
	query := s.db.Rebind(`SELECT file_hash FROM documents
		WHERE kb_id = ? AND file_hash IS NOT NULL AND file_hash <> ''
		GROUP BY file_hash
		HAVING COUNT(*) > 1
		ORDER BY COUNT(*) DESC, file_hash ASC`)
	if err := s.db.SelectContext(ctx, &hashes, query, kbID); err != nil {
		return nil, errors.WrapResource("group", "knowledge base", kbID, err)
	}
	if len(hashes) == 0 {
		return []documents.DuplicateGroup{}, nil
	}

	query, args, err := sqlx.In(`SELECT `+selectColumns+` FROM documents
		WHERE kb_id = ? AND file_hash IN (?) ORDER BY seq`, kbID, hashes)
	if err != nil {
		return nil, errors.WrapResource("group", "knowledge base", kbID, err)
	}
	var rows []row
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, errors.WrapResource("group", "knowledge base", kbID, err)
	}

	members := make(map[string][]documents.Record, len(hashes))
	for _, r := range rows {
		members[r.FileHash.String] = append(members[r.FileHash.String], r.record())
	}
	groups := make([]documents.DuplicateGroup, 0, len(hashes))
	for _, h := range hashes {
		groups = append(groups, documents.DuplicateGroup{Hash: h, Records: members[h]})
	}
	return groups, nil
}

// Delete implements Store.
func (s *SQLStore) Delete(ctx context.Context, docID string) error {
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM documents WHERE doc_id = ?`), docID); err != nil {
		return errors.WrapResource("delete", "document", docID, err)
	}
	return nil
}

// Count implements Store.
func (s *SQLStore) Count(ctx context.Context, kbID string) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, s.db.Rebind(`SELECT COUNT(*) FROM documents WHERE kb_id = ?`), kbID); err != nil {
		return 0, errors.WrapResource("count", "knowledge base", kbID, err)
	}
	return n, nil
}

// List implements Store.
func (s *SQLStore) List(ctx context.Context, kbID string) ([]documents.Record, error) {
	var rows []row
	query := s.db.Rebind(`SELECT ` + selectColumns + ` FROM documents WHERE kb_id = ? ORDER BY seq`)
	if err := s.db.SelectContext(ctx, &rows, query, kbID); err != nil {
		return nil, errors.WrapResource("list", "knowledge base", kbID, err)
	}
	return records(rows), nil
}

// Close implements Store.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
