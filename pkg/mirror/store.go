// Package mirror persists the local copy of remote document metadata.
//
// The mirror is a best-effort cache keyed by document id. It is opened and
// closed around each logical operation and is never shared between
// processes. Three backends are available behind the Store interface:
// SQLite (the default, a single file under the user config directory),
// Postgres and Redis. Open picks the backend from the DSN.
package mirror

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agentstation/kbmirror/pkg/constants"
	"github.com/agentstation/kbmirror/pkg/documents"
	"github.com/agentstation/kbmirror/pkg/errors"
)

// Store is the local mirror of one or more knowledge bases.
type Store interface {
	// Initialize ensures the schema exists. When an existing schema lacks an
	// expected column it is dropped and recreated and a ResetEvent is returned.
	Initialize(ctx context.Context) (*ResetEvent, error)

	// Staleness returns the cached update_date of docID and whether it exists.
	Staleness(ctx context.Context, docID string) (string, bool, error)

	// Get returns the record for docID or a NotFoundError.
	Get(ctx context.Context, docID string) (*documents.Record, error)

	// Upsert inserts or replaces a record by doc id. An empty FileHash keeps
	// the hash already stored for that document.
	Upsert(ctx context.Context, rec documents.Record) error

	// FindByHash returns the first-seen record of kbID with the given hash,
	// or nil when there is none.
	FindByHash(ctx context.Context, kbID, fileHash string) (*documents.Record, error)

	// GroupDuplicates returns the hash collisions of kbID, largest group first.
	GroupDuplicates(ctx context.Context, kbID string) ([]documents.DuplicateGroup, error)

	// Delete removes docID. Deleting an absent document is not an error.
	Delete(ctx context.Context, docID string) error

	// Count returns the number of records of kbID.
	Count(ctx context.Context, kbID string) (int, error)

	// List returns the records of kbID in first-seen order.
	List(ctx context.Context, kbID string) ([]documents.Record, error)

	Close() error
}

// ResetEvent reports that the mirror discarded its contents because the
// stored schema no longer matched. Every document will be re-downloaded and
// re-hashed by the next sync.
type ResetEvent struct {
	Backend        string    `json:"backend" yaml:"backend"`
	MissingColumns []string  `json:"missing_columns,omitempty" yaml:"missing_columns,omitempty"`
	DroppedRecords int       `json:"dropped_records" yaml:"dropped_records"`
	At             time.Time `json:"at" yaml:"at"`
}

// Reason returns a one-line description of the reset.
func (e ResetEvent) Reason() string {
	if len(e.MissingColumns) > 0 {
		return "schema missing columns: " + strings.Join(e.MissingColumns, ", ")
	}
	return "schema version changed"
}

// Open opens the store addressed by dsn.
//
//	""                          default SQLite file (see DefaultPath)
//	/path/to/file.db            SQLite file
//	sqlite:///path/to/file.db   SQLite file
//	postgres://… postgresql://… Postgres
//	redis://… rediss://…        Redis
func Open(dsn string) (Store, error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return OpenPostgres(dsn)
	case strings.HasPrefix(dsn, "redis://"), strings.HasPrefix(dsn, "rediss://"):
		return OpenRedis(dsn)
	}

	path := strings.TrimPrefix(dsn, "sqlite://")
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}
	return OpenSQLite(path)
}

// DefaultPath returns the default SQLite mirror location,
// $XDG_CONFIG_HOME/kbmirror/documents.db or its platform equivalent.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return "", errors.NewConfigError("mirror", "cannot determine config directory", err)
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, constants.AppDirName, constants.MirrorFileName), nil
}

// expectedColumns is the column set every backend must hold.
var expectedColumns = []string{
	"doc_id",
	"kb_id",
	"name",
	"file_hash",
	"create_date",
	"update_date",
	"status",
	"process_msg",
	"process",
	"size",
	"source_type",
	"chunk_num",
	"run",
	"seq",
}

func missingColumns(have []string) []string {
	present := make(map[string]bool, len(have))
	for _, c := range have {
		present[strings.ToLower(c)] = true
	}
	var missing []string
	for _, c := range expectedColumns {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	return missing
}
