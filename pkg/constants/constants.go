// Package constants provides shared constants used throughout the kbmirror codebase.
// This includes timeouts, limits, file permissions, and the application codes
// of the remote knowledge-base API that must stay consistent across packages.
package constants

import "time"

// Timeout constants define various timeout durations used in the application
const (
	// DefaultHTTPTimeout bounds listing, delete and run requests
	DefaultHTTPTimeout = 30 * time.Second

	// TransferTimeout bounds a single document download or upload
	TransferTimeout = 10 * time.Minute

	// SyncContextTimeout is the timeout for each automatic sync cycle
	SyncContextTimeout = 30 * time.Minute

	// DefaultSyncInterval is the default interval between automatic syncs
	DefaultSyncInterval = 15 * time.Minute

	// ShutdownTimeout bounds graceful shutdown of the CLI and the status server
	ShutdownTimeout = 5 * time.Second

	// WatchDebounce is how long a new file must stay quiet before it is uploaded
	WatchDebounce = 2 * time.Second

	// RetryBaseDelay is the base backoff duration for retries
	RetryBaseDelay = 100 * time.Millisecond

	// RetryMaxDelay is the maximum backoff duration for retries
	RetryMaxDelay = 2 * time.Second
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Limit constants define various limits and capacities
const (
	// MaxRetries is the maximum number of retry attempts for idempotent requests
	MaxRetries = 3

	// DefaultPageSize is the number of documents requested per listing page
	DefaultPageSize = 100

	// MaxPageSize is the largest page size accepted by the remote listing
	MaxPageSize = 1000

	// ParseBatchSize is the number of documents sent per parse request
	ParseBatchSize = 10

	// HashBufferSize is the copy buffer used while hashing streams
	HashBufferSize = 32 * 1024
)

// Remote application codes returned inside the JSON envelope.
const (
	// CodeSuccess marks a successful list, delete or run call
	CodeSuccess = 0

	// CodeUploadSuccess marks a successful upload
	CodeUploadSuccess = 9

	// CodeUnauthorized marks rejected credentials on an HTTP 200 response
	CodeUnauthorized = 401
)

// Mirror storage constants
const (
	// MirrorFileName is the SQLite file name inside the application directory
	MirrorFileName = "documents.db"

	// AppDirName is the directory under the user config dir holding kbmirror state
	AppDirName = "kbmirror"

	// SQLiteBusyTimeout is the busy timeout in milliseconds for the SQLite mirror
	SQLiteBusyTimeout = 5000
)
