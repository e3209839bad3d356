package kbmirror

import (
	"os"
	"time"

	"github.com/agentstation/kbmirror/pkg/constants"
	"github.com/agentstation/kbmirror/pkg/errors"
	"github.com/agentstation/kbmirror/pkg/mirror"
)

// StoreOpener opens the mirror for one logical operation.
type StoreOpener func() (mirror.Store, error)

type options struct {
	mirrorDSN    string
	opener       StoreOpener
	pageSize     int
	tempDir      string
	syncInterval time.Duration
}

func defaultOptions() *options {
	return &options{
		pageSize:     constants.DefaultPageSize,
		syncInterval: constants.DefaultSyncInterval,
	}
}

// Option is a function that configures a Client.
type Option func(*options) error

func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func (o *options) openStore() (mirror.Store, error) {
	if o.opener != nil {
		return o.opener()
	}
	return mirror.Open(o.mirrorDSN)
}

// WithMirrorDSN selects the mirror backend. See mirror.Open for the accepted forms.
func WithMirrorDSN(dsn string) Option {
	return func(o *options) error {
		o.mirrorDSN = dsn
		return nil
	}
}

// WithStoreOpener replaces mirror.Open. It takes precedence over WithMirrorDSN.
func WithStoreOpener(fn StoreOpener) Option {
	return func(o *options) error {
		o.opener = fn
		return nil
	}
}

// WithPageSize configures how many documents each listing request asks for.
func WithPageSize(n int) Option {
	return func(o *options) error {
		if n <= 0 || n > constants.MaxPageSize {
			return errors.NewValidationError("page_size", n, "out of range")
		}
		o.pageSize = n
		return nil
	}
}

// WithTempDir configures where downloads are staged while being hashed.
func WithTempDir(dir string) Option {
	return func(o *options) error {
		if dir == "" {
			return nil
		}
		info, err := os.Stat(dir)
		if err != nil {
			return errors.WrapIO("stat", dir, err)
		}
		if !info.IsDir() {
			return errors.NewValidationError("temp_dir", dir, "not a directory")
		}
		o.tempDir = dir
		return nil
	}
}

// WithSyncInterval configures how often AutoSyncOn syncs.
func WithSyncInterval(interval time.Duration) Option {
	return func(o *options) error {
		o.syncInterval = interval
		return nil
	}
}
