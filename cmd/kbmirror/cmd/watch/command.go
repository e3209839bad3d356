// Package watch provides the watch command: periodic syncs, an optional
// upload directory watcher and an optional HTTP API, until interrupted.
package watch

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentstation/kbmirror"
	"github.com/agentstation/kbmirror/internal/cmd/application"
	"github.com/agentstation/kbmirror/internal/cmd/cmdutil"
	"github.com/agentstation/kbmirror/internal/cmd/notify"
	"github.com/agentstation/kbmirror/internal/server"
	"github.com/agentstation/kbmirror/internal/watcher"
	"github.com/agentstation/kbmirror/pkg/constants"
	"github.com/agentstation/kbmirror/pkg/errors"
	"github.com/agentstation/kbmirror/pkg/logging"
)

// Flags holds the watch command flags.
type Flags struct {
	Interval  time.Duration
	UploadDir string
	Listen    string
	Debounce  time.Duration
	CacheTTL  time.Duration
}

// NewCommand creates the watch command.
func NewCommand(app application.Application) *cobra.Command {
	flags := &Flags{}

	cmd := &cobra.Command{
		Use:     "watch",
		GroupID: "management",
		Short:   "Keep the mirror in sync and upload new files as they appear",
		Long: `Watch syncs the knowledge base once, then again every --interval until
interrupted. With --upload-dir, PDFs created below that directory are uploaded
unless their content is already present. With --listen, a status API is
served:

  GET  /healthz
  GET  /metrics
  GET  /api/v1/kbs/{kb}/documents
  GET  /api/v1/kbs/{kb}/duplicates
  GET  /api/v1/kbs/{kb}/plan
  POST /api/v1/kbs/{kb}/sync

Reports and plans are built from a fresh sync on every request unless
--cache-ttl is set. Cached answers are dropped early by local syncs and
removals, but remote changes stay unseen until the TTL expires.

Set KBMIRROR_API_KEY to require an X-API-Key header on /api/v1.`,
		Example: `  kbmirror watch --interval 5m
  kbmirror watch --upload-dir ./inbox --listen localhost:8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, app, flags)
		},
	}

	cmd.Flags().DurationVar(&flags.Interval, "interval", constants.DefaultSyncInterval, "time between syncs")
	cmd.Flags().StringVar(&flags.UploadDir, "upload-dir", "", "directory to watch for new PDFs")
	cmd.Flags().StringVar(&flags.Listen, "listen", "", "serve the status API on this address (host:port)")
	cmd.Flags().DurationVar(&flags.Debounce, "debounce", constants.WatchDebounce, "quiet time before a new file is uploaded")
	cmd.Flags().DurationVar(&flags.CacheTTL, "cache-ttl", 0, "reuse API reports and plans for this long (0 syncs on every request)")

	return cmd
}

func run(cmd *cobra.Command, app application.Application, flags *Flags) error {
	km, kbID, err := cmdutil.Target(app)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	ctx = logging.WithKnowledgeBase(logging.WithLogger(ctx, app.Logger()), kbID)

	n := cmdutil.Notifier(cmd, app)

	result, err := km.Sync(ctx, kbID)
	if err != nil {
		return err
	}
	n.Info("mirror of %s holds %d documents", kbID, result.Listed)

	if err := km.AutoSyncOn(kbID); err != nil {
		return err
	}
	defer func() {
		if err := km.AutoSyncOff(); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Failed to stop auto-sync")
		}
	}()
	n.Info("syncing every %s", app.SyncInterval())

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	fail := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
		cancel()
	}

	if flags.UploadDir != "" {
		w, err := watcher.New(flags.UploadDir, uploadFunc(km, kbID, n), watcher.WithDebounce(flags.Debounce))
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Run(ctx); err != nil {
				fail(err)
			}
		}()
		n.Info("watching %s for new PDFs", flags.UploadDir)
	}

	if flags.Listen != "" {
		srv, ln, err := listen(app, km, flags.Listen, flags.CacheTTL)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.ServeListener(ctx, ln); err != nil {
				fail(err)
			}
		}()
		n.Info("API listening on http://%s", ln.Addr())
	}

	<-ctx.Done()
	wg.Wait()

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	n.Info("stopped")
	return nil
}

// uploadFunc passes watched files through the upload guard.
func uploadFunc(km kbmirror.Client, kbID string, n *notify.Notifier) watcher.UploadFunc {
	return func(ctx context.Context, path string) error {
		result, err := km.Upload(ctx, kbID, path)
		if err != nil {
			return err
		}
		if result.Skipped() {
			n.Info("skipped %s: content already present as %s", path, result.Existing.DocID)
		} else {
			n.Success("uploaded %s", path)
		}
		return nil
	}
}

func listen(app application.Application, km kbmirror.Client, addr string, cacheTTL time.Duration) (*server.Server, net.Listener, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, nil, errors.NewValidationError("listen", addr, "must be host:port")
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, nil, errors.NewValidationError("listen", addr, "port must be a number")
	}

	cfg := app.ServerConfig()
	cfg.Host = host
	cfg.Port = port
	cfg.CacheTTL = cacheTTL

	srv, err := server.New(km, cfg)
	if err != nil {
		return nil, nil, err
	}
	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return nil, nil, errors.WrapResource("listen", "server", cfg.Addr(), err)
	}
	return srv, ln, nil
}
