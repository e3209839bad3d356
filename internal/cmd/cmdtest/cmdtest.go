// Package cmdtest runs kbmirror commands against a fake RAGFlow server and a
// throwaway SQLite mirror.
package cmdtest

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentstation/kbmirror"
	"github.com/agentstation/kbmirror/internal/cmd/application"
	"github.com/agentstation/kbmirror/pkg/ragflow"
	"github.com/agentstation/kbmirror/pkg/ragflow/ragflowtest"
)

// Token is the token the fake server accepts.
const Token = "test-token"

// Env is a fake remote, a client bound to it and an application mock
// returning that client.
type Env struct {
	Remote *ragflowtest.Server
	Client kbmirror.Client
	App    *application.Mock
}

// New creates an Env for knowledge base "kb". The mock uses the table
// format; tests override App fields as needed.
func New(t testing.TB, opts ...kbmirror.Option) *Env {
	t.Helper()

	srv := ragflowtest.NewServer(t, Token)
	remote, err := ragflow.New(ragflow.DefaultConfig(srv.URL, Token))
	if err != nil {
		t.Fatalf("ragflow.New() failed: %v", err)
	}

	dir := t.TempDir()
	base := []kbmirror.Option{
		kbmirror.WithMirrorDSN(filepath.Join(dir, "mirror.db")),
		kbmirror.WithTempDir(dir),
		kbmirror.WithSyncInterval(time.Hour),
	}
	km, err := kbmirror.New(remote, append(base, opts...)...)
	if err != nil {
		t.Fatalf("kbmirror.New() failed: %v", err)
	}
	t.Cleanup(func() { _ = km.AutoSyncOff() })

	return &Env{
		Remote: srv,
		Client: km,
		App: &application.Mock{
			ClientFunc: func() (kbmirror.Client, error) { return km, nil },
		},
	}
}

// Result is the captured output of a command.
type Result struct {
	Stdout string
	Stderr string
	Err    error
}

// Run executes cmd with args and captures its output.
func Run(t testing.TB, cmd *cobra.Command, args ...string) Result {
	t.Helper()
	return RunContext(t.Context(), cmd, args...)
}

// RunContext is Run with an explicit context, for commands that run until
// it is done.
func RunContext(ctx context.Context, cmd *cobra.Command, args ...string) Result {
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.ExecuteContext(ctx)
	return Result{Stdout: stdout.String(), Stderr: stderr.String(), Err: err}
}
