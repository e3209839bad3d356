package kbmirror

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentstation/kbmirror/pkg/documents"
	"github.com/agentstation/kbmirror/pkg/errors"
	"github.com/agentstation/kbmirror/pkg/logging"
	"github.com/agentstation/kbmirror/pkg/ragflow"
)

// fakeRemote is an in-memory RemoteCatalog. Documents keep insertion order.
type fakeRemote struct {
	mu sync.Mutex

	docs    map[string][]documents.RemoteDocument
	content map[string][]byte

	listErr     map[int]error // by page
	downloadErr map[string]error
	deleteErr   map[string]error
	uploadErr   error
	runErr      map[int]error // by call number

	listCalls     int
	downloadCalls int
	uploads       []string
	deletes       []string
	runs          [][]string
	nextID        int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		docs:        make(map[string][]documents.RemoteDocument),
		content:     make(map[string][]byte),
		listErr:     make(map[int]error),
		downloadErr: make(map[string]error),
		deleteErr:   make(map[string]error),
		runErr:      make(map[int]error),
	}
}

func (f *fakeRemote) add(kbID, id, content string, progress float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[kbID] = append(f.docs[kbID], documents.RemoteDocument{
		ID:         id,
		KBID:       kbID,
		Name:       id + ".pdf",
		CreateDate: "2024-01-01 10:00:00",
		UpdateDate: "2024-01-01 10:00:00",
		Status:     documents.StatusComplete,
		Progress:   progress,
		Size:       int64(len(content)),
		SourceType: "local",
		Run:        documents.RunDone,
	})
	f.content[id] = []byte(content)
}

func (f *fakeRemote) update(kbID, id string, fn func(*documents.RemoteDocument)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.docs[kbID] {
		if f.docs[kbID][i].ID == id {
			fn(&f.docs[kbID][i])
		}
	}
}

func (f *fakeRemote) ListPage(_ context.Context, kbID string, page, pageSize int) (*ragflow.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if err := f.listErr[page]; err != nil {
		return nil, err
	}

	all := f.docs[kbID]
	start := (page - 1) * pageSize
	if start >= len(all) {
		return &ragflow.Page{Total: len(all)}, nil
	}
	end := min(start+pageSize, len(all))
	out := make([]documents.RemoteDocument, end-start)
	copy(out, all[start:end])
	return &ragflow.Page{Documents: out, Total: len(all)}, nil
}

func (f *fakeRemote) Download(_ context.Context, docID string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloadCalls++
	if err := f.downloadErr[docID]; err != nil {
		return nil, err
	}
	data, ok := f.content[docID]
	if !ok {
		return nil, errors.NewNotFoundError("document", docID)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeRemote) Upload(_ context.Context, kbID, filename string, content io.Reader) error {
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, filename)
	if f.uploadErr != nil {
		return f.uploadErr
	}

	f.nextID++
	id := fmt.Sprintf("up-%d", f.nextID)
	f.docs[kbID] = append(f.docs[kbID], documents.RemoteDocument{
		ID:         id,
		KBID:       kbID,
		Name:       filename,
		CreateDate: "2024-06-01 09:00:00",
		UpdateDate: "2024-06-01 09:00:00",
		Status:     documents.StatusPending,
		Size:       int64(len(data)),
		Run:        documents.RunPending,
	})
	f.content[id] = data
	return nil
}

func (f *fakeRemote) Delete(_ context.Context, docID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, docID)
	if err := f.deleteErr[docID]; err != nil {
		return err
	}
	for kb, docs := range f.docs {
		for i, d := range docs {
			if d.ID == docID {
				f.docs[kb] = append(docs[:i:i], docs[i+1:]...)
				break
			}
		}
	}
	delete(f.content, docID)
	return nil
}

func (f *fakeRemote) Run(_ context.Context, docIDs []string, _ ragflow.RunAction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, append([]string(nil), docIDs...))
	if err := f.runErr[len(f.runs)]; err != nil {
		return err
	}
	return nil
}

func (f *fakeRemote) counts() (list, download int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls, f.downloadCalls
}

// newTestClient returns a client with a fresh SQLite mirror in a temp dir.
func newTestClient(t *testing.T, remote RemoteCatalog, opts ...Option) Client {
	t.Helper()
	logging.DisableLoggingForTest(t)

	dir := t.TempDir()
	opts = append([]Option{
		WithMirrorDSN(filepath.Join(dir, "documents.db")),
		WithTempDir(dir),
	}, opts...)

	c, err := New(remote, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.AutoSyncOff() })
	return c
}

func authError() error {
	return errors.NewAuthenticationError(ragflow.PathList, "invalid token", nil)
}
