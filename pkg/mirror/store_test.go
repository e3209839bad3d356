package mirror

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/kbmirror/pkg/documents"
	"github.com/agentstation/kbmirror/pkg/errors"
)

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "mirror", "documents.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	event, err := store.Initialize(context.Background())
	require.NoError(t, err)
	require.Nil(t, event)
	return store
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, "test")
	t.Cleanup(func() { _ = store.Close() })

	event, err := store.Initialize(context.Background())
	require.NoError(t, err)
	require.Nil(t, event)
	return store, mr
}

func backends(t *testing.T) map[string]Store {
	redisStore, _ := newRedisStore(t)
	return map[string]Store{
		"sqlite": newSQLiteStore(t),
		"redis":  redisStore,
	}
}

func rec(id, kb, hash string, process float64) documents.Record {
	return documents.Record{
		DocID:      id,
		KBID:       kb,
		Name:       id + ".pdf",
		FileHash:   hash,
		CreateDate: "2024-01-01",
		UpdateDate: "2024-01-01",
		Status:     documents.StatusComplete,
		Process:    process,
		Size:       1024,
		SourceType: "local",
		ChunkNum:   3,
		Run:        documents.RunDone,
	}
}

func TestStoreUpsertAndGet(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			want := rec("d1", "kb", "aaa", 0.5)
			require.NoError(t, store.Upsert(ctx, want))

			got, err := store.Get(ctx, "d1")
			require.NoError(t, err)
			assert.Equal(t, want, *got)

			_, err = store.Get(ctx, "missing")
			assert.True(t, errors.IsNotFound(err))
		})
	}
}

func TestStoreStaleness(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, found, err := store.Staleness(ctx, "d1")
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, store.Upsert(ctx, rec("d1", "kb", "aaa", 0)))
			date, found, err := store.Staleness(ctx, "d1")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, "2024-01-01", date)
		})
	}
}

func TestStoreUpsertPreservesHash(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Upsert(ctx, rec("d1", "kb", "aaa", 0.1)))

			refresh := rec("d1", "kb", "", 0.7)
			refresh.UpdateDate = "2024-02-02"
			require.NoError(t, store.Upsert(ctx, refresh))

			got, err := store.Get(ctx, "d1")
			require.NoError(t, err)
			assert.Equal(t, "aaa", got.FileHash)
			assert.Equal(t, "2024-02-02", got.UpdateDate)
			assert.InDelta(t, 0.7, got.Process, 1e-9)
		})
	}
}

func TestStoreUnhashedRecord(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r := rec("d1", "kb", "", 0)
			r.Status = documents.StatusUnknown
			r.Run = documents.RunUnknown
			require.NoError(t, store.Upsert(ctx, r))

			got, err := store.Get(ctx, "d1")
			require.NoError(t, err)
			assert.False(t, got.HasHash())
			assert.Equal(t, documents.StatusUnknown, got.Status)
			assert.Equal(t, documents.RunUnknown, got.Run)
		})
	}
}

func TestStoreFindByHash(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Upsert(ctx, rec("d1", "kb", "aaa", 0)))
			require.NoError(t, store.Upsert(ctx, rec("d2", "kb", "aaa", 0)))
			require.NoError(t, store.Upsert(ctx, rec("d3", "other", "bbb", 0)))

			got, err := store.FindByHash(ctx, "kb", "aaa")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "d1", got.DocID)

			got, err = store.FindByHash(ctx, "kb", "bbb")
			require.NoError(t, err)
			assert.Nil(t, got, "hash from another knowledge base must not match")

			got, err = store.FindByHash(ctx, "kb", "")
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestStoreGroupDuplicates(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, r := range []documents.Record{
				rec("1", "kb", "A", 0),
				rec("2", "kb", "A", 0),
				rec("3", "kb", "B", 0),
				rec("4", "kb", "A", 0),
				rec("5", "kb", "", 0),
				rec("6", "kb", "", 0),
				rec("7", "other", "A", 0),
			} {
				require.NoError(t, store.Upsert(ctx, r))
			}

			groups, err := store.GroupDuplicates(ctx, "kb")
			require.NoError(t, err)
			require.Len(t, groups, 1)
			assert.Equal(t, "A", groups[0].Hash)
			assert.Equal(t, []string{"1", "2", "4"}, groups[0].DocIDs())

			groups, err = store.GroupDuplicates(ctx, "other")
			require.NoError(t, err)
			assert.Empty(t, groups)
		})
	}
}

func TestStoreGroupOrdering(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, r := range []documents.Record{
				rec("1", "kb", "zzz", 0),
				rec("2", "kb", "zzz", 0),
				rec("3", "kb", "mmm", 0),
				rec("4", "kb", "mmm", 0),
				rec("5", "kb", "mmm", 0),
				rec("6", "kb", "aaa", 0),
				rec("7", "kb", "aaa", 0),
			} {
				require.NoError(t, store.Upsert(ctx, r))
			}

			groups, err := store.GroupDuplicates(ctx, "kb")
			require.NoError(t, err)
			require.Len(t, groups, 3)
			assert.Equal(t, "mmm", groups[0].Hash)
			assert.Equal(t, "aaa", groups[1].Hash)
			assert.Equal(t, "zzz", groups[2].Hash)
		})
	}
}

func TestStoreDeleteCountList(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Upsert(ctx, rec("d1", "kb", "aaa", 0)))
			require.NoError(t, store.Upsert(ctx, rec("d2", "kb", "aaa", 0)))
			require.NoError(t, store.Upsert(ctx, rec("d3", "kb", "ccc", 0)))

			n, err := store.Count(ctx, "kb")
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			require.NoError(t, store.Delete(ctx, "d2"))
			require.NoError(t, store.Delete(ctx, "d2"), "deleting twice is a no-op")

			list, err := store.List(ctx, "kb")
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "d1", list[0].DocID)
			assert.Equal(t, "d3", list[1].DocID)

			groups, err := store.GroupDuplicates(ctx, "kb")
			require.NoError(t, err)
			assert.Empty(t, groups)
		})
	}
}

func TestStoreRefreshKeepsFirstSeenOrder(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Upsert(ctx, rec("d1", "kb", "aaa", 0)))
			require.NoError(t, store.Upsert(ctx, rec("d2", "kb", "aaa", 0)))

			refresh := rec("d1", "kb", "", 0.9)
			refresh.UpdateDate = "2024-03-03"
			require.NoError(t, store.Upsert(ctx, refresh))

			groups, err := store.GroupDuplicates(ctx, "kb")
			require.NoError(t, err)
			require.Len(t, groups, 1)
			assert.Equal(t, []string{"d1", "d2"}, groups[0].DocIDs())
		})
	}
}

func TestSQLiteSchemaDriftResets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "documents.db")

	legacy, err := OpenSQLite(path)
	require.NoError(t, err)
	_, err = legacy.db.Exec(`CREATE TABLE documents (
		doc_id TEXT PRIMARY KEY, kb_id TEXT, name TEXT, file_hash TEXT,
		create_date TEXT, update_date TEXT, status TEXT, process_msg TEXT,
		process REAL, size INTEGER, source_type TEXT, chunk_num INTEGER)`)
	require.NoError(t, err)
	_, err = legacy.db.Exec(`INSERT INTO documents (doc_id, kb_id, name) VALUES ('old', 'kb', 'old.pdf')`)
	require.NoError(t, err)
	require.NoError(t, legacy.Close())

	store, err := OpenSQLite(path)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	event, err := store.Initialize(ctx)
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, "sqlite", event.Backend)
	assert.Equal(t, []string{"run", "seq"}, event.MissingColumns)
	assert.Equal(t, 1, event.DroppedRecords)
	assert.Contains(t, event.Reason(), "run, seq")

	n, err := store.Count(ctx, "kb")
	require.NoError(t, err)
	assert.Zero(t, n)

	again, err := store.Initialize(ctx)
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestRedisVersionChangeResets(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, rec("d1", "kb", "aaa", 0)))

	mr.Set("test:schema", "1")

	event, err := store.Initialize(ctx)
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, "redis", event.Backend)
	assert.Equal(t, 1, event.DroppedRecords)
	assert.False(t, mr.Exists("test:doc:d1"))

	n, err := store.Count(ctx, "kb")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOpenDispatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.db")

	store, err := Open("sqlite://" + path)
	require.NoError(t, err)
	assert.IsType(t, &SQLStore{}, store)
	require.NoError(t, store.Close())

	mr := miniredis.RunT(t)
	store, err = Open("redis://" + mr.Addr())
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, store)
	require.NoError(t, store.Close())

	_, err = Open("redis://%zz")
	assert.Error(t, err)
}

func TestMissingColumns(t *testing.T) {
	assert.Empty(t, missingColumns(expectedColumns))
	assert.Equal(t, []string{"seq"}, missingColumns(expectedColumns[:len(expectedColumns)-1]))
}
