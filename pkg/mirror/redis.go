package mirror

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agentstation/kbmirror/pkg/documents"
	"github.com/agentstation/kbmirror/pkg/errors"
)

// redisSchemaVersion changes whenever the hash layout of a document changes.
// A mirror written with another version is discarded on Initialize.
const redisSchemaVersion = "2"

const defaultRedisPrefix = "kbmirror"

// RedisStore is the Store backed by Redis.
//
// Keys, relative to the prefix:
//
//	schema               layout version
//	seq                  first-seen counter
//	doc:{doc_id}         hash of record fields
//	kb:{kb_id}           sorted set of doc ids scored by seq
//	hash:{kb_id}:{hash}  sorted set of doc ids sharing a content hash
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ Store = (*RedisStore)(nil)

// OpenRedis connects to the Redis mirror at a redis:// URL.
func OpenRedis(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.NewConfigError("mirror", "invalid redis url", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.WrapResource("connect", "mirror", "redis", err)
	}
	return NewRedisStore(client, defaultRedisPrefix), nil
}

// NewRedisStore wraps an existing client. All keys are placed under prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(parts ...string) string {
	k := s.prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

func (s *RedisStore) docKey(docID string) string { return s.key("doc", docID) }
func (s *RedisStore) kbKey(kbID string) string   { return s.key("kb", kbID) }
func (s *RedisStore) hashKey(kbID, hash string) string {
	return s.key("hash", kbID, hash)
}

// Initialize implements Store.
func (s *RedisStore) Initialize(ctx context.Context) (*ResetEvent, error) {
	version, err := s.client.Get(ctx, s.key("schema")).Result()
	if err != nil && err != redis.Nil {
		return nil, errors.WrapResource("inspect", "mirror", "redis", err)
	}
	if version == redisSchemaVersion {
		return nil, nil
	}

	keys, err := s.scanKeys(ctx)
	if err != nil {
		return nil, err
	}

	var event *ResetEvent
	if len(keys) > 0 {
		dropped := 0
		for _, k := range keys {
			if strings.HasPrefix(k, s.key("doc")+":") {
				dropped++
			}
		}
		if err := s.client.Del(ctx, keys...).Err(); err != nil {
			return nil, errors.WrapResource("drop", "mirror", "redis", err)
		}
		event = &ResetEvent{
			Backend:        "redis",
			DroppedRecords: dropped,
			At:             time.Now().UTC(),
		}
	}

	if err := s.client.Set(ctx, s.key("schema"), redisSchemaVersion, 0).Err(); err != nil {
		return nil, errors.WrapResource("migrate", "mirror", "redis", err)
	}
	return event, nil
}

func (s *RedisStore) scanKeys(ctx context.Context) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := s.client.Scan(ctx, cursor, s.prefix+":*", 500).Result()
		if err != nil {
			return nil, errors.WrapResource("scan", "mirror", "redis", err)
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

// Staleness implements Store.
func (s *RedisStore) Staleness(ctx context.Context, docID string) (string, bool, error) {
	updateDate, err := s.client.HGet(ctx, s.docKey(docID), "update_date").Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.WrapResource("read", "document", docID, err)
	}
	return updateDate, true, nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, docID string) (*documents.Record, error) {
	rec, _, err := s.load(ctx, docID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errors.NewNotFoundError("document", docID)
	}
	return rec, nil
}

func (s *RedisStore) load(ctx context.Context, docID string) (*documents.Record, int64, error) {
	fields, err := s.client.HGetAll(ctx, s.docKey(docID)).Result()
	if err != nil {
		return nil, 0, errors.WrapResource("read", "document", docID, err)
	}
	if len(fields) == 0 {
		return nil, 0, nil
	}
	rec, seq := decodeRecord(fields)
	return &rec, seq, nil
}

// Upsert implements Store.
func (s *RedisStore) Upsert(ctx context.Context, rec documents.Record) error {
	if rec.DocID == "" {
		return errors.NewValidationError("doc_id", rec.DocID, "document id is required")
	}

	existing, seq, err := s.load(ctx, rec.DocID)
	if err != nil {
		return err
	}
	if existing == nil {
		if seq, err = s.client.Incr(ctx, s.key("seq")).Result(); err != nil {
			return errors.WrapResource("upsert", "document", rec.DocID, err)
		}
	} else if rec.FileHash == "" {
		rec.FileHash = existing.FileHash
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if existing != nil {
			if existing.KBID != rec.KBID {
				pipe.ZRem(ctx, s.kbKey(existing.KBID), rec.DocID)
			}
			if existing.HasHash() && (existing.KBID != rec.KBID || existing.FileHash != rec.FileHash) {
				pipe.ZRem(ctx, s.hashKey(existing.KBID, existing.FileHash), rec.DocID)
			}
		}
		pipe.HSet(ctx, s.docKey(rec.DocID), encodeRecord(rec, seq))
		pipe.ZAdd(ctx, s.kbKey(rec.KBID), redis.Z{Score: float64(seq), Member: rec.DocID})
		if rec.HasHash() {
			pipe.ZAdd(ctx, s.hashKey(rec.KBID, rec.FileHash), redis.Z{Score: float64(seq), Member: rec.DocID})
		}
		return nil
	})
	if err != nil {
		return errors.WrapResource("upsert", "document", rec.DocID, err)
	}
	return nil
}

// FindByHash implements Store.
func (s *RedisStore) FindByHash(ctx context.Context, kbID, fileHash string) (*documents.Record, error) {
	if fileHash == "" {
		return nil, nil
	}
	ids, err := s.client.ZRange(ctx, s.hashKey(kbID, fileHash), 0, 0).Result()
	if err != nil {
		return nil, errors.WrapResource("find", "hash", fileHash, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	rec, _, err := s.load(ctx, ids[0])
	return rec, err
}

// GroupDuplicates implements Store.
func (s *RedisStore) GroupDuplicates(ctx context.Context, kbID string) ([]documents.DuplicateGroup, error) {
	recs, err := s.List(ctx, kbID)
	if err != nil {
		return nil, err
	}
	return documents.GroupByHash(recs), nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, docID string) error {
	existing, _, err := s.load(ctx, docID)
	if err != nil || existing == nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.docKey(docID))
		pipe.ZRem(ctx, s.kbKey(existing.KBID), docID)
		if existing.HasHash() {
			pipe.ZRem(ctx, s.hashKey(existing.KBID, existing.FileHash), docID)
		}
		return nil
	})
	if err != nil {
		return errors.WrapResource("delete", "document", docID, err)
	}
	return nil
}

// Count implements Store.
func (s *RedisStore) Count(ctx context.Context, kbID string) (int, error) {
	n, err := s.client.ZCard(ctx, s.kbKey(kbID)).Result()
	if err != nil {
		return 0, errors.WrapResource("count", "knowledge base", kbID, err)
	}
	return int(n), nil
}

// List implements Store.
func (s *RedisStore) List(ctx context.Context, kbID string) ([]documents.Record, error) {
	ids, err := s.client.ZRange(ctx, s.kbKey(kbID), 0, -1).Result()
	if err != nil {
		return nil, errors.WrapResource("list", "knowledge base", kbID, err)
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.docKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, errors.WrapResource("list", "knowledge base", kbID, err)
	}

	recs := make([]documents.Record, 0, len(ids))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		rec, _ := decodeRecord(fields)
		recs = append(recs, rec)
	}
	return recs, nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func encodeRecord(rec documents.Record, seq int64) map[string]any {
	return map[string]any{
		"doc_id":      rec.DocID,
		"kb_id":       rec.KBID,
		"name":        rec.Name,
		"file_hash":   rec.FileHash,
		"create_date": rec.CreateDate,
		"update_date": rec.UpdateDate,
		"status":      rec.Status.Code(),
		"process_msg": rec.ProcessMsg,
		"process":     strconv.FormatFloat(rec.Process, 'f', -1, 64),
		"size":        strconv.FormatInt(rec.Size, 10),
		"source_type": rec.SourceType,
		"chunk_num":   strconv.Itoa(rec.ChunkNum),
		"run":         rec.Run.Code(),
		"seq":         strconv.FormatInt(seq, 10),
	}
}

func decodeRecord(fields map[string]string) (documents.Record, int64) {
	process, _ := strconv.ParseFloat(fields["process"], 64)
	size, _ := strconv.ParseInt(fields["size"], 10, 64)
	chunks, _ := strconv.Atoi(fields["chunk_num"])
	seq, _ := strconv.ParseInt(fields["seq"], 10, 64)
	return documents.Record{
		DocID:      fields["doc_id"],
		KBID:       fields["kb_id"],
		Name:       fields["name"],
		FileHash:   fields["file_hash"],
		CreateDate: fields["create_date"],
		UpdateDate: fields["update_date"],
		Status:     documents.ParseStatus(fields["status"]),
		ProcessMsg: fields["process_msg"],
		Process:    process,
		Size:       size,
		SourceType: fields["source_type"],
		ChunkNum:   chunks,
		Run:        documents.ParseRunState(fields["run"]),
	}, seq
}
