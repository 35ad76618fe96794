// Package objstore is the indexed store for gallery image records. The
// key-value adapter has a small per-value ceiling, so image payloads are
// kept here instead: record metadata and secondary indexes in Redis,
// raw bytes in a pluggable blob backend.
package objstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// schemaVersion guards one-time collection setup. Bump only with a
// migration for the index keys below.
const schemaVersion = "1"

const (
	recPrefix  = "galleryImages:rec:"
	typePrefix = "galleryImages:type:"
	relPrefix  = "galleryImages:rel:"
	createdKey = "galleryImages:created"
	schemaKey  = "galleryImages:schema"
)

// Record is one stored image. The payload itself lives in the blob
// backend under BlobKey.
type Record struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	RelatedID   string    `json:"relatedId"`
	ContentType string    `json:"contentType"`
	Size        int       `json:"size"`
	BlobKey     string    `json:"blobKey"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Store indexes Records by type, related entity and creation time.
type Store struct {
	client *redis.Client
	blobs  BlobStore
}

// New prepares the store. Setup is idempotent: the schema marker is
// written once and later opens are no-ops.
func New(ctx context.Context, client *redis.Client, blobs BlobStore) (*Store, error) {
	current, err := client.Get(ctx, schemaKey).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("read schema version: %w", err)
	}
	if current == "" {
		if err := client.Set(ctx, schemaKey, schemaVersion, 0).Err(); err != nil {
			return nil, fmt.Errorf("write schema version: %w", err)
		}
	} else if current != schemaVersion {
		return nil, fmt.Errorf("unsupported galleryImages schema %q", current)
	}
	return &Store{client: client, blobs: blobs}, nil
}

// Put stores payload in the blob backend and indexes rec. The blob is
// written first so an indexed record always has readable bytes.
func (s *Store) Put(ctx context.Context, rec Record, payload []byte) error {
	if rec.ID == "" {
		return fmt.Errorf("record id is required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.BlobKey = rec.ID
	rec.Size = len(payload)

	if err := s.blobs.Put(ctx, rec.BlobKey, payload, rec.ContentType); err != nil {
		return err
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, recPrefix+rec.ID, raw, 0)
	pipe.SAdd(ctx, typePrefix+rec.Type, rec.ID)
	if rec.RelatedID != "" {
		pipe.SAdd(ctx, relPrefix+rec.RelatedID, rec.ID)
	}
	pipe.ZAdd(ctx, createdKey, redis.Z{Score: float64(rec.CreatedAt.UnixMilli()), Member: rec.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("index record %s: %w", rec.ID, err)
	}
	return nil
}

// Get returns a single record by id.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	raw, err := s.client.Get(ctx, recPrefix+id).Result()
	if err == redis.Nil {
		return Record{}, fmt.Errorf("record %s not found", id)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get record %s: %w", id, err)
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return Record{}, fmt.Errorf("unmarshal record %s: %w", id, err)
	}
	return rec, nil
}

// Payload returns the raw image bytes for a record.
func (s *Store) Payload(ctx context.Context, rec Record) ([]byte, error) {
	return s.blobs.Get(ctx, rec.BlobKey)
}

// GetAll returns every record ordered by creation time ascending.
func (s *Store) GetAll(ctx context.Context) ([]Record, error) {
	ids, err := s.client.ZRange(ctx, createdKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return s.fetch(ctx, ids)
}

// GetAllByType returns records with the given type, ordered by creation
// time ascending.
func (s *Store) GetAllByType(ctx context.Context, typ string) ([]Record, error) {
	ids, err := s.client.SMembers(ctx, typePrefix+typ).Result()
	if err != nil {
		return nil, fmt.Errorf("list records by type %s: %w", typ, err)
	}
	recs, err := s.fetch(ctx, ids)
	if err != nil {
		return nil, err
	}
	sortByCreated(recs)
	return recs, nil
}

// GetAllByRelatedID returns records referencing the given entity id,
// ordered by creation time ascending. The index is non-unique: one task
// or project may accumulate several documentation images.
func (s *Store) GetAllByRelatedID(ctx context.Context, relatedID string) ([]Record, error) {
	ids, err := s.client.SMembers(ctx, relPrefix+relatedID).Result()
	if err != nil {
		return nil, fmt.Errorf("list records by related %s: %w", relatedID, err)
	}
	recs, err := s.fetch(ctx, ids)
	if err != nil {
		return nil, err
	}
	sortByCreated(recs)
	return recs, nil
}

// Delete removes a record, its index entries and its payload. Deleting
// an unknown id is a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, recPrefix+id)
	pipe.SRem(ctx, typePrefix+rec.Type, id)
	if rec.RelatedID != "" {
		pipe.SRem(ctx, relPrefix+rec.RelatedID, id)
	}
	pipe.ZRem(ctx, createdKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("deindex record %s: %w", id, err)
	}
	return s.blobs.Remove(ctx, rec.BlobKey)
}

// Clear removes every record and payload.
func (s *Store) Clear(ctx context.Context) error {
	recs, err := s.GetAll(ctx)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if err := s.Delete(ctx, rec.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) fetch(ctx context.Context, ids []string) ([]Record, error) {
	recs := make([]Record, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if err != nil {
			// Index entries can briefly outlive their record; skip holes.
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func sortByCreated(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].CreatedAt.Before(recs[j].CreatedAt)
	})
}
