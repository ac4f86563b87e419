package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"schedula/client/internal/store"
)

var _ store.KV = (*KVStore)(nil)

type deviceKV struct {
	bun.BaseModel `bun:"table:device_kv"`

	Key       string    `bun:"key,pk"`
	Value     string    `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

func (m *deviceKV) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.InsertQuery, *bun.UpdateQuery:
		m.UpdatedAt = time.Now().UTC()
	}
	return nil
}

// KVStore persists device key-value pairs in the device_kv table. Keys are
// namespaced with prefix so several profiles can share one database.
type KVStore struct {
	db     bun.IDB
	prefix string
}

func NewKVStore(db bun.IDB, prefix string) *KVStore {
	return &KVStore{db: db, prefix: prefix}
}

func EnsureSchema(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateTable().
		Model((*deviceKV)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func (s *KVStore) Get(ctx context.Context, key string) (string, error) {
	var row deviceKV
	err := s.db.NewSelect().
		Model(&row).
		Where("key = ?", s.prefix+key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", store.ErrNotFound
		}
		return "", err
	}
	return row.Value, nil
}

func (s *KVStore) Set(ctx context.Context, key, value string) error {
	row := deviceKV{Key: s.prefix + key, Value: value}
	_, err := s.db.NewInsert().
		Model(&row).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *KVStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, s.prefix+k)
	}
	_, err := s.db.NewDelete().
		Model((*deviceKV)(nil)).
		Where("key IN (?)", bun.In(full)).
		Exec(ctx)
	return err
}
