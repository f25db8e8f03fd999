package storage

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// loadDocument decodes the JSON document stored under key. A missing key
// yields the zero value. A document that fails to decode is logged and treated
// as missing; only storage errors are returned.
func loadDocument[T any](ctx context.Context, kv KV, log *zap.Logger, key string) (T, error) {
	var doc T
	raw, ok, err := kv.Get(ctx, key)
	if err != nil || !ok {
		return doc, err
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		log.Warn("discarding corrupted document", zap.String("key", key), zap.Error(err))
		var zero T
		return zero, nil
	}
	return doc, nil
}

func saveDocument(ctx context.Context, kv KV, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s", key)
	}
	return kv.Put(ctx, key, string(payload))
}

// ClearAll removes sessions, card state and deck statistics. Source configuration is kept.
func ClearAll(ctx context.Context, kv KV) error {
	return kv.Delete(ctx, KeySessions, KeyCardState, KeyDeckStats)
}
