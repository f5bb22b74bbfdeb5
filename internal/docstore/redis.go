package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const casAttempts = 8

// Redis is a Store backed by a Redis instance. Documents are JSON
// envelopes under doc:<path>, collection membership is tracked in a set
// under col:<collection>, and change fanout rides pub/sub on
// docstore:<collection>.
type Redis struct {
	client *redis.Client
}

type redisEnvelope struct {
	Data      json.RawMessage `json:"data"`
	Version   int64           `json:"version"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// NewRedis connects to redisURL and verifies the connection.
func NewRedis(redisURL string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &Redis{client: client}, nil
}

// NewRedisWithClient wraps an existing client (tests use miniredis here).
func NewRedisWithClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func docKey(path string) string        { return "doc:" + path }
func colKey(collection string) string  { return "col:" + collection }
func chanKey(collection string) string { return "docstore:" + collection }

func (r *Redis) Get(ctx context.Context, path string) (Doc, error) {
	raw, err := r.client.Get(ctx, docKey(path)).Result()
	if errors.Is(err, redis.Nil) {
		return Doc{}, ErrNotFound
	}
	if err != nil {
		return Doc{}, fmt.Errorf("get %s: %w", path, err)
	}
	return decodeEnvelope(path, []byte(raw))
}

func (r *Redis) Update(ctx context.Context, path string, fn UpdateFn) (Doc, error) {
	key := docKey(path)
	var committed Doc

	txn := func(tx *redis.Tx) error {
		var envelope redisEnvelope
		raw, err := tx.Get(ctx, key).Result()
		switch {
		case errors.Is(err, redis.Nil):
			// document does not exist yet
		case err != nil:
			return fmt.Errorf("read %s: %w", path, err)
		default:
			if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
				return fmt.Errorf("decode %s: %w", path, err)
			}
		}

		next, err := fn(envelope.Data)
		if err != nil {
			return err
		}

		now, err := r.serverTime(ctx)
		if err != nil {
			now = time.Now().UTC()
		}
		envelope = redisEnvelope{Data: next, Version: envelope.Version + 1, UpdatedAt: now}
		payload, err := json.Marshal(envelope)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			pipe.SAdd(ctx, colKey(Collection(path)), path)
			return nil
		})
		if err != nil {
			return err
		}
		committed = Doc{Path: path, Data: envelope.Data, Version: envelope.Version, UpdatedAt: envelope.UpdatedAt}
		return nil
	}

	for attempt := 0; attempt < casAttempts; attempt++ {
		err := r.client.Watch(ctx, txn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return Doc{}, err
		}
		r.publish(ctx, Collection(path))
		return committed, nil
	}
	return Doc{}, ErrConflict
}

func (r *Redis) Delete(ctx context.Context, path string) error {
	removed, err := r.client.Del(ctx, docKey(path)).Result()
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	if removed == 0 {
		return ErrNotFound
	}
	if err := r.client.SRem(ctx, colKey(Collection(path)), path).Err(); err != nil {
		return fmt.Errorf("deindex %s: %w", path, err)
	}
	r.publish(ctx, Collection(path))
	return nil
}

func (r *Redis) Query(ctx context.Context, collection string, filter Filter) ([]Doc, error) {
	paths, err := r.client.SMembers(ctx, colKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("list collection %s: %w", collection, err)
	}
	sort.Strings(paths)

	docs := make([]Doc, 0, len(paths))
	for _, path := range paths {
		doc, err := r.Get(ctx, path)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !filter.Matches(doc) {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (r *Redis) Subscribe(ctx context.Context, collection string, filter Filter) (*Subscription, error) {
	pubsub := r.client.Subscribe(ctx, chanKey(collection))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", collection, err)
	}

	streamCtx, cancelCtx := context.WithCancel(context.Background())
	ch := make(chan Event, 1)

	go func() {
		if docs, err := r.Query(streamCtx, collection, filter); err == nil {
			send(ch, Event{Docs: docs})
		}
		messages := pubsub.Channel()
		for {
			select {
			case <-streamCtx.Done():
				return
			case _, ok := <-messages:
				if !ok {
					return
				}
				docs, err := r.Query(streamCtx, collection, filter)
				if err != nil {
					log.Printf("docstore: redis snapshot query %s: %v", collection, err)
					continue
				}
				send(ch, Event{Docs: docs})
			}
		}
	}()

	cancel := func() {
		cancelCtx()
		_ = pubsub.Close()
	}
	return newSubscription(ch, cancel), nil
}

func (r *Redis) Now(ctx context.Context) time.Time {
	now, err := r.serverTime(ctx)
	if err != nil {
		return time.Now().UTC()
	}
	return now
}

func (r *Redis) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }

func (r *Redis) Close() error { return r.client.Close() }

func (r *Redis) serverTime(ctx context.Context) (time.Time, error) {
	now, err := r.client.Time(ctx).Result()
	if err != nil {
		return time.Time{}, err
	}
	return now.UTC(), nil
}

func (r *Redis) publish(ctx context.Context, collection string) {
	if err := r.client.Publish(ctx, chanKey(collection), "changed").Err(); err != nil {
		log.Printf("docstore: redis publish %s: %v", collection, err)
	}
}

func decodeEnvelope(path string, raw []byte) (Doc, error) {
	var envelope redisEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Doc{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return Doc{Path: path, Data: envelope.Data, Version: envelope.Version, UpdatedAt: envelope.UpdatedAt}, nil
}
