package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"gymweb/internal/lib/logger/sl"
	"gymweb/internal/storage"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Store keeps every session key as a field of one Redis hash and announces
// each write on a pub/sub channel so that other gateway processes sharing the
// hash can drop what they derived from it.
type Store struct {
	log     *slog.Logger
	client  *Client
	key     string
	channel string
	origin  string
}

type changeMessage struct {
	Origin string   `json:"origin"`
	Keys   []string `json:"keys"`
}

func NewStore(log *slog.Logger, client *Client, namespace string) *Store {
	return &Store{
		log:     log,
		client:  client,
		key:     sessionKey(namespace),
		channel: changesChannel(namespace),
		origin:  uuid.NewString(),
	}
}

// Origin identifies change messages published by this store.
func (s *Store) Origin() string {
	return s.origin
}

func (s *Store) Get(ctx context.Context, field string) (string, error) {
	const op = "storage.redis.Get"

	val, err := s.client.HGet(ctx, s.key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", storage.ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w: %v", op, storage.ErrUnavailable, err)
	}

	return val, nil
}

func (s *Store) SetMany(ctx context.Context, values map[string]string) error {
	const op = "storage.redis.SetMany"

	if len(values) == 0 {
		return nil
	}

	fields := make([]string, 0, len(values))
	for k := range values {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	pairs := make([]any, 0, len(values)*2)
	for _, k := range fields {
		pairs = append(pairs, k, values[k])
	}

	msg, err := s.message(fields)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key, pairs...)
		pipe.Publish(ctx, s.channel, msg)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w: %v", op, storage.ErrUnavailable, err)
	}

	return nil
}

func (s *Store) Delete(ctx context.Context, fields ...string) error {
	const op = "storage.redis.Delete"

	if len(fields) == 0 {
		return nil
	}

	sorted := append([]string(nil), fields...)
	sort.Strings(sorted)

	msg, err := s.message(sorted)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, s.key, sorted...)
		pipe.Publish(ctx, s.channel, msg)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w: %v", op, storage.ErrUnavailable, err)
	}

	return nil
}

// Watch reports changes published by other stores on the same namespace.
func (s *Store) Watch(ctx context.Context, fn func(keys []string)) error {
	const op = "storage.redis.Watch"

	pubsub := s.client.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}

			var change changeMessage
			if err := json.Unmarshal([]byte(m.Payload), &change); err != nil {
				s.log.Warn("skipping malformed change message", slog.String("op", op), sl.Err(err))
				continue
			}
			if change.Origin == s.origin {
				continue
			}

			fn(change.Keys)
		}
	}
}

func (s *Store) message(keys []string) (string, error) {
	b, err := json.Marshal(changeMessage{Origin: s.origin, Keys: keys})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func sessionKey(namespace string) string {
	return "session:" + namespace
}

func changesChannel(namespace string) string {
	return "session:" + namespace + ":changes"
}
