package chatauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var errCorrelationBackend = errors.New("correlation backend unavailable")

// correlationStore maps one-time correlation ids to JSON-serialized
// conversation locators. Entries are single-writer/single-reader: written by
// the dialog at prompt time, read once by the callback handler, deleted on
// the success path. The configured TTL is the reaping policy for abandoned
// logins; zero keeps orphans forever.
type correlationStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func newCorrelationStore(redisClient redis.UniversalClient, prefix string, ttl time.Duration) *correlationStore {
	return &correlationStore{
		redis:  redisClient,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *correlationStore) key(id string) string {
	return s.prefix + ":" + id
}

func (s *correlationStore) Save(ctx context.Context, id string, ref *ConversationRef) error {
	encoded, err := json.Marshal(ref)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(id), encoded, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errCorrelationBackend, err)
	}
	return nil
}

// Get resolves a correlation id. Arbitrary external actors can hit the
// callback endpoint with any state value, so an unknown or expired id is a
// handled ErrCorrelationNotFound, never a panic.
func (s *correlationStore) Get(ctx context.Context, id string) (*ConversationRef, error) {
	data, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCorrelationNotFound
		}
		return nil, fmt.Errorf("%w: %v", errCorrelationBackend, err)
	}

	ref := &ConversationRef{}
	if err := json.Unmarshal(data, ref); err != nil {
		return nil, fmt.Errorf("%w: corrupt locator: %v", ErrCorrelationNotFound, err)
	}
	return ref, nil
}

func (s *correlationStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := s.redis.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", errCorrelationBackend, err)
	}
	return nil
}
