package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRedisUnavailable wraps transport-level Redis failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrWriteConflict is returned when the stored state changed between the
	// caller's Read and its Write. The caller re-reads and retries.
	ErrWriteConflict = errors.New("session state write conflict")
	// ErrStateCorrupt is returned when a stored blob cannot be decoded.
	ErrStateCorrupt = errors.New("session state corrupt")
)

// Store persists State blobs keyed by (channelID, userID).
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a Store with the given key prefix.
func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	return &Store{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *Store) key(channelID, userID string) string {
	return s.prefix + ":" + channelID + ":" + userID
}

// Read fetches the state for a user. A missing key yields a fresh zero-value
// State (version 0), never an error: new users simply have no state yet.
func (s *Store) Read(ctx context.Context, channelID, userID string) (*State, error) {
	data, err := s.redis.Get(ctx, s.key(channelID, userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &State{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	state, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStateCorrupt, err)
	}
	return state, nil
}

// Write commits the state conditionally: it succeeds only when the stored
// version still equals the version captured by the Read that produced st.
// On success st's version is advanced so the caller may write again without
// re-reading. Interleaving writers get ErrWriteConflict, not a lost update.
func (s *Store) Write(ctx context.Context, channelID, userID string, st *State) error {
	key := s.key(channelID, userID)
	expected := st.version

	next := *st
	next.version = expected + 1
	encoded, err := Encode(&next)
	if err != nil {
		return err
	}

	err = s.redis.Watch(ctx, func(tx *redis.Tx) error {
		current := uint64(0)
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			stored, err := Decode(data)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrStateCorrupt, err)
			}
			current = stored.version
		}

		if current != expected {
			return ErrWriteConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		st.version = next.version
		return nil
	case errors.Is(err, redis.TxFailedErr):
		// Another writer touched the key mid-transaction.
		return ErrWriteConflict
	case errors.Is(err, ErrWriteConflict), errors.Is(err, ErrStateCorrupt):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
}

// Delete removes the stored state. Idempotent.
func (s *Store) Delete(ctx context.Context, channelID, userID string) error {
	if err := s.redis.Del(ctx, s.key(channelID, userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
