package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/asafee03-dev/partyroom/internal/game/room"
)

const (
	roomKeyPrefix     = "room:"
	roomChannelPrefix = "room.snapshots:"

	// TTL safety net well past the reaper's max room age.
	roomExpiration = 2 * time.Hour

	// WATCH transactions retried this many times on contention.
	casMaxRetries = 5
)

// ErrCodeTaken is returned by Create when the room code already exists.
var ErrCodeTaken = errors.New("room code already taken")

// RedisStore is the durable RoomStore. Every room is one JSON document
// under room:<code>; writers swing a compare-and-swap on the document's
// version so a stale writer fails instead of clobbering state.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Create persists a brand-new room. The SetNX guarantees code
// uniqueness across processes.
func (rs *RedisStore) Create(ctx context.Context, r *room.Room) error {
	data, err := room.Encode(r)
	if err != nil {
		return err
	}

	ok, err := rs.client.SetNX(ctx, roomKeyPrefix+r.Code, data, roomExpiration).Result()
	if err != nil {
		return fmt.Errorf("create room %s: %w", r.Code, err)
	}
	if !ok {
		return ErrCodeTaken
	}
	return nil
}

// Get loads a room; found is false when the code is unknown.
func (rs *RedisStore) Get(ctx context.Context, code string) (*room.Room, bool, error) {
	data, err := rs.client.Get(ctx, roomKeyPrefix+code).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get room %s: %w", code, err)
	}

	r, err := room.Decode(data)
	if err != nil {
		return nil, false, err
	}
	return r, true, nil
}

// CompareAndSwap writes r only if the stored document still carries
// expectedVersion. Returns ok=false on a version mismatch or a missing
// key; the transaction is retried on WATCH contention.
func (rs *RedisStore) CompareAndSwap(ctx context.Context, code string, expectedVersion int64, r *room.Room) (bool, error) {
	key := roomKeyPrefix + code
	data, err := room.Encode(r)
	if err != nil {
		return false, err
	}

	swapped := false
	txf := func(tx *redis.Tx) error {
		stored, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil // room deleted under us; ok stays false
		}
		if err != nil {
			return err
		}

		var head struct {
			Version int64 `json:"version"`
		}
		if err := json.Unmarshal(stored, &head); err != nil {
			return fmt.Errorf("decode stored room %s: %w", code, err)
		}
		if head.Version != expectedVersion {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, roomExpiration)
			return nil
		})
		if err == nil {
			swapped = true
		}
		return err
	}

	for attempt := 0; attempt < casMaxRetries; attempt++ {
		err := rs.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue // key moved mid-transaction, re-read and retry
		}
		if err != nil {
			return false, fmt.Errorf("cas room %s: %w", code, err)
		}
		if swapped {
			rs.publish(ctx, r, data)
		}
		return swapped, nil
	}
	return false, fmt.Errorf("cas room %s: %w", code, redis.TxFailedErr)
}

// Delete retires a room's document.
func (rs *RedisStore) Delete(ctx context.Context, code string) error {
	if err := rs.client.Del(ctx, roomKeyPrefix+code).Err(); err != nil {
		return fmt.Errorf("delete room %s: %w", code, err)
	}
	return nil
}

// ListCodes scans all live room codes for the reaper.
func (rs *RedisStore) ListCodes(ctx context.Context) ([]string, error) {
	var codes []string
	iter := rs.client.Scan(ctx, 0, roomKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		codes = append(codes, iter.Val()[len(roomKeyPrefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan rooms: %w", err)
	}
	return codes, nil
}

// Subscribe streams committed snapshots of one room for cross-process
// fan-out. The returned cancel func tears the subscription down.
func (rs *RedisStore) Subscribe(ctx context.Context, code string) (<-chan *room.Room, func()) {
	pubsub := rs.client.Subscribe(ctx, roomChannelPrefix+code)
	out := make(chan *room.Room, 16)

	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			r, err := room.Decode([]byte(msg.Payload))
			if err != nil {
				log.Printf("drop malformed snapshot for room %s: %v", code, err)
				continue
			}
			select {
			case out <- r:
			default: // slow consumer, drop rather than stall the feed
			}
		}
	}()

	return out, func() { _ = pubsub.Close() }
}

func (rs *RedisStore) publish(ctx context.Context, r *room.Room, data []byte) {
	if err := rs.client.Publish(ctx, roomChannelPrefix+r.Code, data).Err(); err != nil {
		log.Printf("publish snapshot for room %s: %v", r.Code, err)
	}
}
