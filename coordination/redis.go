package coordination

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/riptide/core/logging"
	"github.com/riptide/core/redisx"
	"github.com/riptide/core/rerrors"
)

const membersZSetKey = "coordination:members"

// releaseScript releases a leader key only if it's still held by the
// calling candidate, preventing a slow caller from releasing a lock
// another candidate has since acquired.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Redis is a multi-instance Coordinator backed by redisx.Client,
// using SETNX for leader election, pub/sub for Publish/Subscribe, and
// a sorted set (scored by heartbeat expiry) for cluster membership.
type Redis struct {
	client *redisx.Client
	logger logging.Logger
}

var _ Coordinator = (*Redis)(nil)

// NewRedis builds a Redis-backed Coordinator over client.
func NewRedis(client *redisx.Client, logger logging.Logger) *Redis {
	if logger == nil {
		logger = logging.NoOp{}
	}
	return &Redis{client: client, logger: logger}
}

func (r *Redis) Publish(ctx context.Context, channel, payload string) error {
	return r.client.Publish(ctx, channel, payload)
}

func (r *Redis) Subscribe(ctx context.Context, channel string) (<-chan Message, func(), error) {
	pubsub := r.client.Subscribe(ctx, channel)
	out := make(chan Message, 64)

	go func() {
		defer close(out)
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- Message{Channel: channel, Payload: msg.Payload}:
				default:
					r.logger.Warn("coordination: subscriber buffer full, dropping message", map[string]interface{}{"channel": channel})
				}
			}
		}
	}()

	unsubscribe := func() { pubsub.Close() }
	return out, unsubscribe, nil
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl)
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, key)
	if err != nil {
		if rerrors.Is(err, rerrors.KindNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return v, true, nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key)
}

func (r *Redis) Campaign(ctx context.Context, electionName, candidateID string, ttl time.Duration) (bool, error) {
	key := electionKey(electionName)
	won, err := r.client.SetNX(ctx, key, candidateID, ttl)
	if err != nil {
		return false, err
	}
	if won {
		return true, nil
	}

	current, err := r.client.Get(ctx, key)
	if err != nil {
		if rerrors.Is(err, rerrors.KindNotFound) {
			// Key expired between SetNX and Get; retry once.
			won, err = r.client.SetNX(ctx, key, candidateID, ttl)
			return won, err
		}
		return false, err
	}
	if current != candidateID {
		return false, nil
	}
	// The incumbent is renewing; extend its TTL.
	if err := r.client.Set(ctx, key, candidateID, ttl); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Redis) Resign(ctx context.Context, electionName, candidateID string) error {
	_, err := r.client.Eval(ctx, releaseScript, []string{electionKey(electionName)}, candidateID)
	return err
}

func (r *Redis) Leader(ctx context.Context, electionName string) (string, error) {
	v, err := r.client.Get(ctx, electionKey(electionName))
	if err != nil {
		if rerrors.Is(err, rerrors.KindNotFound) {
			return "", nil
		}
		return "", err
	}
	return v, nil
}

func (r *Redis) JoinCluster(ctx context.Context, memberID string, ttl time.Duration) error {
	expiry := time.Now().Add(ttl)
	if err := r.client.ZAdd(ctx, membersZSetKey, &redis.Z{Score: float64(expiry.Unix()), Member: memberID}); err != nil {
		return err
	}
	return r.client.ZRemRangeByScore(ctx, membersZSetKey, "-inf", fmt.Sprintf("%d", time.Now().Unix()))
}

func (r *Redis) Members(ctx context.Context) ([]string, error) {
	now := time.Now().Unix()
	if err := r.client.ZRemRangeByScore(ctx, membersZSetKey, "-inf", fmt.Sprintf("%d", now)); err != nil {
		return nil, err
	}
	return r.client.ZRangeByScore(ctx, membersZSetKey, fmt.Sprintf("%d", now), "+inf")
}

func electionKey(electionName string) string {
	return "coordination:election:" + electionName
}
