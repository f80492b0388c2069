package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultRequestQueue is the Redis list requests are pushed onto.
const DefaultRequestQueue = "apply:requests"

const (
	replyKeyPrefix = "apply:reply:"
	replyTTL       = time.Minute
	serverPoll     = time.Second
)

// RedisBus sends requests over a Redis list and waits on a per-request reply
// key. It is the agent side of the channel.
type RedisBus struct {
	rdb     *redis.Client
	queue   string
	timeout time.Duration
}

// NewRedisBus returns a bus pushing onto queue. timeout bounds the wait for
// each reply.
func NewRedisBus(rdb *redis.Client, queue string, timeout time.Duration) *RedisBus {
	if queue == "" {
		queue = DefaultRequestQueue
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RedisBus{rdb: rdb, queue: queue, timeout: timeout}
}

func (b *RedisBus) Send(ctx context.Context, req Request) (Response, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.ReplyTo = replyKeyPrefix + req.ID

	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}
	if err := b.rdb.LPush(ctx, b.queue, body).Err(); err != nil {
		return Response{}, fmt.Errorf("push %s: %w", req.Type, err)
	}

	res, err := b.rdb.BLPop(ctx, b.timeout, req.ReplyTo).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Response{}, fmt.Errorf("%s: %w", req.Type, ErrTimeout)
		}
		return Response{}, fmt.Errorf("wait reply %s: %w", req.Type, err)
	}
	// BLPOP returns [key, value]
	var resp Response
	if err := json.Unmarshal([]byte(res[1]), &resp); err != nil {
		return Response{}, fmt.Errorf("decode reply %s: %w", req.Type, err)
	}
	return resp, nil
}

// RedisServer pops requests off the list and answers them through router.
type RedisServer struct {
	rdb    *redis.Client
	queue  string
	router *Router
	log    *slog.Logger
}

// NewRedisServer returns a server for queue.
func NewRedisServer(rdb *redis.Client, queue string, router *Router, logger *slog.Logger) *RedisServer {
	if queue == "" {
		queue = DefaultRequestQueue
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisServer{rdb: rdb, queue: queue, router: router, log: logger}
}

// Run serves requests until ctx is cancelled. Requests are handled one at a
// time, in arrival order.
func (s *RedisServer) Run(ctx context.Context) error {
	s.log.Info("message server listening", "queue", s.queue, "types", len(s.router.Types()))
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		res, err := s.rdb.BRPop(ctx, serverPoll, s.queue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			s.log.Warn("pop request failed", "err", err)
			time.Sleep(serverPoll)
			continue
		}
		s.serve(ctx, []byte(res[1]))
	}
}

func (s *RedisServer) serve(ctx context.Context, body []byte) {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.log.Warn("dropping malformed request", "err", err)
		return
	}
	resp := s.router.Dispatch(ctx, req)
	if req.ReplyTo == "" {
		return
	}
	out, err := json.Marshal(resp)
	if err != nil {
		s.log.Error("marshal reply failed", "type", req.Type, "err", err)
		return
	}
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, req.ReplyTo, out)
	pipe.Expire(ctx, req.ReplyTo, replyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn("push reply failed", "type", req.Type, "err", err)
	}
}
