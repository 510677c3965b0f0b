package publish

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "proxyscout"

// RedisSink replaces one list per protocol, the elite list and a summary hash
// in a single transaction.
type RedisSink struct {
	client redis.Cmdable
	prefix string
}

func NewRedisSink(client redis.Cmdable, prefix string) *RedisSink {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisSink{client: client, prefix: prefix}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Publish(ctx context.Context, report Report) error {
	lists, summary := s.layout(report)

	pipe := s.client.TxPipeline()
	for key, values := range lists {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			args := make([]any, len(values))
			for i, v := range values {
				args[i] = v
			}
			pipe.RPush(ctx, key, args...)
		}
	}
	pipe.HSet(ctx, s.key("summary"), summary)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write lists: %w", err)
	}
	return nil
}

// layout maps the report onto redis keys and the summary hash fields.
func (s *RedisSink) layout(report Report) (map[string][]string, map[string]any) {
	names, protocolValues := protocolLists(report)

	lists := make(map[string][]string, len(names)+1)
	summary := map[string]any{
		"cycle_id":   report.CycleID,
		"updated_at": report.FinishedAt.UTC().Format(time.RFC3339),
		"working":    strconv.Itoa(len(report.Entries)),
	}
	for _, name := range names {
		lists[s.key(name)] = protocolValues[name]
		summary[name] = strconv.Itoa(len(protocolValues[name]))
	}

	elite := eliteList(report)
	lists[s.key(eliteListName)] = elite
	summary[eliteListName] = strconv.Itoa(len(elite))

	return lists, summary
}

func (s *RedisSink) key(name string) string {
	return s.prefix + ":" + name
}
