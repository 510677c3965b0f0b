package runtime

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

const (
	InstanceHeartbeatKeyPrefix = "proxyscout:instance:"
	DefaultHeartbeatInterval   = 15 * time.Second
	DefaultHeartbeatTTL        = 30 * time.Second

	// StatusIdle is advertised between cycles.
	StatusIdle = "idle"

	peerScanCount = 100
)

// Heartbeat advertises this instance in redis under a key that expires unless
// refreshed. The value is the id of the cycle the instance is running, or
// StatusIdle.
type Heartbeat struct {
	client   redis.Cmdable
	id       string
	prefix   string
	interval time.Duration
	ttl      time.Duration
	clock    clock.Clock

	status atomic.Value
}

func NewHeartbeat(client redis.Cmdable, c clock.Clock) *Heartbeat {
	if c == nil {
		c = clock.New()
	}
	h := &Heartbeat{
		client:   client,
		id:       generateInstanceID(),
		prefix:   InstanceHeartbeatKeyPrefix,
		interval: DefaultHeartbeatInterval,
		ttl:      DefaultHeartbeatTTL,
		clock:    c,
	}
	h.status.Store(StatusIdle)
	return h
}

func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d-%d", hostname, os.Getpid(), time.Now().UnixNano())
}

func (h *Heartbeat) ID() string {
	if h == nil {
		return ""
	}
	return h.id
}

func (h *Heartbeat) Status() string {
	if h == nil {
		return ""
	}
	return h.status.Load().(string)
}

// CycleStarted advertises cycleID right away instead of waiting for the next
// beat, so peers skipping a tick can name the instance that holds the lock.
func (h *Heartbeat) CycleStarted(ctx context.Context, cycleID string) {
	if h == nil {
		return
	}
	h.status.Store(cycleID)
	h.beat(ctx)
}

func (h *Heartbeat) CycleFinished(ctx context.Context) {
	if h == nil {
		return
	}
	h.status.Store(StatusIdle)
	h.beat(ctx)
}

// Run refreshes the heartbeat until ctx is done and then removes the key.
func (h *Heartbeat) Run(ctx context.Context) {
	if h == nil || h.client == nil {
		return
	}

	h.beat(ctx)

	ticker := h.clock.Ticker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.remove()
			return
		case <-ticker.C:
			h.beat(ctx)
		}
	}
}

func (h *Heartbeat) beat(ctx context.Context) {
	if h.client == nil {
		return
	}
	key := h.prefix + h.id
	if err := h.client.SetEx(ctx, key, h.Status(), h.ttl).Err(); err != nil && ctx.Err() == nil {
		log.Error("Failed to update instance heartbeat", "key", key, "error", err)
	}
}

func (h *Heartbeat) remove() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = h.client.Del(ctx, h.prefix+h.id).Err()
}

// Peers returns the advertised status of every live instance, keyed by
// instance id, this one included.
func (h *Heartbeat) Peers(ctx context.Context) (map[string]string, error) {
	if h == nil || h.client == nil {
		return nil, nil
	}

	var keys []string
	iter := h.client.Scan(ctx, 0, h.prefix+"*", peerScanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("runtime: scan heartbeats: %w", err)
	}
	if len(keys) == 0 {
		return map[string]string{}, nil
	}

	values, err := h.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("runtime: read heartbeats: %w", err)
	}
	return peerStatuses(h.prefix, keys, values), nil
}

// peerStatuses pairs scanned keys with their values. Keys that expired
// between SCAN and MGET come back nil and are dropped.
func peerStatuses(prefix string, keys []string, values []any) map[string]string {
	peers := make(map[string]string, len(keys))
	for i, key := range keys {
		if i >= len(values) {
			break
		}
		status, ok := values[i].(string)
		if !ok {
			continue
		}
		peers[strings.TrimPrefix(key, prefix)] = status
	}
	return peers
}

// runningPeers lists the peers other than self that advertise a cycle.
func runningPeers(peers map[string]string, self string) map[string]string {
	running := make(map[string]string)
	for id, status := range peers {
		if id == self || status == StatusIdle || status == "" {
			continue
		}
		running[id] = status
	}
	return running
}
