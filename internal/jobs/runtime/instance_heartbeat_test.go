package runtime

import (
	"context"
	"testing"

	"proxyscout/internal/config"
	"proxyscout/internal/domain"
	"proxyscout/internal/jobs/checker"
)

// statusProber records the heartbeat status seen while a candidate is probed.
type statusProber struct {
	recordingProber
	heartbeat *Heartbeat
	seen      string
}

func (p *statusProber) Probe(ctx context.Context, candidate domain.Candidate, target string) (checker.ProbeResponse, error) {
	p.mu.Lock()
	p.seen = p.heartbeat.Status()
	p.mu.Unlock()
	return p.recordingProber.Probe(ctx, candidate, target)
}

func TestHeartbeatStatusFollowsCycle(t *testing.T) {
	h := NewHeartbeat(nil, nil)
	ctx := context.Background()

	if h.Status() != StatusIdle {
		t.Fatalf("initial status = %q, want idle", h.Status())
	}
	h.CycleStarted(ctx, "cycle-1")
	if h.Status() != "cycle-1" {
		t.Fatalf("status = %q, want cycle-1", h.Status())
	}
	h.CycleFinished(ctx)
	if h.Status() != StatusIdle {
		t.Fatalf("status = %q after finish, want idle", h.Status())
	}
}

func TestNilHeartbeatIsSafe(t *testing.T) {
	var h *Heartbeat
	ctx := context.Background()

	h.CycleStarted(ctx, "cycle-1")
	h.CycleFinished(ctx)
	h.Run(ctx)

	peers, err := h.Peers(ctx)
	if err != nil || peers != nil {
		t.Fatalf("Peers on nil heartbeat = %v, %v", peers, err)
	}
	if h.ID() != "" || h.Status() != "" {
		t.Fatalf("nil heartbeat should report empty id and status")
	}
}

func TestPeerStatuses(t *testing.T) {
	keys := []string{
		InstanceHeartbeatKeyPrefix + "host-a-1",
		InstanceHeartbeatKeyPrefix + "host-b-2",
		InstanceHeartbeatKeyPrefix + "host-c-3",
	}
	values := []any{"idle", "cycle-42", nil}

	peers := peerStatuses(InstanceHeartbeatKeyPrefix, keys, values)

	if len(peers) != 2 {
		t.Fatalf("peers = %v, want expired key dropped", peers)
	}
	if peers["host-a-1"] != StatusIdle || peers["host-b-2"] != "cycle-42" {
		t.Fatalf("unexpected peers: %v", peers)
	}
}

func TestRunningPeersExcludesSelfAndIdle(t *testing.T) {
	peers := map[string]string{
		"self":  "cycle-1",
		"idle":  StatusIdle,
		"other": "cycle-2",
	}

	running := runningPeers(peers, "self")
	if len(running) != 1 || running["other"] != "cycle-2" {
		t.Fatalf("running = %v, want only other", running)
	}
}

func TestRunCycleAdvertisesCycleOnHeartbeat(t *testing.T) {
	server := newListServer(t, map[string]string{"/list.txt": "1.2.3.4:8080\n"})
	prober := &statusProber{recordingProber: recordingProber{working: map[string]bool{"1.2.3.4:8080": true}}}

	sources := []config.Source{{URL: server.URL + "/list.txt", Format: config.FormatText}}
	runner := newTestRunner(sources, prober, &recordingSink{})
	runner.Heartbeat = NewHeartbeat(nil, nil)
	prober.heartbeat = runner.Heartbeat

	report, err := runner.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle returned error: %v", err)
	}
	if prober.seen != report.CycleID {
		t.Fatalf("status during verification = %q, want cycle id %q", prober.seen, report.CycleID)
	}
	if runner.Heartbeat.Status() != StatusIdle {
		t.Fatalf("status after cycle = %q, want idle", runner.Heartbeat.Status())
	}
}
