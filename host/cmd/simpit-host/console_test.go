package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"simpit/host/config"
	"simpit/host/simpit"
	"simpit/host/telemetry"
	"simpit/protocol"
)

func newLoopbackEngine(t *testing.T) *engine {
	t.Helper()
	dev := newSimulatedDevice()

	cfg := config.Default()
	engineCfg := cfg.EngineConfig()
	engineCfg.PollInterval = time.Millisecond
	engineCfg.HeartbeatInterval = 0
	host := simpit.New(dev, engineCfg)

	cache := telemetry.NewCache(zerolog.Nop())
	cache.Attach(host)

	return &engine{cfg: cfg, log: zerolog.Nop(), host: host, cache: cache, closer: dev}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSimulatedSession(t *testing.T) {
	e := newLoopbackEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.host.Run(ctx) }()

	waitFor(t, "handshake", func() bool { return e.host.State() == simpit.StateEstablished })
	waitFor(t, "altitude", func() bool {
		_, ok := e.cache.Get(protocol.DatagramAltitude)
		return ok
	})

	var out bytes.Buffer
	runConsole(e, strings.NewReader("toggle sas\nactivate 3\nbogus\nquit\n"), &out)

	waitFor(t, "action status", func() bool {
		u, ok := e.cache.Get(protocol.DatagramActionStatus)
		return ok && u.Payload.Equal(protocol.ActionGroups(protocol.ActionSAS))
	})

	if !strings.Contains(out.String(), "unknown command: bogus") {
		t.Errorf("Expected unknown command error, got %q", out.String())
	}
	if strings.Count(out.String(), "OK") != 2 {
		t.Errorf("Expected two successful commands, got %q", out.String())
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Expected nil from Run, got %v", err)
	}
}

func TestRunCommandUsage(t *testing.T) {
	e := newLoopbackEngine(t)

	tests := [][]string{
		{"enable"},
		{"enable", "warp"},
		{"toggle", "warp"},
		{"activate", "11"},
		{"throttle", "lots"},
	}
	for _, parts := range tests {
		if err := runCommand(e.host, parts); err == nil {
			t.Errorf("Expected error for %v", parts)
		}
	}
}
