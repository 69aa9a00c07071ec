package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

type countingSweeper struct {
	runs atomic.Int32
}

func (c *countingSweeper) Sweep() int {
	c.runs.Add(1)
	return 0
}

func TestSchedulerRunsSweep(t *testing.T) {
	sweeper := &countingSweeper{}
	s := New(sweeper, time.Hour, zap.NewNop())
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for sweeper.runs.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("sweep never ran")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
