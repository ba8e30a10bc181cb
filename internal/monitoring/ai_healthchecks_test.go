package monitoring

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type scriptedChecker struct {
	mu      sync.Mutex
	answers []bool
	calls   int
}

func (s *scriptedChecker) HealthCheck(context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	answer := s.answers[min(s.calls, len(s.answers)-1)]
	s.calls++
	return answer
}

func (s *scriptedChecker) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestMonitorClassifierHealth(t *testing.T) {
	checker := &scriptedChecker{answers: []bool{false, true}}
	healthy := &atomic.Bool{}
	healthy.Store(true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		MonitorClassifierHealth(ctx, checker, healthy, 5*time.Millisecond)
		close(done)
	}()

	// first probe fails, every later one succeeds
	assert.Eventually(t, func() bool { return checker.Calls() >= 2 && healthy.Load() },
		time.Second, time.Millisecond)

	cancel()
	<-done
}

func TestMonitorClassifierHealth_StopsOnCancel(t *testing.T) {
	checker := &scriptedChecker{answers: []bool{true}}
	healthy := &atomic.Bool{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	MonitorClassifierHealth(ctx, checker, healthy, time.Hour)
	assert.Equal(t, 1, checker.Calls())
	assert.True(t, healthy.Load())
}
