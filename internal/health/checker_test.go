package health

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caddl-lab-desk/internal/store"
)

type staticCheck struct {
	name   string
	status HealthState
	delay  time.Duration
}

func (s staticCheck) Name() string { return s.name }

func (s staticCheck) Check(ctx context.Context) ComponentHealth {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return ComponentHealth{Name: s.name, Status: HealthStateUnhealthy, Error: ctx.Err().Error()}
	}
	return ComponentHealth{Name: s.name, Status: s.status}
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestAggregateStatus(t *testing.T) {
	tests := []struct {
		name   string
		checks []HealthCheck
		want   HealthState
	}{
		{"no checks", nil, HealthStateHealthy},
		{"all healthy", []HealthCheck{staticCheck{name: "a", status: HealthStateHealthy}, staticCheck{name: "b", status: HealthStateHealthy}}, HealthStateHealthy},
		{"warning", []HealthCheck{staticCheck{name: "a", status: HealthStateHealthy}, staticCheck{name: "b", status: HealthStateWarning}}, HealthStateWarning},
		{"unhealthy wins", []HealthCheck{staticCheck{name: "a", status: HealthStateWarning}, staticCheck{name: "b", status: HealthStateUnhealthy}}, HealthStateUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewChecker("test", time.Second, quietLogger())
			for _, c := range tt.checks {
				checker.RegisterCheck(c)
			}
			status := checker.Run(context.Background())
			assert.Equal(t, tt.want, status.Overall)
			assert.Len(t, status.Components, len(tt.checks))
			assert.Equal(t, "test", status.Version)
		})
	}
}

func TestChecksRunInParallelUnderTimeout(t *testing.T) {
	checker := NewChecker("test", 50*time.Millisecond, quietLogger())
	checker.RegisterCheck(staticCheck{name: "slow", status: HealthStateHealthy, delay: time.Second})
	checker.RegisterCheck(staticCheck{name: "fast", status: HealthStateHealthy})

	start := time.Now()
	status := checker.Run(context.Background())
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, HealthStateUnhealthy, status.Components["slow"].Status)
	assert.Equal(t, HealthStateHealthy, status.Components["fast"].Status)
}

func TestGetStatusCachesLastRun(t *testing.T) {
	checker := NewChecker("test", time.Second, quietLogger())
	checker.RegisterCheck(staticCheck{name: "a", status: HealthStateHealthy})

	first := checker.GetStatus(context.Background())
	assert.Equal(t, int64(1), first.CheckCount)
	again := checker.GetStatus(context.Background())
	assert.Equal(t, int64(1), again.CheckCount)

	checker.Run(context.Background())
	assert.Equal(t, int64(2), checker.GetStatus(context.Background()).CheckCount)
	assert.Equal(t, []string{"a"}, checker.Names())
}

func TestDatabaseHealthCheck(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()
	c := NewDatabaseHealthCheck("sqlite", db).Check(context.Background())
	assert.Equal(t, HealthStateHealthy, c.Status)
	assert.Contains(t, c.Metadata, "open_connections")

	mock.ExpectPing().WillReturnError(errors.New("database is locked"))
	c = NewDatabaseHealthCheck("sqlite", db).Check(context.Background())
	assert.Equal(t, HealthStateUnhealthy, c.Status)
	assert.Equal(t, "database is locked", c.Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreHealthCheck(t *testing.T) {
	ok := NewStoreHealthCheck("store", store.NewMemoryStore()).Check(context.Background())
	assert.Equal(t, HealthStateHealthy, ok.Status)

	bad := NewStoreHealthCheck("store", failingPinger{}).Check(context.Background())
	assert.Equal(t, HealthStateUnhealthy, bad.Status)
}

func TestBreakerHealthCheck(t *testing.T) {
	for state, want := range map[string]HealthState{
		"closed":    HealthStateHealthy,
		"half-open": HealthStateWarning,
		"open":      HealthStateWarning,
	} {
		c := NewBreakerHealthCheck("ai", func() string { return state }).Check(context.Background())
		assert.Equal(t, want, c.Status, state)
		assert.Equal(t, state, c.Metadata["breaker_state"])
	}
}

func TestStartStopsWithContext(t *testing.T) {
	checker := NewChecker("test", time.Second, quietLogger())
	checker.RegisterCheck(staticCheck{name: "a", status: HealthStateHealthy})

	ctx, cancel := context.WithCancel(context.Background())
	checker.Start(ctx, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		return checker.GetStatus(context.Background()).CheckCount >= 2
	}, time.Second, 5*time.Millisecond)
	cancel()
}
