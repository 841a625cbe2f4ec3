package health

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func result(name string, start time.Time, err error, okMessage string, metadata map[string]interface{}) ComponentHealth {
	c := ComponentHealth{
		Name:        name,
		Status:      HealthStateHealthy,
		Message:     okMessage,
		LastChecked: time.Now(),
		Duration:    time.Since(start),
		Metadata:    metadata,
	}
	if err != nil {
		c.Status = HealthStateUnhealthy
		c.Message = name + " check failed"
		c.Error = err.Error()
	}
	return c
}

// DatabaseHealthCheck pings a database/sql pool (sqlite or lib/pq).
type DatabaseHealthCheck struct {
	name string
	db   *sql.DB
}

func NewDatabaseHealthCheck(name string, db *sql.DB) *DatabaseHealthCheck {
	return &DatabaseHealthCheck{name: name, db: db}
}

func (d *DatabaseHealthCheck) Name() string { return d.name }

func (d *DatabaseHealthCheck) Check(ctx context.Context) ComponentHealth {
	start := time.Now()
	err := d.db.PingContext(ctx)
	stats := d.db.Stats()
	return result(d.name, start, err, "Database connection healthy", map[string]interface{}{
		"open_connections":     stats.OpenConnections,
		"in_use_connections":   stats.InUse,
		"idle_connections":     stats.Idle,
		"max_open_connections": stats.MaxOpenConnections,
	})
}

// RedisHealthCheck pings a redis client.
type RedisHealthCheck struct {
	client *redis.Client
}

func NewRedisHealthCheck(client *redis.Client) *RedisHealthCheck {
	return &RedisHealthCheck{client: client}
}

func (r *RedisHealthCheck) Name() string { return "redis" }

func (r *RedisHealthCheck) Check(ctx context.Context) ComponentHealth {
	start := time.Now()
	err := r.client.Ping(ctx).Err()
	stats := r.client.PoolStats()
	return result(r.Name(), start, err, "Redis connection healthy", map[string]interface{}{
		"total_connections": stats.TotalConns,
		"idle_connections":  stats.IdleConns,
		"hits":              stats.Hits,
		"timeouts":          stats.Timeouts,
	})
}

// PoolHealthCheck pings a pgx pool.
type PoolHealthCheck struct {
	pool *pgxpool.Pool
}

func NewPoolHealthCheck(pool *pgxpool.Pool) *PoolHealthCheck {
	return &PoolHealthCheck{pool: pool}
}

func (p *PoolHealthCheck) Name() string { return "postgres" }

func (p *PoolHealthCheck) Check(ctx context.Context) ComponentHealth {
	start := time.Now()
	err := p.pool.Ping(ctx)
	stats := p.pool.Stat()
	return result(p.Name(), start, err, "Database pool healthy", map[string]interface{}{
		"total_connections":    stats.TotalConns(),
		"idle_connections":     stats.IdleConns(),
		"acquired_connections": stats.AcquiredConns(),
		"max_connections":      stats.MaxConns(),
	})
}

// Pinger is any store that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreHealthCheck pings a storage backend without native metrics.
type StoreHealthCheck struct {
	name  string
	store Pinger
}

func NewStoreHealthCheck(name string, store Pinger) *StoreHealthCheck {
	return &StoreHealthCheck{name: name, store: store}
}

func (s *StoreHealthCheck) Name() string { return s.name }

func (s *StoreHealthCheck) Check(ctx context.Context) ComponentHealth {
	start := time.Now()
	return result(s.name, start, s.store.Ping(ctx), "Store reachable", nil)
}

// BreakerHealthCheck reports the AI adapter's circuit breaker. The AI is
// optional, so an open breaker is a warning rather than a failure.
type BreakerHealthCheck struct {
	name  string
	state func() string
}

func NewBreakerHealthCheck(name string, state func() string) *BreakerHealthCheck {
	return &BreakerHealthCheck{name: name, state: state}
}

func (b *BreakerHealthCheck) Name() string { return b.name }

func (b *BreakerHealthCheck) Check(context.Context) ComponentHealth {
	start := time.Now()
	state := b.state()
	c := result(b.name, start, nil, "Circuit closed", map[string]interface{}{"breaker_state": state})
	switch state {
	case "closed":
	case "half-open":
		c.Status = HealthStateWarning
		c.Message = "Circuit half-open, probing service"
	default:
		c.Status = HealthStateWarning
		c.Message = "Circuit " + state + ", AI features degraded"
	}
	return c
}
