package health

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/cache"
	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/config"
)

// State is the circuit position for one vendor.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// GaugeValue maps the state onto the metric encoding.
func (s State) GaugeValue() float64 {
	switch s {
	case StateOpen:
		return 1
	case StateHalfOpen:
		return 2
	default:
		return 0
	}
}

// Snapshot is the externally visible circuit position.
type Snapshot struct {
	State    State     `json:"state"`
	Failures int       `json:"failures"`
	Trips    int       `json:"trips"`
	OpenedAt time.Time `json:"opened_at,omitempty"`
	Forced   string    `json:"forced,omitempty"` // "open", "closed" or empty
}

// Circuit is a per-vendor breaker whose state lives in a Redis hash, so every
// process sees the same position. Consecutive failures past the threshold trip
// it; a single systemic failure trips it immediately. Repeated trips back off
// exponentially, capped at ten times the base open duration.
type Circuit struct {
	client *redis.Client
	cfg    config.HealthConfig
	logger *zap.Logger
	clock  func() time.Time
}

// NewCircuit builds the breaker.
func NewCircuit(client *redis.Client, cfg config.HealthConfig, logger *zap.Logger) *Circuit {
	return &Circuit{client: client, cfg: cfg, logger: logger, clock: time.Now}
}

func (c *Circuit) key(vendorName string) string {
	return cache.HealthCircuitPref + vendorName
}

// Allow reports whether a request may go to the vendor, transitioning an
// expired open circuit to half-open as a side effect.
func (c *Circuit) Allow(ctx context.Context, vendorName string) (bool, State, error) {
	snap, err := c.load(ctx, vendorName)
	if err != nil {
		// When Redis is down, health cannot veto traffic.
		return true, StateClosed, err
	}

	switch snap.Forced {
	case "open":
		return false, StateOpen, nil
	case "closed":
		return true, StateClosed, nil
	}

	switch snap.State {
	case StateOpen:
		if c.clock().Sub(snap.OpenedAt) >= c.openDuration(snap.Trips) {
			if err := c.client.HSet(ctx, c.key(vendorName),
				"state", string(StateHalfOpen),
				"half_open_successes", 0,
			).Err(); err != nil {
				return false, StateOpen, err
			}
			c.logger.Info("circuit half-open", zap.String("vendor", vendorName))
			return true, StateHalfOpen, nil
		}
		return false, StateOpen, nil
	case StateHalfOpen:
		return true, StateHalfOpen, nil
	default:
		return true, StateClosed, nil
	}
}

// RecordSuccess resets the failure streak and, in half-open, counts probe
// successes toward closing.
func (c *Circuit) RecordSuccess(ctx context.Context, vendorName string) error {
	snap, err := c.load(ctx, vendorName)
	if err != nil {
		return err
	}
	if snap.Forced != "" {
		return nil
	}

	key := c.key(vendorName)
	switch snap.State {
	case StateHalfOpen:
		successes := snap.halfOpenSuccesses + 1
		if successes >= c.cfg.HalfOpenRequests {
			err := c.client.HSet(ctx, key,
				"state", string(StateClosed),
				"failures", 0,
				"half_open_successes", 0,
				"closed_at", c.clock().UnixNano(),
			).Err()
			if err == nil {
				c.logger.Info("circuit closed", zap.String("vendor", vendorName),
					zap.Int("probes", successes))
			}
			return err
		}
		return c.client.HSet(ctx, key, "half_open_successes", successes).Err()
	default:
		// Trips reset once the circuit has stayed closed for a full window;
		// the next trip then pays base backoff again.
		if snap.Trips > 0 && !snap.closedAt.IsZero() &&
			c.clock().Sub(snap.closedAt) >= c.cfg.Window {
			return c.client.HSet(ctx, key, "failures", 0, "trips", 0).Err()
		}
		if snap.Failures > 0 {
			return c.client.HSet(ctx, key, "failures", 0).Err()
		}
		return nil
	}
}

// RecordFailure counts a failure and trips the circuit when warranted. A
// systemic failure trips regardless of the streak.
func (c *Circuit) RecordFailure(ctx context.Context, vendorName string, systemic bool) error {
	snap, err := c.load(ctx, vendorName)
	if err != nil {
		return err
	}
	if snap.Forced != "" {
		return nil
	}

	if snap.State == StateHalfOpen {
		return c.trip(ctx, vendorName, snap.Trips, "half-open probe failed")
	}

	failures := snap.Failures + 1
	if systemic {
		return c.trip(ctx, vendorName, snap.Trips, "systemic failure")
	}
	if failures >= c.cfg.FailureThreshold {
		return c.trip(ctx, vendorName, snap.Trips, fmt.Sprintf("%d consecutive failures", failures))
	}
	return c.client.HSet(ctx, c.key(vendorName), "failures", failures).Err()
}

func (c *Circuit) trip(ctx context.Context, vendorName string, previousTrips int, reason string) error {
	trips := previousTrips + 1
	err := c.client.HSet(ctx, c.key(vendorName),
		"state", string(StateOpen),
		"failures", 0,
		"half_open_successes", 0,
		"trips", trips,
		"opened_at", c.clock().UnixNano(),
	).Err()
	if err == nil {
		c.logger.Warn("circuit opened",
			zap.String("vendor", vendorName),
			zap.String("reason", reason),
			zap.Int("trips", trips),
			zap.Duration("open_for", c.openDuration(trips)))
	}
	return err
}

// Force pins the circuit open or closed until cleared. Admin override.
// Forcing closed is a full reset: state, failure streak and trip count all
// clear, so the breaker restarts from a clean position once the override is
// lifted.
func (c *Circuit) Force(ctx context.Context, vendorName string, state State) error {
	if state != StateOpen && state != StateClosed {
		return fmt.Errorf("cannot force circuit to %q", state)
	}
	if state == StateClosed {
		return c.client.HSet(ctx, c.key(vendorName),
			"forced", string(state),
			"state", string(StateClosed),
			"failures", 0,
			"trips", 0,
			"half_open_successes", 0,
		).Err()
	}
	return c.client.HSet(ctx, c.key(vendorName), "forced", string(state)).Err()
}

// ClearForce removes a manual override.
func (c *Circuit) ClearForce(ctx context.Context, vendorName string) error {
	return c.client.HDel(ctx, c.key(vendorName), "forced").Err()
}

// Inspect returns the current circuit position.
func (c *Circuit) Inspect(ctx context.Context, vendorName string) (Snapshot, error) {
	snap, err := c.load(ctx, vendorName)
	if err != nil {
		return Snapshot{}, err
	}
	return snap.Snapshot, nil
}

// openDuration is base * min(10, 2^(trips-1)).
func (c *Circuit) openDuration(trips int) time.Duration {
	if trips < 1 {
		trips = 1
	}
	factor := math.Min(10, math.Pow(2, float64(trips-1)))
	return time.Duration(float64(c.cfg.BaseOpenDuration) * factor)
}

type circuitRecord struct {
	Snapshot
	halfOpenSuccesses int
	closedAt          time.Time
}

func (c *Circuit) load(ctx context.Context, vendorName string) (circuitRecord, error) {
	fields, err := c.client.HGetAll(ctx, c.key(vendorName)).Result()
	if err != nil {
		return circuitRecord{Snapshot: Snapshot{State: StateClosed}}, err
	}

	rec := circuitRecord{Snapshot: Snapshot{State: StateClosed}}
	if s, ok := fields["state"]; ok && s != "" {
		rec.State = State(s)
	}
	rec.Failures = atoiField(fields, "failures")
	rec.Trips = atoiField(fields, "trips")
	rec.halfOpenSuccesses = atoiField(fields, "half_open_successes")
	rec.Forced = fields["forced"]
	if raw, ok := fields["opened_at"]; ok {
		if ns, err := strconv.ParseInt(raw, 10, 64); err == nil {
			rec.OpenedAt = time.Unix(0, ns)
		}
	}
	if raw, ok := fields["closed_at"]; ok {
		if ns, err := strconv.ParseInt(raw, 10, 64); err == nil {
			rec.closedAt = time.Unix(0, ns)
		}
	}
	return rec, nil
}

func atoiField(fields map[string]string, name string) int {
	n, _ := strconv.Atoi(fields[name])
	return n
}
