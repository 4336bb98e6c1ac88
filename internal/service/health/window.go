package health

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/cache"
)

// sampleSeq disambiguates members recorded in the same nanosecond.
var sampleSeq atomic.Uint64

// Delivery and SMS outcomes are short series: only the newest samples count,
// regardless of traffic volume.
const (
	maxDeliverySamples = 50
	maxSMSSamples      = 100
)

// SampleStore keeps per-vendor request outcomes in a Redis sorted set, scored
// by timestamp. The store is shared by every process, so the API and the sync
// worker contribute to the same picture of vendor health.
type SampleStore struct {
	client *redis.Client
	window time.Duration
}

// NewSampleStore builds a sample store over the sliding window.
func NewSampleStore(client *redis.Client, window time.Duration) *SampleStore {
	return &SampleStore{client: client, window: window}
}

// Record appends one request outcome and prunes samples older than the window.
func (s *SampleStore) Record(ctx context.Context, vendorName string, success bool, latency time.Duration) error {
	now := time.Now()
	ok := 0
	if success {
		ok = 1
	}
	member := fmt.Sprintf("%d:%d:%d:%d", now.UnixNano(), ok, latency.Milliseconds(), sampleSeq.Add(1))

	key := cache.HealthSamplesPref + vendorName
	cutoff := now.Add(-s.window).UnixNano()

	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: member})
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10))
	pipe.Expire(ctx, key, 2*s.window)
	_, err := pipe.Exec(ctx)
	return err
}

// RecordDelivery appends one SMS delivery duration (buy to first message).
func (s *SampleStore) RecordDelivery(ctx context.Context, vendorName string, elapsed time.Duration) error {
	now := time.Now()
	member := fmt.Sprintf("%d:%d:%d", now.UnixNano(), elapsed.Milliseconds(), sampleSeq.Add(1))

	key := cache.HealthDeliveryPre + vendorName
	// Delivery times move slowly; keep a longer horizon than request samples.
	horizon := 24 * time.Hour
	cutoff := now.Add(-horizon).UnixNano()

	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: member})
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10))
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-(maxDeliverySamples + 1)))
	pipe.Expire(ctx, key, 2*horizon)
	_, err := pipe.Exec(ctx)
	return err
}

// RecordSMSOutcome notes whether an activation ultimately delivered an SMS.
func (s *SampleStore) RecordSMSOutcome(ctx context.Context, vendorName string, delivered bool) error {
	now := time.Now()
	ok := 0
	if delivered {
		ok = 1
	}
	member := fmt.Sprintf("%d:%d:%d", now.UnixNano(), ok, sampleSeq.Add(1))

	key := cache.HealthSMSPref + vendorName
	horizon := 24 * time.Hour
	cutoff := now.Add(-horizon).UnixNano()

	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: member})
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10))
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-(maxSMSSamples + 1)))
	pipe.Expire(ctx, key, 2*horizon)
	_, err := pipe.Exec(ctx)
	return err
}

// SuccessRate computes the exponentially decayed success rate over the window.
// Each sample is weighted 0.5^(age / (window/4)), so the most recent quarter of
// the window dominates and a recovering vendor is re-scored within seconds. A
// vendor with no samples scores 1.0: new vendors start fully trusted.
func (s *SampleStore) SuccessRate(ctx context.Context, vendorName string, now time.Time) (float64, error) {
	members, err := s.windowMembers(ctx, cache.HealthSamplesPref+vendorName, now, s.window)
	if err != nil {
		return 0, err
	}
	if len(members) == 0 {
		return 1.0, nil
	}

	halfLife := s.window.Seconds() / 4
	var weightTotal, weightSuccess float64
	for _, m := range members {
		ts, ok, _, valid := parseSample(m)
		if !valid {
			continue
		}
		age := now.Sub(time.Unix(0, ts)).Seconds()
		if age < 0 {
			age = 0
		}
		w := math.Pow(0.5, age/halfLife)
		weightTotal += w
		if ok {
			weightSuccess += w
		}
	}
	if weightTotal == 0 {
		return 1.0, nil
	}
	return weightSuccess / weightTotal, nil
}

// AvgLatency computes the decay-weighted mean request latency over the window.
func (s *SampleStore) AvgLatency(ctx context.Context, vendorName string, now time.Time) (time.Duration, error) {
	members, err := s.windowMembers(ctx, cache.HealthSamplesPref+vendorName, now, s.window)
	if err != nil {
		return 0, err
	}

	halfLife := s.window.Seconds() / 4
	var weightTotal, weighted float64
	for _, m := range members {
		ts, _, latencyMs, valid := parseSample(m)
		if !valid {
			continue
		}
		age := now.Sub(time.Unix(0, ts)).Seconds()
		if age < 0 {
			age = 0
		}
		w := math.Pow(0.5, age/halfLife)
		weightTotal += w
		weighted += w * float64(latencyMs)
	}
	if weightTotal == 0 {
		return 0, nil
	}
	return time.Duration(weighted/weightTotal) * time.Millisecond, nil
}

// AvgDelivery computes the mean SMS delivery time over the last day.
func (s *SampleStore) AvgDelivery(ctx context.Context, vendorName string, now time.Time) (time.Duration, error) {
	members, err := s.windowMembers(ctx, cache.HealthDeliveryPre+vendorName, now, 24*time.Hour)
	if err != nil {
		return 0, err
	}
	if len(members) == 0 {
		return 0, nil
	}

	var total int64
	var n int64
	for _, m := range members {
		parts := strings.Split(m, ":")
		if len(parts) < 2 {
			continue
		}
		ms, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			continue
		}
		total += ms
		n++
	}
	if n == 0 {
		return 0, nil
	}
	return time.Duration(total/n) * time.Millisecond, nil
}

// DeliveryRate computes the share of activations that delivered an SMS over the
// last day. No data scores 1.0.
func (s *SampleStore) DeliveryRate(ctx context.Context, vendorName string, now time.Time) (float64, error) {
	members, err := s.windowMembers(ctx, cache.HealthSMSPref+vendorName, now, 24*time.Hour)
	if err != nil {
		return 0, err
	}
	if len(members) == 0 {
		return 1.0, nil
	}

	var delivered, total int
	for _, m := range members {
		parts := strings.Split(m, ":")
		if len(parts) < 2 {
			continue
		}
		total++
		if parts[1] == "1" {
			delivered++
		}
	}
	if total == 0 {
		return 1.0, nil
	}
	return float64(delivered) / float64(total), nil
}

func (s *SampleStore) windowMembers(ctx context.Context, key string, now time.Time, window time.Duration) ([]string, error) {
	cutoff := now.Add(-window).UnixNano()
	return s.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: strconv.FormatInt(cutoff, 10),
		Max: "+inf",
	}).Result()
}

// parseSample splits "<unixnano>:<0|1>:<latencyMs>:<seq>".
func parseSample(member string) (ts int64, success bool, latencyMs int64, valid bool) {
	parts := strings.Split(member, ":")
	if len(parts) < 3 {
		return 0, false, 0, false
	}
	ts, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, false, 0, false
	}
	latencyMs, err = strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return 0, false, 0, false
	}
	return ts, parts[1] == "1", latencyMs, true
}
