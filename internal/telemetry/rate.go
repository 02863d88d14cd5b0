package telemetry

import (
	"context"
	"sync/atomic"
	"time"
)

// RateEstimator samples Counters on an interval and keeps an EMA-smoothed
// bytes/sec estimate for in-process introspection, independent of the
// stats-file tick which the link engine drives separately.
type RateEstimator struct {
	counters *Counters

	sampleInterval time.Duration
	emaAlpha       float64

	inRate  atomic.Uint64
	outRate atomic.Uint64

	lastIn, lastOut uint64
	inEMA, outEMA   float64
	started         atomic.Bool
}

// NewRateEstimator builds an estimator over counters, sampling every
// interval with EMA smoothing factor alpha in [0,1].
func NewRateEstimator(counters *Counters, interval time.Duration, alpha float64) *RateEstimator {
	if interval <= 0 {
		interval = time.Second
	}
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	return &RateEstimator{counters: counters, sampleInterval: interval, emaAlpha: alpha}
}

// Run samples until ctx is done. Call once, from its own goroutine.
func (r *RateEstimator) Run(ctx context.Context) {
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	ticker := time.NewTicker(r.sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sample()
		}
	}
}

func (r *RateEstimator) sample() {
	seconds := r.sampleInterval.Seconds()
	if seconds <= 0 {
		return
	}
	snap := r.counters.Snapshot()

	inDelta := snap.BytesIn - r.lastIn
	outDelta := snap.BytesOut - r.lastOut
	r.lastIn, r.lastOut = snap.BytesIn, snap.BytesOut

	inPerSec := float64(inDelta) / seconds
	outPerSec := float64(outDelta) / seconds

	if r.emaAlpha > 0 {
		r.inEMA = ema(r.inEMA, inPerSec, r.emaAlpha)
		r.outEMA = ema(r.outEMA, outPerSec, r.emaAlpha)
		inPerSec, outPerSec = r.inEMA, r.outEMA
	}

	r.inRate.Store(uint64(inPerSec))
	r.outRate.Store(uint64(outPerSec))
}

func ema(prev, sample, alpha float64) float64 {
	if prev == 0 {
		return sample
	}
	return alpha*sample + (1-alpha)*prev
}

// Rates returns the current smoothed bytes/sec estimates (in, out).
func (r *RateEstimator) Rates() (in, out uint64) {
	return r.inRate.Load(), r.outRate.Load()
}
