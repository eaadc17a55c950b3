package alloc

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	AllocStatsName = "xcontainer/xalloc"
)

type allocStats struct {
	allocatedCount metric.Int64Counter
	releasedCount  metric.Int64Counter
	failedCount    metric.Int64Counter
	liveBytes      metric.Int64UpDownCounter
	allocatedSizes metric.Int64Histogram
	liveObjects    metric.Int64ObservableGauge
}

func (stats *allocStats) IncreaseAllocatedCount() {
	if stats == nil {
		return
	}
	stats.allocatedCount.Add(context.Background(), 1)
}

func (stats *allocStats) IncreaseReleasedCount() {
	if stats == nil {
		return
	}
	stats.releasedCount.Add(context.Background(), 1)
}

func (stats *allocStats) IncreaseFailedCount() {
	if stats == nil {
		return
	}
	stats.failedCount.Add(context.Background(), 1)
}

func (stats *allocStats) RecordLiveBytes(delta int64) {
	if stats == nil {
		return
	}
	stats.liveBytes.Add(context.Background(), delta)
}

func (stats *allocStats) RecordAllocatedSize(size int64) {
	if stats == nil {
		return
	}
	stats.allocatedSizes.Record(context.Background(), size)
}

// WithLeakCheckStats publishes the wrapper's counters through the
// global otel meter provider.
func WithLeakCheckStats() LeakCheckOption {
	return func(a *xLeakCheckAllocator) {
		a.statsEnabled = true
	}
}

func newAllocStats(ref *xLeakCheckAllocator) *allocStats {
	meterName := fmt.Sprintf("%s/%s", AllocStatsName, ref.name)
	stats := &allocStats{
		allocatedCount: lo.Must[metric.Int64Counter](otel.Meter(meterName).
			Int64Counter(
				"xalloc.allocated.count",
				metric.WithDescription("The number of allocations served by the allocator."),
			),
		),
		releasedCount: lo.Must[metric.Int64Counter](otel.Meter(meterName).
			Int64Counter(
				"xalloc.released.count",
				metric.WithDescription("The number of blocks returned to the allocator."),
			),
		),
		failedCount: lo.Must[metric.Int64Counter](otel.Meter(meterName).
			Int64Counter(
				"xalloc.failed.count",
				metric.WithDescription("The number of allocations the allocator refused."),
			),
		),
		liveBytes: lo.Must[metric.Int64UpDownCounter](otel.Meter(meterName).
			Int64UpDownCounter(
				"xalloc.live.bytes",
				metric.WithDescription("The live bytes currently drawn from the allocator."),
				metric.WithUnit("By"),
			),
		),
		allocatedSizes: lo.Must[metric.Int64Histogram](otel.Meter(meterName).
			Int64Histogram(
				"xalloc.allocated.size",
				metric.WithDescription("The size distribution of served allocations."),
				metric.WithUnit("By"),
			),
		),
	}
	stats.liveObjects = lo.Must[metric.Int64ObservableGauge](otel.Meter(meterName).
		Int64ObservableGauge(
			"xalloc.live.objects",
			metric.WithDescription("The number of live blocks tracked by the leak check allocator."),
			metric.WithInt64Callback(func(ctx context.Context, ob metric.Int64Observer) error {
				ob.Observe(int64(ref.LiveAllocations()))
				return nil
			}),
		),
	)
	return stats
}
