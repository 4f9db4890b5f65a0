package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PoolAllocsTotal counts successful pool allocations
	PoolAllocsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "membank_pool_allocs_total",
			Help: "Total number of successful pool allocations",
		},
	)

	// PoolFreesTotal counts successful pool frees
	PoolFreesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "membank_pool_frees_total",
			Help: "Total number of successful pool frees",
		},
	)

	// PoolResizesTotal counts resizes by outcome
	PoolResizesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membank_pool_resizes_total",
			Help: "Total number of successful pool resizes",
		},
		[]string{"outcome"}, // "in_place" or "moved"
	)

	// PoolOutOfSpaceTotal counts allocations refused for lack of a
	// large enough contiguous free extent
	PoolOutOfSpaceTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "membank_pool_out_of_space_total",
			Help: "Total number of allocations refused because no free extent was large enough",
		},
	)

	// PoolFaultsTotal counts rejected operations by fault kind
	PoolFaultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membank_pool_faults_total",
			Help: "Total number of pool operations rejected by validation",
		},
		[]string{"kind"}, // "uninitialized", "nil_ref", "out_of_bounds", "not_allocated", "invalid_size"
	)

	// PoolLiveBytes tracks bytes currently handed out to callers
	PoolLiveBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "membank_pool_live_bytes",
			Help: "Bytes currently allocated to callers",
		},
	)

	// PoolFreeBytes tracks bytes currently in the free registry
	PoolFreeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "membank_pool_free_bytes",
			Help: "Bytes currently available in the free registry",
		},
	)

	// PoolFreeExtents tracks the number of free extents (fragmentation signal)
	PoolFreeExtents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "membank_pool_free_extents",
			Help: "Number of entries in the free registry",
		},
	)

	// PoolLiveAllocations tracks the number of live allocations
	PoolLiveAllocations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "membank_pool_live_allocations",
			Help: "Number of live allocations",
		},
	)

	// BarrierWaitsTotal counts completed barrier rendezvous cycles
	BarrierWaitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "membank_barrier_waits_total",
			Help: "Total number of completed barrier cycles",
		},
	)
)
