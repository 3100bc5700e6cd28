package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AssetsAdded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediavault_assets_added_total",
		Help: "Assets admitted into a collection.",
	}, []string{"collection"})

	AssetsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediavault_assets_rejected_total",
		Help: "Admissions rejected by collection policy, by reason.",
	}, []string{"reason"})

	AssetsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediavault_assets_evicted_total",
		Help: "Assets soft-deleted by single-file replacement or keep-latest eviction.",
	})

	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediavault_jobs_processed_total",
		Help: "Queue jobs processed, by type and outcome.",
	}, []string{"type", "outcome"})

	VariantsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediavault_variants_generated_total",
		Help: "Variants written by the variants process.",
	}, []string{"variant"})

	AssetsPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediavault_assets_purged_total",
		Help: "Soft-deleted assets permanently removed by garbage collection.",
	})

	GCFileErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediavault_gc_file_errors_total",
		Help: "File deletions that failed during garbage collection.",
	})

	PendingExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediavault_pending_expired_total",
		Help: "Pending assets removed after their TTL elapsed.",
	})
)
