// Package metrics holds Prometheus instruments that are used across the
// service.  All collectors are registered with the global registry, so
// importing this package in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ActiveTenantPools = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tenant_pools_active",
			Help: "Number of tenant connection pools currently open.",
		})

	TenantPoolCreateTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenant_pool_create_total",
			Help: "Cumulative number of tenant pools successfully created.",
		})

	TenantPoolCreateErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenant_pool_create_errors_total",
			Help: "Cumulative number of tenant pool creation failures.",
		})

	TenantPoolCloseTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenant_pool_close_total",
			Help: "Cumulative number of tenant pools closed (maintenance, eviction, or shutdown).",
		})

	TenantCacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_cache_requests_total",
			Help: "Tenant metadata cache lookups by key kind and result.",
		}, []string{"kind", "result"})

	TenantCacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_cache_errors_total",
			Help: "Tenant metadata cache store failures by operation.",
		}, []string{"op"})

	TenantResolveErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_resolve_errors_total",
			Help: "Requests that could not be bound to a tenant, by reason.",
		}, []string{"reason"})

	TenantProvisionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_provision_total",
			Help: "Provisioning attempts by outcome (complete or the failed stage).",
		}, []string{"outcome"})

	TenantProvisionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tenant_provision_duration_seconds",
			Help:    "Wall time of provisioning runs.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		})

	ACLDeniedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acl_denied_total",
			Help: "Permission checks that denied access, by check mode.",
		}, []string{"mode"})
)

func init() {
	prometheus.MustRegister(
		ActiveTenantPools,
		TenantPoolCreateTotal,
		TenantPoolCreateErrorsTotal,
		TenantPoolCloseTotal,
		TenantCacheRequestsTotal,
		TenantCacheErrorsTotal,
		TenantResolveErrorsTotal,
		TenantProvisionTotal,
		TenantProvisionDuration,
		ACLDeniedTotal,
	)
}
