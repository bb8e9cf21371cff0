// Package prometheus exposes marketauth metrics to Prometheus.
//
// [PrometheusExporter] is a prometheus.Collector that reads
// [marketauth.Engine.MetricsSnapshot] on every scrape. Counter names are
// prefixed marketauth_*_total; the single histogram is
// marketauth_login_latency_seconds.
//
// # What this package must NOT do
//
//   - Register with prometheus.DefaultRegisterer. Callers register the
//     collector themselves or mount [PrometheusExporter.Handler].
//   - Mutate engine state.
package prometheus
