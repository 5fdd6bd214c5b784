// Package metrics records build, watch and publish metrics.
//
// Components receive a Recorder and default to NoopRecorder, so metrics
// collection never needs nil checks. The preview server swaps in a
// PrometheusRecorder on a private registry and serves it over HTTP.
package metrics
