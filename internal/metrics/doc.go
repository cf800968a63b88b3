// Package metrics declares the Prometheus instruments of the alarm daemon and
// serves them, together with a health endpoint, over HTTP.
package metrics
