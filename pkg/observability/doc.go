/*
Package observability provides tools for monitoring the arbor engine.

Metrics turns lifecycle events into Prometheus counters. Combine fans several
domain.LifecycleHooks out from a single engine option, so metrics and
structured logging can observe the same transitions.
*/
package observability
