// Package fluxmcp provides a library-first ingestion and query layer for
// Flux job lifecycle events. It connects to one or more Flux clusters,
// streams their job journals, reconciles each event into a per-job
// snapshot alongside an append-only event log, and exposes the result
// through a query service and a WebSocket wire protocol.
//
// fluxmcp is designed as a library, not a service. Import it, configure a
// store, register clusters, and start one engine per cluster.
//
// # Quick Start
//
//	st := memory.New()
//	reg := cluster.NewRegistry(cluster.WithDialer(dial))
//	err := reg.Register(ctx, "default", "local", map[string]string{"uri": "local:///run/flux"})
//
//	h, _ := reg.Handle("default")
//	eng := engine.New("default", h.Events, sink.NewLocal(st))
//	err = eng.Start(ctx)
//
// # Architecture
//
// The ingestion side is intentionally thin: one blocking poll loop per
// cluster feeds a bounded channel, and a single consumer drains it into a
// Sink. A Sink either records into the local store or forwards upstream
// over the wire protocol, so an edge deployment and a central aggregator
// run the same engine.
//
// Generated identifiers use TypeID: type-prefixed, K-sortable,
// UUIDv7-based, compile-time safe identifiers. Job IDs themselves stay
// scheduler-assigned integers.
package fluxmcp
