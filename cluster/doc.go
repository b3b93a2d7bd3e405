// Package cluster provides named handles to Flux clusters and the
// registry that manages them.
//
// # Handles
//
// A [Handle] is the control surface for one cluster: submit, cancel,
// job info, and the journal [EventSource] the engine polls. Every
// operation takes a caller identity and consults the registry's
// [fluxmcp.AuthGate] before touching the scheduler, so authorization is
// enforced at the handle boundary and never re-checked below it.
//
// Two handle types ship with the package:
//   - [LocalHandle] ("local") wraps a scheduler connection obtained
//     from an injected [Dialer], reconnecting lazily when it drops.
//   - [RemoteHandle] ("remote") proxies operations to a peer server
//     over the wire protocol.
//
// Additional transports register a [Factory] under their own type tag.
//
// # Registry
//
// The [Registry] maps names to connected handles. Registration is
// all-or-nothing: a handle that fails its initial Connect is closed and
// never stored.
package cluster
