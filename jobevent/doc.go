// Package jobevent defines the job event entity, the normalized job
// snapshot, and the reconciliation fold that turns one into the other.
//
// # Event Entity
//
// A [JobEvent] is one entry from a cluster's job journal, normalized
// into a stable shape: cluster name, scheduler-assigned job ID, event
// type, timestamp, and an opaque payload. [Normalize] accepts the raw
// journal shapes that schedulers actually emit (id/jobid, type/name,
// t/timestamp, data/context/inline) and rejects entries without a job ID.
//
// # Snapshot
//
// A [JobRecord] is the current view of one job on one cluster. It is
// never written directly: every backend derives it by calling [Apply]
// for each event, so snapshot semantics cannot diverge between stores:
//
//	submit → state=submitted, user, workdir, submit time
//	state  → state name, last-updated watermark
//	state INACTIVE + status → exit code (terminal only)
//
// Other journal event names (alloc, start, finish, free, ...) land in
// the event log but leave the snapshot untouched apart from the
// last-updated watermark.
package jobevent
