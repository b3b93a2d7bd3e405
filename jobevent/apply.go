package jobevent

// Apply folds one event into a job snapshot and reports whether the
// snapshot changed. All store backends reconcile through this single
// function so their snapshot semantics cannot drift apart.
//
// Rules:
//   - submit populates identity fields (user, workdir, submit time) and
//     moves the state to submitted, even when a later state event already
//     advanced it. Back-to-back identical submits are idempotent.
//   - state moves the state to the name carried in the payload. Reaching
//     the terminal state with a "status" in the payload records the exit
//     code; a non-terminal state never does.
//   - every event advances LastUpdated, which never goes backwards.
//
// A state event for a job with no prior submit still applies: the
// snapshot exists with empty identity fields until a submit arrives.
func Apply(rec *JobRecord, evt *JobEvent) bool {
	if rec.Cluster == "" {
		rec.Cluster = evt.Cluster
		rec.JobID = evt.JobID
	}

	changed := false

	switch evt.Type {
	case TypeSubmit:
		if rec.State != StateSubmitted {
			rec.State = StateSubmitted
			changed = true
		}
		if user, ok := stringField(evt.Payload, "userid", "user"); ok && rec.User != user {
			rec.User = user
			changed = true
		}
		if wd, ok := stringField(evt.Payload, "cwd", "workdir"); ok && rec.Workdir != wd {
			rec.Workdir = wd
			changed = true
		}
		if rec.SubmitTime == 0 && evt.Timestamp != 0 {
			rec.SubmitTime = evt.Timestamp
			changed = true
		}

	case TypeState:
		name, ok := stringField(evt.Payload, "state", "state_name")
		if ok && name != "" && rec.State != JobState(name) {
			rec.State = JobState(name)
			changed = true
		}
		if rec.State.Terminal() {
			if status, ok := intField(evt.Payload, "status"); ok {
				if rec.ExitCode == nil || *rec.ExitCode != status {
					rec.ExitCode = &status
					changed = true
				}
			}
		}
	}

	if evt.Timestamp > rec.LastUpdated {
		rec.LastUpdated = evt.Timestamp
		changed = true
	}

	return changed
}
