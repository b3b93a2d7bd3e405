package redis

import (
	"fmt"
	"strconv"
	"strings"
)

// Redis key naming conventions. All keys are prefixed with "fluxmcp:"
// to avoid collisions.

const keyPrefix = "fluxmcp:"

// jobKey returns the Hash key for a job snapshot: fluxmcp:job:{cluster}:{id}
func jobKey(cluster string, jobID int64) string {
	return fmt.Sprintf("%sjob:%s:%d", keyPrefix, cluster, jobID)
}

// eventsKey returns the Sorted Set key for a job's event log:
// fluxmcp:events:{cluster}:{id}
func eventsKey(cluster string, jobID int64) string {
	return fmt.Sprintf("%sevents:%s:%d", keyPrefix, cluster, jobID)
}

// jobsIndexKey is the Set tracking all known jobs for enumeration.
const jobsIndexKey = keyPrefix + "jobs"

// indexMember encodes a job identity for the enumeration Set. Cluster
// names may not contain '|'.
func indexMember(cluster string, jobID int64) string {
	return cluster + "|" + strconv.FormatInt(jobID, 10)
}

// parseIndexMember is the inverse of indexMember.
func parseIndexMember(member string) (string, int64, bool) {
	i := strings.LastIndexByte(member, '|')
	if i < 0 {
		return "", 0, false
	}
	jobID, err := strconv.ParseInt(member[i+1:], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return member[:i], jobID, true
}
