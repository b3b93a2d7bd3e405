package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/converged-computing/flux-mcp-server/cluster"
	"github.com/converged-computing/flux-mcp-server/jobevent"
	"github.com/converged-computing/flux-mcp-server/sink"
	"github.com/converged-computing/flux-mcp-server/swp"
)

var (
	_ sink.Forwarder     = (*Client)(nil)
	_ cluster.RemoteConn = (*Client)(nil)
)

// IngestEvent forwards one job event to the remote server. The event is
// re-encoded in raw journal shape so the receiving side runs it through
// the same normalization as a locally polled entry.
func (c *Client) IngestEvent(ctx context.Context, clusterName string, evt *jobevent.JobEvent) error {
	raw := map[string]any{
		"id":   evt.JobID,
		"type": string(evt.Type),
		"t":    evt.Timestamp,
	}
	if len(evt.Payload) > 0 {
		raw["data"] = evt.Payload
	}

	resp, err := c.request(ctx, swp.MethodEventIngest, swp.IngestRequest{
		Cluster: clusterName,
		Event:   raw,
	})
	if err != nil {
		return err
	}

	var result swp.IngestResponse
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("unmarshal ingest response: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("ingest rejected: %s", result.Error)
	}
	return nil
}

// Submit submits a job specification to a cluster the remote server
// manages and returns the scheduler-assigned job ID.
func (c *Client) Submit(ctx context.Context, clusterName string, spec map[string]any) (int64, error) {
	resp, err := c.request(ctx, swp.MethodJobSubmit, swp.SubmitRequest{
		Cluster: clusterName,
		Spec:    spec,
	})
	if err != nil {
		return 0, err
	}

	var result swp.SubmitResponse
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return 0, fmt.Errorf("unmarshal submit response: %w", err)
	}
	return result.JobID, nil
}

// Cancel cancels a job on a cluster the remote server manages.
func (c *Client) Cancel(ctx context.Context, clusterName string, jobID int64) error {
	_, err := c.request(ctx, swp.MethodJobCancel, swp.CancelRequest{
		Cluster: clusterName,
		JobID:   jobID,
	})
	return err
}

// JobInfo returns the remote server's view of a job as a generic map.
func (c *Client) JobInfo(ctx context.Context, clusterName string, jobID int64) (map[string]any, error) {
	resp, err := c.request(ctx, swp.MethodJobGet, swp.JobGetRequest{
		Cluster: clusterName,
		JobID:   jobID,
	})
	if err != nil {
		return nil, err
	}

	var info map[string]any
	if err := json.Unmarshal(resp.Data, &info); err != nil {
		return nil, fmt.Errorf("unmarshal job info: %w", err)
	}
	return info, nil
}

// GetJob retrieves one job snapshot.
func (c *Client) GetJob(ctx context.Context, clusterName string, jobID int64) (*jobevent.JobRecord, error) {
	resp, err := c.request(ctx, swp.MethodJobGet, swp.JobGetRequest{
		Cluster: clusterName,
		JobID:   jobID,
	})
	if err != nil {
		return nil, err
	}

	var rec jobevent.JobRecord
	if err := json.Unmarshal(resp.Data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &rec, nil
}

// History retrieves a job's event log.
func (c *Client) History(ctx context.Context, clusterName string, jobID int64) ([]*jobevent.EventRecord, error) {
	resp, err := c.request(ctx, swp.MethodJobHistory, swp.JobHistoryRequest{
		Cluster: clusterName,
		JobID:   jobID,
	})
	if err != nil {
		return nil, err
	}

	var events []*jobevent.EventRecord
	if err := json.Unmarshal(resp.Data, &events); err != nil {
		return nil, fmt.Errorf("unmarshal history: %w", err)
	}
	return events, nil
}

// Search queries job snapshots on the remote server.
func (c *Client) Search(ctx context.Context, filter jobevent.Filter) ([]*jobevent.JobRecord, error) {
	resp, err := c.request(ctx, swp.MethodJobSearch, swp.JobSearchRequest{
		Cluster: filter.Cluster,
		State:   string(filter.State),
		Limit:   filter.Limit,
	})
	if err != nil {
		return nil, err
	}

	var recs []*jobevent.JobRecord
	if err := json.Unmarshal(resp.Data, &recs); err != nil {
		return nil, fmt.Errorf("unmarshal search results: %w", err)
	}
	return recs, nil
}

// Clusters lists the clusters registered on the remote server.
func (c *Client) Clusters(ctx context.Context) ([]cluster.Info, error) {
	resp, err := c.request(ctx, swp.MethodClusterList, nil)
	if err != nil {
		return nil, err
	}

	var infos []cluster.Info
	if err := json.Unmarshal(resp.Data, &infos); err != nil {
		return nil, fmt.Errorf("unmarshal cluster list: %w", err)
	}
	return infos, nil
}

// Dialer returns a cluster.RemoteDialer backed by this package, for use
// with remote cluster handles.
func Dialer(opts ...Option) cluster.RemoteDialer {
	return func(addr, token string) (cluster.RemoteConn, error) {
		all := append([]Option{WithToken(token)}, opts...)
		return Dial(addr, all...)
	}
}
