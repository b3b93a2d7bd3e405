// Package engine bridges blocking journal polls to asynchronous event
// persistence. One Engine owns one cluster's stream: a single poller
// goroutine blocks on the journal and feeds a bounded channel, and a
// single consumer drains the channel into a sink. One consumer per
// cluster means events for a job are recorded in the order they were
// polled; the bounded channel applies backpressure to the poller
// instead of buffering without limit.
//
// The poll loop never exits on transient failure. Quiet timeouts poll
// again, unexpected transport errors back off and retry, and entries
// without a job ID are dropped and counted, not fatal. The only ways
// out are Stop and a closed source.
//
// [Group] supervises one engine per registered cluster.
package engine
