// Package jobqueue is the download manager's deferred-work FIFO. Peer
// connection callbacks that would otherwise reach across the DM's
// exclusivity boundary (notably requesting more blocks from the
// selector) are wrapped as a Job and pushed here instead; the DM drains
// the queue under its call_exclusively token at the top of every
// periodic() tick.
//
// Grounded on the shape of prxssh/rabbit's scheduler.PieceScheduler
// event queue, but backed by a plain slice rather than a channel: the core never owns a goroutine to drain a channel
// independently, so a channel buys nothing here and would reintroduce
// exactly the concurrency spec.md rules out.
package jobqueue

import "github.com/prxssh/rabbitdm/internal/peerid"

// Kind tags which variant a Job holds.
type Kind int

const (
	// KindPollBlock asks the DM to pull the next eligible block request
	// for a peer from the selector and push it to that peer's pending
	// request set.
	KindPollBlock Kind = iota
)

// Job is a tagged union of deferred work. Only one variant exists today
// (PollBlock); the tag makes adding future variants (a piece-saved event,
// a timer-fired event) an additive change to the switch in the consumer,
// not an API break.
type Job struct {
	Kind Kind
	Peer peerid.ID
}

// PollBlock constructs a KindPollBlock job for peer.
func PollBlock(peer peerid.ID) Job {
	return Job{Kind: KindPollBlock, Peer: peer}
}

// Queue is a plain FIFO of Jobs with no internal locking: Push, Len and
// Drain are not safe for concurrent use, so every call runs under the
// DM's exclusivity token, and Drain runs from a single place (the DM's
// periodic() tick).
type Queue struct {
	jobs []Job
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{}
}

// Push enqueues a job.
func (q *Queue) Push(j Job) {
	q.jobs = append(q.jobs, j)
}

// Len returns the number of pending jobs.
func (q *Queue) Len() int {
	return len(q.jobs)
}

// Drain removes and returns every pending job, in FIFO order, resetting
// the queue to empty. Intended to be called once per periodic() tick
// under the DM's exclusivity lock.
func (q *Queue) Drain() []Job {
	if len(q.jobs) == 0 {
		return nil
	}

	jobs := q.jobs
	q.jobs = nil
	return jobs
}
