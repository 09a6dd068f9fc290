package aggregator

import "time"

// Stats is a point-in-time snapshot of one aggregator.
type Stats struct {
	Target        string    `json:"target"`
	Kind          string    `json:"kind"`
	State         string    `json:"state"`
	QueueLen      int       `json:"queue_len"`
	Capacity      int       `json:"capacity"`
	Batches       uint64    `json:"batches"`
	FlushedOps    uint64    `json:"flushed_ops"`
	FailedBatches uint64    `json:"failed_batches"`
	LostOps       uint64    `json:"lost_ops"`
	Submitted     uint64    `json:"submitted"`
	Rejected      uint64    `json:"rejected"`
	LastFlush     time.Time `json:"last_flush"`
	LastActivity  time.Time `json:"last_activity"`
	Closed        bool      `json:"closed"`
}

func (a *Aggregator) Stats() Stats {
	submitted, _, rejected := a.q.Counters()
	return Stats{
		Target:        a.name,
		Kind:          a.target.Kind,
		State:         a.State().String(),
		QueueLen:      a.q.Len(),
		Capacity:      a.q.Cap(),
		Batches:       a.batches.Load(),
		FlushedOps:    a.flushed.Load(),
		FailedBatches: a.failed.Load(),
		LostOps:       a.lost.Load(),
		Submitted:     submitted,
		Rejected:      rejected,
		LastFlush:     time.Unix(0, a.lastFlush.Load()),
		LastActivity:  time.Unix(0, a.lastActivity.Load()),
		Closed:        a.q.Closed(),
	}
}
