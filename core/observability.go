package core

// QueueStats represents a point-in-time snapshot of a queue's state.
type QueueStats struct {
	Label      string
	Kind       string
	QoS        QoS
	Concurrent bool
	Pending    int
	Running    int
	BarrierSet bool
}

// PoolStats represents runtime observability state for a thread pool.
type PoolStats struct {
	ID      string
	Workers int
	Queued  int
	Active  int
	Delayed int
	Running bool
}
