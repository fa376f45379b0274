package entity

import "time"

const (
	TaskPending  = "pending"
	TaskExecuted = "executed"
)

// ScheduledTask queues a completed payin for the settlement batch. The batch
// consumer lives outside this service; we only enqueue.
type ScheduledTask struct {
	ID            uint64
	TransactionID string
	Status        string
	ScheduledAt   time.Time
	ExecutedAt    *time.Time
	CreatedAt     time.Time
}
