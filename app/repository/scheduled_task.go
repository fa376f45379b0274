package repository

import (
	"context"
	"database/sql"

	"github.com/assanpay/gateway/app/entity"
)

type ScheduledTaskRepository struct {
	db DBTX
}

func NewScheduledTaskRepository(db DBTX) *ScheduledTaskRepository {
	return &ScheduledTaskRepository{db: db}
}

func (r *ScheduledTaskRepository) Create(ctx context.Context, task *entity.ScheduledTask) error {
	query := `
		INSERT INTO scheduled_tasks (transaction_id, status, scheduled_at, executed_at, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		task.TransactionID,
		task.Status,
		task.ScheduledAt,
		nullableTimeValue(task.ExecutedAt),
		task.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	task.ID = uint64(id)
	return nil
}

func (r *ScheduledTaskRepository) ListPendingForTransaction(ctx context.Context, transactionID string) ([]*entity.ScheduledTask, error) {
	query := `
		SELECT id, transaction_id, status, scheduled_at, executed_at, created_at
		FROM scheduled_tasks
		WHERE transaction_id = ? AND status = ?
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, transactionID, entity.TaskPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]*entity.ScheduledTask, 0)
	for rows.Next() {
		task := &entity.ScheduledTask{}
		var executedAt sql.NullTime
		if err := rows.Scan(&task.ID, &task.TransactionID, &task.Status, &task.ScheduledAt, &executedAt, &task.CreatedAt); err != nil {
			return nil, err
		}
		task.ExecutedAt = timePtrFromNull(executedAt)
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return tasks, nil
}
