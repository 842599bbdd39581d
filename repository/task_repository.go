package repository

import (
	"database/sql"
	"fmt"

	"VoxTA/db"
	"VoxTA/model"
)

// TaskRepository defines the interface for durable task record operations.
type TaskRepository interface {
	CreateTask(rec *model.TaskRecord) error
	GetTaskByID(taskID string) (*model.TaskRecord, error)
	UpdateTask(rec *model.TaskRecord) error
	DeleteTask(taskID string) error
	ListTasksByKind(kind model.TaskKind, limit int) ([]*model.TaskRecord, error)
}

// mysqlTaskRepository implements TaskRepository for MySQL.
type mysqlTaskRepository struct {
	DB *sql.DB
}

// NewMySQLTaskRepository creates a new instance of mysqlTaskRepository.
func NewMySQLTaskRepository() TaskRepository {
	return &mysqlTaskRepository{DB: db.DB}
}

// CreateTask inserts a new task record.
func (r *mysqlTaskRepository) CreateTask(rec *model.TaskRecord) error {
	query := `INSERT INTO tasks (task_id, kind, status, progress, input_ref, params, output_ref, error, duration, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := r.DB.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for CreateTask: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(rec.TaskID, rec.Kind, rec.Status, rec.Progress, rec.InputRef, rec.Params,
		rec.OutputRef, rec.Error, rec.Duration, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to execute CreateTask for %s: %w", rec.TaskID, err)
	}
	return nil
}

// GetTaskByID retrieves a task record by its ID. Returns (nil, nil) when not found.
func (r *mysqlTaskRepository) GetTaskByID(taskID string) (*model.TaskRecord, error) {
	query := `SELECT task_id, kind, status, progress, input_ref, params, output_ref, error, duration, created_at, updated_at
	           FROM tasks WHERE task_id = ?`
	row := r.DB.QueryRow(query, taskID)

	rec := &model.TaskRecord{}
	var outputRef, errMsg sql.NullString
	var duration sql.NullFloat64
	err := row.Scan(&rec.TaskID, &rec.Kind, &rec.Status, &rec.Progress, &rec.InputRef, &rec.Params,
		&outputRef, &errMsg, &duration, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Task not found
		}
		return nil, fmt.Errorf("failed to scan task %s: %w", taskID, err)
	}
	rec.OutputRef = outputRef.String
	rec.Error = errMsg.String
	rec.Duration = duration.Float64
	return rec, nil
}

// UpdateTask overwrites the mutable fields of a task record.
func (r *mysqlTaskRepository) UpdateTask(rec *model.TaskRecord) error {
	query := `UPDATE tasks SET status = ?, progress = ?, output_ref = ?, error = ?, duration = ?, updated_at = ? WHERE task_id = ?`
	stmt, err := r.DB.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for UpdateTask: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(rec.Status, rec.Progress, rec.OutputRef, rec.Error, rec.Duration, rec.UpdatedAt, rec.TaskID)
	if err != nil {
		return fmt.Errorf("failed to execute UpdateTask for %s: %w", rec.TaskID, err)
	}
	return nil
}

// DeleteTask removes a task record. Used to roll back records whose job
// could not be enqueued; deleting a missing record is not an error.
func (r *mysqlTaskRepository) DeleteTask(taskID string) error {
	query := `DELETE FROM tasks WHERE task_id = ?`
	stmt, err := r.DB.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for DeleteTask: %w", err)
	}
	defer stmt.Close()

	if _, err = stmt.Exec(taskID); err != nil {
		return fmt.Errorf("failed to execute DeleteTask for %s: %w", taskID, err)
	}
	return nil
}

// ListTasksByKind returns the most recent tasks of a kind.
func (r *mysqlTaskRepository) ListTasksByKind(kind model.TaskKind, limit int) ([]*model.TaskRecord, error) {
	query := `SELECT task_id, kind, status, progress, input_ref, params, output_ref, error, duration, created_at, updated_at
	           FROM tasks WHERE kind = ? ORDER BY created_at DESC LIMIT ?`
	rows, err := r.DB.Query(query, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks of kind %s: %w", kind, err)
	}
	defer rows.Close()

	tasks := make([]*model.TaskRecord, 0)
	for rows.Next() {
		rec := &model.TaskRecord{}
		var outputRef, errMsg sql.NullString
		var duration sql.NullFloat64
		err := rows.Scan(&rec.TaskID, &rec.Kind, &rec.Status, &rec.Progress, &rec.InputRef, &rec.Params,
			&outputRef, &errMsg, &duration, &rec.CreatedAt, &rec.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task in ListTasksByKind: %w", err)
		}
		rec.OutputRef = outputRef.String
		rec.Error = errMsg.String
		rec.Duration = duration.Float64
		tasks = append(tasks, rec)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in ListTasksByKind: %w", err)
	}

	return tasks, nil
}
