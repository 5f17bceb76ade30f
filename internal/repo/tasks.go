package repo

import (
	"context"
	"database/sql"

	"studioline/internal/domain"
)

const taskColumns = `id, service_request_id, assignee_id, title, description, status, priority, due_date, notes, deliverables, video_url, completed_at, created_at, updated_at`

func scanTask(scan func(dest ...any) error) (domain.Task, error) {
	var t domain.Task
	var desc, due, notes, deliverables, videoURL, completed sql.NullString
	err := scan(&t.ID, &t.ServiceRequestID, &t.AssigneeID, &t.Title, &desc, &t.Status, &t.Priority,
		&due, &notes, &deliverables, &videoURL, &completed, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if desc.Valid {
		t.Description = desc.String
	}
	t.DueDate = ptrFromNull(due)
	if notes.Valid {
		t.Notes = notes.String
	}
	if deliverables.Valid {
		t.Deliverables = deliverables.String
	}
	t.VideoURL = ptrFromNull(videoURL)
	t.CompletedAt = ptrFromNull(completed)
	return t, nil
}

func (r Repo) InsertTaskTx(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(id, service_request_id, assignee_id, title, description, status, priority, due_date, notes, deliverables, video_url, completed_at, created_at, updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.ServiceRequestID, t.AssigneeID, t.Title, nullable(t.Description), t.Status, t.Priority,
		nullablePtr(t.DueDate), nullable(t.Notes), nullable(t.Deliverables), nullablePtr(t.VideoURL), nullablePtr(t.CompletedAt), t.CreatedAt, t.UpdatedAt)
	return err
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id)
	return scanTask(row.Scan)
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, id string) (domain.Task, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id)
	return scanTask(row.Scan)
}

// TaskFilters narrows listing. RequestOwner joins through service_requests
// so customers only ever see tasks under their own requests.
type TaskFilters struct {
	ServiceRequestID string
	AssigneeID       string
	Status           string
	RequestOwner     string
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	query := `SELECT t.id, t.service_request_id, t.assignee_id, t.title, t.description, t.status, t.priority, t.due_date, t.notes, t.deliverables, t.video_url, t.completed_at, t.created_at, t.updated_at FROM tasks t`
	var (
		conds []string
		args  []any
	)
	if f.RequestOwner != "" {
		query += ` JOIN service_requests sr ON sr.id = t.service_request_id`
		conds = append(conds, `sr.requested_by=?`)
		args = append(args, f.RequestOwner)
	}
	if f.ServiceRequestID != "" {
		conds = append(conds, `t.service_request_id=?`)
		args = append(args, f.ServiceRequestID)
	}
	if f.AssigneeID != "" {
		conds = append(conds, `t.assignee_id=?`)
		args = append(args, f.AssigneeID)
	}
	if f.Status != "" {
		conds = append(conds, `t.status=?`)
		args = append(args, f.Status)
	}
	for i, c := range conds {
		if i == 0 {
			query += ` WHERE ` + c
		} else {
			query += ` AND ` + c
		}
	}
	query += ` ORDER BY t.created_at DESC, t.id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) UpdateTaskTx(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET status=?, notes=?, deliverables=?, video_url=?, completed_at=?, updated_at=? WHERE id=?`,
		t.Status, nullable(t.Notes), nullable(t.Deliverables), nullablePtr(t.VideoURL), nullablePtr(t.CompletedAt), t.UpdatedAt, t.ID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// OpenTasksForAssigneeTx returns the non-terminal tasks a staff member holds
// on a request. Used when an assignee is removed from the assigned set.
func (r Repo) OpenTasksForAssigneeTx(ctx context.Context, tx *sql.Tx, requestID, staffID string) ([]domain.Task, error) {
	rows, err := tx.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE service_request_id=? AND assignee_id=? AND status NOT IN (?,?)`,
		requestID, staffID, domain.TaskCompleted, domain.TaskCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) CountTasksByStatus(ctx context.Context, requestID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks WHERE service_request_id=? GROUP BY status`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
