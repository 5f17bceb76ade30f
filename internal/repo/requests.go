package repo

import (
	"context"
	"database/sql"

	"studioline/internal/domain"
)

const requestColumns = `id, title, service_id, quantity, priority, status, requested_date, scheduled_date, requirements, requested_by, approved_by, created_at, updated_at`

func scanServiceRequest(scan func(dest ...any) error) (domain.ServiceRequest, error) {
	var sr domain.ServiceRequest
	var scheduled, requirements, approvedBy sql.NullString
	err := scan(&sr.ID, &sr.Title, &sr.ServiceID, &sr.Quantity, &sr.Priority, &sr.Status,
		&sr.RequestedDate, &scheduled, &requirements, &sr.RequestedBy, &approvedBy, &sr.CreatedAt, &sr.UpdatedAt)
	if err == sql.ErrNoRows {
		return sr, ErrNotFound
	}
	if err != nil {
		return sr, err
	}
	sr.ScheduledDate = ptrFromNull(scheduled)
	if requirements.Valid {
		sr.Requirements = requirements.String
	}
	sr.ApprovedBy = ptrFromNull(approvedBy)
	return sr, nil
}

func (r Repo) InsertServiceRequestTx(ctx context.Context, tx *sql.Tx, sr domain.ServiceRequest) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO service_requests(id, title, service_id, quantity, priority, status, requested_date, scheduled_date, requirements, requested_by, approved_by, created_at, updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		sr.ID, sr.Title, sr.ServiceID, sr.Quantity, sr.Priority, sr.Status, sr.RequestedDate,
		nullablePtr(sr.ScheduledDate), nullable(sr.Requirements), sr.RequestedBy, nullablePtr(sr.ApprovedBy), sr.CreatedAt, sr.UpdatedAt)
	return err
}

func (r Repo) GetServiceRequest(ctx context.Context, id string) (domain.ServiceRequest, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM service_requests WHERE id=?`, id)
	return scanServiceRequest(row.Scan)
}

func (r Repo) GetServiceRequestTx(ctx context.Context, tx *sql.Tx, id string) (domain.ServiceRequest, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM service_requests WHERE id=?`, id)
	return scanServiceRequest(row.Scan)
}

// RequestFilters narrows listing. RequestedBy scopes customer visibility.
type RequestFilters struct {
	RequestedBy string
	Status      string
}

func (r Repo) ListServiceRequests(ctx context.Context, f RequestFilters) ([]domain.ServiceRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM service_requests`
	var (
		conds []string
		args  []any
	)
	if f.RequestedBy != "" {
		conds = append(conds, `requested_by=?`)
		args = append(args, f.RequestedBy)
	}
	if f.Status != "" {
		conds = append(conds, `status=?`)
		args = append(args, f.Status)
	}
	for i, c := range conds {
		if i == 0 {
			query += ` WHERE ` + c
		} else {
			query += ` AND ` + c
		}
	}
	query += ` ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ServiceRequest
	for rows.Next() {
		sr, err := scanServiceRequest(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, sr)
	}
	return res, rows.Err()
}

func (r Repo) UpdateServiceRequestTx(ctx context.Context, tx *sql.Tx, sr domain.ServiceRequest) error {
	res, err := tx.ExecContext(ctx, `UPDATE service_requests SET title=?, quantity=?, priority=?, status=?, scheduled_date=?, requirements=?, approved_by=?, updated_at=? WHERE id=?`,
		sr.Title, sr.Quantity, sr.Priority, sr.Status, nullablePtr(sr.ScheduledDate), nullable(sr.Requirements), nullablePtr(sr.ApprovedBy), sr.UpdatedAt, sr.ID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Assigned set

func (r Repo) ListAssignees(ctx context.Context, requestID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT staff_id FROM service_request_assignees WHERE service_request_id=? ORDER BY staff_id`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIDs(rows)
}

func (r Repo) ListAssigneesTx(ctx context.Context, tx *sql.Tx, requestID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT staff_id FROM service_request_assignees WHERE service_request_id=? ORDER BY staff_id`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIDs(rows)
}

func collectIDs(rows *sql.Rows) ([]string, error) {
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r Repo) AddAssigneeTx(ctx context.Context, tx *sql.Tx, requestID, staffID, now string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO service_request_assignees(service_request_id, staff_id, created_at) VALUES (?,?,?)`,
		requestID, staffID, now)
	return err
}

func (r Repo) RemoveAssigneeTx(ctx context.Context, tx *sql.Tx, requestID, staffID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM service_request_assignees WHERE service_request_id=? AND staff_id=?`, requestID, staffID)
	return err
}
