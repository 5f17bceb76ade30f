package repo

import (
	"context"
	"database/sql"

	"studioline/internal/domain"
)

func scanService(row *sql.Row) (domain.Service, error) {
	var s domain.Service
	var desc sql.NullString
	err := row.Scan(&s.ID, &s.Name, &desc, &s.BasePrice, &s.IsActive, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if desc.Valid {
		s.Description = desc.String
	}
	return s, err
}

func (r Repo) InsertService(ctx context.Context, s domain.Service) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO services(id, name, description, base_price, is_active, created_at) VALUES (?,?,?,?,?,?)`,
		s.ID, s.Name, nullable(s.Description), s.BasePrice, s.IsActive, s.CreatedAt)
	return err
}

func (r Repo) GetService(ctx context.Context, id string) (domain.Service, error) {
	return scanService(r.DB.QueryRowContext(ctx, `SELECT id, name, description, base_price, is_active, created_at FROM services WHERE id=?`, id))
}

func (r Repo) ListServices(ctx context.Context) ([]domain.Service, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, name, description, base_price, is_active, created_at FROM services ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Service
	for rows.Next() {
		var s domain.Service
		var desc sql.NullString
		if err := rows.Scan(&s.ID, &s.Name, &desc, &s.BasePrice, &s.IsActive, &s.CreatedAt); err != nil {
			return nil, err
		}
		if desc.Valid {
			s.Description = desc.String
		}
		res = append(res, s)
	}
	return res, rows.Err()
}
