package repo

import (
	"context"
	"database/sql"

	"studioline/internal/domain"
)

// Staff

func scanStaff(row *sql.Row) (domain.Staff, error) {
	var s domain.Staff
	err := row.Scan(&s.ID, &s.Name, &s.PhoneNumber, &s.PasswordHash, &s.Role, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

const staffColumns = `id, name, phone_number, password_hash, role, created_at, updated_at`

func (r Repo) InsertStaff(ctx context.Context, s domain.Staff) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO staff(id, name, phone_number, password_hash, role, created_at, updated_at) VALUES (?,?,?,?,?,?,?)`,
		s.ID, s.Name, s.PhoneNumber, s.PasswordHash, s.Role, s.CreatedAt, s.UpdatedAt)
	return err
}

func (r Repo) GetStaff(ctx context.Context, id string) (domain.Staff, error) {
	return scanStaff(r.DB.QueryRowContext(ctx, `SELECT `+staffColumns+` FROM staff WHERE id=?`, id))
}

func (r Repo) GetStaffByPhone(ctx context.Context, phone string) (domain.Staff, error) {
	return scanStaff(r.DB.QueryRowContext(ctx, `SELECT `+staffColumns+` FROM staff WHERE phone_number=?`, phone))
}

func (r Repo) ListStaff(ctx context.Context) ([]domain.Staff, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+staffColumns+` FROM staff ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Staff
	for rows.Next() {
		var s domain.Staff
		if err := rows.Scan(&s.ID, &s.Name, &s.PhoneNumber, &s.PasswordHash, &s.Role, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) UpdateStaff(ctx context.Context, s domain.Staff) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE staff SET name=?, phone_number=?, password_hash=?, role=?, updated_at=? WHERE id=?`,
		s.Name, s.PhoneNumber, s.PasswordHash, s.Role, s.UpdatedAt, s.ID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) CountStaff(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM staff`).Scan(&n)
	return n, err
}

// Customers

func scanCustomer(row *sql.Row) (domain.Customer, error) {
	var c domain.Customer
	var company sql.NullString
	err := row.Scan(&c.ID, &c.Name, &c.PhoneNumber, &c.PasswordHash, &company, &c.IsVIP, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if company.Valid {
		c.Company = company.String
	}
	return c, err
}

const customerColumns = `id, name, phone_number, password_hash, company, is_vip, is_active, created_at, updated_at`

func (r Repo) InsertCustomer(ctx context.Context, c domain.Customer) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO customers(id, name, phone_number, password_hash, company, is_vip, is_active, created_at, updated_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		c.ID, c.Name, c.PhoneNumber, c.PasswordHash, nullable(c.Company), c.IsVIP, c.IsActive, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r Repo) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	return scanCustomer(r.DB.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id=?`, id))
}

func (r Repo) GetCustomerByPhone(ctx context.Context, phone string) (domain.Customer, error) {
	return scanCustomer(r.DB.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE phone_number=?`, phone))
}

func (r Repo) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Customer
	for rows.Next() {
		var c domain.Customer
		var company sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &c.PhoneNumber, &c.PasswordHash, &company, &c.IsVIP, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		if company.Valid {
			c.Company = company.String
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) UpdateCustomer(ctx context.Context, c domain.Customer) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE customers SET name=?, phone_number=?, password_hash=?, company=?, is_vip=?, is_active=?, updated_at=? WHERE id=?`,
		c.Name, c.PhoneNumber, c.PasswordHash, nullable(c.Company), c.IsVIP, c.IsActive, c.UpdatedAt, c.ID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Coworkers

func scanCoworker(row *sql.Row) (domain.Coworker, error) {
	var c domain.Coworker
	var skills, approvedBy sql.NullString
	err := row.Scan(&c.ID, &c.Name, &c.PhoneNumber, &c.PasswordHash, &skills, &c.IsApproved, &approvedBy, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if skills.Valid {
		c.Skills = skills.String
	}
	c.ApprovedBy = ptrFromNull(approvedBy)
	return c, err
}

const coworkerColumns = `id, name, phone_number, password_hash, skills, is_approved, approved_by, is_active, created_at, updated_at`

func (r Repo) InsertCoworker(ctx context.Context, c domain.Coworker) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO coworkers(id, name, phone_number, password_hash, skills, is_approved, approved_by, is_active, created_at, updated_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.Name, c.PhoneNumber, c.PasswordHash, nullable(c.Skills), c.IsApproved, nullablePtr(c.ApprovedBy), c.IsActive, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r Repo) GetCoworker(ctx context.Context, id string) (domain.Coworker, error) {
	return scanCoworker(r.DB.QueryRowContext(ctx, `SELECT `+coworkerColumns+` FROM coworkers WHERE id=?`, id))
}

func (r Repo) GetCoworkerByPhone(ctx context.Context, phone string) (domain.Coworker, error) {
	return scanCoworker(r.DB.QueryRowContext(ctx, `SELECT `+coworkerColumns+` FROM coworkers WHERE phone_number=?`, phone))
}

func (r Repo) ListCoworkers(ctx context.Context) ([]domain.Coworker, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+coworkerColumns+` FROM coworkers ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Coworker
	for rows.Next() {
		var c domain.Coworker
		var skills, approvedBy sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &c.PhoneNumber, &c.PasswordHash, &skills, &c.IsApproved, &approvedBy, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		if skills.Valid {
			c.Skills = skills.String
		}
		c.ApprovedBy = ptrFromNull(approvedBy)
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) UpdateCoworker(ctx context.Context, c domain.Coworker) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE coworkers SET name=?, phone_number=?, password_hash=?, skills=?, is_approved=?, approved_by=?, is_active=?, updated_at=? WHERE id=?`,
		c.Name, c.PhoneNumber, c.PasswordHash, nullable(c.Skills), c.IsApproved, nullablePtr(c.ApprovedBy), c.IsActive, c.UpdatedAt, c.ID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// PhoneExistsAnywhere probes all three principal stores. Signup, unlike
// login, must reject a phone number that exists in any store.
func (r Repo) PhoneExistsAnywhere(ctx context.Context, phone string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `
SELECT (SELECT COUNT(*) FROM staff WHERE phone_number=?)
     + (SELECT COUNT(*) FROM customers WHERE phone_number=?)
     + (SELECT COUNT(*) FROM coworkers WHERE phone_number=?)`,
		phone, phone, phone).Scan(&n)
	return n > 0, err
}
