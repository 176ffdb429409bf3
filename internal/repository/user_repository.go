package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/eventbooking/server/internal/model"
)

// CreateUser inserts a new user row and populates the generated ID.  A
// duplicate email surfaces as ErrEmailExists.
func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	const q = `INSERT INTO users (email, name, password_hash) VALUES (?, ?, ?)`
	res, err := exec(ctx, s.db).ExecContext(ctx, q, u.Email, u.Name, u.PasswordHash)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1062 {
			return ErrEmailExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

// GetUserByEmail looks a user up for login.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	const q = `SELECT id, email, name, password_hash, created_at FROM users WHERE email = ?`
	var u model.User
	err := exec(ctx, s.db).QueryRowContext(ctx, q, email).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, err
	}
	return u, nil
}

// GetUser returns a user by id, used by the commit transaction to confirm
// the booking owner exists and by the email consumer for delivery details.
func (s *Store) GetUser(ctx context.Context, id uint64) (model.User, error) {
	const q = `SELECT id, email, name, password_hash, created_at FROM users WHERE id = ?`
	var u model.User
	err := exec(ctx, s.db).QueryRowContext(ctx, q, id).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, err
	}
	return u, nil
}
