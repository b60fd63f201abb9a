package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/itchan-dev/usuarios/internal/domain"
	internal_errors "github.com/itchan-dev/usuarios/internal/errors"
	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
)

// =========================================================================
// Public Methods (satisfy the service.AuthStorage interface)
// =========================================================================

func (s *Storage) SaveUser(ctx context.Context, user domain.User) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.saveUser(ctx, tx, user)
	})
}

func (s *Storage) User(ctx context.Context, email domain.Email) (domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.user(ctx, s.db, "email", email)
}

func (s *Storage) UserById(ctx context.Context, id domain.UserId) (domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.user(ctx, s.db, "id", id)
}

func (s *Storage) UpdatePassword(ctx context.Context, id domain.UserId, passHash string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.updatePassword(ctx, tx, id, passHash)
	})
}

// Users lists every account. The hash column is never selected.
func (s *Storage) Users(ctx context.Context) ([]domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.users(ctx, s.db)
}

// =========================================================================
// Internal Methods (Core Database Logic)
// =========================================================================

func (s *Storage) saveUser(ctx context.Context, q Querier, user domain.User) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO users(id, name, email, password_hash, created_at) VALUES($1, $2, $3, $4, $5)",
		user.Id, user.Name, user.Email, user.PassHash, user.CreatedAt)
	if err != nil {
		if rejected := classifyWriteError(err, user); rejected != nil {
			return rejected
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// column is a fixed identifier chosen by the callers above, never user input.
func (s *Storage) user(ctx context.Context, q Querier, column string, value string) (domain.User, error) {
	var user domain.User
	query := fmt.Sprintf("SELECT id, name, email, password_hash, created_at FROM users WHERE %s = $1", pq.QuoteIdentifier(column))
	err := q.QueryRowContext(ctx, query, value).
		Scan(&user.Id, &user.Name, &user.Email, &user.PassHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, internal_errors.NotFound("User not found")
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgerrcode.InvalidTextRepresentation {
			// malformed uuid can't match any row
			return domain.User{}, internal_errors.NotFound("User not found")
		}
		return domain.User{}, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

func (s *Storage) updatePassword(ctx context.Context, q Querier, id domain.UserId, passHash string) error {
	result, err := q.ExecContext(ctx, "UPDATE users SET password_hash = $1 WHERE id = $2", passHash, id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows for password update: %w", err)
	}
	if rowsAffected == 0 {
		return internal_errors.NotFound("User not found for password update")
	}
	return nil
}

func (s *Storage) users(ctx context.Context, q Querier) ([]domain.User, error) {
	rows, err := q.QueryContext(ctx, "SELECT id, name, email, created_at FROM users ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.Id, &u.Name, &u.Email, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// classifyWriteError turns constraint violations into 400s; nil means the
// error is not a rejection of the data itself.
func classifyWriteError(err error, user domain.User) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}
	switch pqErr.Code {
	case pgerrcode.UniqueViolation:
		if pqErr.Constraint == "users_pkey" {
			return internal_errors.ValidationOrConflict("User already exists", user.Id)
		}
		return internal_errors.ValidationOrConflict("Email already registered", user.Email)
	case pgerrcode.NotNullViolation, pgerrcode.CheckViolation:
		return internal_errors.ValidationOrConflict("Invalid user", pqErr.Column+" "+pqErr.Message)
	case pgerrcode.StringDataRightTruncationDataException, pgerrcode.InvalidTextRepresentation:
		return internal_errors.ValidationOrConflict("Invalid user", pqErr.Message)
	}
	return nil
}
