package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/petclub-iam/internal/core/domain"
	"github.com/arklim/petclub-iam/internal/core/port"
	"github.com/arklim/petclub-iam/internal/repository"
)

const usersTable = "users"

var userColumns = []string{
	"id",
	"name",
	"email",
	"password_hash",
	"role",
	"reset_token",
	"reset_token_expires",
	"created_at",
	"updated_at",
}

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
	now     func() time.Time
}

// NewUserRepository wires a PostgreSQL-backed user repository.
func NewUserRepository(exec pgExecutor) *UserRepository {
	return &UserRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		now:     time.Now,
	}
}

// Create inserts a new user row. A duplicate email maps to repository.ErrConflict.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	now := r.now().UTC()
	stmt, args, err := r.builder.Insert(usersTable).
		Columns("id", "name", "email", "password_hash", "role", "created_at", "updated_at").
		Values(user.ID, user.Name, domain.NormalizeEmail(user.Email), user.PasswordHash, string(user.Role), now, now).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by identifier.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

// GetByEmail retrieves a user by normalized email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, squirrel.Eq{"email": domain.NormalizeEmail(email)})
}

func (r *UserRepository) getOne(ctx context.Context, where squirrel.Eq) (*domain.User, error) {
	stmt, args, err := r.builder.Select(userColumns...).
		From(usersTable).
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	user, err := scanUser(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return user, nil
}

// List returns users newest first with pagination.
func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]domain.User, error) {
	query := r.builder.Select(userColumns...).
		From(usersTable).
		OrderBy("created_at DESC", "id")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}
	if offset > 0 {
		query = query.Offset(uint64(offset))
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list users sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// SetResetTicket writes or clears reset_token and reset_token_expires in a single statement.
func (r *UserRepository) SetResetTicket(ctx context.Context, id string, ticket *domain.PasswordResetTicket) error {
	var token, expires any
	if ticket != nil {
		token, expires = ticket.Token, ticket.ExpiresAt.UTC()
	}

	stmt, args, err := r.builder.Update(usersTable).
		Set("reset_token", token).
		Set("reset_token_expires", expires).
		Set("updated_at", r.now().UTC()).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update reset ticket sql: %w", err)
	}
	return r.execOne(ctx, "update reset ticket", stmt, args)
}

// ResetPassword stores a new hash and clears the reset ticket.
func (r *UserRepository) ResetPassword(ctx context.Context, id string, passwordHash string) error {
	stmt, args, err := r.builder.Update(usersTable).
		Set("password_hash", passwordHash).
		Set("reset_token", nil).
		Set("reset_token_expires", nil).
		Set("updated_at", r.now().UTC()).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build reset password sql: %w", err)
	}
	return r.execOne(ctx, "reset password", stmt, args)
}

// Ping checks connectivity when the executor supports it.
func (r *UserRepository) Ping(ctx context.Context) error {
	if p, ok := r.exec.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (r *UserRepository) execOne(ctx context.Context, op, stmt string, args []any) error {
	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user         domain.User
		role         string
		resetToken   *string
		resetExpires *time.Time
	)

	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&role,
		&resetToken,
		&resetExpires,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}

	user.Role = domain.Role(role)
	if resetToken != nil && resetExpires != nil {
		user.ResetTicket = &domain.PasswordResetTicket{Token: *resetToken, ExpiresAt: *resetExpires}
	}
	return &user, nil
}

var _ port.UserRepository = (*UserRepository)(nil)
