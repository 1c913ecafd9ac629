package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/stemsi/examhall-backend/internal/database"
	"github.com/stemsi/examhall-backend/internal/model"
)

const userColumns = `id, username, email, password_hash, plan, role, created_at, updated_at`

// UserRepository handles user data access.
type UserRepository struct {
	db database.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db database.DB) *UserRepository {
	return &UserRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	u := &model.User{}
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Plan, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return u, nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByLogin retrieves a user whose username or email matches identifier.
func (r *UserRepository) GetByLogin(ctx context.Context, identifier string) (*model.User, error) {
	return scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1 OR email = $1 LIMIT 1`,
		strings.ToLower(strings.TrimSpace(identifier))))
}

// GetByUsername retrieves a user by username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, strings.ToLower(username)))
}

// Create inserts a new user. Username and email are stored lowercased.
func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	u.Username = strings.ToLower(u.Username)
	u.Email = strings.ToLower(u.Email)
	if u.Plan == "" {
		u.Plan = model.PlanFree
	}
	if u.Role == "" {
		u.Role = model.RoleStudent
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash, plan, role)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		u.Username, u.Email, u.PasswordHash, u.Plan, u.Role,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if constraint, ok := uniqueViolation(err); ok {
		if strings.Contains(constraint, "email") {
			return ErrDuplicateEmail
		}
		return ErrDuplicateUsername
	}
	return err
}

// List retrieves all users, newest first.
func (r *UserRepository) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdateRole sets a user's role and returns the updated row.
func (r *UserRepository) UpdateRole(ctx context.Context, id uuid.UUID, role model.Role) (*model.User, error) {
	return scanUser(r.db.QueryRow(ctx,
		`UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1 RETURNING `+userColumns, id, role))
}

// UpdatePlan sets a user's plan and returns the updated row.
func (r *UserRepository) UpdatePlan(ctx context.Context, id uuid.UUID, plan model.Plan) (*model.User, error) {
	return scanUser(r.db.QueryRow(ctx,
		`UPDATE users SET plan = $2, updated_at = NOW() WHERE id = $1 RETURNING `+userColumns, id, plan))
}
