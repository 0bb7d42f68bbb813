package repository

import (
	"context"
	"database/sql"

	"github.com/modelboard/webapp/app/entity"
)

const userColumns = `id, email, canonical_email, role, auth_method, password_encrypted, password_salt,
		       organization_id, created_by_id, updated_by_id, created_date, updated_date, is_deleted`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row *sql.Row) (*entity.User, error) {
	user := &entity.User{}
	var canonical string
	err := row.Scan(
		&user.ID,
		&user.Email,
		&canonical,
		&user.Role,
		&user.AuthMethod,
		&user.PasswordEncrypted,
		&user.PasswordSalt,
		&user.OrganizationID,
		&user.CreatedByID,
		&user.UpdatedByID,
		&user.CreatedDate,
		&user.UpdatedDate,
		&user.IsDeleted,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user *entity.User, canonicalEmail string) error {
	query := `
		INSERT INTO users (id, email, canonical_email, role, auth_method, password_encrypted, password_salt,
		                   organization_id, created_by_id, updated_by_id, created_date, updated_date, is_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		canonicalEmail,
		user.Role,
		user.AuthMethod,
		user.PasswordEncrypted,
		user.PasswordSalt,
		user.OrganizationID,
		user.CreatedByID,
		user.UpdatedByID,
		user.CreatedDate,
		user.UpdatedDate,
		user.IsDeleted,
	)
	return err
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users WHERE id = ? AND is_deleted = 0
	`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) FindByCanonicalEmail(ctx context.Context, canonicalEmail string) (*entity.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users WHERE canonical_email = ? AND is_deleted = 0
	`
	return scanUser(r.db.QueryRowContext(ctx, query, canonicalEmail))
}

func (r *UserRepository) Update(ctx context.Context, user *entity.User, canonicalEmail string) error {
	query := `
		UPDATE users SET
			email = ?,
			canonical_email = ?,
			role = ?,
			auth_method = ?,
			password_encrypted = ?,
			password_salt = ?,
			organization_id = ?,
			updated_by_id = ?,
			updated_date = ?,
			is_deleted = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		user.Email,
		canonicalEmail,
		user.Role,
		user.AuthMethod,
		user.PasswordEncrypted,
		user.PasswordSalt,
		user.OrganizationID,
		user.UpdatedByID,
		user.UpdatedDate,
		user.IsDeleted,
		user.ID,
	)
	if err != nil {
		return err
	}
	if _, err := result.RowsAffected(); err != nil {
		return err
	}
	return nil
}
