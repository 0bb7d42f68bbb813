package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/modelboard/webapp/app/entity"
)

const refreshTokenColumns = `id, user_id, access_token_id, expires_at, created_by_id, updated_by_id,
		       created_date, updated_date, is_deleted`

type RefreshTokenRepository struct {
	db *sql.DB
}

func NewRefreshTokenRepository(db *sql.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func scanRefreshToken(row *sql.Row) (*entity.RefreshToken, error) {
	rt := &entity.RefreshToken{}
	err := row.Scan(
		&rt.ID,
		&rt.UserID,
		&rt.AccessTokenID,
		&rt.ExpiresAt,
		&rt.CreatedByID,
		&rt.UpdatedByID,
		&rt.CreatedDate,
		&rt.UpdatedDate,
		&rt.IsDeleted,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rt, nil
}

func (r *RefreshTokenRepository) Create(ctx context.Context, token *entity.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, access_token_id, expires_at, created_by_id, updated_by_id,
		                            created_date, updated_date, is_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		token.ID,
		token.UserID,
		token.AccessTokenID,
		token.ExpiresAt,
		token.CreatedByID,
		token.UpdatedByID,
		token.CreatedDate,
		token.UpdatedDate,
		token.IsDeleted,
	)
	return err
}

func (r *RefreshTokenRepository) FindByID(ctx context.Context, id string) (*entity.RefreshToken, error) {
	query := `
		SELECT ` + refreshTokenColumns + `
		FROM refresh_tokens WHERE id = ? AND is_deleted = 0
	`
	return scanRefreshToken(r.db.QueryRowContext(ctx, query, id))
}

func (r *RefreshTokenRepository) FindByAccessTokenID(ctx context.Context, accessTokenID string) (*entity.RefreshToken, error) {
	query := `
		SELECT ` + refreshTokenColumns + `
		FROM refresh_tokens WHERE access_token_id = ? AND is_deleted = 0
	`
	return scanRefreshToken(r.db.QueryRowContext(ctx, query, accessTokenID))
}

// RotateAccessToken swaps the access-token id in place, conditioned on the
// previous id still being current. Returns false when another request won the
// rotation race; the caller must then treat the session as invalid.
func (r *RefreshTokenRepository) RotateAccessToken(ctx context.Context, id, oldAccessTokenID, newAccessTokenID, updatedByID string, now time.Time) (bool, error) {
	query := `
		UPDATE refresh_tokens SET access_token_id = ?, updated_by_id = ?, updated_date = ?
		WHERE id = ? AND access_token_id = ? AND is_deleted = 0
	`
	result, err := r.db.ExecContext(ctx, query, newAccessTokenID, updatedByID, now, id, oldAccessTokenID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *RefreshTokenRepository) SoftDeleteByID(ctx context.Context, id, updatedByID string, now time.Time) error {
	query := `
		UPDATE refresh_tokens SET is_deleted = 1, updated_by_id = ?, updated_date = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query, updatedByID, now, id)
	return err
}

func (r *RefreshTokenRepository) SoftDeleteByUserID(ctx context.Context, userID, updatedByID string, now time.Time) error {
	query := `
		UPDATE refresh_tokens SET is_deleted = 1, updated_by_id = ?, updated_date = ?
		WHERE user_id = ? AND is_deleted = 0
	`
	_, err := r.db.ExecContext(ctx, query, updatedByID, now, userID)
	return err
}
