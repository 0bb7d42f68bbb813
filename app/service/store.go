package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/modelboard/webapp/app/entity"
	"github.com/modelboard/webapp/app/repository"
	"github.com/modelboard/webapp/app/session"
)

var (
	ErrUnauthenticated = errors.New("user session not established")
	ErrNotFound        = errors.New("record not found")
)

// Store is the sole write path for User, RefreshToken and Listing rows.
// Every mutation stamps audit fields from the acting session and reads the
// committed row back through the session's loaders.
type Store struct {
	users         *repository.UserRepository
	refreshTokens *repository.RefreshTokenRepository
	listings      *repository.ListingRepository
}

func NewStore(users *repository.UserRepository, refreshTokens *repository.RefreshTokenRepository, listings *repository.ListingRepository) *Store {
	return &Store{
		users:         users,
		refreshTokens: refreshTokens,
		listings:      listings,
	}
}

func actingUser(sess *session.Session) (*entity.User, error) {
	if sess == nil || sess.Me == nil {
		return nil, ErrUnauthenticated
	}
	return sess.Me, nil
}

type NewUser struct {
	Email          string
	Role           entity.Role
	AuthMethod     entity.AuthMethod
	OrganizationID string
}

func (s *Store) CreateUser(ctx context.Context, sess *session.Session, input NewUser) (*entity.User, error) {
	me, err := actingUser(sess)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &entity.User{
		ID:          uuid.New().String(),
		Email:       input.Email,
		Role:        input.Role,
		AuthMethod:  input.AuthMethod,
		CreatedByID: me.ID,
		UpdatedByID: me.ID,
		CreatedDate: now,
		UpdatedDate: now,
	}
	if input.OrganizationID != "" {
		user.OrganizationID = sql.NullString{String: input.OrganizationID, Valid: true}
	}

	if err := s.users.Create(ctx, user, CanonicalizeEmail(input.Email)); err != nil {
		return nil, err
	}

	sess.Loaders.User.Forget(user.ID)
	created, err := sess.Loaders.User.Load(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if created == nil {
		return nil, fmt.Errorf("%w: user %s after create", ErrNotFound, user.ID)
	}
	return created, nil
}

type UserPatch struct {
	ID                string
	Email             *string
	Role              *entity.Role
	AuthMethod        *entity.AuthMethod
	PasswordEncrypted *string
	PasswordSalt      *string
	OrganizationID    *string
}

func (s *Store) UpdateUser(ctx context.Context, sess *session.Session, patch UserPatch) (*entity.User, error) {
	me, err := actingUser(sess)
	if err != nil {
		return nil, err
	}

	current, err := sess.Loaders.User.Load(ctx, patch.ID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, patch.ID)
	}

	updated := *current
	if patch.Email != nil {
		updated.Email = *patch.Email
	}
	if patch.Role != nil {
		updated.Role = *patch.Role
	}
	if patch.AuthMethod != nil {
		updated.AuthMethod = *patch.AuthMethod
	}
	if patch.PasswordEncrypted != nil {
		updated.PasswordEncrypted = sql.NullString{String: *patch.PasswordEncrypted, Valid: true}
	}
	if patch.PasswordSalt != nil {
		updated.PasswordSalt = sql.NullString{String: *patch.PasswordSalt, Valid: true}
	}
	if patch.OrganizationID != nil {
		updated.OrganizationID = sql.NullString{String: *patch.OrganizationID, Valid: true}
	}
	updated.UpdatedByID = me.ID
	updated.UpdatedDate = time.Now()

	if err := s.users.Update(ctx, &updated, CanonicalizeEmail(updated.Email)); err != nil {
		return nil, err
	}

	sess.Loaders.User.Forget(patch.ID)
	row, err := sess.Loaders.User.Load(ctx, patch.ID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("%w: user %s after update", ErrNotFound, patch.ID)
	}
	return row, nil
}

func (s *Store) CreateRefreshToken(ctx context.Context, sess *session.Session, userID, accessTokenID string, expiresAt time.Time) (*entity.RefreshToken, error) {
	me, err := actingUser(sess)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	token := &entity.RefreshToken{
		ID:            uuid.New().String(),
		UserID:        userID,
		AccessTokenID: accessTokenID,
		ExpiresAt:     expiresAt,
		CreatedByID:   me.ID,
		UpdatedByID:   me.ID,
		CreatedDate:   now,
		UpdatedDate:   now,
	}

	if err := s.refreshTokens.Create(ctx, token); err != nil {
		return nil, err
	}

	sess.Loaders.RefreshToken.Forget(token.ID)
	created, err := sess.Loaders.RefreshToken.Load(ctx, token.ID)
	if err != nil {
		return nil, err
	}
	if created == nil {
		return nil, fmt.Errorf("%w: refresh token %s after create", ErrNotFound, token.ID)
	}
	return created, nil
}

// RotateRefreshToken performs the compare-and-swap on the stored access-token
// id. A false return means a concurrent request rotated first.
func (s *Store) RotateRefreshToken(ctx context.Context, sess *session.Session, token *entity.RefreshToken, newAccessTokenID string) (bool, error) {
	me, err := actingUser(sess)
	if err != nil {
		return false, err
	}

	rotated, err := s.refreshTokens.RotateAccessToken(ctx, token.ID, token.AccessTokenID, newAccessTokenID, me.ID, time.Now())
	if err != nil {
		return false, err
	}
	sess.Loaders.RefreshToken.Forget(token.ID)
	sess.Loaders.RefreshTokenByAccessTokenID.Forget(token.AccessTokenID)
	return rotated, nil
}

func (s *Store) DeleteRefreshToken(ctx context.Context, sess *session.Session, id string) error {
	me, err := actingUser(sess)
	if err != nil {
		return err
	}
	if err := s.refreshTokens.SoftDeleteByID(ctx, id, me.ID, time.Now()); err != nil {
		return err
	}
	sess.Loaders.RefreshToken.Forget(id)
	return nil
}

type NewListing struct {
	Title       string
	Description string
}

func (s *Store) CreateListing(ctx context.Context, sess *session.Session, input NewListing) (*entity.Listing, error) {
	me, err := actingUser(sess)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	listing := &entity.Listing{
		ID:          uuid.New().String(),
		Title:       input.Title,
		Description: input.Description,
		CreatedByID: me.ID,
		UpdatedByID: me.ID,
		CreatedDate: now,
		UpdatedDate: now,
	}

	if err := s.listings.Create(ctx, listing); err != nil {
		return nil, err
	}

	sess.Loaders.Listing.Forget(listing.ID)
	created, err := sess.Loaders.Listing.Load(ctx, listing.ID)
	if err != nil {
		return nil, err
	}
	if created == nil {
		return nil, fmt.Errorf("%w: listing %s after create", ErrNotFound, listing.ID)
	}
	return created, nil
}

type ListingPatch struct {
	ID          string
	Title       *string
	Description *string
	IsDeleted   *bool
}

func (s *Store) UpdateListing(ctx context.Context, sess *session.Session, patch ListingPatch) (*entity.Listing, error) {
	me, err := actingUser(sess)
	if err != nil {
		return nil, err
	}

	current, err := sess.Loaders.Listing.Load(ctx, patch.ID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("%w: listing %s", ErrNotFound, patch.ID)
	}

	updated := *current
	if patch.Title != nil {
		updated.Title = *patch.Title
	}
	if patch.Description != nil {
		updated.Description = *patch.Description
	}
	if patch.IsDeleted != nil {
		updated.IsDeleted = *patch.IsDeleted
	}
	updated.UpdatedByID = me.ID
	updated.UpdatedDate = time.Now()

	if err := s.listings.Update(ctx, &updated); err != nil {
		return nil, err
	}

	sess.Loaders.Listing.Forget(patch.ID)
	if updated.IsDeleted {
		// Soft-deleted rows are invisible to the loader; return the value
		// we wrote instead of reading back.
		return &updated, nil
	}
	row, err := sess.Loaders.Listing.Load(ctx, patch.ID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("%w: listing %s after update", ErrNotFound, patch.ID)
	}
	return row, nil
}
