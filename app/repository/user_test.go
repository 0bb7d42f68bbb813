package repository_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/modelboard/webapp/app/entity"
	"github.com/modelboard/webapp/app/repository"

	"github.com/DATA-DOG/go-sqlmock"
)

const (
	insertUserQuery      = `(?s)INSERT INTO users \(id, email, canonical_email, role, auth_method, password_encrypted, password_salt,\s+organization_id, created_by_id, updated_by_id, created_date, updated_date, is_deleted\)\s+VALUES \(\?, \?, \?, \?, \?, \?, \?, \?, \?, \?, \?, \?, \?\)`
	findUserByIDQuery    = `(?s)SELECT id, email, canonical_email, role, auth_method, password_encrypted, password_salt,\s+organization_id, created_by_id, updated_by_id, created_date, updated_date, is_deleted\s+FROM users WHERE id = \? AND is_deleted = 0`
	findUserByEmailQuery = `(?s)SELECT id, email, canonical_email, role, auth_method, password_encrypted, password_salt,\s+organization_id, created_by_id, updated_by_id, created_date, updated_date, is_deleted\s+FROM users WHERE canonical_email = \? AND is_deleted = 0`
	updateUserQuery      = `(?s)UPDATE users SET\s+email = \?,\s+canonical_email = \?,\s+role = \?,\s+auth_method = \?,\s+password_encrypted = \?,\s+password_salt = \?,\s+organization_id = \?,\s+updated_by_id = \?,\s+updated_date = \?,\s+is_deleted = \?\s+WHERE id = \?`
)

var userColumns = []string{
	"id",
	"email",
	"canonical_email",
	"role",
	"auth_method",
	"password_encrypted",
	"password_salt",
	"organization_id",
	"created_by_id",
	"updated_by_id",
	"created_date",
	"updated_date",
	"is_deleted",
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return db, mock, func() { _ = db.Close() }
}

func userRow(id string, now time.Time) []driver.Value {
	return []driver.Value{
		id,
		"user@example.com",
		"user@example.com",
		string(entity.RoleMember),
		string(entity.AuthMethodEmail),
		sql.NullString{Valid: false},
		sql.NullString{Valid: false},
		sql.NullString{Valid: false},
		"creator-id",
		"creator-id",
		now,
		now,
		false,
	}
}

func TestUserRepository_Create(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewUserRepository(db)
	now := time.Now()
	user := &entity.User{
		ID:          "user-id",
		Email:       "User@Example.com",
		Role:        entity.RoleMember,
		AuthMethod:  entity.AuthMethodPending,
		CreatedByID: "creator-id",
		UpdatedByID: "creator-id",
		CreatedDate: now,
		UpdatedDate: now,
	}

	mock.ExpectExec(insertUserQuery).
		WithArgs(
			user.ID,
			user.Email,
			"user@example.com",
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
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), user, "user@example.com"); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_FindByID(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewUserRepository(db)
	now := time.Now()

	mock.ExpectQuery(findUserByIDQuery).
		WithArgs("user-id").
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(userRow("user-id", now)...))

	user, err := repo.FindByID(context.Background(), "user-id")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if user == nil || user.ID != "user-id" {
		t.Fatalf("expected user user-id, got %+v", user)
	}
	if user.AuthMethod != entity.AuthMethodEmail {
		t.Fatalf("expected auth method Email, got %q", user.AuthMethod)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_FindByID_NotFound(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewUserRepository(db)

	mock.ExpectQuery(findUserByIDQuery).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(userColumns))

	user, err := repo.FindByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if user != nil {
		t.Fatalf("expected nil user for missing row, got %+v", user)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_FindByCanonicalEmail(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewUserRepository(db)
	now := time.Now()

	mock.ExpectQuery(findUserByEmailQuery).
		WithArgs("user@example.com").
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(userRow("user-id", now)...))

	user, err := repo.FindByCanonicalEmail(context.Background(), "user@example.com")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if user == nil || user.Email != "user@example.com" {
		t.Fatalf("unexpected user: %+v", user)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_Update(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewUserRepository(db)
	user := &entity.User{
		ID:                "user-id",
		Email:             "user@example.com",
		Role:              entity.RoleMember,
		AuthMethod:        entity.AuthMethodEmail,
		PasswordEncrypted: sql.NullString{String: "encrypted", Valid: true},
		PasswordSalt:      sql.NullString{String: "salt", Valid: true},
		UpdatedByID:       "user-id",
		UpdatedDate:       time.Now(),
	}

	mock.ExpectExec(updateUserQuery).
		WithArgs(
			user.Email,
			"user@example.com",
			user.Role,
			user.AuthMethod,
			user.PasswordEncrypted,
			user.PasswordSalt,
			user.OrganizationID,
			user.UpdatedByID,
			sqlmock.AnyArg(),
			user.IsDeleted,
			user.ID,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Update(context.Background(), user, "user@example.com"); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
