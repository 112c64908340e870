package photos

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/snapvault/snapvault/internal/common"
	"github.com/snapvault/snapvault/internal/server/models"
)

// passthroughConverter lets mock arguments like []string through unchanged,
// matching what the pgx driver accepts in production.
type passthroughConverter struct{}

func (passthroughConverter) ConvertValue(v any) (driver.Value, error) { return driver.Value(v), nil }

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp),
		sqlmock.ValueConverterOption(passthroughConverter{}))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var photoCols = []string{"id", "user_id", "batch_id", "file_name", "content_type", "size_bytes", "storage_key", "status", "error_message", "uploaded_at"}

func photoRow(id string, uploadedAt time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(photoCols).
		AddRow(id, "u1", "", "a.jpg", "image/jpeg", int64(100), "u1/2026/01/"+id+"-a.jpg", "pending", "", uploadedAt)
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectExec(`(?s)^\s*INSERT\s+INTO\s+photos\s*\(`).
		WithArgs("p1", "u1", "b1", "a.jpg", "image/jpeg", int64(100), "key", "pending", "", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`^INSERT\s+INTO\s+photo_tags`).
		WithArgs("p1", "beach").
		WillReturnResult(sqlmock.NewResult(0, 1))

	photo := &models.Photo{
		ID: "p1", UserID: "u1", BatchID: "b1", FileName: "a.jpg", ContentType: "image/jpeg",
		SizeBytes: 100, StorageKey: "key", Status: "pending", Tags: []string{"beach"}, UploadedAt: now,
	}
	if err := repo.Create(context.Background(), photo); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^\s*INSERT\s+INTO\s+photos\s*\(`).
		WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), &models.Photo{ID: "p1"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGetByID_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`^SELECT .* FROM photos WHERE id = \$1$`).
		WithArgs("p1").
		WillReturnRows(photoRow("p1", now))
	mock.ExpectQuery(`^SELECT tag FROM photo_tags`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"tag"}).AddRow("beach").AddRow("sunset"))

	photo, err := repo.GetByID(context.Background(), "p1")
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if photo.ID != "p1" || photo.Status != "pending" {
		t.Fatalf("photo: %+v", photo)
	}
	if len(photo.Tags) != 2 {
		t.Fatalf("tags: %v", photo.Tags)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`^SELECT .* FROM photos WHERE id = \$1$`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetByIDForUpdate_LocksRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`^SELECT .* FROM photos WHERE id = \$1 FOR UPDATE$`).
		WithArgs("p1").
		WillReturnRows(photoRow("p1", now))
	mock.ExpectQuery(`^SELECT tag FROM photo_tags`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"tag"}))

	if _, err := repo.GetByIDForUpdate(context.Background(), "p1"); err != nil {
		t.Fatalf("GetByIDForUpdate error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^UPDATE photos SET status = \$2, error_message = NULLIF\(\$3, ''\) WHERE id = \$1$`).
		WithArgs("p1", "completed", "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	photo := &models.Photo{ID: "p1", Status: "completed"}
	if err := repo.UpdateStatus(context.Background(), photo); err != nil {
		t.Fatalf("UpdateStatus error: %v", err)
	}
}

func TestUpdateStatus_NoRows(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^UPDATE photos SET status`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), &models.Photo{ID: "missing", Status: "failed"})
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReplaceTags(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^DELETE FROM photo_tags WHERE photo_id = \$1$`).
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`^INSERT\s+INTO\s+photo_tags`).
		WithArgs("p1", "alps").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.ReplaceTags(context.Background(), "p1", []string{"alps"}); err != nil {
		t.Fatalf("ReplaceTags error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListByOwner_NoTags(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows(photoCols).
		AddRow("p2", "u1", "", "b.jpg", "image/jpeg", int64(50), "k2", "completed", "", now).
		AddRow("p1", "u1", "b1", "a.jpg", "image/png", int64(100), "k1", "failed", "timeout", now.Add(-time.Hour))
	mock.ExpectQuery(`(?s)^SELECT .* FROM photos\s+WHERE user_id = \$1\s+ORDER BY uploaded_at DESC, id\s+LIMIT \$2 OFFSET \$3$`).
		WithArgs("u1", 10, 0).
		WillReturnRows(rows)
	mock.ExpectQuery(`^SELECT tag FROM photo_tags`).WithArgs("p2").
		WillReturnRows(sqlmock.NewRows([]string{"tag"}))
	mock.ExpectQuery(`^SELECT tag FROM photo_tags`).WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"tag"}).AddRow("beach"))

	list, err := repo.ListByOwner(context.Background(), "u1", nil, 10, 0)
	if err != nil {
		t.Fatalf("ListByOwner error: %v", err)
	}
	if len(list) != 2 || list[0].ID != "p2" || list[1].ErrorMessage != "timeout" {
		t.Fatalf("list: %+v", list)
	}
	if len(list[1].Tags) != 1 {
		t.Fatalf("tags: %v", list[1].Tags)
	}
}

func TestListByOwner_TagFilter(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`(?s)^SELECT .* FROM photos\s+WHERE user_id = \$1 AND id IN \(.*HAVING COUNT\(DISTINCT tag\) = \$3.*LIMIT \$4 OFFSET \$5$`).
		WithArgs("u1", []string{"beach", "sunset"}, 2, 10, 0).
		WillReturnRows(photoRow("p1", now))
	mock.ExpectQuery(`^SELECT tag FROM photo_tags`).WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"tag"}).AddRow("beach").AddRow("sunset"))

	list, err := repo.ListByOwner(context.Background(), "u1", []string{"beach", "sunset"}, 10, 0)
	if err != nil {
		t.Fatalf("ListByOwner error: %v", err)
	}
	if len(list) != 1 || list[0].ID != "p1" {
		t.Fatalf("list: %+v", list)
	}
}

func TestCountByOwner(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`^SELECT COUNT\(\*\) FROM photos WHERE user_id = \$1$`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.CountByOwner(context.Background(), "u1", nil)
	if err != nil {
		t.Fatalf("CountByOwner error: %v", err)
	}
	if count != 7 {
		t.Fatalf("count: %d", count)
	}
}

func TestCountByOwner_TagFilter(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT COUNT\(\*\) FROM photos\s+WHERE user_id = \$1 AND id IN`).
		WithArgs("u1", []string{"beach"}, 1).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := repo.CountByOwner(context.Background(), "u1", []string{"beach"})
	if err != nil {
		t.Fatalf("CountByOwner error: %v", err)
	}
	if count != 2 {
		t.Fatalf("count: %d", count)
	}
}

func TestDelete(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^DELETE FROM photos WHERE id = \$1$`).
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Delete(context.Background(), "p1"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}

	mock.ExpectExec(`^DELETE FROM photos WHERE id = \$1$`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), "missing"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
