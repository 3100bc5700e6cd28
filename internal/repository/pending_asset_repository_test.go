package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"mediavault/internal/domain"
)

var pendingColumnNames = []string{
	"id", "disk", "path", "name", "file_name", "mime_type", "size", "custom_properties", "created_at", "ttl_seconds",
}

func TestPendingAssetRepositorySaveFind(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPendingAssetRepository(db, time.Hour)
	require.Equal(t, time.Hour, repo.DefaultTTL())

	created := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	p := &domain.PendingAsset{
		ID:         "abc",
		Disk:       "staging",
		Path:       "abc/doc.pdf",
		Name:       "doc",
		FileName:   "doc.pdf",
		MIMEType:   "application/pdf",
		Size:       4,
		CreatedAt:  created,
		TTLSeconds: 60,
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO pending_assets`)).
		WithArgs("abc", "staging", "abc/doc.pdf", "doc", "doc.pdf", "application/pdf", int64(4),
			sqlmock.AnyArg(), created, int64(60)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Save(context.Background(), p))

	mock.ExpectQuery(regexp.QuoteMeta(`FROM pending_assets WHERE id = $1`)).
		WithArgs("abc").
		WillReturnRows(sqlmock.NewRows(pendingColumnNames).AddRow(
			"abc", "staging", "abc/doc.pdf", "doc", "doc.pdf", "application/pdf", int64(4),
			[]byte(`{"source":"web"}`), created, int64(60),
		))

	got, err := repo.Find(context.Background(), "abc")
	require.NoError(t, err)
	require.Equal(t, "web", got.CustomProperties["source"])
	require.Equal(t, created.Add(time.Minute), got.ExpiresAt())

	mock.ExpectQuery(regexp.QuoteMeta(`FROM pending_assets WHERE id = $1`)).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	_, err = repo.Find(context.Background(), "missing")
	require.True(t, errors.Is(err, domain.ErrNotFound))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPendingAssetRepositoryDelete(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPendingAssetRepository(db, time.Hour)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM pending_assets WHERE id = $1`)).
		WithArgs("abc").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM pending_assets WHERE id = $1`)).
		WithArgs("abc").
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err := repo.Delete(context.Background(), "abc")
	require.NoError(t, err)
	require.True(t, deleted)

	deleted, err = repo.Delete(context.Background(), "abc")
	require.NoError(t, err)
	require.False(t, deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPendingAssetRepositoryExpired(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPendingAssetRepository(db, time.Hour)

	now := time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`created_at + make_interval(secs => ttl_seconds) < $1`)).
		WithArgs(now, 10).
		WillReturnRows(sqlmock.NewRows(pendingColumnNames).AddRow(
			"old", "staging", "old/a.txt", "a", "a.txt", "text/plain", int64(1), nil, now.Add(-2*time.Hour), int64(60),
		))

	items, err := repo.Expired(context.Background(), now, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.True(t, items[0].IsExpired(now))
	require.NoError(t, mock.ExpectationsWereMet())
}
