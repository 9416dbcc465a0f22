package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/taskman/internal/model"
)

func TestPostgresAllowListRepo_Exists(t *testing.T) {
	tests := []struct {
		name  string
		rows  *sqlmock.Rows
		err   error
		want  bool
		isErr bool
	}{
		{
			name: "一致するエントリがある",
			rows: sqlmock.NewRows([]string{"id"}).AddRow("e-1"),
			want: true,
		},
		{
			name: "一致するエントリがない",
			rows: sqlmock.NewRows([]string{"id"}),
			want: false,
		},
		{
			name:  "DBエラー",
			err:   errors.New("connection refused"),
			isErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, repos := newMockDB(t)
			_, _, _, allowRepo := repos()

			q := mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM allowed_users WHERE type = $1 AND pattern = $2 LIMIT 1`)).
				WithArgs("domain", "@example.com")
			if tt.err != nil {
				q.WillReturnError(tt.err)
			} else {
				q.WillReturnRows(tt.rows)
			}

			got, err := allowRepo.Exists(context.Background(), model.AllowListEntryDomain, "@example.com")
			if tt.isErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPostgresAllowListRepo_List(t *testing.T) {
	mock, repos := newMockDB(t)
	_, _, _, allowRepo := repos()
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM allowed_users ORDER BY type, pattern`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "type", "pattern", "created_at"}).
			AddRow("e-1", "domain", "@example.com", now).
			AddRow("e-2", "email", "a@other.com", now))

	entries, err := allowRepo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.AllowListEntryDomain, entries[0].Type)
	assert.Equal(t, "a@other.com", entries[1].Pattern)
}

func TestPostgresAllowListRepo_AddAndRemove(t *testing.T) {
	mock, repos := newMockDB(t)
	_, _, _, allowRepo := repos()
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (type, pattern) DO NOTHING`)).
		WithArgs(sqlmock.AnyArg(), "email", "a@example.com").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM allowed_users WHERE pattern = $1`)).
		WithArgs("a@example.com").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM allowed_users WHERE pattern = $1`)).
		WithArgs("a@example.com").
		WillReturnResult(sqlmock.NewResult(0, 0))

	entry := &model.AllowListEntry{Type: model.AllowListEntryEmail, Pattern: "a@example.com"}
	require.NoError(t, allowRepo.Add(ctx, entry))
	assert.NotEmpty(t, entry.ID)

	removed, err := allowRepo.Remove(ctx, "a@example.com")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = allowRepo.Remove(ctx, "a@example.com")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
