package adapter

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/livef1/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseSQLAdapter_Close(t *testing.T) {
	tests := []struct {
		name      string
		setupDB   bool
		expectErr bool
	}{
		{
			name:      "close with nil DB",
			setupDB:   false,
			expectErr: false,
		},
		{
			name:      "close with open DB",
			setupDB:   true,
			expectErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := &BaseSQLAdapter{}

			if tt.setupDB {
				db, mock, err := sqlmock.New()
				require.NoError(t, err)
				mock.ExpectClose()
				base.DB = db
			}

			err := base.Close()
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBaseSQLAdapter_Exec(t *testing.T) {
	tests := []struct {
		name      string
		setupDB   bool
		setupMock func(mock sqlmock.Sqlmock)
		sql       string
		expectErr bool
		errMsg    string
	}{
		{
			name:      "exec without connection",
			setupDB:   false,
			sql:       "SELECT 1",
			expectErr: true,
			errMsg:    "database connection not established",
		},
		{
			name:    "exec success",
			setupDB: true,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("CREATE TABLE users").WillReturnResult(sqlmock.NewResult(0, 0))
			},
			sql:       "CREATE TABLE users (id INT)",
			expectErr: false,
		},
		{
			name:    "exec with error",
			setupDB: true,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INVALID SQL").WillReturnError(assert.AnError)
			},
			sql:       "INVALID SQL",
			expectErr: true,
			errMsg:    "failed to execute SQL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			base := &BaseSQLAdapter{}

			if tt.setupDB {
				db, mock, err := sqlmock.New()
				require.NoError(t, err)
				defer func() { _ = db.Close() }()

				if tt.setupMock != nil {
					tt.setupMock(mock)
				}
				base.DB = db
			}

			err := base.Exec(ctx, tt.sql)
			if tt.expectErr {
				require.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBaseSQLAdapter_Query(t *testing.T) {
	tests := []struct {
		name      string
		setupDB   bool
		setupMock func(mock sqlmock.Sqlmock)
		sql       string
		expectErr bool
		errMsg    string
	}{
		{
			name:      "query without connection",
			setupDB:   false,
			sql:       "SELECT 1",
			expectErr: true,
			errMsg:    "database connection not established",
		},
		{
			name:    "query success",
			setupDB: true,
			setupMock: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"id", "name"}).
					AddRow(1, "alice").
					AddRow(2, "bob")
				mock.ExpectQuery("SELECT").WillReturnRows(rows)
			},
			sql:       "SELECT id, name FROM users",
			expectErr: false,
		},
		{
			name:    "query with error",
			setupDB: true,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("INVALID").WillReturnError(assert.AnError)
			},
			sql:       "INVALID SQL",
			expectErr: true,
			errMsg:    "failed to execute query",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			base := &BaseSQLAdapter{}

			if tt.setupDB {
				db, mock, err := sqlmock.New()
				require.NoError(t, err)
				defer func() { _ = db.Close() }()

				if tt.setupMock != nil {
					tt.setupMock(mock)
				}
				base.DB = db
			}

			rows, err := base.Query(ctx, tt.sql)
			if tt.expectErr {
				require.Error(t, err)
				assert.Nil(t, rows)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				require.NoError(t, err)
				assert.NotNil(t, rows)
				defer func() { _ = rows.Close() }()
			}
		})
	}
}

func TestBaseSQLAdapter_IsConnected(t *testing.T) {
	tests := []struct {
		name     string
		setupDB  bool
		expected bool
	}{
		{
			name:     "not connected",
			setupDB:  false,
			expected: false,
		},
		{
			name:     "connected",
			setupDB:  true,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := &BaseSQLAdapter{}

			if tt.setupDB {
				db, _, err := sqlmock.New()
				require.NoError(t, err)
				defer func() { _ = db.Close() }()
				base.DB = db
			}

			assert.Equal(t, tt.expected, base.IsConnected())
		})
	}
}

var testDialect = &Dialect{
	Name:          "test",
	DefaultSchema: "main",
	Types: map[core.ColumnType]string{
		core.ColumnTypeText:    "TEXT",
		core.ColumnTypeInteger: "BIGINT",
		core.ColumnTypeDouble:  "DOUBLE",
	},
	Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
}

func TestBaseSQLAdapter_ParseQualifiedName(t *testing.T) {
	tests := []struct {
		name       string
		schema     string
		table      string
		wantSchema string
		wantName   string
	}{
		{"default schema", "", "laps", "main", "laps"},
		{"configured schema", "f1", "laps", "f1", "laps"},
		{"qualified", "f1", "gold.laps", "gold", "laps"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := &BaseSQLAdapter{Cfg: core.AdapterConfig{Schema: tt.schema}}
			schema, name := base.ParseQualifiedName(tt.table, testDialect)
			assert.Equal(t, tt.wantSchema, schema)
			assert.Equal(t, tt.wantName, name)
		})
	}
}

func TestBaseSQLAdapter_ReplaceTableCommon(t *testing.T) {
	columns := []core.Column{
		{Name: "DriverNo", Type: core.ColumnTypeText, Position: 1},
		{Name: "LapNo", Type: core.ColumnTypeInteger, Position: 2},
		{Name: "LapTime", Type: core.ColumnTypeDouble, Nullable: true, Position: 3},
	}
	rows := [][]any{
		{"1", int64(1), 95.2},
		{"1", int64(2), nil},
	}

	t.Run("success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`CREATE SCHEMA IF NOT EXISTS "main"`)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta(`DROP TABLE IF EXISTS "main"."laps"`)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE "main"."laps" ("DriverNo" TEXT, "LapNo" BIGINT, "LapTime" DOUBLE)`)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		prep := mock.ExpectPrepare(regexp.QuoteMeta(`INSERT INTO "main"."laps" ("DriverNo", "LapNo", "LapTime") VALUES ($1, $2, $3)`))
		prep.ExpectExec().WithArgs("1", int64(1), 95.2).WillReturnResult(sqlmock.NewResult(0, 1))
		prep.ExpectExec().WithArgs("1", int64(2), nil).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		base := &BaseSQLAdapter{DB: db}
		require.NoError(t, base.ReplaceTableCommon(context.Background(), testDialect, "laps", columns, rows))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert failure rolls back", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectBegin()
		mock.ExpectExec("CREATE SCHEMA").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("DROP TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("CREATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
		prep := mock.ExpectPrepare("INSERT INTO")
		prep.ExpectExec().WillReturnError(assert.AnError)
		mock.ExpectRollback()

		base := &BaseSQLAdapter{DB: db}
		err = base.ReplaceTableCommon(context.Background(), testDialect, "laps", columns, rows)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to insert row 0")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unsupported type", func(t *testing.T) {
		db, _, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		base := &BaseSQLAdapter{DB: db}
		cols := []core.Column{{Name: "Extra", Type: core.ColumnTypeJSON}}
		err = base.ReplaceTableCommon(context.Background(), testDialect, "laps", cols, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported type")
	})

	t.Run("not connected", func(t *testing.T) {
		base := &BaseSQLAdapter{}
		err := base.ReplaceTableCommon(context.Background(), testDialect, "laps", columns, rows)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database connection not established")
	})
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"main"."laps"`, QuoteIdent("main", "laps"))
	assert.Equal(t, `"say ""hi"""`, QuoteIdent(`say "hi"`))
}
