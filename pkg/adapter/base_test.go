package adapter

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseSQLAdapter_Close(t *testing.T) {
	tests := []struct {
		name    string
		setupDB bool
	}{
		{name: "close with nil DB", setupDB: false},
		{name: "close with open DB", setupDB: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := &BaseSQLAdapter{}

			if tt.setupDB {
				db, mock, err := sqlmock.New()
				require.NoError(t, err)
				mock.ExpectClose()
				base.Attach(db)
			}

			assert.NoError(t, base.Close())
			assert.False(t, base.IsConnected())
		})
	}
}

func TestBaseSQLAdapter_Query(t *testing.T) {
	tests := []struct {
		name      string
		setupDB   bool
		setupMock func(mock sqlmock.Sqlmock)
		sql       string
		args      []any
		expectErr bool
		errMsg    string
		expectRow int
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
				rows := sqlmock.NewRows([]string{"cnty", "jobs"}).
					AddRow("001", 12.5).
					AddRow("003", 7.0)
				mock.ExpectQuery("SELECT cnty, jobs FROM stats").WillReturnRows(rows)
			},
			sql:       "SELECT cnty, jobs FROM stats",
			expectRow: 2,
		},
		{
			name:    "query with args",
			setupDB: true,
			setupMock: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"countyfp"}).AddRow("001")
				mock.ExpectQuery("SELECT countyfp FROM counties WHERE statefp").
					WithArgs("17").
					WillReturnRows(rows)
			},
			sql:       "SELECT countyfp FROM counties WHERE statefp = $1",
			args:      []any{"17"},
			expectRow: 1,
		},
		{
			name:    "query with error",
			setupDB: true,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("INVALID SQL").WillReturnError(assert.AnError)
			},
			sql:       "INVALID SQL",
			expectErr: true,
			errMsg:    "failed to execute query",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := &BaseSQLAdapter{}

			var mock sqlmock.Sqlmock
			if tt.setupDB {
				db, m, err := sqlmock.New()
				require.NoError(t, err)
				defer func() { _ = db.Close() }()
				base.DB = db
				mock = m
				if tt.setupMock != nil {
					tt.setupMock(mock)
				}
			}

			rows, err := base.Query(context.Background(), tt.sql, tt.args...)
			if tt.expectErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			defer func() { _ = rows.Close() }()

			n := 0
			for rows.Next() {
				n++
			}
			require.NoError(t, rows.Err())
			assert.Equal(t, tt.expectRow, n)

			if mock != nil {
				assert.NoError(t, mock.ExpectationsWereMet())
			}
		})
	}
}

func TestGeometryQuery_WithDefaults(t *testing.T) {
	q := GeometryQuery{Table: "tl_2015_us_county", SRID: 3435}.WithDefaults()
	assert.Equal(t, "tl_2015_us_county", q.Table)
	assert.Equal(t, "countyfp", q.IDColumn)
	assert.Equal(t, "name", q.NameColumn)
	assert.Equal(t, "statefp", q.StateColumn)
	assert.Equal(t, "geom", q.GeomColumn)
	assert.Equal(t, 3435, q.SRID)

	assert.Equal(t, "counties", GeometryQuery{}.WithDefaults().Table)
}
