package postgres

import (
	"context"
	"testing"

	"github.com/leapstack-labs/countymap/pkg/adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSN(t *testing.T) {
	tests := []struct {
		name     string
		config   adapter.Config
		expected string
	}{
		{
			name: "basic connection",
			config: adapter.Config{
				Host:     "localhost",
				Port:     5432,
				Database: "testdb",
				Username: "user",
				Password: "pass",
			},
			expected: "host=localhost port=5432 dbname=testdb sslmode=disable user=user password=pass",
		},
		{
			name: "with custom sslmode",
			config: adapter.Config{
				Host:     "prod.example.com",
				Port:     5432,
				Database: "proddb",
				Username: "admin",
				Options:  map[string]string{"sslmode": "require"},
			},
			expected: "host=prod.example.com port=5432 dbname=proddb sslmode=require user=admin",
		},
		{
			name: "defaults",
			config: adapter.Config{
				Database: "mydb",
			},
			expected: "host=localhost port=5432 dbname=mydb sslmode=disable",
		},
		{
			name: "application name",
			config: adapter.Config{
				Host:     "db.example.com",
				Port:     5433,
				Database: "analytics",
				Options:  map[string]string{"application_name": "countymap"},
			},
			expected: "host=db.example.com port=5433 dbname=analytics sslmode=disable application_name=countymap",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, buildPostgresDSN(tt.config))
		})
	}
}

func TestCountyGeometrySQL(t *testing.T) {
	a := New(nil)

	tests := []struct {
		name     string
		query    adapter.GeometryQuery
		expected string
	}{
		{
			name:     "stored projection",
			query:    adapter.GeometryQuery{Table: "tl_2015_us_county"},
			expected: "SELECT countyfp, name, ST_AsBinary(geom) FROM tl_2015_us_county WHERE statefp = $1 ORDER BY countyfp",
		},
		{
			name:     "transformed",
			query:    adapter.GeometryQuery{Table: "counties", SRID: 3435, GeomColumn: "the_geom"},
			expected: "SELECT countyfp, name, ST_AsBinary(ST_Transform(the_geom, 3435)) FROM counties WHERE statefp = $1 ORDER BY countyfp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, a.CountyGeometrySQL(tt.query))
		})
	}
}

func TestAdapter_NotConnected(t *testing.T) {
	a := New(nil)
	assert.Equal(t, "postgres", a.DialectName())

	_, err := a.Query(context.Background(), "SELECT 1")
	require.ErrorIs(t, err, adapter.ErrNotConnected)
	assert.NoError(t, a.Close())
}
