package ui

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/countymap/internal/dashboard"
	"github.com/leapstack-labs/countymap/internal/ui/features"
)

func TestServerHandler_Routes(t *testing.T) {
	fixture := features.SetupTestFixture(t)
	srv := NewServer(Config{Dashboard: fixture.Dashboard, SessionSecret: "test-secret-key-32-bytes-long!!", Title: "Illinois"})

	h, err := srv.Handler()
	require.NoError(t, err)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/static/style.css", http.StatusOK},
		{http.MethodGet, "/map.svg", http.StatusNotFound},
		{http.MethodGet, "/api/counties.geojson", http.StatusOK},
		{http.MethodGet, "/reload", http.StatusNotFound},
		{http.MethodGet, "/panel/generate", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestNewServer_BroadcastsRenders(t *testing.T) {
	fixture := features.SetupTestFixture(t)
	srv := NewServer(Config{Dashboard: fixture.Dashboard, SessionSecret: "test-secret-key-32-bytes-long!!"})

	ch := srv.Notifier().Subscribe()
	defer srv.Notifier().Unsubscribe(ch)

	_, err := fixture.Dashboard.Generate(context.Background())
	require.NoError(t, err)

	select {
	case snap := <-ch:
		assert.Equal(t, uint64(1), snap.Version)
		require.NotNil(t, snap.Render)
	case <-time.After(time.Second):
		t.Fatal("no snapshot broadcast")
	}
}

func TestServer_RerenderOnlyWhenShown(t *testing.T) {
	fixture := features.SetupTestFixture(t)
	srv := NewServer(Config{Dashboard: fixture.Dashboard, SessionSecret: "test-secret-key-32-bytes-long!!"})

	srv.rerender(context.Background())
	assert.Empty(t, fixture.Runner.Queries)

	_, err := fixture.Dashboard.Generate(context.Background())
	require.NoError(t, err)
	srv.rerender(context.Background())
	assert.Len(t, fixture.Runner.Queries, 2)
	assert.Equal(t, dashboard.Snapshot{}.Version+2, fixture.Dashboard.Output().Current().Version)
}
