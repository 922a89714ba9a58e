package http_test

import (
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	httpapi "github.com/acornbank/acorn/internal/savings/http"
	"github.com/acornbank/acorn/internal/savings/store/drivers/sqlite"
)

func TestProbes(t *testing.T) {
	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	mux := httpapi.NewMux(time.Now(), "test", st, slog.New(slog.DiscardHandler))

	t.Run("livez", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", "/livez", nil))
		require.Equal(t, 200, rec.Code)

		var resp httpapi.HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "ok", resp.Status)
		require.Equal(t, "test", resp.Version)
	})

	t.Run("readyz with a live database", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))
		require.Equal(t, 200, rec.Code)

		var resp httpapi.HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotNil(t, resp.Checks)
		require.Equal(t, "ok", resp.Checks.Database)
	})

	t.Run("request id is echoed back", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/livez", nil)
		req.Header.Set("X-Request-ID", "req-abc-123")
		mux.ServeHTTP(rec, req)
		require.Equal(t, "req-abc-123", rec.Header().Get("X-Request-ID"))
	})

	t.Run("request id is minted when absent", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", "/livez", nil))
		require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})

	t.Run("readyz with a closed database", func(t *testing.T) {
		closed, err := sqlite.NewStore(":memory:")
		require.NoError(t, err)
		require.NoError(t, closed.Close())

		mux := httpapi.NewMux(time.Now(), "test", closed, slog.New(slog.DiscardHandler))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))
		require.Equal(t, 503, rec.Code)
	})
}
