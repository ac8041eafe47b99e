package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type checkerFunc func(ctx context.Context) error

func (f checkerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func ready(t *testing.T, h *HealthHandler) (int, readinessResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)
	h.Ready(c)

	var resp readinessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w.Code, resp
}

func TestReady(t *testing.T) {
	ok := checkerFunc(func(context.Context) error { return nil })
	down := checkerFunc(func(context.Context) error { return errors.New("down") })

	t.Run("全部正常", func(t *testing.T) {
		code, resp := ready(t, NewHealthHandler("v1",
			Dependency{Name: "postgres", Checker: ok, Required: true},
			Dependency{Name: "redis"},
		))
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ok", resp.Checks["postgres"].Status)
		assert.Equal(t, "disabled", resp.Checks["redis"].Status)
	})

	t.Run("可选依赖失败仍就绪", func(t *testing.T) {
		code, resp := ready(t, NewHealthHandler("v1",
			Dependency{Name: "postgres", Checker: ok, Required: true},
			Dependency{Name: "redis", Checker: down},
		))
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "degraded", resp.Checks["redis"].Status)
	})

	t.Run("必需依赖失败", func(t *testing.T) {
		code, resp := ready(t, NewHealthHandler("v1",
			Dependency{Name: "postgres", Checker: down, Required: true},
		))
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "not_ready", resp.Status)
		assert.Equal(t, "down", resp.Checks["postgres"].Error)
	})
}
