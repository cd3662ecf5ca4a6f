package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/geocoder89/chathub/internal/access"
	"github.com/geocoder89/chathub/internal/actorctx"
	"github.com/geocoder89/chathub/internal/domain/user"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestLogger_DebugInDev(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "dev")

	log.DebugContext(context.Background(), "hello", "k", "v")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "hello", rec["msg"])
	require.Equal(t, "v", rec["k"])
	require.NotContains(t, rec, "trace_id")
}

func TestLogger_InfoInProd(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "prod")

	log.Debug("hidden")
	require.Zero(t, buf.Len())
}

func TestClassifyDBErr(t *testing.T) {
	require.Equal(t, "unique_violation", classifyDBErr(&pgconn.PgError{Code: "23505"}))
	require.Equal(t, "foreign_key_violation", classifyDBErr(&pgconn.PgError{Code: "23503"}))
	require.Equal(t, "pg_42P01", classifyDBErr(&pgconn.PgError{Code: "42P01"}))
	require.Equal(t, "canceled", classifyDBErr(fmt.Errorf("get user: %w", context.Canceled)))
	require.Equal(t, "timeout", classifyDBErr(context.DeadlineExceeded))
	require.Equal(t, "unknown", classifyDBErr(errors.New("boom")))
}

func TestProm_MiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	p := NewProm()

	r := gin.New()
	r.Use(p.GinHandleMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(p.Handler()))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Error(t, p.ObserveDB("users.get", func() error { return errors.New("boom") }))
	require.ErrorIs(t, p.ObserveDB("messages.get", func() error { return pgx.ErrNoRows }), pgx.ErrNoRows)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := w.Body.String()
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, strings.Contains(body, `chathub_http_requests_total{method="GET",route="/ping",status="204"} 1`))
	require.True(t, strings.Contains(body, `chathub_db_errors_total{class="unknown",op="users.get"} 1`))
	require.False(t, strings.Contains(body, `op="messages.get"} 1`), "a missing row is not an error")
	require.True(t, strings.Contains(body, `chathub_db_query_duration_seconds_count{op="messages.get",status="no_rows"} 1`))
}

func TestLogger_StampsCaller(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "prod")

	ctx := actorctx.WithCaller(context.Background(), access.Caller{UserID: "u-1", Role: user.RoleAdmin})
	log.InfoContext(ctx, "sent")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "u-1", rec["user_id"])
	require.Equal(t, "admin", rec["role"])
}

func TestSampler(t *testing.T) {
	require.Contains(t, sampler(0).Description(), "AlwaysOnSampler")
	require.Contains(t, sampler(1).Description(), "AlwaysOnSampler")
	require.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}
