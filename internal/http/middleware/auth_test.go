package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/pathfinder-backend/internal/platform/apierr"
	"github.com/yungbote/pathfinder-backend/internal/platform/ctxutil"
	"github.com/yungbote/pathfinder-backend/internal/platform/logger"
	"github.com/yungbote/pathfinder-backend/internal/services"
)

type tokenAuth struct {
	services.AuthService
	valid map[string]uuid.UUID
}

func (a *tokenAuth) SetContextFromToken(ctx context.Context, tok string) (context.Context, error) {
	id, ok := a.valid[tok]
	if !ok {
		return ctx, apierr.Unauthorized("invalid token")
	}
	return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{TokenString: tok, UserID: id}), nil
}

func (a *tokenAuth) GetAccessTTL() time.Duration { return time.Hour }

func newAuthRouter(t *testing.T, optional bool) (*gin.Engine, uuid.UUID) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	uid := uuid.New()
	am := NewAuthMiddleware(logger.Nop(), &tokenAuth{valid: map[string]uuid.UUID{"good": uid}})

	r := gin.New()
	mw := am.RequireAuth()
	if optional {
		mw = am.OptionalAuth()
	}
	r.GET("/who", mw, func(c *gin.Context) {
		c.String(http.StatusOK, ctxutil.UserID(c.Request.Context()).String())
	})
	return r, uid
}

func TestRequireAuth(t *testing.T) {
	r, uid := newAuthRouter(t, false)

	cases := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{name: "missing", status: http.StatusUnauthorized},
		{name: "bearer", header: "Bearer good", status: http.StatusOK},
		{name: "bearer lowercase", header: "bearer good", status: http.StatusOK},
		{name: "query", query: "?token=good", status: http.StatusOK},
		{name: "invalid", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Token good", status: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/who"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("status: want=%d got=%d body=%s", tc.status, rec.Code, rec.Body.String())
			}
			if tc.status == http.StatusOK && rec.Body.String() != uid.String() {
				t.Fatalf("user: want=%s got=%s", uid, rec.Body.String())
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	r, uid := newAuthRouter(t, true)

	for _, tc := range []struct {
		name   string
		header string
		want   string
	}{
		{name: "anonymous", want: uuid.Nil.String()},
		{name: "invalid token stays anonymous", header: "Bearer nope", want: uuid.Nil.String()},
		{name: "authenticated", header: "Bearer good", want: uid.String()},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/who", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != http.StatusOK || rec.Body.String() != tc.want {
				t.Fatalf("got %d %q, want 200 %q", rec.Code, rec.Body.String(), tc.want)
			}
		})
	}
}

func TestAttachTraceContextEchoesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AttachTraceContext(), RequestLogger(logger.Nop()), Metrics())
	r.GET("/ping", func(c *gin.Context) {
		td := ctxutil.GetTraceData(c.Request.Context())
		if td == nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, td.RequestID)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-Id", "req-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Body.String() != "req-123" || rec.Header().Get("X-Request-Id") != "req-123" {
		t.Fatalf("request id not propagated: body=%q header=%q", rec.Body.String(), rec.Header().Get("X-Request-Id"))
	}
	if rec.Header().Get("X-Trace-Id") == "" {
		t.Fatal("trace id header missing")
	}
}

func TestInboundID(t *testing.T) {
	cases := []struct{ in, want string }{
		{" abc-123 ", "abc-123"},
		{"", ""},
		{"has space", ""},
		{"tab\tinside", ""},
		{"caf\u00e9", ""},
		{strings.Repeat("a", 129), ""},
		{strings.Repeat("b", 128), strings.Repeat("b", 128)},
	}
	for _, tc := range cases {
		if got := inboundID(tc.in); got != tc.want {
			t.Fatalf("inboundID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
