package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func authProbe(t *testing.T, token, method, path, header string) (int, bool) {
	t.Helper()
	reached := false
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(method, path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	AdminAuthMiddleware(token, next).ServeHTTP(rec, req)
	return rec.Code, reached
}

func TestAdminAuthMiddleware_GuardsDispatchEndpoints(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		header     string
		wantStatus int
		wantPass   bool
	}{
		{
			name:       "call-next without token",
			method:     http.MethodPost,
			path:       "/api/tickets/actions/call-next",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "call-next with wrong token",
			method:     http.MethodPost,
			path:       "/api/tickets/actions/call-next",
			header:     "Bearer wrong",
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "call-next with correct token",
			method:     http.MethodPost,
			path:       "/api/tickets/actions/call-next",
			header:     "Bearer sekrit",
			wantStatus: http.StatusOK,
			wantPass:   true,
		},
		{
			name:       "status update guarded",
			method:     http.MethodPost,
			path:       "/api/tickets/abc/status",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "transfer guarded",
			method:     http.MethodPost,
			path:       "/api/tickets/abc/transfer",
			header:     "Bearer sekrit",
			wantStatus: http.StatusOK,
			wantPass:   true,
		},
		{
			name:       "booking stays public",
			method:     http.MethodPost,
			path:       "/api/tickets",
			wantStatus: http.StatusOK,
			wantPass:   true,
		},
		{
			name:       "position stays public",
			method:     http.MethodGet,
			path:       "/api/tickets/abc/position",
			wantStatus: http.StatusOK,
			wantPass:   true,
		},
		{
			name:       "directory stays public",
			method:     http.MethodPost,
			path:       "/api/directory/bind",
			wantStatus: http.StatusOK,
			wantPass:   true,
		},
		{
			name:       "scheme is case insensitive",
			method:     http.MethodPost,
			path:       "/api/tickets/actions/call-next",
			header:     "bearer sekrit",
			wantStatus: http.StatusOK,
			wantPass:   true,
		},
		{
			name:       "malformed header counts as missing",
			method:     http.MethodPost,
			path:       "/api/tickets/actions/call-next",
			header:     "sekrit",
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, reached := authProbe(t, "sekrit", tt.method, tt.path, tt.header)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantPass, reached)
		})
	}
}

func TestAdminAuthMiddleware_EmptyTokenDisablesCheck(t *testing.T) {
	status, reached := authProbe(t, "", http.MethodPost, "/api/tickets/actions/call-next", "")
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, reached)
}
