/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMiddleware(t *testing.T) {
	hash, err := HashToken("good-token")
	if err != nil {
		t.Fatal(err)
	}
	store := NewTokenStore([]string{hash})

	var seenID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = TokenIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name     string
		enabled  bool
		method   string
		path     string
		header   string
		wantCode int
		wantID   string
		wantBody string
	}{
		{"disabled", false, "POST", "/ask", "", http.StatusOK, "", ""},
		{"health bypass", true, "GET", "/health", "", http.StatusOK, "", ""},
		{"preflight bypass", true, "OPTIONS", "/ask", "", http.StatusOK, "", ""},
		{"missing header", true, "POST", "/ask", "", http.StatusUnauthorized, "", "Missing Authorization"},
		{"wrong scheme", true, "POST", "/ask", "Basic abc", http.StatusUnauthorized, "", "Expected: Bearer"},
		{"unknown token", true, "POST", "/ask", "Bearer bad-token", http.StatusUnauthorized, "", "unknown token"},
		{"valid token", true, "POST", "/ask", "Bearer good-token", http.StatusOK, "config-1", ""},
		{"lowercase scheme", true, "POST", "/ask", "bearer good-token", http.StatusOK, "config-1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seenID = ""
			handler := Middleware(store, tt.enabled)(next)

			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %q)", rr.Code, tt.wantCode, rr.Body.String())
			}
			if seenID != tt.wantID {
				t.Errorf("token id = %q, want %q", seenID, tt.wantID)
			}
			if tt.wantBody != "" && !strings.Contains(rr.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want containing %q", rr.Body.String(), tt.wantBody)
			}
		})
	}
}
