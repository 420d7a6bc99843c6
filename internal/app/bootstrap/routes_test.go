package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/lessonsync/internal/app/changes"
	"github.com/dalemusser/lessonsync/internal/app/docstore/memstore"
	"github.com/dalemusser/lessonsync/internal/app/maintainers/accounts"
	"github.com/dalemusser/lessonsync/internal/testutil"
	"go.uber.org/zap"
)

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

type countingDispatcher struct{ n int }

func (d *countingDispatcher) Dispatch(context.Context, changes.Change) error {
	d.n++
	return nil
}

const testSecret = "routes-secret"

func testRouter(secret string) (http.Handler, *countingDispatcher) {
	d := &countingDispatcher{}
	r := newRouter(handlerDeps{
		DB:       okPinger{},
		Events:   d,
		Accounts: accounts.New(memstore.New(), zap.NewNop()),
		Secret:   secret,
	}, zap.NewNop())
	return r, d
}

func TestRouter(t *testing.T) {
	token := testutil.BearerToken(t, testSecret, "trigger")
	tests := []struct {
		name   string
		method string
		target string
		body   string
		auth   string
		want   int
	}{
		{"health is public", http.MethodGet, "/health", "", "", http.StatusOK},
		{"events need a token", http.MethodPost, "/events", `{"path":"users/u1","after":{}}`, "", http.StatusUnauthorized},
		{"events", http.MethodPost, "/events", `{"path":"users/u1","after":{}}`, token, http.StatusAccepted},
		{"create account", http.MethodPost, "/identity/accounts", `{"id":"u1"}`, token, http.StatusNoContent},
		{"delete account", http.MethodDelete, "/identity/accounts/u1", "", token, http.StatusNoContent},
		{"identity needs a token", http.MethodDelete, "/identity/accounts/u1", "", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := testRouter(testSecret)
			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestRouter_BlankSecretDisablesIngress(t *testing.T) {
	h, d := testRouter("")
	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(`{"path":"users/u1","after":{}}`))
	req.Header.Set("Authorization", testutil.BearerToken(t, testSecret, "trigger"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if d.n != 0 {
		t.Errorf("dispatched %d events", d.n)
	}
}
