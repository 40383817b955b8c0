package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func serve(mw func(http.Handler) http.Handler, header, value string) int {
	req := httptest.NewRequest(http.MethodPost, "/api/reset", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	rec := httptest.NewRecorder()
	mw(okHandler).ServeHTTP(rec, req)
	return rec.Code
}

func TestRequireAdmin_AllowsAdminKey_BlocksPublicKey(t *testing.T) {
	keys := Keys{
		Public: []string{"pub_key"},
		Admin:  []string{"adm_key"},
	}

	if code := serve(RequireAdmin(keys), "X-API-Key", "adm_key"); code != http.StatusOK {
		t.Fatalf("admin key should pass; got %d", code)
	}
	if code := serve(RequireAdmin(keys), "Authorization", "Bearer adm_key"); code != http.StatusOK {
		t.Fatalf("bearer admin key should pass; got %d", code)
	}
	if code := serve(RequireAdmin(keys), "X-API-Key", "pub_key"); code != http.StatusForbidden {
		t.Fatalf("public key should be forbidden; got %d", code)
	}
	if code := serve(RequireAdmin(keys), "", ""); code != http.StatusUnauthorized {
		t.Fatalf("missing key should be 401; got %d", code)
	}
}

func TestRequireAny(t *testing.T) {
	keys := Keys{Public: []string{"pub_key"}, Admin: []string{"adm_key"}}
	for key, want := range map[string]int{
		"pub_key": http.StatusOK,
		"adm_key": http.StatusOK,
		"nope":    http.StatusUnauthorized,
		"":        http.StatusUnauthorized,
	} {
		if code := serve(RequireAny(keys), "X-API-Key", key); code != want {
			t.Errorf("key %q: want %d got %d", key, want, code)
		}
	}
}

func TestNoKeysConfigured_AllowsAll(t *testing.T) {
	if code := serve(RequireAdmin(Keys{}), "", ""); code != http.StatusOK {
		t.Fatalf("admin without keys should pass; got %d", code)
	}
	if code := serve(RequireAny(Keys{}), "", ""); code != http.StatusOK {
		t.Fatalf("any without keys should pass; got %d", code)
	}
}
