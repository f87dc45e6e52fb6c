package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func sanitizeEcho(t *testing.T, path, body string) (*httptest.ResponseRecorder, string) {
	t.Helper()

	var seen string
	handler := SanitizeInput(DefaultSanitizeConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		seen = string(b)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w, seen
}

func TestSanitizeInput_StripsMarkupFromStrings(t *testing.T) {
	_, seen := sanitizeEcho(t, "/auth/register", `{"name":"<script>alert('x')</script>Jordan"}`)

	var payload map[string]string
	if err := json.Unmarshal([]byte(seen), &payload); err != nil {
		t.Fatalf("handler received invalid JSON: %v", err)
	}
	if payload["name"] != "scriptalert(x)/scriptJordan" {
		t.Errorf("got %q", payload["name"])
	}
}

func TestSanitizeInput_WalksNestedValues(t *testing.T) {
	_, seen := sanitizeEcho(t, "/x", `{"outer":{"inner":["a<b", "c&d"]},"n":42}`)

	var payload struct {
		Outer struct {
			Inner []string `json:"inner"`
		} `json:"outer"`
		N int `json:"n"`
	}
	if err := json.Unmarshal([]byte(seen), &payload); err != nil {
		t.Fatalf("handler received invalid JSON: %v", err)
	}
	if payload.Outer.Inner[0] != "ab" || payload.Outer.Inner[1] != "cd" {
		t.Errorf("nested strings not sanitized: %v", payload.Outer.Inner)
	}
	if payload.N != 42 {
		t.Errorf("number mangled: %d", payload.N)
	}
}

// OAuth callback payloads pass through untouched.
func TestSanitizeInput_SkipsGooglePaths(t *testing.T) {
	_, seen := sanitizeEcho(t, "/auth/google/callback", `{"state":"<raw>&value"}`)

	if seen != `{"state":"<raw>&value"}` {
		t.Errorf("google path body was rewritten: %q", seen)
	}
}

func TestSanitizeInput_MalformedJSONRejected(t *testing.T) {
	w, _ := sanitizeEcho(t, "/x", `{"name": <<<}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("got status %d, want 400", w.Code)
	}
}

func TestSanitizeInput_QueryParams(t *testing.T) {
	var gotQuery string
	handler := SanitizeInput(DefaultSanitizeConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
	}))

	req := httptest.NewRequest("GET", "/search?q=%3Cscript%3E", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if gotQuery != "script" {
		t.Errorf("query param not sanitized: %q", gotQuery)
	}
}

func TestSanitizeInput_NonJSONBodyUntouched(t *testing.T) {
	var seen string
	handler := SanitizeInput(DefaultSanitizeConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		seen = string(b)
	}))

	req := httptest.NewRequest("POST", "/upload", bytes.NewBufferString("<binary> & friends"))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if seen != "<binary> & friends" {
		t.Errorf("non-JSON body was rewritten: %q", seen)
	}
}
