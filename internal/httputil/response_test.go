package httputil

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	svcerrors "github.com/snapzone/storefront/internal/errors"
	"github.com/snapzone/storefront/internal/logging"
)

func TestWriteErrorServiceError(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/admin", nil)
	r = r.WithContext(logging.WithTraceID(context.Background(), "trace-9"))
	w := httptest.NewRecorder()

	WriteError(w, r, svcerrors.Forbidden("").WithDetails("redirect", "/"))

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d", w.Code)
	}
	var body ErrorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "FORBIDDEN" || body.Error.Details["redirect"] != "/" || body.TraceID != "trace-9" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestWriteErrorHidesCause(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	WriteError(w, r, stderrors.New("pq: password authentication failed"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Fatalf("cause leaked: %s", w.Body.String())
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	cases := []struct {
		name string
		body string
		ok   bool
	}{
		{"valid", `{"name":"oak"}`, true},
		{"unknown field", `{"name":"oak","extra":1}`, false},
		{"empty", ``, false},
		{"malformed", `{"name":`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			w := httptest.NewRecorder()
			var p payload
			if got := DecodeJSON(w, r, &p); got != tc.ok {
				t.Fatalf("DecodeJSON = %v, want %v", got, tc.ok)
			}
			if !tc.ok && w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", w.Code)
			}
		})
	}
}

func TestReadAllWithLimit(t *testing.T) {
	body, truncated, err := ReadAllWithLimit(strings.NewReader("abcdef"), 4)
	if err != nil || !truncated || string(body) != "abcd" {
		t.Fatalf("got %q %v %v", body, truncated, err)
	}
	body, truncated, err = ReadAllWithLimit(strings.NewReader("abc"), 4)
	if err != nil || truncated || string(body) != "abc" {
		t.Fatalf("got %q %v %v", body, truncated, err)
	}
}

func TestWantsHTML(t *testing.T) {
	cases := map[string]bool{
		"":                                  false,
		"application/json":                  false,
		"text/html,application/xhtml+xml":   true,
		"application/json, text/html;q=0.9": false,
		"*/*":                               false,
	}
	for accept, want := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if accept != "" {
			r.Header.Set("Accept", accept)
		}
		if got := WantsHTML(r); got != want {
			t.Fatalf("WantsHTML(%q) = %v, want %v", accept, got, want)
		}
	}
}
