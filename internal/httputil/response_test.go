package httputil

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, 201, map[string]int{"count": 3})

	if rec.Code != 201 {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != `{"count":3}` {
		t.Errorf("body = %q", body)
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	BadRequest(rec, "bad line id")

	if rec.Code != 400 {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != `{"error":"bad line id"}` {
		t.Errorf("body = %q", body)
	}
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Lines []int `json:"lines"`
	}

	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"lines":[1,2]}`))
	if err := DecodeJSON(req, &dst); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if len(dst.Lines) != 2 {
		t.Errorf("lines = %v", dst.Lines)
	}

	req = httptest.NewRequest("POST", "/", strings.NewReader(`{"linez":[1]}`))
	if err := DecodeJSON(req, &dst); err == nil {
		t.Error("expected error for unknown field")
	}
}
