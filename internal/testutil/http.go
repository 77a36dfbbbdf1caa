package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/birdbook/internal/app/system/auth"
	"github.com/dalemusser/birdbook/internal/domain/models"
)

// WithUser adds u to the request context as the signed-in user. This
// bypasses token parsing.
func WithUser(r *http.Request, u models.User) *http.Request {
	return auth.WithTestUser(r, &auth.SessionUser{
		ID:         u.ID.Hex(),
		Username:   u.Username,
		Role:       u.Role,
		ProfilePic: u.ProfilePic,
	})
}

// NewRequest creates a request with an optional JSON body.
func NewRequest(method, target string, body any) *http.Request {
	if body == nil {
		return httptest.NewRequest(method, target, nil)
	}
	b, _ := json.Marshal(body)
	r := httptest.NewRequest(method, target, bytes.NewReader(b))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// NewAuthenticatedRequest creates a request signed in as u.
func NewAuthenticatedRequest(method, target string, body any, u models.User) *http.Request {
	return WithUser(NewRequest(method, target, body), u)
}

// MultipartFile is one file part of a multipart request.
type MultipartFile struct {
	Field    string
	Filename string
	Content  []byte
}

// NewMultipartRequest builds a multipart/form-data request.
func NewMultipartRequest(t *testing.T, method, target string, fields map[string]string, files ...MultipartFile) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.Field, f.Filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := io.Copy(fw, bytes.NewReader(f.Content)); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	r := httptest.NewRequest(method, target, &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

// Serve runs r through h and returns the recorder.
func Serve(h http.Handler, r *http.Request) *ResponseRecorder {
	rec := NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

// ResponseRecorder wraps httptest.ResponseRecorder with helper methods.
type ResponseRecorder struct {
	*httptest.ResponseRecorder
}

func NewRecorder() *ResponseRecorder {
	return &ResponseRecorder{httptest.NewRecorder()}
}

// AssertStatus checks the response status code.
func (r *ResponseRecorder) AssertStatus(t testing.TB, expected int) {
	t.Helper()
	if r.Code != expected {
		t.Errorf("status code: got %d, want %d (body %s)", r.Code, expected, r.Body.String())
	}
}

// Envelope mirrors the JSON envelope with the payload left raw.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Decode parses the envelope and unmarshals its data into dst when dst
// is non-nil.
func (r *ResponseRecorder) Decode(t testing.TB, dst any) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(r.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %s)", err, r.Body.String())
	}
	if dst != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, dst); err != nil {
			t.Fatalf("decode data: %v (data %s)", err, env.Data)
		}
	}
	return env
}

// ErrorCode returns the envelope error code, or "".
func (r *ResponseRecorder) ErrorCode(t testing.TB) string {
	t.Helper()
	env := r.Decode(t, nil)
	if env.Error == nil {
		return ""
	}
	return env.Error.Code
}
