// Package shared holds request helpers used by every feature handler.
package shared

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/birdbook/internal/app/system/apperr"
	"github.com/dalemusser/birdbook/internal/app/system/authz"
	"github.com/dalemusser/birdbook/internal/app/system/objectstore"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxUploadBytes bounds a multipart request body.
const MaxUploadBytes = 10 << 20

// Actor returns the caller, or the anonymous actor.
func Actor(r *http.Request) authz.Actor {
	a, _ := authz.ActorFrom(r)
	return a
}

// ObjectID parses the chi URL parameter name as an ObjectID.
func ObjectID(r *http.Request, name string) (primitive.ObjectID, error) {
	raw := chi.URLParam(r, name)
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, apperr.Invalid(name, "invalid id %q", raw)
	}
	return id, nil
}

// OptionalObjectID parses s when it is not blank.
func OptionalObjectID(field, s string) (*primitive.ObjectID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return nil, apperr.Invalid(field, "invalid id %q", s)
	}
	return &id, nil
}

// Timestamp parses a comment key timestamp in RFC 3339 (with or without
// fractional seconds) or Unix milliseconds.
func Timestamp(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, apperr.Invalid(field, "invalid timestamp %q", s)
}

// Form is a request body read either as multipart/form-data or as a flat
// JSON object. Files are only available from multipart bodies.
type Form struct {
	values map[string]string
	arrays map[string][]string
	req    *http.Request
}

// ReadForm parses the body of r.
func ReadForm(w http.ResponseWriter, r *http.Request) (*Form, error) {
	f := &Form{values: map[string]string{}, arrays: map[string][]string{}, req: r}
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch ct {
	case "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
		if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
			return nil, apperr.Invalid("", "malformed multipart body: %v", err)
		}
		for k, v := range r.MultipartForm.Value {
			if len(v) > 0 {
				f.values[k] = v[0]
			}
			f.arrays[k] = v
		}
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, apperr.Invalid("", "malformed form body: %v", err)
		}
		for k, v := range r.PostForm {
			if len(v) > 0 {
				f.values[k] = v[0]
			}
			f.arrays[k] = v
		}
	default:
		if r.Body == nil || r.ContentLength == 0 {
			return f, nil
		}
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			return nil, apperr.Invalid("", "malformed JSON body: %v", err)
		}
		for k, v := range raw {
			switch tv := v.(type) {
			case nil:
				f.values[k] = ""
			case string:
				f.values[k] = tv
			case []any:
				for _, e := range tv {
					f.arrays[k] = append(f.arrays[k], fmt.Sprint(e))
				}
			case map[string]any:
				b, _ := json.Marshal(tv)
				f.values[k] = string(b)
			default:
				f.values[k] = fmt.Sprint(tv)
			}
		}
	}
	return f, nil
}

// Has reports whether key was sent.
func (f *Form) Has(key string) bool {
	_, ok := f.values[key]
	if !ok {
		_, ok = f.arrays[key]
	}
	return ok
}

// Get returns the value for key, or "".
func (f *Form) Get(key string) string { return f.values[key] }

// Ptr returns a pointer to the value when key was sent, for partial updates.
func (f *Form) Ptr(key string) *string {
	v, ok := f.values[key]
	if !ok {
		return nil
	}
	return &v
}

// Strings returns the repeated values for key.
func (f *Form) Strings(key string) []string { return f.arrays[key] }

// Map decodes key as a JSON object of strings, used for tags.
func (f *Form) Map(key string) (map[string]string, error) {
	raw, ok := f.values[key]
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	out := map[string]string{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, apperr.Invalid(key, "%s must be an object of strings", key)
	}
	return out, nil
}

// Floats decodes key as a JSON array of numbers, used for coordinates.
func (f *Form) Floats(key string) ([]float64, error) {
	_, single := f.values[key]
	if vals, ok := f.arrays[key]; ok && (len(vals) > 1 || !single) {
		out := make([]float64, len(vals))
		for i, v := range vals {
			n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, apperr.Invalid(key, "%s must be numbers", key)
			}
			out[i] = n
		}
		return out, nil
	}
	raw, ok := f.values[key]
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var out []float64
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, apperr.Invalid(key, "%s must be an array of numbers", key)
	}
	return out, nil
}

// File returns the uploaded file in field, or nil when none was sent.
// The caller must Close the returned upload's body; Save does not.
func (f *Form) File(field string) (*objectstore.Upload, func(), error) {
	noop := func() {}
	if f.req.MultipartForm == nil || len(f.req.MultipartForm.File[field]) == 0 {
		return nil, noop, nil
	}
	fh := f.req.MultipartForm.File[field][0]
	file, err := fh.Open()
	if err != nil {
		return nil, noop, fmt.Errorf("open upload: %w", err)
	}
	return &objectstore.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Body:        file,
	}, func() { _ = file.Close() }, nil
}
