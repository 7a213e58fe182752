package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/openlets/openlets/internal/ledger"
)

const maxBodyBytes = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return ledger.ValidationError{Field: "body", Message: err.Error()}
	}
	return nil
}

// decodeOptionalBody is decodeBody for endpoints that accept an empty body.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return ledger.ValidationError{Field: "body", Message: err.Error()}
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, ledger.ValidationError{Field: "id", Message: "must be a positive integer"}
	}
	return id, nil
}

// query reads typed query parameters, keeping the first parse error.
type query struct {
	values url.Values
	err    error
}

func newQuery(r *http.Request) *query {
	return &query{values: r.URL.Query()}
}

func (q *query) str(key string) string {
	return q.values.Get(key)
}

func (q *query) int(key string) int {
	return int(q.int64(key))
}

func (q *query) int64(key string) int64 {
	raw := q.values.Get(key)
	if raw == "" || q.err != nil {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		q.err = ledger.ValidationError{Field: key, Message: "must be an integer"}
		return 0
	}
	return n
}

func (q *query) bool(key string) bool {
	b := q.optBool(key)
	return b != nil && *b
}

func (q *query) optBool(key string) *bool {
	raw := q.values.Get(key)
	if raw == "" || q.err != nil {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		q.err = ledger.ValidationError{Field: key, Message: "must be true or false"}
		return nil
	}
	return &b
}
