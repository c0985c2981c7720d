// Package httpx provides HTTP response utilities following RFC7807 problem details.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/agrodistri/agrodistri/internal/shared"
)

// ProblemDetail represents RFC7807 problem details.
type ProblemDetail struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// StockProblem extends ProblemDetail with the product that ran short.
type StockProblem struct {
	ProblemDetail
	ProductID int64  `json:"product_id"`
	Product   string `json:"product"`
	Available int    `json:"available"`
	Requested int    `json:"requested"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem sends an RFC7807 problem details response.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ProblemDetail{
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeJSON decodes JSON request body into the target struct and runs its
// validate tags. An empty body decodes as the zero value. Failures come back
// as *shared.ValidationError.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return shared.NewValidationError("body", fmt.Sprintf("malformed JSON: %v", err))
	}
	if err := validate.Struct(target); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return shared.NewValidationError(fe.Field(), fmt.Sprintf("failed %q rule", fe.Tag()))
		}
		return shared.NewValidationError("body", err.Error())
	}
	return nil
}

// IDParam parses a positive int64 chi URL parameter.
func IDParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.NewValidationError(name, "must be a positive integer")
	}
	return id, nil
}

// QueryInt reads an integer query parameter, falling back to def when absent
// or malformed.
func QueryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
