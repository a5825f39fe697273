package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/akorkmaz/civita/internal/apperr"
	"github.com/akorkmaz/civita/internal/service"
)

// page is the uniform list envelope.
type page struct {
	Items    any `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

func newPage[T any](items []T, total, pageNum, pageSize, maxSize int) page {
	if pageNum < 1 {
		pageNum = 1
	}
	if pageSize < 1 {
		pageSize = service.DefaultPageSize
	}
	if pageSize > maxSize {
		pageSize = maxSize
	}
	if items == nil {
		items = []T{}
	}
	return page{Items: items, Total: total, Page: pageNum, PageSize: pageSize}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("failed to encode response", zap.Error(err))
	}
}

// writeError maps a typed error to its status code and the {detail: ...}
// body. Schema violations carry the field list as the detail.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := apperr.GetHTTPStatus(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
	}

	var detail any = "internal server error"
	if e, ok := err.(*apperr.Error); ok {
		if len(e.Fields) > 0 {
			detail = e.Fields
		} else {
			detail = e.Message
		}
	}
	s.writeJSON(w, status, map[string]any{"detail": detail})
}

// decodeJSON parses the request body into dst and validates it. A malformed
// body is a 400; a schema violation is a 422 with per-field details.
func (s *Server) decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.BadRequest("malformed request body")
	}
	return s.checkStruct(dst)
}

func (s *Server) checkStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation("invalid request")
	}

	out := apperr.Validation("request validation failed")
	for _, fe := range verrs {
		out.WithFields(apperr.FieldError{
			Field:   strings.ToLower(fe.Field()),
			Message: fieldMessage(fe),
		})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be <= %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "e164", "startswith":
		return "must be a +90 phone number"
	case "email":
		return "must be a valid email address"
	case "uuid":
		return "must be a UUID"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// Query parameter helpers. Absent parameters return the zero/default value;
// unparseable ones are reported as schema violations.

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation("%s must be an integer", name)
	}
	return n, nil
}

func queryFloat(r *http.Request, name string) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, apperr.Validation("%s is required", name)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apperr.Validation("%s must be a number", name)
	}
	return f, nil
}

func queryBool(r *http.Request, name string) bool {
	switch strings.ToLower(r.URL.Query().Get(name)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func queryStringPtr(r *http.Request, name string) *string {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	return &raw
}

func pageParams(r *http.Request) (pageNum, pageSize int, err error) {
	if pageNum, err = queryInt(r, "page", 1); err != nil {
		return 0, 0, err
	}
	if pageSize, err = queryInt(r, "page_size", 0); err != nil {
		return 0, 0, err
	}
	return pageNum, pageSize, nil
}
