// Package rpc exposes service calls as JSON procedures under /api/.
//
// Queries read their input from the `input` query parameter on GET or from
// the body on POST; mutations read the body. Replies are wrapped as
// {"result":{"data":...}} or {"error":{...}}.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"

	"github.com/utellme/utellme/internal/apperr"
	"github.com/utellme/utellme/internal/validation"
)

const maxBodyBytes = 1 << 20

// Empty is the input of procedures that take no arguments.
type Empty struct{}

type response struct {
	Result *result     `json:"result,omitempty"`
	Error  *errorReply `json:"error,omitempty"`
}

type result struct {
	Data any `json:"data"`
}

type errorReply struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Handle adapts fn into a procedure handler: it decodes and validates In,
// calls fn with the request context and writes the reply envelope.
func Handle[In, Out any](fn func(ctx context.Context, in In) (Out, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in In
		if err := Decode(r, &in); err != nil {
			WriteError(w, r, err)
			return
		}

		if isStruct(in) {
			if err := validation.Struct(in); err != nil {
				WriteError(w, r, err)
				return
			}
		}

		out, err := fn(r.Context(), in)
		if err != nil {
			WriteError(w, r, err)
			return
		}

		WriteData(w, http.StatusOK, out)
	}
}

// Decode reads the procedure input into v. A missing input leaves v zeroed.
func Decode(r *http.Request, v any) error {
	var raw []byte
	if r.Method == http.MethodGet {
		raw = []byte(r.URL.Query().Get("input"))
	} else {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
		if err != nil {
			return apperr.Validation("Could not read request body", nil)
		}
		if len(body) > maxBodyBytes {
			return apperr.Validation("Request body too large", nil)
		}
		raw = body
	}

	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	if err := json.Unmarshal(raw, v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return apperr.InvalidField(typeErr.Field, "has the wrong type")
		}
		return apperr.Validation("Input is not valid JSON", nil)
	}
	return nil
}

func WriteData(w http.ResponseWriter, status int, data any) {
	write(w, status, response{Result: &result{Data: data}})
}

// WriteError replies with the error's code. Errors outside the taxonomy are
// logged and reported as a generic internal error.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperr.As(err)
	if appErr.Code == apperr.CodeInternal || appErr.Code == apperr.CodeBadGateway {
		slog.ErrorContext(r.Context(), "procedure failed",
			"path", r.URL.Path,
			"code", appErr.Code.Name,
			"error", err,
		)
	}

	write(w, appErr.Code.Status, response{Error: &errorReply{
		Code:    appErr.Code.Name,
		Message: appErr.Message,
		Fields:  appErr.Fields,
	}})
}

func write(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

func isStruct(v any) bool {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t != nil && t.Kind() == reflect.Struct
}
