package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	goahttp "goa.design/goa/v3/http"
	goamiddleware "goa.design/goa/v3/middleware"
	goa "goa.design/goa/v3/pkg"

	apperrors "bigpartner/pkg/errors"
)

// ErrorBody is the JSON body of every error response
type ErrorBody struct {
	Name    string            `json:"name"`
	ID      string            `json:"id"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

var statusByCode = map[apperrors.ErrorCode]int{
	apperrors.ErrCodeBadRequest:   http.StatusBadRequest,
	apperrors.ErrCodeUnauthorized: http.StatusUnauthorized,
	apperrors.ErrCodeForbidden:    http.StatusForbidden,
	apperrors.ErrCodeNotFound:     http.StatusNotFound,
	apperrors.ErrCodeConflict:     http.StatusConflict,
	apperrors.ErrCodeValidation:   http.StatusUnprocessableEntity,
}

// decode reads the JSON request body into v. An empty body leaves v
// untouched so the service validation reports the missing fields.
func decode(r *http.Request, v interface{}) error {
	err := goahttp.RequestDecoder(r).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return apperrors.Validation("invalid request body", map[string]string{
			typeErr.Field: "must be a " + typeErr.Type.String(),
		})
	}
	return apperrors.BadRequest("invalid request body: " + err.Error())
}

// encode writes v as the response body with the given status
func encode(ctx context.Context, w http.ResponseWriter, status int, v interface{}) error {
	enc := goahttp.ResponseEncoder(ctx, w)
	w.WriteHeader(status)
	if v == nil {
		return nil
	}
	return enc.Encode(v)
}

// writeError maps err to a status and writes an ErrorBody. Internal errors
// are logged and never leak their cause.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	serr := goa.NewServiceError(err, string(code), false, false, status >= 500)
	body := ErrorBody{Name: serr.Name, ID: serr.ID, Message: serr.Message}
	if id, ok := ctx.Value(goamiddleware.RequestIDKey).(string); ok && id != "" {
		body.ID = id
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		body.Message = appErr.Message
		body.Fields = appErr.Fields
	}
	if serr.Fault {
		log.Printf("[ERROR] id=%s: %v", body.ID, err)
		body.Message = "internal server error"
		body.Fields = nil
	}

	if encErr := encode(ctx, w, status, body); encErr != nil {
		log.Printf("[ERROR] failed to encode error response: %v", encErr)
	}
}

// pathID parses a numeric path variable
func pathID(vars map[string]string, name string) (uint, error) {
	v, err := strconv.ParseUint(vars[name], 10, 64)
	if err != nil || v == 0 {
		return 0, apperrors.BadRequest(name + " must be a positive integer")
	}
	return uint(v), nil
}
