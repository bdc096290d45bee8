// Package handler contains HTTP request handlers for the trip-assignment API.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/shiva/tripmatch/internal/service"
)

const maxBodySize = 1 << 20 // 1MB

var validate = service.NewValidator()

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error         string   `json:"error"`
	Message       string   `json:"message,omitempty"`
	MissingFields []string `json:"missingFields,omitempty"`
	InvalidFields []string `json:"invalidFields,omitempty"`
}

// writeJSON is a helper that writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: code, Message: message})
}

func writeValidation(w http.ResponseWriter, verr *service.ValidationError) {
	writeJSON(w, http.StatusBadRequest, errorBody{
		Error:         "validation_failed",
		Message:       verr.Error(),
		MissingFields: verr.MissingFields,
		InvalidFields: verr.InvalidFields,
	})
}

// readJSON decodes a single JSON value from the request body.
func readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var syntaxError *json.SyntaxError
		var typeError *json.UnmarshalTypeError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError), errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("malformed JSON")
		case errors.As(err, &typeError):
			return errors.New("invalid JSON type for field " + typeError.Field)
		case errors.As(err, &maxBytesError):
			return errors.New("request body too large")
		case errors.Is(err, io.EOF):
			return errors.New("request body is empty")
		default:
			return err
		}
	}
	if dec.More() {
		return errors.New("body must contain only a single JSON value")
	}
	return nil
}

// validateStruct runs tag validation and converts failures to a
// *service.ValidationError keyed by JSON field name.
func validateStruct(v interface{}) *service.ValidationError {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	verr := &service.ValidationError{}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.InvalidFields = []string{"body"}
		return verr
	}
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			verr.MissingFields = append(verr.MissingFields, fe.Field())
		} else {
			verr.InvalidFields = append(verr.InvalidFields, fe.Field())
		}
	}
	return verr
}
