// Package httpapi writes the JSON envelope shared by every /api and OData
// "Filtered" endpoint: {"isSuccess": bool, "data": ..., "error": {...}}.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/iota-uz/admin-portal/pkg/serrors"
)

type ErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type Envelope struct {
	IsSuccess bool       `json:"isSuccess"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorBody `json:"error,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	if w == nil {
		return nil
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(payload)
}

func WriteOK(w http.ResponseWriter, data any) error {
	return WriteJSON(w, http.StatusOK, &Envelope{IsSuccess: true, Data: data})
}

func WriteCreated(w http.ResponseWriter, data any) error {
	return WriteJSON(w, http.StatusCreated, &Envelope{IsSuccess: true, Data: data})
}

// WriteError maps err to a status through its code. Internal errors never
// leak their message.
func WriteError(w http.ResponseWriter, err error) error {
	code := serrors.CodeOf(err)
	body := &ErrorBody{Code: string(code), Message: err.Error()}

	var ve *serrors.ValidationError
	if errors.As(err, &ve) {
		body.Message = "One or more fields are invalid"
		body.Fields = ve.Fields
	}
	var be *serrors.BaseError
	if code == serrors.Internal || code == serrors.SavingChanges {
		body.Message = "An unexpected error occurred"
	} else if errors.As(err, &be) {
		body.Message = be.Message
	}
	return WriteJSON(w, code.HTTPStatus(), &Envelope{Error: body})
}

// Decode reads a JSON request body into v, reporting malformed input as a validation error.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return serrors.FieldError("body", err.Error())
	}
	return nil
}
