package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	apperrors "labbroker/pkg/errors"
	"labbroker/pkg/model"
)

const (
	HeaderUser      = "X-User"
	HeaderUserEmail = "X-User-Email"
	HeaderUserRole  = "X-User-Role"
)

// DecodeJSON reads a JSON body into v, rejecting unknown fields and
// trailing data.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperrors.New(apperrors.CodeInvalidInput, "Request body too large", http.StatusRequestEntityTooLarge)
		}
		return apperrors.InvalidInput("Invalid request body: " + err.Error())
	}
	if dec.More() {
		return apperrors.InvalidInput("Invalid request body: unexpected data after JSON object")
	}
	return nil
}

// Requester reads the identity an upstream proxy attached to the request.
func Requester(r *http.Request) (model.Requester, error) {
	requester := model.Requester{
		Username: strings.TrimSpace(r.Header.Get(HeaderUser)),
		Email:    strings.TrimSpace(r.Header.Get(HeaderUserEmail)),
		Role:     model.Role(strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderUserRole)))),
	}
	if requester.Username == "" {
		return model.Requester{}, apperrors.Unauthorized(fmt.Sprintf("Missing %s header", HeaderUser))
	}
	if requester.Role == "" {
		requester.Role = model.RoleStudent
	}
	return requester, nil
}

// TimeRange parses optional RFC3339 "from" and "to" query parameters.
func TimeRange(r *http.Request) (from, to time.Time, err error) {
	query := r.URL.Query()
	if s := query.Get("from"); s != "" {
		if from, err = time.Parse(time.RFC3339, s); err != nil {
			return from, to, apperrors.InvalidInput("invalid from parameter, must be RFC3339: " + s)
		}
	}
	if s := query.Get("to"); s != "" {
		if to, err = time.Parse(time.RFC3339, s); err != nil {
			return from, to, apperrors.InvalidInput("invalid to parameter, must be RFC3339: " + s)
		}
	}
	return from, to, nil
}
