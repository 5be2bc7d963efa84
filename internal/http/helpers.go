package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"splitperfect/internal/auth"
	"splitperfect/internal/core"
	"splitperfect/internal/services"
	"splitperfect/internal/storage"
)

type errorResponse struct {
	Detail string `json:"detail"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

func respondError(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, errorResponse{Detail: detail})
}

// respondServiceError maps domain and service sentinels onto HTTP
// status codes.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrAlreadyMember):
		respondError(w, http.StatusBadRequest, "you are already a member of this room")
	case errors.Is(err, services.ErrNoReceiptText):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrForbidden),
		errors.Is(err, services.ErrNotCreator),
		errors.Is(err, services.ErrNotUploader):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrGoogleToken):
		respondError(w, http.StatusUnauthorized, err.Error())
	case isValidationError(err):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

func isValidationError(err error) bool {
	for _, sentinel := range []error{
		core.ErrInvalidAmount,
		core.ErrEmptyName,
		core.ErrEmptyDescription,
		core.ErrInvalidQuantity,
		core.ErrNoSharers,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// pathID parses the {id} segment of the matched route.
func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}
