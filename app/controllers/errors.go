package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shashiranjanraj/offersync/app/services"
	"github.com/shashiranjanraj/offersync/pkg/logger"
	"github.com/shashiranjanraj/offersync/pkg/response"
)

// writeError maps service errors to HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		response.ValidationError(w, map[string]string{"body": err.Error()})
	case errors.Is(err, services.ErrProductAlreadyExists):
		response.Conflict(w, "Product already exists")
	case errors.Is(err, services.ErrProductNotFound):
		response.NotFound(w)
	case errors.Is(err, services.ErrNotAuthenticated):
		response.Error(w, http.StatusServiceUnavailable, "Not authenticated with the vendor")
	case errors.Is(err, services.ErrUpstreamRejected), errors.Is(err, services.ErrUpstreamUnavailable):
		logger.WithCtx(r.Context()).Warn("vendor call failed", "error", err)
		response.Error(w, http.StatusBadGateway, err.Error())
	default:
		logger.WithCtx(r.Context()).Error("request failed", "error", err)
		response.Error(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

// productID reads the {id} URL parameter. ok is false after a 422 has been
// written.
func productID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil || id == 0 {
		response.ValidationError(w, map[string]string{"id": "must be a positive integer"})
		return 0, false
	}
	return uint(id), true
}
