// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/agrodistri/agrodistri/internal/platform/lock"
	"github.com/agrodistri/agrodistri/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrInsufficientStock):
		var stockErr *shared.InsufficientStockError
		if errors.As(err, &stockErr) {
			JSON(w, http.StatusUnprocessableEntity, StockProblem{
				ProblemDetail: ProblemDetail{
					Title:  "Insufficient Stock",
					Status: http.StatusUnprocessableEntity,
					Detail: err.Error(),
				},
				ProductID: stockErr.ProductID,
				Product:   stockErr.ProductName,
				Available: stockErr.Available,
				Requested: stockErr.Requested,
			})
			return
		}
		Problem(w, http.StatusUnprocessableEntity, "Insufficient Stock", err.Error())
	case errors.Is(err, shared.ErrPrecondition):
		Problem(w, http.StatusConflict, "Precondition Failed", err.Error())
	case errors.Is(err, lock.ErrBusy):
		Problem(w, http.StatusConflict, "Busy", "another operation on this resource is in progress")
	case errors.Is(err, shared.ErrIdempotencyConflict):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, shared.ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, shared.ErrBackend):
		Problem(w, http.StatusInternalServerError, "Backend Error", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
