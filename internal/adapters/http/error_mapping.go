package httpadapter

import (
	"net/http"

	"github.com/kirillkom/site-mapper/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrSiteNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrConfig), domain.IsKind(err, domain.ErrInventory):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
