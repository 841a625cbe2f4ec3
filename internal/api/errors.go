package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/caddl-lab-desk/internal/domain"
	"github.com/caddl-lab-desk/internal/middleware"
)

var codeStatus = map[string]int{
	domain.ErrInvalidInput:    http.StatusBadRequest,
	domain.ErrValidation:      http.StatusBadRequest,
	domain.ErrInvalidArchive:  http.StatusBadRequest,
	domain.ErrInvalidMutation: http.StatusUnprocessableEntity,
	domain.ErrNotFoundCode:    http.StatusNotFound,
	domain.ErrConflict:        http.StatusConflict,
	domain.ErrAuthentication:  http.StatusUnauthorized,
	domain.ErrAIUnavailable:   http.StatusServiceUnavailable,
	domain.ErrStorage:         http.StatusInternalServerError,
	domain.ErrInternalServer:  http.StatusInternalServerError,
}

// toLabError classifies err and returns the HTTP status and response body.
func toLabError(err error) (int, *domain.LabError) {
	var (
		le       *domain.LabError
		ve       *domain.ValidationError
		tooLarge *http.MaxBytesError
	)
	switch {
	case errors.As(err, &ve):
		out := domain.NewLabError(domain.ErrValidation, ve.Message, ve.Field, "")
		return http.StatusBadRequest, out
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, domain.NewLabError(domain.ErrInvalidInput, "request body too large", err.Error(), "")
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, domain.NewLabError(domain.ErrNotFoundCode, "resource not found", err.Error(), "")
	case errors.As(err, &le):
		status, ok := codeStatus[le.Code]
		if !ok {
			status = http.StatusInternalServerError
		}
		out := *le
		return status, &out
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, domain.NewLabError(domain.ErrInternalServer, "request timed out", "", "")
	default:
		return http.StatusInternalServerError, domain.NewLabError(domain.ErrInternalServer, "internal server error", "", "")
	}
}

func (s *Server) respondError(c *gin.Context, err error) {
	status, body := toLabError(err)
	body.RequestID = c.GetString(middleware.CorrelationIDKey)

	entry := s.logger.WithFields(logrus.Fields{
		"correlation_id": body.RequestID,
		"code":           body.Code,
		"status":         status,
	}).WithError(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		entry.Error("Request failed")
	} else {
		entry.Debug("Request rejected")
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(message string, err error) error {
	return domain.WrapLabError(domain.ErrInvalidInput, message, err)
}
