package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"canteen-api/apperr"
	"canteen-api/services"
	"canteen-api/session"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type CookieConfig struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

// Handler serves the HTTP API on top of the services.
type Handler struct {
	auth     *services.AuthService
	menu     *services.MenuService
	orders   *services.OrderService
	sessions session.Store
	cookie   CookieConfig
	log      *zap.Logger
	// production hides internal error details from responses.
	production bool
}

func New(
	authSvc *services.AuthService,
	menu *services.MenuService,
	orders *services.OrderService,
	sessions session.Store,
	cookie CookieConfig,
	log *zap.Logger,
	production bool,
) *Handler {
	return &Handler{
		auth:       authSvc,
		menu:       menu,
		orders:     orders,
		sessions:   sessions,
		cookie:     cookie,
		log:        log,
		production: production,
	}
}

// FieldError is one failed binding rule.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func formatValidationErrors(ve validator.ValidationErrors) []FieldError {
	out := make([]FieldError, len(ve))
	for i, fe := range ve {
		out[i] = FieldError{Field: fe.Field(), Tag: fe.Tag()}
		switch fe.Tag() {
		case "required":
			out[i].Message = fmt.Sprintf("%s is required", fe.Field())
		case "email":
			out[i].Message = fmt.Sprintf("%s must be a valid email address", fe.Field())
		case "min":
			out[i].Message = fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
		case "gt":
			out[i].Message = fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
		case "oneof":
			out[i].Message = fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
		default:
			out[i].Message = fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag())
		}
	}
	return out
}

// bindJSON binds the body into req and writes a 400 on failure.
func (h *Handler) bindJSON(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Invalid request",
			"code":   apperr.KindValidation,
			"fields": formatValidationErrors(ve),
		})
		return false
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "code": apperr.KindValidation})
	return false
}

// respondError maps an error to its status and writes {"error","code"}.
func (h *Handler) respondError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		appErr = apperr.Internal(err, "Internal server error")
	}
	status := appErr.HTTPStatus()
	body := gin.H{"error": appErr.Message, "code": appErr.Kind}

	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		if hub := sentrygin.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
		}
		if !h.production && appErr.Err != nil {
			body["details"] = appErr.Err.Error()
		}
	}
	c.JSON(status, body)
}

func (h *Handler) paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		h.respondError(c, apperr.Validation("Invalid %s", name))
		return 0, false
	}
	return uint(id), true
}
