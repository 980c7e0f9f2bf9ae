package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/swms-manager/internal/archive"
	"github.com/swms-manager/internal/services"
	"github.com/swms-manager/internal/swms"
	"github.com/swms-manager/internal/workspace"
)

// Codes group errors by class; the HTTP status is derived from the code.
const (
	CodeSuccess = iota + 100000
	CodeUnknown
	CodeBind
	CodeValidation
	CodeUnauthorized
	CodeTooManyRequests
	CodeNotFound
	CodeConflict
	CodeLocked
	CodeInvalidTransition
	CodeUnavailable
)

var statusByCode = map[int]int{
	CodeSuccess:           http.StatusOK,
	CodeUnknown:           http.StatusInternalServerError,
	CodeBind:              http.StatusBadRequest,
	CodeValidation:        http.StatusBadRequest,
	CodeUnauthorized:      http.StatusUnauthorized,
	CodeTooManyRequests:   http.StatusTooManyRequests,
	CodeNotFound:          http.StatusNotFound,
	CodeConflict:          http.StatusConflict,
	CodeLocked:            http.StatusLocked,
	CodeInvalidTransition: http.StatusConflict,
	CodeUnavailable:       http.StatusServiceUnavailable,
}

var messageByCode = map[int]string{
	CodeSuccess:           "ok",
	CodeUnknown:           "internal server error",
	CodeBind:              "malformed request",
	CodeValidation:        "validation failed",
	CodeUnauthorized:      "authentication required",
	CodeTooManyRequests:   "too many requests, try again later",
	CodeNotFound:          "not found",
	CodeConflict:          "conflict",
	CodeLocked:            "account temporarily locked",
	CodeInvalidTransition: "action not allowed in the current view",
	CodeUnavailable:       "feature not enabled",
}

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Status(code int) int {
	if s, ok := statusByCode[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: CodeSuccess, Message: messageByCode[CodeSuccess], Data: data})
}

func Fail(c *gin.Context, code int, message string, data interface{}) {
	if message == "" {
		message = messageByCode[code]
	}
	c.AbortWithStatusJSON(Status(code), Response{Code: code, Message: message, Data: data})
}

// Classify maps a service error onto a response code and client-safe message.
func Classify(err error) (int, string, interface{}) {
	var verr *swms.ValidationError
	switch {
	case errors.As(err, &verr):
		return CodeValidation, verr.Error(), gin.H{"missing": verr.Missing}
	case errors.Is(err, swms.ErrValidation), errors.Is(err, swms.ErrUnknownField), errors.Is(err, services.ErrPasswordPolicy):
		return CodeValidation, err.Error(), nil
	case errors.Is(err, workspace.ErrNoCompany):
		return CodeValidation, err.Error(), nil
	case errors.Is(err, services.ErrNotFound):
		return CodeNotFound, "", nil
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrInvalidSession):
		return CodeUnauthorized, err.Error(), nil
	case errors.Is(err, services.ErrAccountLocked):
		return CodeLocked, "", nil
	case errors.Is(err, services.ErrEmailTaken):
		return CodeConflict, err.Error(), nil
	case errors.Is(err, workspace.ErrInvalidTransition):
		return CodeInvalidTransition, err.Error(), nil
	case errors.Is(err, archive.ErrDisabled):
		return CodeUnavailable, err.Error(), nil
	default:
		return CodeUnknown, "", nil
	}
}

// Error writes err through Classify. Unclassified errors are recorded on the context for logging.
func Error(c *gin.Context, err error) {
	code, msg, data := Classify(err)
	if code == CodeUnknown {
		_ = c.Error(err)
	}
	Fail(c, code, msg, data)
}
