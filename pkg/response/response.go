package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the envelope of every JSON API reply.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// AppError carries the HTTP status and envelope code of a failed request.
type AppError struct {
	HTTPStatus int
	Code       int
	Message    string
}

func (e *AppError) Error() string {
	return e.Message
}

func newAppError(status int, msg string) *AppError {
	return &AppError{HTTPStatus: status, Code: status, Message: msg}
}

func NewBadRequest(msg string) *AppError  { return newAppError(http.StatusBadRequest, msg) }
func NewNotFound(msg string) *AppError    { return newAppError(http.StatusNotFound, msg) }
func NewConflict(msg string) *AppError    { return newAppError(http.StatusConflict, msg) }
func NewServerError(msg string) *AppError { return newAppError(http.StatusInternalServerError, msg) }

// NewUnavailable marks a dependency (queue, provider) that cannot take work now.
func NewUnavailable(msg string) *AppError { return newAppError(http.StatusServiceUnavailable, msg) }

func write(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Response{Code: 0, Message: message, Data: data})
}

func Success(c *gin.Context, data interface{}) {
	write(c, http.StatusOK, "ok", data)
}

func Created(c *gin.Context, data interface{}) {
	write(c, http.StatusCreated, "created", data)
}

// Accepted acknowledges work handed to a queue.
func Accepted(c *gin.Context, data interface{}) {
	write(c, http.StatusAccepted, "accepted", data)
}

// Error replies with err's status when it is an *AppError and 500 otherwise.
func Error(c *gin.Context, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus, Response{Code: appErr.Code, Message: appErr.Message})
		return
	}
	ServerError(c, err.Error())
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, Response{Code: status, Message: msg})
}

func BadRequest(c *gin.Context, msg string)  { fail(c, http.StatusBadRequest, msg) }
func NotFound(c *gin.Context, msg string)    { fail(c, http.StatusNotFound, msg) }
func Conflict(c *gin.Context, msg string)    { fail(c, http.StatusConflict, msg) }
func ServerError(c *gin.Context, msg string) { fail(c, http.StatusInternalServerError, msg) }

func TooManyRequests(c *gin.Context, msg string) {
	fail(c, http.StatusTooManyRequests, msg)
}
