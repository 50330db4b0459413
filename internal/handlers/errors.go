package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Gopher0727/MessageBoard/internal/services"
	logger "github.com/Gopher0727/MessageBoard/middleware/log"
)

// redactedMessage replaces internal error text when redaction is enabled
const redactedMessage = "internal server error"

// HTTPError 是唯一的对外错误类型，渲染为 {"message": "..."}
type HTTPError struct {
	Code    int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

func NewHTTPError(code int, message string) *HTTPError {
	return &HTTPError{Code: code, Message: message}
}

func BadRequest(message string) *HTTPError {
	return NewHTTPError(http.StatusBadRequest, message)
}

func InternalServerError(message string) *HTTPError {
	return NewHTTPError(http.StatusInternalServerError, message)
}

// ErrorResponse 错误响应体
type ErrorResponse struct {
	Message string `json:"message"`
}

// ErrorRenderer 把任意错误映射为 HTTPError 并写入响应
type ErrorRenderer struct {
	logger *logger.Logger
	redact bool
}

func NewErrorRenderer(log *logger.Logger, redact bool) *ErrorRenderer {
	return &ErrorRenderer{logger: log, redact: redact}
}

// ToHTTPError 校验错误 -> 400，其余 -> 500（可选脱敏）
func (r *ErrorRenderer) ToHTTPError(err error) *HTTPError {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}

	var validationErr *services.ValidationError
	if errors.As(err, &validationErr) {
		return BadRequest(validationErr.Error())
	}

	if r.redact {
		return InternalServerError(redactedMessage)
	}
	return InternalServerError(err.Error())
}

// Render 记录日志并终止请求
func (r *ErrorRenderer) Render(c *gin.Context, err error) {
	httpErr := r.ToHTTPError(err)
	_ = c.Error(err)

	fields := []zap.Field{
		zap.Int("status", httpErr.Code),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	}
	if httpErr.Code >= http.StatusInternalServerError {
		r.logger.ErrorContext(c.Request.Context(), "request failed", fields...)
	} else {
		r.logger.WarnContext(c.Request.Context(), "request rejected", fields...)
	}

	c.AbortWithStatusJSON(httpErr.Code, ErrorResponse{Message: httpErr.Message})
}

// bindingError 把 gin 绑定失败转换为 ValidationError
func bindingError(err error) *services.ValidationError {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		fe := validationErrs[0]
		field := strings.ToLower(fe.Field())
		if fe.Tag() == "required" {
			return &services.ValidationError{Field: field, Reason: "is required"}
		}
		return &services.ValidationError{Field: field, Reason: "failed " + fe.Tag() + " validation"}
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &services.ValidationError{Field: typeErr.Field, Reason: "must be a " + typeErr.Type.String()}
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &services.ValidationError{Reason: "malformed JSON body"}
	}

	if errors.Is(err, io.EOF) {
		return &services.ValidationError{Reason: "request body is empty"}
	}

	return &services.ValidationError{Reason: err.Error()}
}
