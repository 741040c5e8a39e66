package ez

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"yamdb-api/internal/domain"
	mdw "yamdb-api/internal/transport/http/middleware"
	resp "yamdb-api/internal/transport/http/response"
)

// AErr 统一错误对象；Body 为空时输出 {"detail": Msg}
type AErr struct {
	Status int
	Msg    string
	Body   any
	Err    error
}

func (e *AErr) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return http.StatusText(e.Status)
}

func (e *AErr) Unwrap() error { return e.Err }

func BadRequest(msg string) error   { return &AErr{Status: http.StatusBadRequest, Msg: msg} }
func Unauthorized(msg string) error { return &AErr{Status: http.StatusUnauthorized, Msg: msg} }
func Forbidden(msg string) error    { return &AErr{Status: http.StatusForbidden, Msg: msg} }
func NotFound(msg string) error     { return &AErr{Status: http.StatusNotFound, Msg: msg} }
func Internal(msg string, err error) error {
	return &AErr{Status: http.StatusInternalServerError, Msg: msg, Err: err}
}

// FieldError 单字段校验失败
func FieldError(field, msg string) error {
	return validation.Errors{field: errors.New(msg)}
}

// fieldMap validation.Errors → {"field": ["msg"]}
func fieldMap(errs validation.Errors) gin.H {
	out := gin.H{}
	for k, e := range errs {
		if e == nil {
			continue
		}
		var nested validation.Errors
		if errors.As(e, &nested) {
			out[k] = fieldMap(nested)
			continue
		}
		out[k] = []string{e.Error()}
	}
	return out
}

// bindError JSON 解析失败的细分
func bindError(err error) error {
	var mbe *http.MaxBytesError
	var ute *json.UnmarshalTypeError
	var se *json.SyntaxError
	switch {
	case errors.As(err, &mbe):
		return &AErr{Status: http.StatusRequestEntityTooLarge}
	case errors.As(err, &ute) && ute.Field != "":
		return FieldError(ute.Field, "Invalid value type, expected "+ute.Type.String()+".")
	case errors.As(err, &se), errors.Is(err, io.ErrUnexpectedEOF):
		return BadRequest("JSON parse error - " + err.Error())
	default:
		return BadRequest(err.Error())
	}
}

// WriteError 把处理器返回的错误翻译成 HTTP 响应
func WriteError(c *gin.Context, l *zap.Logger, err error) {
	var (
		ae   *AErr
		verr validation.Errors
		ce   *domain.ConflictError
		mbe  *http.MaxBytesError
	)
	switch {
	case errors.As(err, &ae):
		if ae.Status >= http.StatusInternalServerError {
			logInternal(c, l, err)
		}
		if ae.Body != nil {
			c.JSON(ae.Status, ae.Body)
			return
		}
		msg := ae.Msg
		if ae.Status >= http.StatusInternalServerError {
			msg = ""
		}
		c.JSON(ae.Status, resp.Detail(ae.Status, msg))
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, fieldMap(verr))
	case errors.As(err, &ce):
		if ce.Field != "" {
			c.JSON(http.StatusBadRequest, gin.H{ce.Field: []string{ce.Msg}})
			return
		}
		c.JSON(http.StatusBadRequest, resp.Detail(http.StatusBadRequest, ce.Msg))
	case errors.Is(err, domain.ErrInvalidCode):
		c.JSON(http.StatusBadRequest, gin.H{"confirmation_code": "invalid"})
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, resp.Detail(http.StatusNotFound, ""))
	case errors.Is(err, domain.ErrThrottled):
		c.JSON(http.StatusTooManyRequests, resp.Detail(http.StatusTooManyRequests, ""))
	case errors.As(err, &mbe):
		c.JSON(http.StatusRequestEntityTooLarge, resp.Detail(http.StatusRequestEntityTooLarge, ""))
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, resp.Detail(http.StatusGatewayTimeout, ""))
	default:
		logInternal(c, l, err)
		c.JSON(http.StatusInternalServerError, resp.Detail(http.StatusInternalServerError, ""))
	}
}

func logInternal(c *gin.Context, l *zap.Logger, err error) {
	l.Error("request failed",
		zap.String("rid", mdw.RequestIDFrom(c)),
		zap.String("method", c.Request.Method),
		zap.String("route", c.FullPath()),
		zap.Error(err),
	)
}
