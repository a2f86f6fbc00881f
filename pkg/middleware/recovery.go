package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	tracecontext "goim-relation/pkg/context"
	"goim-relation/pkg/httpx"
	"goim-relation/pkg/logger"
)

// Recovery 捕获处理链中的 panic，记录堆栈后返回 500
//
// 响应体带上请求ID，便于和日志对照。http.ErrAbortHandler 按 net/http 的约定继续向上抛出。
func Recovery(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}

			ctx := c.Request.Context()
			requestID := tracecontext.GetRequestID(ctx)
			log.Error(ctx, "Panic recovered",
				logger.F("panic", fmt.Sprint(rec)),
				logger.F("requestID", requestID),
				logger.F("route", c.FullPath()),
				logger.F("path", c.Request.URL.Path),
				logger.F("stack", string(debug.Stack())))

			c.AbortWithStatusJSON(http.StatusInternalServerError, httpx.Response{
				Success: false,
				Message: "internal server error",
				Data:    gin.H{"request_id": requestID},
			})
		}()

		c.Next()
	}
}
