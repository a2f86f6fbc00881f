package httpx

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一JSON响应
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// WriteObject err 为空时返回 200，否则返回 400
func WriteObject(c *gin.Context, obj interface{}, err error) {
	status := http.StatusOK
	if err != nil {
		status = http.StatusBadRequest
	}
	c.JSON(status, obj)
}

// OK 成功响应
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

// Fail 失败响应，错误信息写入 message
func Fail(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	c.JSON(status, Response{Success: false, Message: err.Error()})
}
