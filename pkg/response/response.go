package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess     = 0
	CodeParamError  = 400
	CodeServerError = 500
)

// 业务错误码，与引擎的错误分类一一对应
const (
	CodeNotFound          = 1001 // 用户/NFT/轮次不存在
	CodeForbidden         = 1002 // 归属校验失败
	CodeInvalidState      = 1003 // 生命周期状态不允许该操作
	CodeBalanceNotEnough  = 1004 // 余额不足
	CodeAlreadyCompleted  = 1005 // 轮次已分配完成，重复结算
	CodeConflictRetryable = 1006 // 并发冲突，调用方可退避重试
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

func BusinessError(c *gin.Context, code int, message string) {
	Error(c, code, message)
}
