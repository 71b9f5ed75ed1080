package handler

import (
	"errors"

	"tokenpool/internal/repository"
	"tokenpool/internal/service"
	"tokenpool/pkg/response"

	"github.com/gin-gonic/gin"
)

// translateError 业务错误 -> 业务错误码
// 引擎内部只抛分类好的哨兵错误，对外的文案和码在这一层统一收口
func translateError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrAccountNotFound),
		errors.Is(err, repository.ErrNftNotFound),
		errors.Is(err, repository.ErrPoolNotFound),
		errors.Is(err, repository.ErrNoActivePool):
		response.BusinessError(c, response.CodeNotFound, err.Error())

	case errors.Is(err, service.ErrNotOwner),
		errors.Is(err, service.ErrSelfGift):
		response.BusinessError(c, response.CodeForbidden, err.Error())

	case errors.Is(err, repository.ErrNftStatusInvalid),
		errors.Is(err, repository.ErrNftAlreadyGifted),
		errors.Is(err, repository.ErrPoolStatusInvalid):
		response.BusinessError(c, response.CodeInvalidState, err.Error())

	case errors.Is(err, repository.ErrBalanceNotEnough):
		response.BusinessError(c, response.CodeBalanceNotEnough, err.Error())

	case errors.Is(err, service.ErrDistributionCompleted):
		response.BusinessError(c, response.CodeAlreadyCompleted, err.Error())

	case errors.Is(err, repository.ErrOptimisticLock):
		response.BusinessError(c, response.CodeConflictRetryable, err.Error())

	default:
		response.ServerError(c, err.Error())
	}
}
