package handler

import (
	"strconv"

	"tokenpool/internal/config"
	"tokenpool/internal/service"
	"tokenpool/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	accountService *service.AccountService
	nftService     *service.NftService
	rankingService *service.RankingService
	poolService    *service.PoolService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Handler {
	return &Handler{
		accountService: service.NewAccountService(db),
		nftService:     service.NewNftService(db, rdb, cfg),
		rankingService: service.NewRankingService(db, rdb),
		poolService:    service.NewPoolService(db, rdb, cfg),
	}
}

// ============================================================
// 账户相关接口
// ============================================================

// GetBalance 查询用户余额
// GET /api/v1/account/balance?user_id=xxx
func (h *Handler) GetBalance(c *gin.Context) {
	userIDStr := c.Query("user_id")
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}

	balance, err := h.accountService.GetBalance(c.Request.Context(), userID)
	if err != nil {
		translateError(c, err)
		return
	}

	response.Success(c, gin.H{
		"user_id": userID,
		"balance": balance,
	})
}

// RechargeRequest 充值请求
type RechargeRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// Recharge 充值接口（简化版，实际应该走支付渠道）
// POST /api/v1/account/recharge
func (h *Handler) Recharge(c *gin.Context) {
	var req RechargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.accountService.Recharge(c.Request.Context(), req.UserID, req.Amount); err != nil {
		translateError(c, err)
		return
	}

	response.Success(c, gin.H{
		"message": "充值成功",
	})
}

// ListTransactions 查询代币流水
// GET /api/v1/account/transactions?user_id=xxx&page=1&page_size=10
func (h *Handler) ListTransactions(c *gin.Context) {
	userIDStr := c.Query("user_id")
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	transactions, total, err := h.accountService.ListTransactions(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		translateError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      transactions,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ============================================================
// NFT 相关接口
// ============================================================

// MintNftRequest 铸造请求
type MintNftRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
	NftID  int64 `json:"nft_id" binding:"required"`
}

// MintNft 铸造 NFT
// POST /api/v1/nft/mint
func (h *Handler) MintNft(c *gin.Context) {
	var req MintNftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	nft, err := h.nftService.Mint(c.Request.Context(), req.UserID, req.NftID)
	if err != nil {
		translateError(c, err)
		return
	}

	response.Success(c, nft)
}

// BurnNftRequest 销毁请求
type BurnNftRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
	NftID  int64 `json:"nft_id" binding:"required"`
}

// BurnNft 销毁 NFT，贡献注入当前轮次奖池
// POST /api/v1/nft/burn
//
// 【关键点】调用方超时后必须先查询 NFT 状态再重试：
// 底层事务可能在超时之后才提交成功
func (h *Handler) BurnNft(c *gin.Context) {
	var req BurnNftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	contribution, err := h.nftService.Burn(c.Request.Context(), req.UserID, req.NftID)
	if err != nil {
		translateError(c, err)
		return
	}

	response.Success(c, contribution)
}

// GiftNftRequest 赠送请求
type GiftNftRequest struct {
	FromUserID int64 `json:"from_user_id" binding:"required"`
	ToUserID   int64 `json:"to_user_id" binding:"required"`
	NftID      int64 `json:"nft_id" binding:"required"`
}

// GiftNft 赠送 NFT（每件仅限一次）
// POST /api/v1/nft/gift
func (h *Handler) GiftNft(c *gin.Context) {
	var req GiftNftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	nft, err := h.nftService.Gift(c.Request.Context(), req.FromUserID, req.ToUserID, req.NftID)
	if err != nil {
		translateError(c, err)
		return
	}

	response.Success(c, nft)
}

// GenerateNftRequest 条件发放请求
type GenerateNftRequest struct {
	UserID   int64                       `json:"user_id" binding:"required"`
	Criteria []service.IssuanceCriterion `json:"criteria" binding:"required,dive"`
}

// GenerateNfts 条件发放（幂等：同一用户同一条件只发一次）
// POST /api/v1/nft/generate
func (h *Handler) GenerateNfts(c *gin.Context) {
	var req GenerateNftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	created, err := h.nftService.GenerateForCriteria(c.Request.Context(), req.UserID, req.Criteria)
	if err != nil {
		translateError(c, err)
		return
	}

	response.Success(c, gin.H{
		"created": created,
		"count":   len(created),
	})
}

// ListNfts 查询用户 NFT 列表
// GET /api/v1/nft/list?user_id=xxx&page=1&page_size=10
func (h *Handler) ListNfts(c *gin.Context) {
	userIDStr := c.Query("user_id")
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	nfts, total, err := h.nftService.ListUserNfts(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		translateError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      nfts,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ============================================================
// 奖池相关接口
// ============================================================

// GetPoolStats 奖池看板
// GET /api/v1/pool/stats?user_id=xxx（user_id 可选，带上则附加个人名次）
func (h *Handler) GetPoolStats(c *gin.Context) {
	var userID *int64
	if userIDStr := c.Query("user_id"); userIDStr != "" {
		parsed, err := strconv.ParseInt(userIDStr, 10, 64)
		if err != nil {
			response.ParamError(c, "user_id 参数错误")
			return
		}
		userID = &parsed
	}

	stats, err := h.poolService.GetPoolStats(c.Request.Context(), userID)
	if err != nil {
		translateError(c, err)
		return
	}

	response.Success(c, stats)
}

// GetTopContributors 排行榜
// GET /api/v1/pool/top-contributors?round=xxx&limit=10
func (h *Handler) GetTopContributors(c *gin.Context) {
	round, err := strconv.Atoi(c.Query("round"))
	if err != nil {
		response.ParamError(c, "round 参数错误")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	standings, err := h.rankingService.TopContributors(c.Request.Context(), round, limit)
	if err != nil {
		translateError(c, err)
		return
	}

	response.Success(c, gin.H{
		"round": round,
		"list":  standings,
	})
}

// GetRank 用户名次（可带 additional 查询模拟名次）
// GET /api/v1/pool/rank?round=xxx&user_id=xxx&additional=350
func (h *Handler) GetRank(c *gin.Context) {
	round, err := strconv.Atoi(c.Query("round"))
	if err != nil {
		response.ParamError(c, "round 参数错误")
		return
	}

	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}

	result := gin.H{"round": round, "user_id": userID}

	rank, ok, err := h.rankingService.Rank(c.Request.Context(), round, userID)
	if err != nil {
		translateError(c, err)
		return
	}
	if ok {
		result["rank"] = rank
	}

	if additionalStr := c.Query("additional"); additionalStr != "" {
		additional, err := strconv.ParseInt(additionalStr, 10, 64)
		if err != nil || additional < 0 {
			response.ParamError(c, "additional 参数错误")
			return
		}

		projected, err := h.rankingService.ProjectedRank(c.Request.Context(), round, userID, additional)
		if err != nil {
			translateError(c, err)
			return
		}
		result["projected_rank"] = projected
	}

	response.Success(c, result)
}

// GetUserRewards 用户历次获奖记录
// GET /api/v1/pool/rewards?user_id=xxx&page=1&page_size=10
func (h *Handler) GetUserRewards(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	rewards, total, err := h.poolService.ListUserRewards(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		translateError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      rewards,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// DistributeRequest 手动结算请求（运营后台用，常规结算走后台任务）
type DistributeRequest struct {
	Round int `json:"round" binding:"required"`
}

// Distribute 手动触发一轮分配
// POST /api/v1/pool/distribute
func (h *Handler) Distribute(c *gin.Context) {
	var req DistributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.poolService.Execute(c.Request.Context(), req.Round); err != nil {
		translateError(c, err)
		return
	}

	distributions, err := h.poolService.ListDistributions(c.Request.Context(), req.Round)
	if err != nil {
		translateError(c, err)
		return
	}

	response.Success(c, gin.H{
		"round": req.Round,
		"list":  distributions,
	})
}
