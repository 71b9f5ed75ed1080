package handler

import (
	"tokenpool/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(db, rdb, cfg)

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 账户相关
		account := api.Group("/account")
		{
			account.GET("/balance", h.GetBalance)
			account.POST("/recharge", h.Recharge)
			account.GET("/transactions", h.ListTransactions)
		}

		// NFT 相关
		nft := api.Group("/nft")
		{
			nft.POST("/mint", h.MintNft)
			nft.POST("/burn", h.BurnNft)
			nft.POST("/gift", h.GiftNft)
			nft.POST("/generate", h.GenerateNfts)
			nft.GET("/list", h.ListNfts)
		}

		// 奖池相关
		pool := api.Group("/pool")
		{
			pool.GET("/stats", h.GetPoolStats)
			pool.GET("/top-contributors", h.GetTopContributors)
			pool.GET("/rank", h.GetRank)
			pool.GET("/rewards", h.GetUserRewards)
			pool.POST("/distribute", h.Distribute)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
