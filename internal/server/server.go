// Package server assembles the HTTP router: middleware, services and routes.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"stonksnote/internal/cache"
	"stonksnote/internal/config"
	"stonksnote/internal/handlers"
	"stonksnote/internal/middleware"
	"stonksnote/internal/services"
)

// Services bundles the business services behind the router.
type Services struct {
	Users       services.UserServicer
	Permissions services.PermissionServicer
	Catalog     services.CatalogServicer
	Trades      services.TradeServicer
	Traders     services.TraderProvider
	Audit       services.AuditServicer
}

// NewServices wires the services against db and the permission cache.
func NewServices(cfg *config.Config, db *gorm.DB, store *cache.Store) *Services {
	users := services.NewUserService(db, cfg.DefaultCurrency, cfg.DefaultGroups)
	return &Services{
		Users:       users,
		Permissions: services.NewPermissionService(db, store),
		Catalog:     services.NewCatalogService(db),
		Trades:      services.NewTradeService(db),
		Traders:     services.NewTraderProvider(db, users),
		Audit:       services.NewAuditService(db),
	}
}

// NewRouter builds the gin engine with every API route.
func NewRouter(cfg *config.Config, svc *Services) *gin.Engine {
	authHandler := handlers.NewAuthHandler(svc.Users, svc.Audit)
	traderHandler := handlers.NewTraderHandler(svc.Traders, svc.Catalog, svc.Audit)
	tradeHandler := handlers.NewTradeHandler(svc.Trades)
	catalogHandler := handlers.NewCatalogHandler(svc.Catalog)
	groupHandler := handlers.NewGroupHandler(svc.Permissions, svc.Audit)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	admin := v1.Group("/admin")
	admin.Use(middleware.AdminAuthMiddleware(cfg.AdminAPIKey))
	admin.POST("/brokers", catalogHandler.CreateBroker)
	admin.POST("/equities", catalogHandler.CreateEquity)

	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	perm := func(codes ...string) gin.HandlerFunc {
		return middleware.RequirePermission(svc.Permissions, codes...)
	}

	protected.GET("/profile", authHandler.GetProfile)
	protected.PATCH("/profile", authHandler.UpdateProfile)

	protected.GET("/brokers", catalogHandler.ListBrokers)
	protected.GET("/equities", catalogHandler.ListEquities)

	trades := protected.Group("/trades")
	trades.GET("", perm("trade.read"), tradeHandler.ListTrades)
	trades.POST("/buy", perm("trade.create"), traderHandler.Buy)
	trades.POST("/sell", perm("trade.create"), traderHandler.Sell)

	trades.GET("/brokers", perm("broker.read"), traderHandler.GetBrokers)
	trades.POST("/brokers", perm("broker.attach"), traderHandler.AddBrokers)
	trades.DELETE("/brokers/primary", perm("broker.attach"), traderHandler.UnsetPrimary)
	trades.DELETE("/brokers/:id", perm("broker.detach"), traderHandler.RemoveBroker)
	trades.PUT("/brokers/:id/primary", perm("broker.attach"), traderHandler.SetPrimary)

	trades.GET("/wallet", perm("trade.read"), traderHandler.GetWallet)
	trades.POST("/wallet/deposit", perm("trade.update"), traderHandler.Deposit)
	trades.POST("/wallet/withdraw", perm("trade.update"), traderHandler.Withdraw)

	trades.GET("/stash", perm("trade.read"), traderHandler.GetStashes)
	trades.GET("/stash/:equity_id", perm("trade.read"), traderHandler.GetStash)
	trades.POST("/stash", perm("trade.create"), traderHandler.AddStash)

	trades.GET("/marks", perm("mark.read"), traderHandler.GetMarks)
	trades.POST("/marks/add", perm("mark.create"), traderHandler.AddMark)
	trades.POST("/marks/remove", perm("mark.delete"), traderHandler.RemoveMark)
	trades.POST("/marks/clear", perm("mark.delete"), traderHandler.ClearMarks)

	groups := protected.Group("/groups")
	groups.GET("", perm("group.read"), groupHandler.ListGroups)
	groups.POST("", perm("group.create"), groupHandler.CreateGroup)
	groups.PATCH("/:id", perm("group.update"), groupHandler.UpdateGroup)
	groups.DELETE("/:name", perm("group.delete"), groupHandler.DeleteGroup)
	groups.PUT("/:name/permissions", perm("group.update"), groupHandler.SetGroupPermissions)

	protected.PUT("/users/:id/groups", perm("user.update"), groupHandler.UpdateUserGroups)

	return router
}
