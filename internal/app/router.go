package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/janasewa/membership-go/internal/config"
	"github.com/janasewa/membership-go/internal/constants"
	"github.com/janasewa/membership-go/internal/health"
	"github.com/janasewa/membership-go/internal/server"
)

// NewAPIServer: the hardened HTTP server over the API router.
func NewAPIServer(cfg *config.Config, router *gin.Engine) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: constants.ServerTimeout.ReadHeader,
		ReadTimeout:       constants.ServerTimeout.Read,
		WriteTimeout:      constants.ServerTimeout.Write,
		IdleTimeout:       constants.ServerTimeout.Idle,
		MaxHeaderBytes:    constants.ServerTimeout.MaxHeaderBytes,
	}
}

// NewAPIRouter: configures the gin router serving the membership API.
func NewAPIRouter(ctx context.Context, cfg *config.Config, logger *slog.Logger, apiHandler *server.APIHandler) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	if err := router.SetTrustedProxies(constants.ServerConfig.TrustedProxies); err != nil {
		return nil, fmt.Errorf("failed to set trusted proxies: %w", err)
	}

	router.Use(gin.Recovery())
	router.Use(server.LoggerMiddleware(ctx, logger, "/health"))

	if len(cfg.Server.AllowedOrigins) > 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = cfg.Server.AllowedOrigins
		corsCfg.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
		router.Use(cors.New(corsCfg))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, health.Get())
	})

	api := router.Group("/api")
	{
		members := api.Group("/members")
		{
			members.GET("/:id", apiHandler.GetMember)
			members.GET("/by-number/:no", apiHandler.GetMemberByNumber)
			members.POST("/lookup", apiHandler.LookupMembers)
			members.POST("/cache/warm", apiHandler.WarmMemberCache)
			members.PUT("/:id/contact", apiHandler.UpdateMemberContact)
			members.POST("/:id/renewal", apiHandler.RenewMembership)
			members.DELETE("/:id/cache", apiHandler.InvalidateMember)
		}

		cards := api.Group("/cards")
		{
			cards.POST("/:id", apiHandler.GenerateCard)
			cards.POST("/batch", apiHandler.BatchGenerateCards)
			cards.DELETE("/:id/cache", apiHandler.InvalidateCard)
			cards.GET("/cache/stats", apiHandler.CardCacheStats)
		}
	}

	return router, nil
}
