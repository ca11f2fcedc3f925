package api

import (
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"github.com/d60-Lab/feedpulse/config"
	"github.com/d60-Lab/feedpulse/internal/api/handler"
	"github.com/d60-Lab/feedpulse/internal/api/middleware"
	"github.com/d60-Lab/feedpulse/internal/model"
)

// NewRouter 组装路由与中间件
func NewRouter(cfg *config.Config, h *handler.Handler) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)
	registerValidators()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	r.Use(otelgin.Middleware("feedpulse"))
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.Use(middleware.RateLimit(rate.Limit(100), 200))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", h.Register)
			auth.POST("/verify", h.VerifyRegistration)
			auth.POST("/login", h.Login)
			auth.POST("/forgot-password", h.ForgotPassword)
			auth.POST("/reset-password", h.ResetPassword)
		}

		secured := v1.Group("", middleware.Auth(cfg.JWT.Secret))
		{
			secured.POST("/feeds", h.CreateFeed)
			secured.PATCH("/feeds/:feed_id", h.UpdateFeed)
			secured.DELETE("/feeds/:feed_id", h.DeleteFeed)
			secured.POST("/feeds/:feed_id/engagements/:etype", h.Engage)
			secured.DELETE("/feeds/:feed_id/engagements/:etype", h.Disengage)
			secured.GET("/feeds/:feed_id/engagements", h.GetEngagement)

			secured.GET("/timelines/discover", h.Discover)
			secured.GET("/timelines/following", h.Following)
			secured.GET("/users/:user_id/feeds", h.UserFeeds)
			secured.GET("/users/:user_id/profile", h.Profile)
			secured.DELETE("/users/me", h.DeleteAccount)

			secured.POST("/relations/:user_id/follow", h.Follow)
			secured.POST("/relations/:user_id/unfollow", h.Unfollow)
			secured.GET("/relations/:user_id/status", h.IsFollowing)
			secured.GET("/relations/:user_id/following", h.ListFollowing)
			secured.GET("/relations/:user_id/fans", h.ListFans)

			secured.POST("/chats", h.CreateChat)
			secured.GET("/chats", h.Chats)
			secured.POST("/chats/:chat_id/messages", h.SendMessage)
			secured.GET("/chats/:chat_id/messages", h.Messages)
			secured.DELETE("/chats/:chat_id", h.DeleteChat)

			secured.GET("/settings/statistics", h.Statistics)

			secured.GET("/ws/feeds", h.FeedSocket)
			secured.GET("/ws/chats", h.ChatSocket)
			secured.GET("/ws/settings", h.SettingsSocket)
		}
	}
	return r
}

// registerValidators 挂载领域枚举校验规则
func registerValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	_ = v.RegisterValidation("visibility", func(fl validator.FieldLevel) bool {
		return model.FeedVisibility(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("comment_policy", func(fl validator.FieldLevel) bool {
		return model.CommentPolicy(fl.Field().String()).Valid()
	})
}
