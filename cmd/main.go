package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"failboard/config"
	"failboard/internal/digest"
	"failboard/internal/message"
	"failboard/internal/middleware"
	"failboard/internal/moderation"
	"failboard/internal/notify"
	"failboard/internal/story"
	"failboard/internal/svc"
	"failboard/internal/user"
	"failboard/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const serviceName = "failboard"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger := utils.InitLogger(cfg.AppEnv)
	defer logger.Sync()

	sc, err := svc.NewServiceContext(cfg)
	if err != nil {
		zap.L().Fatal("failed to init services", zap.Error(err))
	}
	defer sc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if sc.Consumer != nil {
		sc.Consumer.Start(ctx)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: newRouter(sc),
	}

	go func() {
		zap.L().Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zap.L().Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("server shutdown error", zap.Error(err))
	}
}

func newRouter(sc *svc.ServiceContext) *gin.Engine {
	cfg := sc.Config
	if cfg.AppEnv == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.TracingMiddleware(serviceName))
	r.Use(middleware.KafkaLogMiddleware(sc.LogWriter(), serviceName))

	storyHandler := story.NewStoryHandler(sc.Stories, sc.Bookmarks, sc.Notifier, sc.Points, sc.Assistant, sc.Tasks())
	userHandler := user.NewUserHandler(user.Deps{
		DB:       sc.DB,
		Config:   cfg,
		Graph:    sc.Graph,
		Notifier: sc.Notifier,
		Stories:  sc.Stories,
		Tokens:   sc.Tokens(),
		Avatars:  sc.Avatars(),
		Mailer:   sc.Dispatcher,
		Points:   sc.Points,
		Cache:    sc.Leaderboard(),
	})
	notifyHandler := notify.NewHandler(sc.Notifier)
	modHandler := moderation.NewHandler(sc.Moderation, sc.Stories, sc.DB)
	digestHandler := digest.NewHandler(sc.Digest)

	// 公开路由：注册/登录
	r.POST("/register", userHandler.Register)
	r.POST("/login", userHandler.Login)

	// 公开路由：故事墙，可选登录
	public := r.Group("/")
	public.Use(middleware.OptionalAuthMiddleware(cfg, sc.Blacklist()))
	{
		public.GET("/stories", storyHandler.ListStories)
		public.POST("/stories",
			middleware.RateLimitMiddleware(sc.Limiter(), "post_story", cfg.RateLimitPosts, cfg.RateLimitWindow),
			storyHandler.CreateStory)
		public.GET("/stories/:id", storyHandler.GetStory)
		public.GET("/stories/:id/similar", storyHandler.SimilarStories)
		public.POST("/stories/:id/vote", storyHandler.VoteStory)
		public.POST("/stories/:id/react", storyHandler.ReactStory)
		public.POST("/stories/:id/comments", storyHandler.AddComment)
		public.POST("/stories/:id/comments/:commentId/replies", storyHandler.AddReply)
		public.POST("/stories/:id/bookmark", storyHandler.ToggleBookmark)
		public.POST("/stories/:id/report", modHandler.Report)
		public.GET("/bookmarks", storyHandler.ListBookmarks)
		public.GET("/trending", storyHandler.Trending)
		public.GET("/stats", storyHandler.Stats)
	}

	// 鉴权路由
	auth := r.Group("/")
	auth.Use(middleware.JWTAuthMiddleware(cfg, sc.Blacklist()))
	{
		auth.PUT("/stories/:id", storyHandler.UpdateStory)
		auth.DELETE("/stories/:id", storyHandler.DeleteStory)

		users := auth.Group("/users")
		{
			users.POST("/logout", userHandler.Logout)
			users.PUT("/me", userHandler.UpdateMyProfile)
			users.POST("/me/password", userHandler.ModifyPassword)
			users.POST("/me/avatar", userHandler.UploadAvatar)
			users.GET("/search", userHandler.SearchUsers)

			users.GET("/:id", userHandler.PersonalPage)
			users.POST("/:id/follow", userHandler.FollowUser)
			users.DELETE("/:id/follow", userHandler.UnfollowUser)
			users.GET("/:id/following", userHandler.GetFollowingList)
			users.GET("/:id/followers", userHandler.GetFollowersList)
		}
		auth.GET("/leaderboard", userHandler.Leaderboard)

		notifications := auth.Group("/notifications")
		{
			notifications.GET("", notifyHandler.List)
			notifications.POST("/:id/read", notifyHandler.MarkRead)
			notifications.POST("/read-all", notifyHandler.MarkAllRead)
			notifications.GET("/ws", notifyHandler.Stream)
		}

		if sc.Messages != nil {
			msgHandler := message.NewHandler(sc.Messages, sc.DB)
			conversations := auth.Group("/conversations")
			{
				conversations.GET("", msgHandler.List)
				conversations.POST("", msgHandler.Start)
				conversations.GET("/:id/messages", msgHandler.Messages)
				conversations.POST("/:id/messages", msgHandler.Send)
				conversations.GET("/:id/ws", msgHandler.Stream)
			}
		}

		admin := auth.Group("/admin")
		admin.Use(middleware.AdminOnly(sc.DB))
		{
			admin.GET("/stats", modHandler.Stats)
			admin.GET("/reports", modHandler.ListReports)
			admin.POST("/reports/bulk", modHandler.Bulk)
			admin.POST("/reports/:id/resolve", modHandler.Resolve)
			admin.POST("/reports/:id/dismiss", modHandler.Dismiss)
			admin.POST("/reports/:id/delete-story", modHandler.DeleteStory)
			admin.DELETE("/stories/:id", modHandler.RemoveStory)
			admin.POST("/users/:id/ban", modHandler.ToggleBan)
			admin.POST("/digest", digestHandler.Send)
		}
	}

	return r
}

