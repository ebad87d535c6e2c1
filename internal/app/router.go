package app

import (
	"planora_backend/docs"
	"planora_backend/internal/middleware"
	"planora_backend/internal/model"
	"planora_backend/internal/util"
	"planora_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers) {
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())
	router.NoRoute(util.NotFound)

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 实时通道：浏览器无法设置 Authorization 头，令牌由控制器自行校验
	router.GET("/api/ws", c.ws.Connect)

	// 3. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(a.services.tokens))
	{
		a.registerUserRoutes(authGroup, c)
		a.registerFriendRoutes(authGroup, c)
		a.registerResourceRoutes(authGroup, c)
		a.registerMessageRoutes(authGroup, c)
	}

	// 4. 管理员相关接口
	a.registerAdminRoutes(router, c)
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)

		auth := public.Group("/auth")
		{
			auth.POST("/register", c.auth.Register)
			auth.POST("/login", c.auth.Login)
			auth.POST("/refresh", c.auth.Refresh)
			auth.POST("/logout", c.auth.Logout)
		}
	}
}

func (a *App) registerUserRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.PUT("/auth/password", c.auth.ChangePassword)
	rg.GET("/profile", c.user.GetProfile)
	rg.PUT("/profile", c.user.UpdateProfile)
	rg.GET("/users/search", c.user.SearchUsers)
}

func (a *App) registerFriendRoutes(rg *gin.RouterGroup, c *controllers) {
	friends := rg.Group("/friends")
	{
		friends.GET("", c.friendship.ListFriends)
		friends.POST("/requests", c.friendship.SendRequest)
		friends.GET("/requests", c.friendship.ListRequests)
		friends.GET("/requests/pending", c.friendship.ListPending)
		friends.PUT("/requests/:id/accept", c.friendship.AcceptRequest)
		friends.PUT("/requests/:id/reject", c.friendship.RejectRequest)
		friends.DELETE("/requests/:id", c.friendship.CancelRequest)
		friends.DELETE("/requests/:id/dismiss", c.friendship.DismissRequest)
		friends.POST("/blocks/:userId", c.friendship.Block)
		friends.DELETE("/blocks/:userId", c.friendship.Unblock)
		friends.DELETE("/:id", c.friendship.RemoveFriend)
	}
}

func (a *App) registerResourceRoutes(rg *gin.RouterGroup, c *controllers) {
	notes := rg.Group("/notes")
	{
		notes.POST("", c.note.CreateNote)
		notes.GET("", c.note.ListNotes)
		notes.GET("/:id", c.note.GetNote)
		notes.PUT("/:id", c.note.UpdateNote)
		notes.DELETE("/:id", c.note.DeleteNote)
		notes.GET("/:id/shares", c.note.ListNoteShares)
		notes.POST("/:id/shares", c.note.ShareNote)
		notes.DELETE("/:id/shares/:userId", c.note.UnshareNote)
	}

	events := rg.Group("/events")
	{
		events.POST("", c.event.CreateEvent)
		events.GET("", c.event.ListEvents)
		events.GET("/:id", c.event.GetEvent)
		events.PUT("/:id", c.event.UpdateEvent)
		events.DELETE("/:id", c.event.DeleteEvent)
		events.GET("/:id/shares", c.event.ListEventShares)
		events.POST("/:id/shares", c.event.ShareEvent)
		events.DELETE("/:id/shares/:userId", c.event.UnshareEvent)
	}

	reminders := rg.Group("/reminders")
	{
		reminders.POST("", c.reminder.CreateReminder)
		reminders.GET("", c.reminder.ListReminders)
		reminders.GET("/:id", c.reminder.GetReminder)
		reminders.PUT("/:id", c.reminder.UpdateReminder)
		reminders.DELETE("/:id", c.reminder.DeleteReminder)
		reminders.GET("/:id/shares", c.reminder.ListReminderShares)
		reminders.POST("/:id/shares", c.reminder.ShareReminder)
		reminders.DELETE("/:id/shares/:userId", c.reminder.UnshareReminder)
	}
}

func (a *App) registerMessageRoutes(rg *gin.RouterGroup, c *controllers) {
	messages := rg.Group("/messages")
	{
		messages.POST("", c.message.SendMessage)
		messages.POST("/attachments", c.message.UploadAttachment)
		messages.GET("/:userId", c.message.GetHistory)
	}
}

func (a *App) registerAdminRoutes(router *gin.Engine, c *controllers) {
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(a.services.tokens), middleware.RoleMiddleware(model.RoleAdmin))
	{
		admin.GET("/users", c.user.GetUsers)
		admin.DELETE("/users/:id", c.user.DeleteUser)
	}
}
