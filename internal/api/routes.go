package api

import (
	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/SocialSync/internal/handler"
	"github.com/Gopher0727/SocialSync/utils/ratelimit"
)

// Handlers groups every HTTP handler the router mounts.
type Handlers struct {
	Auth         *handler.AuthHandler
	Profile      *handler.ProfileHandler
	Circle       *handler.CircleHandler
	Meeting      *handler.MeetingHandler
	Engagement   *handler.EngagementHandler
	Analytics    *handler.AnalyticsHandler
	Badge        *handler.BadgeHandler
	Notification *handler.NotificationHandler
	Geo          *handler.GeoHandler
}

// RegisterRoutes registers all API routes under /api/v1
func RegisterRoutes(r *gin.Engine, mw *MiddlewareManager, h *Handlers) {
	api := r.Group("/api/v1")

	// Public routes
	auth := api.Group("/auth")
	auth.Use(mw.RateLimit(ratelimit.RuleAuth))
	{
		auth.POST("/signup", h.Auth.SignUp)
		auth.POST("/signin", h.Auth.SignIn)
		auth.POST("/refresh", h.Auth.Refresh)
	}

	// Protected routes
	protected := api.Group("")
	protected.Use(mw.SessionGate(), mw.RateLimit(ratelimit.RuleAPI))
	{
		protected.POST("/auth/signout", h.Auth.SignOut)
		protected.GET("/auth/session", h.Auth.Session)

		protected.GET("/profile", h.Profile.Me)
		protected.PUT("/profile", h.Profile.Update)
		protected.POST("/profile/avatar", mw.RateLimit(ratelimit.RuleUpload), h.Profile.UploadAvatar)
		protected.GET("/profiles/:id", h.Profile.Get)

		circles := protected.Group("/circles")
		{
			circles.GET("", h.Circle.ListMine)
			circles.POST("", h.Circle.Create)
			circles.POST("/join", mw.RateLimit(ratelimit.RuleJoin), h.Circle.Join)
			circles.GET("/active", h.Circle.Active)
			circles.PUT("/active", h.Circle.SetActive)
			circles.GET("/:id/members", h.Circle.Members)
			circles.POST("/:id/invites", mw.RateLimit(ratelimit.RuleInvite), h.Circle.Invite)
			circles.DELETE("/:id/membership", h.Circle.Leave)
			circles.DELETE("/:id", h.Circle.Delete)
			circles.GET("/:id/meetings", h.Circle.Meetings)
			circles.GET("/:id/analytics", h.Analytics.Circle)
			circles.GET("/:id/scrapbook", h.Analytics.Scrapbook)
		}

		meetings := protected.Group("/meetings")
		{
			meetings.POST("", mw.RateLimit(ratelimit.RuleUpload), h.Meeting.Log)
			meetings.GET("/mine", h.Meeting.ListMine)
			meetings.GET("/:id", h.Meeting.Get)
			meetings.PUT("/:id", mw.RateLimit(ratelimit.RuleUpload), h.Meeting.Edit)
			meetings.DELETE("/:id", h.Meeting.Delete)
			meetings.GET("/:id/comments", h.Engagement.Comments)
			meetings.POST("/:id/comments", h.Engagement.AddComment)
			meetings.GET("/:id/reactions", h.Engagement.Reactions)
			meetings.POST("/:id/reactions", h.Engagement.ToggleReaction)
		}
		protected.DELETE("/comments/:id", h.Engagement.DeleteComment)

		protected.GET("/badges", h.Badge.TrophyRoom)
		protected.POST("/badges/evaluate", h.Badge.Evaluate)

		notifications := protected.Group("/notifications")
		{
			notifications.GET("", h.Notification.List)
			notifications.GET("/stream", h.Notification.Stream)
			notifications.POST("/read-all", h.Notification.MarkAllRead)
			notifications.POST("/:id/read", h.Notification.MarkRead)
			notifications.DELETE("/:id", h.Notification.Delete)
		}

		geo := protected.Group("/geo")
		{
			geo.GET("/reverse", h.Geo.Reverse)
			geo.GET("/search", h.Geo.Search)
		}
	}
}
