package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/tutorlink/tutorlink-api/internal/handler"
	"github.com/tutorlink/tutorlink-api/internal/middleware"
	"github.com/tutorlink/tutorlink-api/internal/models"
	"github.com/tutorlink/tutorlink-api/internal/service"
)

// Deps bundles everything the router needs.
type Deps struct {
	Auth     *service.AuthService
	Reports  bool
	Handlers Handlers
}

// Handlers groups the HTTP handlers mounted by Register.
type Handlers struct {
	Auth       *handler.AuthHandler
	Bookings   *handler.BookingHandler
	Reviews    *handler.ReviewHandler
	Tutors     *handler.TutorHandler
	Users      *handler.UserHandler
	Stats      *handler.StatsHandler
	Attendance *handler.AttendanceHandler
	Catalog    *handler.CatalogHandler
	Reports    *handler.ReportHandler
	Metrics    *handler.MetricsHandler
}

// Register mounts all API routes under the given prefix.
func Register(r *gin.Engine, prefix string, deps Deps) {
	h := deps.Handlers
	authRequired := middleware.JWT(deps.Auth)
	authOptional := middleware.OptionalJWT(deps.Auth)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	api := r.Group(prefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
		auth.POST("/refresh", h.Auth.Refresh)
		auth.POST("/logout", authRequired, h.Auth.Logout)
		auth.PUT("/password", authRequired, h.Auth.ChangePassword)
		auth.GET("/me", authRequired, h.Auth.Me)
	}

	catalog := api.Group("/catalog")
	{
		catalog.GET("/subjects", h.Catalog.Subjects)
		catalog.GET("/locations", h.Catalog.Locations)
	}

	tutors := api.Group("/tutors")
	{
		tutors.GET("", authOptional, h.Tutors.List)
		tutors.GET("/me", authRequired, middleware.RequireRoles(models.RoleTutor), h.Tutors.Mine)
		tutors.PUT("/me", authRequired, middleware.RequireRoles(models.RoleTutor), h.Tutors.Upsert)
		tutors.GET("/:id", authOptional, h.Tutors.Get)
		tutors.GET("/:id/schedule", authRequired, h.Bookings.TutorSchedule)
		tutors.GET("/:id/reviews", authOptional, h.Reviews.ListForTutor)
		tutors.GET("/:id/stats", authRequired, h.Stats.Tutor)
		if deps.Reports {
			tutors.GET("/:id/earnings/export", authRequired, h.Reports.TutorEarnings)
		}
	}

	bookings := api.Group("/bookings", authRequired)
	{
		bookings.POST("", middleware.RequireRoles(models.RoleStudent), h.Bookings.Create)
		bookings.GET("", h.Bookings.List)
		bookings.GET("/:id", h.Bookings.Get)
		bookings.PATCH("/:id/status", h.Bookings.UpdateStatus)
		bookings.POST("/:id/review", middleware.RequireRoles(models.RoleStudent), h.Reviews.Submit)
		bookings.GET("/:id/review/eligibility", h.Reviews.CanReview)
		bookings.GET("/:id/attendance", h.Attendance.ByBooking)
	}

	reviews := api.Group("/reviews", authRequired)
	{
		reviews.GET("/mine", h.Reviews.ListMine)
		reviews.PUT("/:id", middleware.RequireRoles(models.RoleStudent), h.Reviews.Edit)
	}

	students := api.Group("/students", authRequired)
	{
		students.GET("/:id/stats", middleware.RBAC(string(models.RoleAdmin), "SELF"), h.Stats.Student)
		students.GET("/:id/attendance", h.Attendance.ByStudent)
	}

	users := api.Group("/users", authRequired, adminOnly)
	{
		users.GET("", h.Users.List)
		users.GET("/:id", h.Users.Get)
		users.PUT("/:id", h.Users.Update)
		users.DELETE("/:id", h.Users.Delete)
	}

	admin := api.Group("/admin", authRequired, adminOnly)
	{
		admin.GET("/stats", h.Stats.Admin)
		admin.GET("/metrics", h.Metrics.Snapshot)
	}

	r.GET("/metrics", h.Metrics.Prometheus)
}
