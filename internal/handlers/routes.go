package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/harentsoaR/clinic-api/internal/metrics"
	"github.com/harentsoaR/clinic-api/internal/middleware"
	"github.com/harentsoaR/clinic-api/internal/models"
)

// clinicalRoles may modify patients and appointments.
var clinicalRoles = []models.Role{models.RoleAdmin, models.RoleDentist, models.RoleReceptionist}

type RouterConfig struct {
	Production        bool
	CORSOrigins       []string
	AuthRatePerMinute int
	Metrics           *metrics.Collector
	Log               zerolog.Logger
}

// NewRouter builds the engine with the middleware chain and every route.
func NewRouter(h *Handler, guard *middleware.Guard, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Logger(cfg.Log),
		middleware.Tracing(),
		middleware.Metrics(cfg.Metrics),
		middleware.ErrorHandler(cfg.Production, cfg.Log),
		middleware.Recovery(cfg.Log),
		cors.New(corsConfig(cfg.CORSOrigins)),
	)
	r.NoRoute(middleware.NotFound)

	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "Clinic API is running") })
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	h.Routes(r.Group("/api"), guard, middleware.NewIPRateLimiter(cfg.AuthRatePerMinute))
	return r
}

// Routes registers the /api endpoints on api.
func (h *Handler) Routes(api *gin.RouterGroup, guard *middleware.Guard, limiter *middleware.IPRateLimiter) {
	authn := guard.Authenticate()
	clinical := guard.Authorize(clinicalRoles...)

	users := api.Group("/users")
	{
		users.POST("/register", limiter.Middleware(), h.RegisterUser)
		users.POST("/login", limiter.Middleware(), h.Login)
		users.GET("/profile", authn, h.GetCurrentUser)
		users.PUT("/profile", authn, h.UpdateCurrentUser)
	}

	patients := api.Group("/patients", authn)
	{
		patients.GET("", h.GetPatients)
		patients.GET("/:id", h.GetPatient)
		patients.POST("", clinical, h.CreatePatient)
		patients.PUT("/:id", clinical, h.UpdatePatient)
		patients.DELETE("/:id", clinical, h.DeletePatient)
		patients.POST("/:id/attachments", clinical, h.AddAttachment)
		patients.GET("/:id/attachments/:attachmentId", h.DownloadAttachment)
		patients.DELETE("/:id/attachments/:attachmentId", clinical, h.RemoveAttachment)
	}

	appointments := api.Group("/appointments", authn)
	{
		appointments.GET("", h.GetAppointments)
		appointments.GET("/:id", h.GetAppointment)
		appointments.POST("", clinical, h.CreateAppointment)
		appointments.PUT("/:id", clinical, h.UpdateAppointment)
		appointments.PATCH("/:id/cancel", clinical, h.CancelAppointment)
		appointments.DELETE("/:id", clinical, h.DeleteAppointment)
	}
}

func corsConfig(origins []string) cors.Config {
	cc := cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		// cors.New panics without any allowed origin
		cc.AllowOrigins = nil
		cc.AllowAllOrigins = true
		cc.AllowCredentials = false
	}
	return cc
}
