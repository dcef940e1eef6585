package handlers

import (
	"preheat_scheduler/internal/logger"
	"preheat_scheduler/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services     *service.Service
	log          *logger.Logger
	triggerToken string
}

// NewHandler constructs a new HTTP handler with dependencies. An empty
// triggerToken disables POST /internal/run-due.
func NewHandler(services *service.Service, log *logger.Logger, triggerToken string) *Handler {
	return &Handler{services: services, log: log, triggerToken: triggerToken}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", h.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h.registerAuthRoutes(router)

	// Versioned API endpoints (protected)
	h.registerAPIRoutes(router)

	// External scheduler hook, guarded by a shared token
	router.POST("/internal/run-due", h.triggerTokenMiddleware, h.runDueExternal)

	// Status stream; the token may also travel as ?token= since browsers
	// cannot set headers on a WebSocket handshake.
	router.GET("/ws", h.userIdMiddleware, h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		h.registerScenarioRoutes(api)
		h.registerScheduleRoutes(api)
		h.registerRoomRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerScenarioRoutes(api *gin.RouterGroup) {
	api.GET("/scenario", h.getScenario)
	// Body example: {"preheat_mode":"absolute","heat_start_time_of_day":"13:00"}
	api.PUT("/scenario", h.saveScenario)
}

func (h *Handler) registerScheduleRoutes(api *gin.RouterGroup) {
	schedules := api.Group("/schedules")
	{
		schedules.GET("", h.listSchedules)
		schedules.GET("/status", h.getStatus)
		schedules.POST("/generate", h.generateSchedules)
		schedules.POST("/test", h.generateTestSchedule)
		schedules.POST("/run-due", h.runDue)
		schedules.PATCH("/:id", h.updateSchedule)
		schedules.DELETE("/:id", h.deleteSchedule)
		schedules.POST("/:id/apply", h.applySchedule)
	}
}

func (h *Handler) registerRoomRoutes(api *gin.RouterGroup) {
	api.GET("/rooms/:home_id", h.listRooms)
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}
