package api

import (
	"net/http"

	"fittrainer/pro/internal/domain"
	"fittrainer/pro/internal/metrics"
	"fittrainer/pro/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Services is every service the HTTP layer talks to.
type Services struct {
	Auth      service.AuthService
	Profiles  service.ProfileService
	Exercises service.ExerciseService
	Coach     service.CoachService
	Plans     service.PlanService
	Sessions  service.SessionService
	Invoices  service.InvoiceService
	Dashboard service.DashboardService
	Progress  service.ProgressService
}

// NewRouter builds the engine with the shared middleware, /ping, /metrics and the API routes.
// A nil gatherer leaves /metrics out.
func NewRouter(svc *Services, jwtSecret string, m *metrics.Manager, gatherer prometheus.Gatherer) *gin.Engine {
	router := gin.New()
	router.Use(RequestMetrics(m), LogRequest(), PanicRecovery(m))

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	SetupRoutes(router, jwtSecret, svc)
	return router
}

func SetupRoutes(router *gin.Engine, jwtSecret string, svc *Services) {
	authHandler := NewAuthHandler(svc.Auth)
	profileHandler := NewProfileHandler(svc.Profiles)
	exerciseHandler := NewExerciseHandler(svc.Exercises)
	coachHandler := NewCoachHandler(svc)
	clientHandler := NewClientHandler(svc)
	invoiceHandler := NewInvoiceHandler(svc.Invoices, svc.Profiles)

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}
	}

	protected := apiV1.Group("")
	protected.Use(AuthMiddleware(jwtSecret))
	{
		protected.GET("/me", profileHandler.GetMe)
		protected.PUT("/me", profileHandler.UpdateMe)
		protected.GET("/me/today", profileHandler.GetToday)
		protected.POST("/me/avatar/upload-url", profileHandler.RequestAvatarUploadURL)
		protected.POST("/me/avatar/confirm", profileHandler.ConfirmAvatar)

		// --- Exercise Routes ---
		coachOnly := RoleMiddleware(domain.RoleCoach)
		exerciseGroup := protected.Group("/exercises")
		{
			exerciseGroup.POST("", coachOnly, exerciseHandler.CreateExercise)
			exerciseGroup.GET("", coachOnly, exerciseHandler.GetCoachExercises)
			// Clients may read exercises of their coach's library.
			exerciseGroup.GET("/:exerciseId", exerciseHandler.GetExercise)
			exerciseGroup.PUT("/:exerciseId", coachOnly, exerciseHandler.UpdateExercise)
			exerciseGroup.DELETE("/:exerciseId", coachOnly, exerciseHandler.DeleteExercise)
			exerciseGroup.POST("/:exerciseId/media/:kind/upload-url", coachOnly, exerciseHandler.RequestMediaUploadURL)
			exerciseGroup.POST("/:exerciseId/media/:kind/confirm", coachOnly, exerciseHandler.ConfirmMedia)
			exerciseGroup.GET("/:exerciseId/media/:kind", exerciseHandler.GetMediaDownloadURL)
		}

		// --- Coach Specific Routes ---
		coachGroup := protected.Group("/coach")
		coachGroup.Use(coachOnly)
		{
			coachGroup.POST("/clients", coachHandler.AddClientByEmail)
			coachGroup.GET("/clients", coachHandler.GetManagedClients)
			coachGroup.GET("/clients/:clientId", coachHandler.GetClientDetail)
			coachGroup.GET("/clients/:clientId/progress", coachHandler.GetClientProgress)
			coachGroup.GET("/clients/:clientId/history", coachHandler.GetClientHistory)

			coachGroup.POST("/plans", coachHandler.CreatePlan)
			coachGroup.GET("/plans", coachHandler.GetPlans)
			coachGroup.GET("/plans/:planId", coachHandler.GetPlan)
			coachGroup.PUT("/plans/:planId", coachHandler.UpdatePlan)
			coachGroup.PUT("/plans/:planId/builder", coachHandler.SavePlanBuilder)
			coachGroup.DELETE("/plans/:planId", coachHandler.DeletePlan)
			coachGroup.GET("/plans/:planId/progress", coachHandler.GetPlanProgress)

			coachGroup.GET("/sessions/:sessionId", coachHandler.GetSession)
			coachGroup.GET("/dashboard", coachHandler.GetDashboard)

			coachGroup.POST("/invoices", invoiceHandler.CreateInvoice)
			coachGroup.GET("/invoices", invoiceHandler.ListInvoices)
			coachGroup.GET("/invoices/:invoiceId", invoiceHandler.GetInvoice)
			coachGroup.PUT("/invoices/:invoiceId", invoiceHandler.UpdateInvoice)
			coachGroup.POST("/invoices/:invoiceId/pay", invoiceHandler.MarkPaid)
			coachGroup.POST("/invoices/:invoiceId/cancel", invoiceHandler.CancelInvoice)
			coachGroup.DELETE("/invoices/:invoiceId", invoiceHandler.DeleteInvoice)
		}

		// --- Client Specific Routes ---
		clientGroup := protected.Group("/client")
		clientGroup.Use(RoleMiddleware(domain.RoleClient))
		{
			clientGroup.GET("/plans", clientHandler.GetMyPlans)
			clientGroup.GET("/plans/current", clientHandler.GetCurrentPlan)
			clientGroup.GET("/plans/:planId", clientHandler.GetPlan)
			clientGroup.GET("/plans/:planId/progress", clientHandler.GetPlanProgress)

			clientGroup.POST("/sessions/today", clientHandler.EnsureTodaysSession)
			clientGroup.GET("/sessions/:sessionId", clientHandler.GetSession)
			clientGroup.POST("/sessions/:sessionId/start", clientHandler.StartSession)
			clientGroup.POST("/sessions/:sessionId/complete", clientHandler.CompleteSession)
			clientGroup.POST("/sessions/:sessionId/skip", clientHandler.SkipSession)

			exercise := clientGroup.Group("/sessions/:sessionId/exercises/:exerciseId")
			{
				exercise.PUT("/completed", clientHandler.SetExerciseCompleted)
				exercise.POST("/toggle", clientHandler.ToggleExerciseCompleted)
				exercise.PUT("/feedback", clientHandler.SaveExerciseFeedback)
				exercise.PUT("/performance", clientHandler.LogExercisePerformance)
			}

			clientGroup.GET("/history", clientHandler.GetHistory)
			clientGroup.GET("/progress", clientHandler.GetProgress)
			clientGroup.GET("/dashboard", clientHandler.GetDashboard)
			clientGroup.GET("/invoices", invoiceHandler.ListInvoices)
			clientGroup.GET("/invoices/:invoiceId", invoiceHandler.GetInvoice)
		}
	}
}
