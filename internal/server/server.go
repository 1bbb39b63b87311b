package server

import (
	"context"
	"net/http"
	"time"

	"milltownabc/internal/auth"
	"milltownabc/internal/booking"
	"milltownabc/internal/calendar"
	"milltownabc/internal/config"
	"milltownabc/internal/guard"
	"milltownabc/internal/member"
	"milltownabc/internal/payment"

	"github.com/gin-gonic/gin"
)

// Services is everything the HTTP layer routes to.
type Services struct {
	Members  member.Service
	Calendar calendar.Service
	Bookings booking.Service
	Guard    *guard.Guard
	Gateway  payment.Gateway
}

type Server struct {
	router  *gin.Engine
	http    *http.Server
	limiter *RateLimiter
	config  *config.Config
}

func New(cfg *config.Config, svc Services) *Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	limiter := NewRateLimiter(cfg.RequestsPerSecond, cfg.RequestBurst, 3*time.Minute)

	router := gin.New()
	router.Use(
		gin.Recovery(),
		RequestIDMiddleware(),
		RequestLoggingMiddleware(),
		MetricsMiddleware(),
		corsMiddleware(),
		limiter.Middleware(),
	)

	registerRoutes(router, cfg, svc)

	return &Server{
		router:  router,
		limiter: limiter,
		config:  cfg,
		http: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func registerRoutes(router *gin.Engine, cfg *config.Config, svc Services) {
	memberHandler := member.NewHandler(svc.Members)
	calendarHandler := calendar.NewHandler(svc.Calendar)
	bookingHandler := booking.NewHandler(svc.Bookings)
	guardHandler := guard.NewHandler(svc.Guard)
	paymentHandler := payment.NewHandler(svc.Gateway, cfg.PaymentClientKey, cfg.Currency)

	router.GET("/health", Health)
	router.GET("/metrics", Metrics())
	SetupSwagger(router)

	public := router.Group("/auth")
	{
		public.POST("/register", svc.Guard.SignupLimit(), memberHandler.Register)
		public.POST("/login", memberHandler.Login)
		public.POST("/refresh", memberHandler.RefreshToken)
		public.GET("/verify", memberHandler.VerifyEmail)
		public.POST("/forgot-password", memberHandler.ForgotPassword)
		public.POST("/reset-password", memberHandler.ResetPassword)
	}

	router.GET("/classes", calendarHandler.ListPublic)
	router.GET("/classes/:classID", calendarHandler.GetClass)
	router.GET("/payments/config", paymentHandler.Config)

	authMiddleware := auth.AuthMiddleware(cfg.JWTSecret)
	protected := router.Group("/")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", memberHandler.GetMe)
		protected.PUT("/me", memberHandler.UpdateMe)
		protected.DELETE("/me", memberHandler.DeleteMe)
		protected.POST("/classes/:classID/book", svc.Guard.BookingLimit(), bookingHandler.BookClass)
		protected.GET("/bookings", bookingHandler.ListMyBookings)
		protected.POST("/bookings/:bookingID/cancel", bookingHandler.CancelBooking)
	}

	admin := router.Group("/admin")
	admin.Use(authMiddleware, auth.RequireRole(auth.RoleAdmin))
	{
		admin.GET("/members", memberHandler.ListMembers)
		admin.PATCH("/members/:memberID", memberHandler.UpdateMember)
		admin.DELETE("/members/:memberID", memberHandler.DeleteMember)

		admin.GET("/classes", calendarHandler.ListAll)
		admin.POST("/classes", calendarHandler.CreateClass)
		admin.PUT("/classes/:classID", calendarHandler.UpdateClass)
		admin.DELETE("/classes/:classID", calendarHandler.DeleteClass)
		admin.POST("/classes/generate", calendarHandler.Generate)
		admin.GET("/classes/:classID/bookings", bookingHandler.ClassBookings)

		admin.GET("/templates", calendarHandler.ListTemplates)
		admin.POST("/templates", calendarHandler.CreateTemplate)
		admin.DELETE("/templates/:templateID", calendarHandler.DeleteTemplate)

		admin.GET("/bookings", bookingHandler.ListAll)
		admin.GET("/bookings/export", bookingHandler.Export)
		admin.POST("/bookings/:bookingID/cancel", bookingHandler.CancelBooking)
		admin.POST("/bookings/:bookingID/cash-paid", bookingHandler.MarkCashPaid)
		admin.GET("/analytics/bookings", bookingHandler.Analytics)

		admin.GET("/security/events", guardHandler.ListEvents)
	}
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.http.Shutdown(ctx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-Request-ID, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
