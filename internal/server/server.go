package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"wodbox/internal/booking"
	"wodbox/internal/box"
	"wodbox/internal/class"
	"wodbox/internal/config"
	"wodbox/internal/guard"
	"wodbox/internal/profile"
)

const visitorTTL = 3 * time.Minute

// Deps are the collaborators the routes are served by.
type Deps struct {
	Session   Session
	Accounts  Accounts
	Callback  URLSessionDetector
	DB        Pinger
	Navigator *Navigator

	Profiles profile.Service
	Boxes    box.Service
	Classes  class.Service
	Bookings booking.Service
}

type Server struct {
	router  *gin.Engine
	http    *http.Server
	config  *config.Config
	limiter *RateLimiter
}

func New(cfg *config.Config, deps Deps) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLoggingMiddleware(), MetricsMiddleware(), corsMiddleware())

	if deps.Navigator == nil {
		deps.Navigator = NewNavigator()
	}
	limiter := NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, visitorTTL)

	pages := newPageHandler(deps.Session, deps.Accounts, deps.Callback, deps.Navigator)
	profileHandler := profile.NewHandler(deps.Profiles)
	boxHandler := box.NewHandler(deps.Boxes)
	classHandler := class.NewHandler(deps.Classes)
	bookingHandler := booking.NewHandler(deps.Bookings)

	state := deps.Session
	signedIn := guard.Authenticated(state)
	owner := guard.BusinessOwner(state)
	athlete := guard.Athlete(state)

	router.GET("/", toLogin)
	router.NoRoute(toLogin)

	public := router.Group("/auth")
	public.Use(limiter.Middleware())
	{
		public.POST("/login", pages.Login)
		public.POST("/register", pages.Register)
		public.GET("/email-confirmation", pages.EmailConfirmation)
		public.POST("/resend-confirmation", pages.ResendConfirmation)
		public.GET("/callback", pages.Callback)
		public.POST("/reset-password", pages.ResetPassword)
		public.POST("/logout", pages.Logout)
		public.POST("/update-password", signedIn, pages.UpdatePassword)
	}

	router.GET("/dashboard", signedIn, pages.Dashboard)
	router.GET("/onboarding", signedIn, pages.Onboarding)

	me := router.Group("/me", signedIn)
	{
		me.GET("", profileHandler.GetMe)
		me.PUT("", profileHandler.UpdateMe)
	}

	boxes := router.Group("/box")
	{
		boxes.GET("", owner, boxHandler.GetMyBox)
		boxes.POST("", owner, boxHandler.CreateBox)
		boxes.GET("/:boxID", signedIn, boxHandler.GetBox)
		boxes.PUT("/:boxID", owner, boxHandler.UpdateBox)
		boxes.POST("/:boxID/deactivate", owner, boxHandler.DeactivateBox)
		boxes.DELETE("/:boxID", owner, boxHandler.DeleteBox)
	}

	classes := router.Group("/classes")
	{
		classes.GET("", signedIn, classHandler.ListClasses)
		classes.GET("/available", signedIn, classHandler.ListAvailable)
		classes.POST("", owner, classHandler.CreateClass)
		classes.GET("/:classID", signedIn, classHandler.GetClass)
		classes.GET("/:classID/availability", signedIn, classHandler.CheckAvailability)
		classes.GET("/:classID/bookings", owner, bookingHandler.ListClassBookings)
		classes.PUT("/:classID", owner, classHandler.UpdateClass)
		classes.POST("/:classID/cancel", owner, classHandler.CancelClass)
		classes.DELETE("/:classID", owner, classHandler.DeleteClass)
	}

	wodTypes := router.Group("/wod-types")
	{
		wodTypes.GET("", signedIn, classHandler.ListWodTypes)
		wodTypes.POST("", owner, classHandler.CreateWodType)
	}

	bookings := router.Group("/bookings")
	{
		bookings.GET("", signedIn, bookingHandler.ListMyBookings)
		bookings.POST("", athlete, bookingHandler.BookClass)
		bookings.POST("/:bookingID/cancel", signedIn, bookingHandler.CancelBooking)
		bookings.POST("/:bookingID/check-in", owner, bookingHandler.CheckIn)
		bookings.DELETE("/:bookingID", owner, bookingHandler.DeleteBooking)
	}

	router.GET("/health", Health(deps.DB))
	router.GET("/metrics", Metrics())

	return &Server{
		router:  router,
		config:  cfg,
		limiter: limiter,
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(port string) error {
	s.http = &http.Server{
		Addr:              ":" + port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func toLogin(c *gin.Context) {
	c.Redirect(http.StatusFound, guard.LoginPath)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
