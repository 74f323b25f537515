package router

import (
	"net/http"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
	"go.uber.org/zap"

	"proctorview/internal/config"
	"proctorview/internal/handlers"
	"proctorview/internal/models"
	"proctorview/internal/session"
	"proctorview/internal/utils"
)

func keyFunc(c *gin.Context) string {
	return c.ClientIP()
}

func errorHandler(c *gin.Context, info ratelimit.Info) {
	c.JSON(http.StatusTooManyRequests, gin.H{"status": "error", "message": "Too many requests. Try again later."})
}

func Setup(log *zap.Logger, registry *session.Registry, catalog *models.Catalog) *gin.Engine {
	// Set up a new Gin router, add recovery middleware and request logging.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(log))

	secret := config.Conf.Server.SessionSecret
	if secret == "" {
		// Without a configured secret, cookie sessions do not survive a
		// process restart.
		generated, err := utils.SecureToken(32)
		if err != nil {
			log.Fatal("Failed to generate session secret", zap.Error(err))
		}
		secret = generated
		log.Warn("No session secret configured, generated an ephemeral one")
	}

	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   false, // Set to true in production
		SameSite: http.SameSiteLaxMode,
		MaxAge:   86400,
	})
	router.Use(sessions.Sessions("proctorview", store))

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
	})
	router.Use(func(c *gin.Context) {
		err := secureMiddleware.Process(c.Writer, c.Request)
		if err != nil {
			c.Abort()
			return
		}
	})

	// Handlers and routes
	authHandler := handlers.NewAuthHandler(log)
	faceHandler := handlers.NewFaceHandler(log, registry)
	monitorHandler := handlers.NewMonitorHandler(log, registry)
	sessionHandler := handlers.NewSessionHandler(log, registry, catalog)

	rateLimitStore := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  time.Minute,
		Limit: 10,
	})
	limiter := ratelimit.RateLimiter(rateLimitStore, &ratelimit.Options{
		ErrorHandler: errorHandler,
		KeyFunc:      keyFunc,
	})

	router.GET("/health/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	router.POST("/login/", limiter, authHandler.Login)
	router.POST("/verify_face/", limiter, CandidateRequired(), faceHandler.VerifyFace)
	router.POST("/analyze_frame/", CandidateRequired(), monitorHandler.AnalyzeFrame)

	sessionRoutes := router.Group("/session")
	sessionRoutes.Use(CandidateRequired())
	{
		sessionRoutes.POST("/start/", sessionHandler.Start)
		sessionRoutes.GET("/question/", sessionHandler.Question)
		sessionRoutes.POST("/answer/", sessionHandler.Answer)
		sessionRoutes.GET("/report/", sessionHandler.Report)
		sessionRoutes.POST("/restart/", sessionHandler.Restart)
	}

	return router
}
