package server

import (
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"tabletop-backend/internal/auth"
	"tabletop-backend/internal/config"
	"tabletop-backend/internal/constants"
	"tabletop-backend/internal/dice"
	"tabletop-backend/internal/handler"
	"tabletop-backend/internal/middleware"
	"tabletop-backend/internal/presence"
	"tabletop-backend/internal/service"
	"tabletop-backend/internal/store"
	"tabletop-backend/internal/visibility"
)

// Deps process-wide collaborators built by main
type Deps struct {
	DB       *gorm.DB
	Log      *zap.Logger
	Presence presence.Tracker      // optional
	Uploader service.ShareUploader // optional; nil disables share uploads
	Google   auth.GoogleVerifier   // optional; defaults from GOOGLE_CLIENT_ID
	Roller   *dice.Roller          // optional; seeded from crypto/rand
}

// Server Fiber server wrapper
type Server struct {
	app           *fiber.App
	cfg           *config.Config
	log           *zap.Logger
	jwtManager    *auth.JWTManager
	authHandler   *handler.AuthHandler
	gameHandler   *handler.GameHandler
	streamHandler *handler.SyncStreamHandler
	healthHandler *handler.HealthHandler
}

// New builds the server and its whole object graph.
func New(cfg *config.Config, deps Deps) (*Server, error) {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	if deps.DB == nil {
		return nil, errors.New("server: database is required")
	}

	roller := deps.Roller
	if roller == nil {
		r, err := dice.NewRoller()
		if err != nil {
			return nil, err
		}
		roller = r
	}

	google := deps.Google
	if google == nil && cfg.Auth.GoogleEnabled() {
		google = auth.NewGoogleAuthenticator(cfg.Auth.GoogleClientID)
	}

	errs := handler.NewErrorWriter(cfg.Server.ExposeErrorDetails, log)

	app := fiber.New(fiber.Config{
		AppName:               "Tabletop API",
		ServerHeader:          "Fiber",
		StrictRouting:         false,
		CaseSensitive:         true,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           cfg.Server.IdleTimeout,
		BodyLimit:             cfg.Server.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(log),
	})

	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry)
	users := store.NewUserStore(deps.DB)
	games := store.NewGameStore(deps.DB)

	authService := service.NewAuthService(users, jwtManager, google, log)
	gameService := service.NewGameService(service.GameServiceDeps{
		Games:    games,
		Users:    users,
		Filter:   visibility.NewFilter(visibility.Mode(cfg.Game.FogEnforcement)),
		Roller:   roller,
		Presence: deps.Presence,
		Uploader: deps.Uploader,
		Rules:    cfg.Game,
		Limits:   cfg.Sync,
		Log:      log,
	})

	return &Server{
		app:           app,
		cfg:           cfg,
		log:           log,
		jwtManager:    jwtManager,
		authHandler:   handler.NewAuthHandler(authService, errs),
		gameHandler:   handler.NewGameHandler(gameService, errs),
		streamHandler: handler.NewSyncStreamHandler(gameService, cfg.Sync.StreamInterval, log),
		healthHandler: handler.NewHealthHandler(deps.DB, deps.Presence),
	}, nil
}

// App exposes the fiber app for tests and adaptors.
func (s *Server) App() *fiber.App {
	return s.app
}

// errorHandler renders errors that escape handlers (routing, body limit, panics).
func errorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal server error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message
		} else {
			log.Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
		}
		return c.Status(code).JSON(fiber.Map{"error": message})
	}
}

// SetupMiddleware installs the global middleware chain.
func (s *Server) SetupMiddleware() {
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: s.cfg.Server.IsDevelopment(),
	}))

	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "UTC",
		Output:     zap.NewStdLog(s.log.Named("http")).Writer(),
	}))

	s.app.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.CORS.AllowOrigins,
		AllowHeaders:     s.cfg.CORS.AllowHeaders,
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: false,
	}))

	// Preflight probes always succeed with an empty body.
	s.app.Use(func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodOptions {
			return c.SendStatus(fiber.StatusOK)
		}
		return c.Next()
	})
}

// SetupRoutes registers every endpoint.
func (s *Server) SetupRoutes() {
	s.app.Get("/", handler.Root)
	s.app.Get("/health", s.healthHandler.Check)
	s.app.Get("/health/live", s.healthHandler.Liveness)
	s.app.Get("/health/ready", s.healthHandler.Readiness)

	rateLimit := s.cfg.Auth.RateLimit
	if rateLimit <= 0 {
		rateLimit = 10
	}
	authLimiter := limiter.New(limiter.Config{
		Max:        rateLimit,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later",
			})
		},
	})
	requireAuth := auth.AuthMiddleware(s.jwtManager)

	authGroup := s.app.Group("/auth")
	authGroup.Post("/register", authLimiter, s.authHandler.Register)
	authGroup.Post("/login", authLimiter, s.authHandler.Login)
	authGroup.Post("/google", authLimiter, s.authHandler.GoogleLogin)
	authGroup.Get("/me", requireAuth, s.authHandler.Me)
	authGroup.Put("/role", requireAuth, s.authHandler.SetRole)

	games := s.app.Group("/games", requireAuth)
	games.Get("/", s.gameHandler.List)
	games.Post("/", s.gameHandler.Create)
	games.Get("/:id", s.gameHandler.Get)
	games.Delete("/:id", s.gameHandler.Delete)
	games.Put("/:id/status", s.gameHandler.SetStatus)
	games.Post("/:id/join", s.gameHandler.Join)
	games.Post("/:id/leave", s.gameHandler.Leave)

	games.Put("/:id/tokens", s.gameHandler.UpdateTokens)
	games.Put("/:id/obstacles", s.gameHandler.UpdateObstacles)
	games.Put("/:id/fog", s.gameHandler.UpdateFog)
	games.Put("/:id/share", s.gameHandler.UpdateShare)
	games.Post("/:id/share/upload", s.gameHandler.RequestUpload)

	games.Get("/:id/sync", s.gameHandler.Sync)
	games.Get("/:id/messages", s.gameHandler.ListMessages)
	games.Post("/:id/messages", s.gameHandler.PostMessage)
	games.Post("/:id/dice", s.gameHandler.RollDice)
	games.Get("/:id/actions", s.gameHandler.ListActions)
	games.Post("/:id/actions", s.gameHandler.LogAction)

	s.app.Get("/ws/games/:id/sync",
		middleware.WebSocketAuth(s.jwtManager),
		websocket.New(s.streamHandler.HandleWebSocket, websocket.Config{
			ReadBufferSize:  constants.WSReadBufferSize,
			WriteBufferSize: constants.WSWriteBufferSize,
		}),
	)
}

// Start listens until SIGINT/SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		s.log.Info("shutting down server")
		if err := s.app.ShutdownWithTimeout(30 * time.Second); err != nil {
			s.log.Error("server shutdown failed", zap.Error(err))
		}
	}()

	s.log.Info("server starting",
		zap.String("addr", s.cfg.Server.Port),
		zap.String("fog_enforcement", s.cfg.Game.FogEnforcement),
	)
	return s.app.Listen(s.cfg.Server.Port)
}

// Listen serves on an address without signal handling.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown stops the server.
func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(30 * time.Second)
}
