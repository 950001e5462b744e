package api

import (
	"path/filepath"
	"time"

	"groupdesk/internal/config"
	"groupdesk/internal/identity"
	"groupdesk/internal/middleware"
	"groupdesk/internal/telemetry"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

type RouterConfig struct {
	Resolver     identity.Resolver
	Authorizer   identity.Authorizer
	LoginPath    string
	StaticDir    string
	WriteStorage fiber.Storage
	Security     config.SecurityConfig
	Metrics      *telemetry.Metrics
	ServiceName  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewApp builds the fiber application with the middleware chain and all
// routes mounted.
func NewApp(h *Handler, cfg RouterConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               cfg.ServiceName,
		ErrorHandler:          ErrorHandler(h.logger),
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		BodyLimit:             1 << 20,
		DisableStartupMessage: true,
	})

	var recorder identity.DecisionRecorder
	app.Use(recover.New())
	app.Use(requestid.New())
	if cfg.ServiceName != "" {
		app.Use(telemetry.FiberMiddleware(cfg.ServiceName))
	}
	if cfg.Metrics != nil {
		app.Use(cfg.Metrics.Middleware())
		recorder = cfg.Metrics
	}
	app.Use(middleware.Logger(h.logger))
	app.Use(middleware.SecurityHeaders())
	app.Use(middleware.CORS(cfg.Security))

	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics.Handler())
	}

	apiGate := func(groups ...string) fiber.Handler {
		return identity.Protect(cfg.Resolver, cfg.Authorizer, identity.GateConfig{
			RequiredGroups: groups,
			Mode:           identity.ModeAPI,
			LoginPath:      cfg.LoginPath,
			Recorder:       recorder,
		})
	}

	api := app.Group("/api", middleware.JSONOnly(), middleware.WriteLimiter(cfg.Security, cfg.WriteStorage))
	api.Get("/health", h.Health)

	auth := api.Group("/auth")
	auth.Post("/login", h.Login)
	auth.Post("/logout", apiGate(), h.Logout)
	auth.Get("/me", apiGate(), h.Me)

	users := api.Group("/users", apiGate())
	users.Get("", h.GetUsers)
	users.Post("", h.UpsertUser)
	users.Put("/me/settings", h.UpdateMySettings)

	groups := api.Group("/groups", apiGate())
	groups.Get("", h.ListGroups)
	groups.Post("", h.CreateGroup)
	groups.Get("/:id", h.GetGroup)
	groups.Post("/:id/members", h.AddMember)

	admin := api.Group("/admin", apiGate(identity.AdminGroup))
	admin.Get("/stats", h.AdminStats)
	admin.Get("/audit", h.AdminAudit)

	// Public and admin assets live in sibling directories so that no
	// normalized path under "/" can reach an admin page past the gate.
	if cfg.StaticDir != "" {
		publicDir := filepath.Join(cfg.StaticDir, "public")
		adminDir := filepath.Join(cfg.StaticDir, "admin")

		loginPath := cfg.LoginPath
		if loginPath == "" {
			loginPath = "/login"
		}
		app.Get(loginPath, func(c *fiber.Ctx) error {
			return c.SendFile(filepath.Join(publicDir, "login.html"))
		})

		app.Use("/admin", identity.Protect(cfg.Resolver, cfg.Authorizer, identity.GateConfig{
			RequiredGroups: []string{identity.AdminGroup},
			Mode:           identity.ModePage,
			LoginPath:      cfg.LoginPath,
			Recorder:       recorder,
		}))
		app.Static("/admin", adminDir, fiber.Static{
			Compress: true,
			Browse:   false,
			MaxAge:   3600,
		})
		app.Static("/", publicDir, fiber.Static{
			Index:  "index.html",
			MaxAge: 3600,
		})
	}

	return app
}
