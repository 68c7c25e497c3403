package api

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gofiber/contrib/fiberzerolog"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/ncastellan/netrecon/db"
	"github.com/ncastellan/netrecon/lib/auth"
	"github.com/ncastellan/netrecon/pkg/orchestrator"
	"github.com/ncastellan/netrecon/pkg/schedule"
	"github.com/ncastellan/netrecon/pkg/watchdog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// @title Netrecon API
// @version 0.1
// @description The Netrecon API documentation.
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
func StartAPI() {
	apiLogger := log.With().Str("type", "api").Logger()

	apiLogger.Info().Msg("Initializing...")
	if _, err := db.InitDb(); err != nil {
		apiLogger.Error().Err(err).Msg("Failed to initialize database")
		os.Exit(1)
	}
	bootstrapDefaultAdmin()

	orch := orchestrator.NewDefault(db.Connection)
	SetScanLauncher(orch)

	sched := schedule.New(db.Connection, func(scanID uint, networks []string) {
		if err := orch.ExecuteScan(context.Background(), scanID, networks); err != nil {
			apiLogger.Error().Err(err).Uint("scan", scanID).Msg("Scheduled scan failed")
		}
	}, watchdog.New(db.Connection))
	if err := sched.Start(); err != nil {
		apiLogger.Error().Err(err).Msg("Failed to start scheduler")
		os.Exit(1)
	}
	SetScheduleManager(sched)

	apiLogger.Info().Msg("Initialized everything. Starting the API...")

	app := fiber.New(fiber.Config{
		ServerHeader: "Netrecon",
		AppName:      viper.GetString("app.name"),
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  viper.GetString("api.cors.allow_origins"),
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders: "Content-Disposition",
	}))

	app.Use(fiberzerolog.New(fiberzerolog.Config{
		Logger: &apiLogger,
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("API Running")
	})
	app.Get("/health", HealthHandler)

	registerRoutes(app)

	listenAddress := fmt.Sprintf("%v:%v", viper.Get("api.listen.host"), viper.Get("api.listen.port"))
	if err := app.Listen(listenAddress); err != nil {
		apiLogger.Warn().Err(err).Msg("Error starting server")
	}
}

// registerRoutes wires the /api surface. Reads are open, mutations need a
// token and most of them the admin role.
func registerRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Auth endpoints get a tighter rate limit to slow down brute forcing.
	authGroup := api.Group("/auth")
	authGroup.Use(limiter.New(limiter.Config{
		Max:               20,
		Expiration:        30 * time.Second,
		LimiterMiddleware: limiter.SlidingWindow{},
	}))
	authGroup.Post("/login", Login)
	authGroup.Post("/refresh", RefreshTokens)
	authGroup.Get("/me", JWTProtected(), Me)
	authGroup.Put("/change-password", JWTProtected(), ChangePassword)

	api.Post("/scans", JWTProtected(), RequireAdmin(), CreateScanHandler)
	api.Get("/scans", ListScansHandler)
	api.Get("/scans/:id", GetScanHandler)
	api.Delete("/scans/:id", JWTProtected(), RequireAdmin(), DeleteScanHandler)

	api.Get("/artifacts/:scan_id/:type", GetArtifactHandler)

	api.Get("/stats", GetStatsHandler)
	api.Get("/hosts/unique", GetUniqueHostsHandler)
	api.Get("/vms/unique", GetUniqueVMsHandler)
	api.Get("/services/unique", GetUniqueServicesHandler)

	api.Post("/schedules", JWTProtected(), RequireAdmin(), CreateScheduleHandler)
	api.Get("/schedules", ListSchedulesHandler)
	api.Get("/schedules/:id", GetScheduleHandler)
	api.Put("/schedules/:id", JWTProtected(), RequireAdmin(), UpdateScheduleHandler)
	api.Delete("/schedules/:id", JWTProtected(), RequireAdmin(), DeleteScheduleHandler)
	api.Post("/schedules/:id/trigger", JWTProtected(), RequireAdmin(), TriggerScheduleHandler)

	api.Get("/settings", GetSettingsHandler)
	api.Put("/settings", JWTProtected(), RequireAdmin(), UpdateSettingsHandler)

	users := api.Group("/users", JWTProtected(), RequireAdmin())
	users.Get("/", ListUsersHandler)
	users.Post("/", CreateUserHandler)
	users.Get("/:id", GetUserHandler)
	users.Put("/:id", UpdateUserHandler)
	users.Delete("/:id", DeleteUserHandler)
	users.Post("/:id/reset-password", ResetUserPasswordHandler)
}

// HealthHandler godoc
// @Summary Health check
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func HealthHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"service": viper.GetString("app.name"),
		"version": viper.GetString("app.version"),
	})
}

// bootstrapDefaultAdmin creates the configured admin account on a fresh
// install. It only ever runs against an empty users table, so renaming or
// demoting the account later sticks.
func bootstrapDefaultAdmin() {
	count, err := db.Connection.CountUsers()
	if err != nil || count > 0 {
		return
	}
	username := viper.GetString("auth.default_admin.username")
	password := viper.GetString("auth.default_admin.password")
	if username == "" || password == "" {
		log.Warn().Msg("No users exist and auth.default_admin.password is not set, create an account with the create-user command")
		return
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		log.Error().Err(err).Msg("Failed to hash default admin password")
		return
	}
	_, err = db.Connection.CreateUser(&db.User{
		Username:           username,
		HashedPassword:     hash,
		Role:               db.UserRoleAdmin,
		IsActive:           true,
		MustChangePassword: true,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to create default admin user")
		return
	}
	log.Info().Str("username", username).Msg("Default admin user created, the password must be changed on first login")
}
