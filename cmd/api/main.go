package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	_ "printhub/api/swagger" // swagger docs
	"printhub/internal/auth"
	"printhub/internal/config"
	"printhub/internal/database"
	"printhub/internal/handler"
	"printhub/internal/logger"
	"printhub/internal/middleware"
	"printhub/internal/rbac"
	"printhub/internal/repository"
	"printhub/internal/service"
	"printhub/internal/telemetry"
	"printhub/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AsRoute tags a handler constructor so fx collects it into the "routes" group
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(handler.Route)),
		fx.ResultTags(`group:"routes"`),
	)
}

// NewRouter builds the gin engine with the cross-cutting middleware
func NewRouter(cfg *config.Config, log *zap.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), logger.GinLogger(log))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.ExposeHeaders = []string{"Content-Disposition"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	return router
}

// RegisterAllRoutes mounts every handler collected in the "routes" group
func RegisterAllRoutes(router *gin.Engine, routes []handler.Route, log *zap.Logger) {
	root := router.Group("")
	for _, route := range routes {
		route.RegisterRoutes(root)
	}
	log.Info("routes registered", zap.Int("handlers", len(routes)))
}

var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`, ``),
)

// SeedAndValidate seeds the permission catalog and built-in roles, then
// refuses to start when a declared permission is missing from the database.
func SeedAndValidate(cfg *config.Config, roles service.RoleService, roleRepo repository.RoleRepository, users service.UserService, log *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := roles.SeedDefaultRolesAndPermissions(ctx); err != nil {
		return err
	}
	if err := rbac.ValidateCatalog(ctx, roleRepo, rbac.Catalog); err != nil {
		return err
	}

	createdAdmin, err := users.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		return err
	}
	if createdAdmin {
		log.Info("bootstrap admin created", zap.String("email", cfg.AdminEmail))
	}
	return nil
}

// CloseDatabase releases the pool when the app stops
func CloseDatabase(lc fx.Lifecycle, db *gorm.DB) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})
}

// StartServer binds the port on start and drains in-flight requests on stop
func StartServer(lc fx.Lifecycle, router *gin.Engine, cfg *config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Info("server listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

// @title           PrintHub API
// @version         1.0
// @description     Printer sales, rentals, maintenance work orders and spare-parts stock.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,
			logger.NewLogger,
			database.NewConnection,

			// Repositories
			repository.NewTransactionManager,
			repository.NewUserRepository,
			repository.NewRoleRepository,
			repository.NewPrinterRepository,
			repository.NewSaleRepository,
			repository.NewMaintenanceRepository,
			repository.NewInventoryRepository,
			repository.NewAuditRepository,

			// Identity and authorization
			func(r repository.RoleRepository) rbac.GrantStore { return r },
			func(r repository.UserRepository) rbac.UserLookup { return r },
			rbac.NewResolver,
			rbac.NewGate,
			auth.NewTokenManager,
			func(t *auth.TokenManager) middleware.TokenVerifier { return t },
			middleware.NewAuthorizer,
			middleware.NewCookieSettings,

			// Realtime and telemetry
			websocket.NewHub,
			func(h *websocket.Hub) service.EventPublisher { return h },
			telemetry.NewProber,

			// Services
			service.NewPrinterStatusCoordinator,
			service.NewInventoryService,
			service.NewMaintenanceService,
			service.NewPrinterService,
			service.NewSaleService,
			service.NewUserService,
			service.NewRoleService,
			service.NewAuditService,
			service.NewStatisticsService,

			NewRouter,

			// Routes
			AsRoute(handler.NewUserHandler),
			AsRoute(handler.NewRoleHandler),
			AsRoute(handler.NewPrinterHandler),
			AsRoute(handler.NewSaleHandler),
			AsRoute(handler.NewMaintenanceHandler),
			AsRoute(handler.NewInventoryHandler),
			AsRoute(handler.NewAuditHandler),
			AsRoute(handler.NewStatisticsHandler),
			AsRoute(websocket.NewHandler),
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			CloseDatabase,
			SeedAndValidate,
			RegisterAllRoutesWithAnnotation,
			websocket.RegisterLifecycle,
			StartServer,
		),
	)

	app.Run()
}
