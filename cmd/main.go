package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"budstack-service/internal/clock"
	"budstack-service/internal/handler"
	"budstack-service/internal/middleware"
	"budstack-service/internal/model"
	"budstack-service/internal/repository"
	"budstack-service/internal/service"
	"budstack-service/pkg/cache"
	"budstack-service/pkg/config"
	"budstack-service/pkg/database"
	"budstack-service/pkg/github"
	"budstack-service/pkg/jwtutil"
	"budstack-service/pkg/logger"
	"budstack-service/pkg/metrics"
	mid "budstack-service/pkg/middleware"
	"budstack-service/pkg/nftclient"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

const (
	serviceName          = "budstack"
	activeTenantsRefresh = time.Minute
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load(serviceName)
	if err != nil {
		// Can't use structured logger yet since it's not initialized
		panic("Failed to load configuration: " + err.Error())
	}

	if err := logger.InitLogger(&logger.LogConfig{
		Level:       cfg.Log.Level,
		Environment: cfg.Server.Env,
		ServiceName: cfg.ServiceName,
	}); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	defer log.Sync()

	log.Info("Starting BudStack platform service", cfg.LogConfig()...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database and migrations
	db, err := database.InitDB(&cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer database.Close(db)

	if err := database.MigrateModels(db, model.Models()...); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}
	log.Info("Database connection established and migrations completed")

	// Cache: redis when configured, in-process otherwise
	kv := newCache(ctx, cfg, log)

	// Outbound clients
	var nft service.NFTVerifier
	if cfg.NFT.BaseURL != "" {
		nft = nftclient.NewClient(cfg.NFT.BaseURL, cfg.NFT.APIKey, cfg.NFT.Contract, cfg.NFT.Timeout, log)
	} else {
		log.Warn("NFT verification is not configured, applications will be accepted unverified")
	}
	fetcher := github.NewRawClient(cfg.GitHub.RawBaseURL, cfg.GitHub.Token, cfg.GitHub.Timeout, log)
	jwtUtil := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{
		SigningKey:      cfg.JWT.SigningKey,
		ExpirationHours: cfg.JWT.ExpirationHours,
	})
	clk := clock.NewSystem()

	// Repositories
	tenantRepo := repository.NewTenantRepository(db)
	userRepo := repository.NewUserRepository(db)
	productRepo := repository.NewProductRepository(db)
	cartRepo := repository.NewCartRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	traceRepo := repository.NewTraceRepository(db)

	// Services
	resolver := service.NewTenantResolver(tenantRepo, kv, cfg.Redis.TTL, cfg.Platform.BaseDomain, log)
	templateService := service.NewTemplateService(templateRepo, settingsRepo, tenantRepo, fetcher, kv, cfg.Redis.TTL, log)
	authService := service.NewAuthService(userRepo, jwtUtil, log)
	onboardingService := service.NewOnboardingService(tenantRepo, templateRepo, settingsRepo, nft, log)
	productService := service.NewProductService(productRepo, log)
	cartService := service.NewCartService(cartRepo, productRepo, log)
	orderService := service.NewOrderService(orderRepo, cartRepo, clk, cfg.Platform.OrderPrefix, log)
	traceService := service.NewTraceService(traceRepo, productRepo, clk, log)
	storeService := service.NewStoreService(tenantRepo, userRepo, templateRepo, templateService, resolver, cfg.Platform.BaseDomain, log)
	platformService := service.NewPlatformService(tenantRepo, templateRepo, settingsRepo, resolver, templateService, log)
	analyticsService := service.NewAnalyticsService(orderRepo, userRepo, tenantRepo, clk)

	if err := seed(ctx, cfg, settingsRepo, templateRepo, authService, log); err != nil {
		log.Fatal("Failed to seed platform data", zap.Error(err))
	}
	go refreshActiveTenants(ctx, platformService, log)

	// Handlers
	healthHandler := handler.NewHealthHandler(serviceName, func(ctx context.Context) error {
		return database.Ping(ctx, db)
	})
	onboardingHandler := handler.NewOnboardingHandler(onboardingService, templateService)
	authHandler := handler.NewAuthHandler(authService)
	storeHandler := handler.NewStoreHandler(productService, templateService, traceService)
	cartHandler := handler.NewCartHandler(cartService)
	orderHandler := handler.NewOrderHandler(orderService)
	tenantAdminHandler := handler.NewTenantAdminHandler(productService, orderService, storeService, traceService, analyticsService, clk)
	superAdminHandler := handler.NewSuperAdminHandler(platformService, templateService, analyticsService)

	// Initialize Echo framework
	e := echo.New()
	e.HideBanner = true

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization, middleware.HeaderTenantSubdomain, middleware.HeaderSessionID},
		ExposeHeaders:    []string{middleware.HeaderSessionID, echo.HeaderXRequestID},
		AllowCredentials: true,
	}))
	e.Use(mid.RequestIDMiddleware())
	e.Use(logger.Middleware())
	e.Use(metrics.NewHTTPMetrics(cfg.Metrics.Prefix).Middleware())

	// Public routes - no authentication required
	e.GET("/health", healthHandler.HealthCheck)
	e.GET("/metrics", echo.WrapHandler(metrics.GetPrometheusHandler()))

	onboarding := e.Group("/api/onboarding")
	onboarding.GET("/subdomain-availability", onboardingHandler.SubdomainAvailability)
	onboarding.GET("/templates", onboardingHandler.Templates)
	onboarding.POST("", onboardingHandler.Apply)

	storefront := middleware.StorefrontTenant(resolver, settingsRepo)
	session := middleware.Session(cfg.Platform.SessionCookie, cfg.Server.Env == "production")
	optionalAuth := mid.OptionalJWTMiddleware(jwtUtil)
	auth := mid.JWTAuthMiddleware(jwtUtil)

	e.POST("/auth/login", authHandler.Login, middleware.OptionalStorefrontTenant(resolver))
	e.POST("/auth/register", authHandler.Register, storefront)
	e.GET("/api/users/profile", authHandler.Profile, auth)

	// Storefront routes, scoped to the store the request addresses
	store := e.Group("/api/store", storefront)
	store.GET("", storeHandler.Store)
	store.GET("/products", storeHandler.Products)
	store.GET("/products/:slug", storeHandler.Product)
	store.GET("/products/:slug/trace", storeHandler.ProductTrace)
	store.GET("/categories", storeHandler.Categories)

	cart := e.Group("/api/cart", storefront, session)
	cart.GET("", cartHandler.Get)
	cart.DELETE("", cartHandler.Clear)
	cart.POST("/items", cartHandler.AddItem)
	cart.PATCH("/items/:id", cartHandler.UpdateItem)
	cart.DELETE("/items/:id", cartHandler.RemoveItem)

	e.POST("/api/checkout", orderHandler.Checkout, storefront, session, optionalAuth)
	e.GET("/api/orders/:number", orderHandler.Lookup, storefront)
	e.GET("/api/account/orders", orderHandler.AccountOrders,
		storefront, auth, mid.RequireRole(model.RoleCustomer), middleware.RequireTenant())

	// Tenant admin dashboard; pending stores can already prepare their catalogue
	tenantAdmin := e.Group("/api/tenant-admin", auth, mid.RequireRole(model.RoleTenantAdmin), middleware.RequireTenant())
	tenantAdmin.GET("/products", tenantAdminHandler.ListProducts)
	tenantAdmin.POST("/products", tenantAdminHandler.CreateProduct)
	tenantAdmin.GET("/products/:id", tenantAdminHandler.GetProduct)
	tenantAdmin.PUT("/products/:id", tenantAdminHandler.UpdateProduct)
	tenantAdmin.DELETE("/products/:id", tenantAdminHandler.DeleteProduct)
	tenantAdmin.GET("/products/:id/trace", tenantAdminHandler.ProductTrace)
	tenantAdmin.POST("/products/:id/trace", tenantAdminHandler.AppendTrace)
	tenantAdmin.GET("/products/:id/trace/verify", tenantAdminHandler.VerifyTrace)
	tenantAdmin.GET("/orders", tenantAdminHandler.ListOrders)
	tenantAdmin.GET("/orders/export", tenantAdminHandler.ExportOrders)
	tenantAdmin.GET("/orders/:id", tenantAdminHandler.GetOrder)
	tenantAdmin.PATCH("/orders/:id/status", tenantAdminHandler.UpdateOrderStatus)
	tenantAdmin.GET("/customers", tenantAdminHandler.Customers)
	tenantAdmin.GET("/store", tenantAdminHandler.GetStore)
	tenantAdmin.PUT("/store", tenantAdminHandler.UpdateStore)
	tenantAdmin.GET("/template", tenantAdminHandler.GetTemplate)
	tenantAdmin.PUT("/template", tenantAdminHandler.SetTemplate)
	tenantAdmin.GET("/analytics", tenantAdminHandler.Analytics)

	// Super admin dashboard
	superAdmin := e.Group("/api/super-admin", auth, mid.RequireRole(model.RoleSuperAdmin))
	superAdmin.GET("/tenants", superAdminHandler.ListTenants)
	superAdmin.GET("/tenants/export", superAdminHandler.ExportTenants)
	superAdmin.GET("/tenants/:id", superAdminHandler.GetTenant)
	superAdmin.PATCH("/tenants/:id/status", superAdminHandler.SetTenantStatus)
	superAdmin.POST("/tenants/:id/toggle-active", superAdminHandler.ToggleActive)
	superAdmin.GET("/settings", superAdminHandler.Settings)
	superAdmin.PUT("/settings", superAdminHandler.UpdateSettings)
	superAdmin.GET("/analytics", superAdminHandler.Analytics)
	superAdmin.GET("/templates", superAdminHandler.ListTemplates)
	superAdmin.POST("/templates", superAdminHandler.CreateTemplate)
	superAdmin.POST("/templates/import", superAdminHandler.ImportTemplate)
	superAdmin.GET("/templates/:id", superAdminHandler.GetTemplate)
	superAdmin.PUT("/templates/:id", superAdminHandler.UpdateTemplate)
	superAdmin.DELETE("/templates/:id", superAdminHandler.DeleteTemplate)

	// Start server
	go func() {
		log.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
	log.Info("Server stopped")
}

func newCache(ctx context.Context, cfg *config.Config, log *zap.Logger) cache.KV {
	if !cfg.Redis.Enabled() {
		log.Info("Redis not configured, using in-process cache")
		return cache.NewMemoryKV()
	}
	client := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		// lookups fall through to the database while redis is down
		log.Warn("Redis ping failed", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	} else {
		log.Info("Redis connection established", zap.String("addr", cfg.Redis.Addr))
	}
	return cache.NewRedisKV(client)
}

// seed creates the settings row, the built-in template and the configured super admin
func seed(ctx context.Context, cfg *config.Config, settings *repository.SettingsRepository,
	templates *repository.TemplateRepository, auth *service.AuthService, log *zap.Logger) error {
	if err := settings.Seed(ctx); err != nil {
		return err
	}

	builtin := service.BuiltinTemplate()
	if err := templates.Upsert(ctx, &builtin); err != nil {
		return err
	}

	if cfg.Platform.SuperAdminEmail == "" {
		return nil
	}
	created, err := auth.EnsureSuperAdmin(ctx, cfg.Platform.SuperAdminEmail, cfg.Platform.SuperAdminPassword)
	if err != nil {
		return err
	}
	if created {
		log.Info("Super admin account created", zap.String("email", cfg.Platform.SuperAdminEmail))
	}
	return nil
}

func refreshActiveTenants(ctx context.Context, platform *service.PlatformService, log *zap.Logger) {
	ticker := time.NewTicker(activeTenantsRefresh)
	defer ticker.Stop()
	for {
		if err := platform.RefreshActiveTenants(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("Failed to refresh active tenants gauge", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
