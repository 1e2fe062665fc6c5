package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/JinhuaXu/flowhub/internal/api"
	"github.com/JinhuaXu/flowhub/internal/cache"
	"github.com/JinhuaXu/flowhub/internal/config"
	"github.com/JinhuaXu/flowhub/internal/database"
	"github.com/JinhuaXu/flowhub/internal/limiter"
	"github.com/JinhuaXu/flowhub/internal/logger"
	mw "github.com/JinhuaXu/flowhub/internal/middleware"
	"github.com/JinhuaXu/flowhub/internal/repo"
	"github.com/JinhuaXu/flowhub/internal/resp"
	"github.com/JinhuaXu/flowhub/internal/service"
	"github.com/JinhuaXu/flowhub/internal/storage"
)

// AppDependencies 包含应用的所有依赖
type AppDependencies struct {
	UserHandler     *api.UserHandler
	WorkflowHandler *api.WorkflowHandler
	AdminHandler    *api.AdminHandler
	PaymentHandler  *api.PaymentHandler
	UploadHandler   *api.UploadHandler

	JWTService        service.JWTService
	MembershipService service.MembershipService
	UserRepo          repo.UserRepository
}

// initConfigAndLogger 初始化配置和日志器
func initConfigAndLogger() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %v", err)
	}

	lg, err := logger.New(cfg.App.Env, cfg.Log.Level, cfg.Log.Encoding, cfg.App.Name, cfg.App.Version)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %v", err)
	}

	return cfg, lg, nil
}

// initDatabase 初始化数据库连接并执行迁移
// 迁移在HTTP服务器启动前完成，处理请求时库表结构已就绪。
func initDatabase(cfg *config.Config, lg *zap.Logger) (*database.DB, error) {
	db, err := database.New(cfg, lg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %v", err)
	}

	migrationsDir := cfg.Migrations.Dir
	lg.Sugar().Infow("using migrations directory", "path", migrationsDir)

	if err := db.RunMigrations(migrationsDir); err != nil {
		return nil, fmt.Errorf("failed to run database migrations: %v", err)
	}

	return db, nil
}

// initCache 初始化缓存实例
func initCache(cfg *config.Config, lg *zap.Logger) cache.Cache {
	if !cfg.Cache.Enabled {
		lg.Sugar().Infow("cache disabled")
		return cache.NewNullCache()
	}

	switch cfg.Cache.Type {
	case "redis":
		redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
		redisCache, err := cache.NewRedisCache(redisAddr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			lg.Sugar().Warnw("failed to connect to Redis, falling back to memory cache", "error", err)
			lg.Sugar().Infow("cache enabled", "type", "memory (fallback)", "ttl", cfg.Cache.TTL)
			return cache.NewMemoryCache()
		}
		lg.Sugar().Infow("cache enabled", "type", "redis", "addr", redisAddr, "ttl", cfg.Cache.TTL)
		return redisCache
	case "memory":
		lg.Sugar().Infow("cache enabled", "type", "memory", "ttl", cfg.Cache.TTL)
		return cache.NewMemoryCache()
	default:
		lg.Sugar().Warnw("unknown cache type, using memory cache", "type", cfg.Cache.Type)
		return cache.NewMemoryCache()
	}
}

// initDependencies 初始化应用依赖（仓储、服务、处理器）
func initDependencies(cfg *config.Config, db *database.DB, cacheInstance cache.Cache, lg *zap.Logger) (*AppDependencies, error) {
	// 依赖注入链：仓储 -> 服务 -> API处理器
	userRepo := repo.NewUserRepository(db)
	activityRepo := repo.NewActivityRepository(db.DB)
	orderRepo := repo.NewOrderRepository(db.DB)
	baseWorkflowRepo := repo.NewWorkflowRepository(db.DB)

	var workflowRepo repo.WorkflowRepository = baseWorkflowRepo
	if cfg.Cache.Enabled {
		workflowRepo = repo.NewCachedWorkflowRepository(baseWorkflowRepo, cacheInstance, cfg.Cache.TTL)
	}

	activityService := service.NewActivityService(activityRepo, lg)
	membershipService := service.NewMembershipService(userRepo, activityService, lg)
	userService := service.NewUserService(userRepo, activityService, lg)
	jwtService := service.NewJWTService(cfg, userRepo, lg)
	workflowService := service.NewWorkflowService(workflowRepo, membershipService, lg)
	paymentService := service.NewPaymentService(orderRepo, userRepo, membershipService, lg)

	st, err := storage.NewLocalStorage(cfg.Upload.Dir, cfg.Upload.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	return &AppDependencies{
		UserHandler:     api.NewUserHandler(userService, jwtService, lg),
		WorkflowHandler: api.NewWorkflowHandler(workflowService, lg),
		AdminHandler:    api.NewAdminHandler(userService, membershipService, activityService, workflowService, lg),
		PaymentHandler:  api.NewPaymentHandler(paymentService, lg),
		UploadHandler:   api.NewUploadHandler(st, cfg.Upload.MaxSize, lg),

		JWTService:        jwtService,
		MembershipService: membershipService,
		UserRepo:          userRepo,
	}, nil
}

// initLoginLimiter 初始化登录限流中间件，未启用时返回nil
func initLoginLimiter(cfg *config.Config, lg *zap.Logger) func(http.Handler) http.Handler {
	if !cfg.RateLimit.Enabled {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	fw := limiter.NewFixedWindowLimiter(client, &limiter.Config{
		Rate:      cfg.RateLimit.LoginRate,
		Window:    cfg.RateLimit.LoginWindow,
		KeyPrefix: "limiter:login",
	})

	lg.Sugar().Infow("login rate limit enabled",
		"rate", cfg.RateLimit.LoginRate,
		"window", cfg.RateLimit.LoginWindow,
	)

	return limiter.Middleware(fw, lg)
}

// setupRoutes 设置路由和中间件
func setupRoutes(cfg *config.Config, deps *AppDependencies, lg *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	// 健康检查端点
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		reqID := mw.RequestIDFromContext(r.Context())
		data := map[string]any{
			"status":  "ok",
			"version": cfg.App.Version,
		}
		resp.OK(w, &data, reqID, "")
	})

	// 认证相关API路由（无需登录态）
	loginHandler := http.Handler(http.HandlerFunc(deps.UserHandler.Login))
	if limitMw := initLoginLimiter(cfg, lg); limitMw != nil {
		loginHandler = limitMw(loginHandler)
	}
	mux.HandleFunc("/api/v1/auth/register", deps.UserHandler.Register)
	mux.Handle("/api/v1/auth/login", loginHandler)
	mux.HandleFunc("/api/v1/auth/refresh", deps.UserHandler.RefreshToken)

	// 认证中间件：验令牌、读库、被动过期检查
	authMiddleware := mw.AuthMiddleware(deps.JWTService, deps.UserRepo, deps.MembershipService, lg)

	mux.Handle("/api/v1/users/profile", authMiddleware(http.HandlerFunc(deps.UserHandler.GetProfile)))

	// 工作流市场（列表和详情公开，下载需要认证）
	mux.HandleFunc("/api/v1/workflows", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			deps.WorkflowHandler.List(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	downloadHandler := authMiddleware(http.HandlerFunc(deps.WorkflowHandler.Download))
	mux.HandleFunc("/api/v1/workflows/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/download") {
			downloadHandler.ServeHTTP(w, r)
			return
		}
		switch r.Method {
		case http.MethodGet:
			deps.WorkflowHandler.Get(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// 支付（回调来自模拟网关，无登录态）
	mux.HandleFunc("/api/v1/pay/callback", deps.PaymentHandler.Callback)
	mux.Handle("/api/v1/pay/orders", authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			deps.PaymentHandler.CreateOrder(w, r)
		case http.MethodGet:
			deps.PaymentHandler.ListOrders(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})))
	mux.Handle("/api/v1/pay/orders/", authMiddleware(http.HandlerFunc(deps.PaymentHandler.GetOrder)))

	// 管理端（admin/superadmin，细粒度授权在服务层）
	adminMiddleware := mw.RequireAdmin(lg)
	adminChain := func(h http.HandlerFunc) http.Handler {
		return authMiddleware(adminMiddleware(h))
	}

	mux.Handle("/api/v1/admin/users", adminChain(deps.AdminHandler.ListUsers))
	mux.Handle("/api/v1/admin/users/role", adminChain(deps.AdminHandler.UpdateUserRole))
	mux.Handle("/api/v1/admin/users/membership", adminChain(deps.AdminHandler.UpdateUserMembership))
	mux.Handle("/api/v1/admin/users/", adminChain(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodDelete:
			deps.AdminHandler.DeleteUser(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}))
	mux.Handle("/api/v1/admin/dashboard", adminChain(deps.AdminHandler.Dashboard))
	mux.Handle("/api/v1/admin/upload", adminChain(deps.UploadHandler.Upload))

	mux.Handle("/api/v1/admin/workflows", adminChain(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			deps.WorkflowHandler.Create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}))
	mux.Handle("/api/v1/admin/workflows/", adminChain(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			deps.WorkflowHandler.Update(w, r)
		case http.MethodDelete:
			deps.WorkflowHandler.Delete(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}))

	// 上传文件的静态访问
	mux.Handle(cfg.Upload.BaseURL+"/", http.StripPrefix(cfg.Upload.BaseURL+"/", http.FileServer(http.Dir(cfg.Upload.Dir))))

	// 中间件链：请求进入时依次经过 access log → CORS → timeout → recovery → request ID
	handler := mw.RequestID(mux)
	handler = mw.Recovery(lg)(handler)
	handler = mw.Timeout(cfg.App.RequestTimeout)(handler)
	handler = mw.CORS(mw.CORSConfig{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: cfg.CORS.AllowedMethods,
		AllowedHeaders: cfg.CORS.AllowedHeaders,
	})(handler)
	handler = mw.AccessLog(lg)(handler)

	return handler
}

// startServer 启动服务器并处理优雅关闭
func startServer(cfg *config.Config, handler http.Handler, lg *zap.Logger) {
	addr := fmt.Sprintf(":%d", cfg.App.Port)
	lg.Sugar().Infow("server starting", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	select {
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			lg.Sugar().Fatalw("server error", "err", err)
		}
	case <-quit:
		lg.Sugar().Infow("shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		lg.Sugar().Errorw("server shutdown error", "err", err)
	}
	lg.Sugar().Infow("server exited")
}

// main 为应用入口，协调各个组件的初始化和启动
func main() {
	// 1) 加载配置和初始化日志
	cfg, lg, err := initConfigAndLogger()
	if err != nil {
		log.Fatalf("failed to initialize config and logger: %v", err)
	}

	// 2) 初始化数据库连接并执行迁移
	db, err := initDatabase(cfg, lg)
	if err != nil {
		lg.Sugar().Fatalw("failed to initialize database", "err", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			lg.Sugar().Errorw("failed to close database connection", "err", err)
		}
	}()

	// 3) 初始化缓存
	cacheInstance := initCache(cfg, lg)

	// 4) 初始化应用依赖（仓储、服务、处理器）
	deps, err := initDependencies(cfg, db, cacheInstance, lg)
	if err != nil {
		lg.Sugar().Fatalw("failed to initialize dependencies", "err", err)
	}

	// 5) 设置路由和中间件
	handler := setupRoutes(cfg, deps, lg)

	// 6) 启动 HTTP 服务器
	startServer(cfg, handler, lg)
}
