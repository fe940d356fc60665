package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"socialmonitor/internal/config"
	"socialmonitor/internal/crawler"
	"socialmonitor/internal/credential"
	cronrunner "socialmonitor/internal/cron"
	"socialmonitor/internal/db"
	"socialmonitor/internal/handler"
	"socialmonitor/internal/logger"
	gormrepository "socialmonitor/internal/repository/gorm"
	"socialmonitor/internal/scheduler"

	_ "socialmonitor/docs"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("SMM_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}
	envOnly := false
	if raw := os.Getenv("SMM_ENV_ONLY"); raw != "" {
		envOnly = strings.EqualFold(raw, "true") || raw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log, cfg.Data.Dir)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	monitorDB, err := db.Open(cfg.Data.Dir, db.MonitorDBFile)
	if err != nil {
		log.Fatal("open monitor db failed", zap.Error(err))
	}
	defer db.Close(monitorDB)
	cookieDB, err := db.Open(cfg.Data.Dir, db.CookieDBFile)
	if err != nil {
		log.Fatal("open cookie db failed", zap.Error(err))
	}
	defer db.Close(cookieDB)

	if err := db.AutoMigrate(monitorDB); err != nil {
		log.Fatal("auto-migrate failed", zap.Error(err))
	}
	if err := db.AutoMigrateCookies(cookieDB); err != nil {
		log.Fatal("cookie auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(monitorDB.Gorm)
	if err := store.SeedDefaults(context.Background(), cfg.Schedule.Time, cfg.Schedule.Enabled); err != nil {
		log.Fatal("seed defaults failed", zap.Error(err))
	}
	cookies := credential.New(cookieDB.Gorm, log)

	crawlers := crawler.Registry{}
	for _, c := range []crawler.Crawler{
		crawler.NewWeibo(crawler.Options{
			Cookies:  cookies,
			Fallback: cfg.Weibo.Cookie,
			Delay:    cfg.Weibo.Delay,
			BaseURL:  cfg.Weibo.BaseURL,
			Logger:   log,
		}),
		crawler.NewXiaohongshu(crawler.Options{
			Cookies:  cookies,
			Fallback: cfg.Xiaohongshu.Cookie,
			Delay:    cfg.Xiaohongshu.Delay,
			BaseURL:  cfg.Xiaohongshu.BaseURL,
			Logger:   log,
		}),
		crawler.NewDouyin(crawler.Options{
			Cookies:  cookies,
			Fallback: cfg.Douyin.Cookie,
			Delay:    cfg.Douyin.Delay,
			BaseURL:  cfg.Douyin.BaseURL,
			Logger:   log,
		}),
	} {
		crawlers[c.PlatformCode()] = c
	}

	sched := scheduler.New(scheduler.Options{
		Store:    store,
		Crawlers: crawlers,
		Targets: map[string][]string{
			"weibo":       cfg.Weibo.Targets,
			"xiaohongshu": cfg.Xiaohongshu.Targets,
			"douyin":      cfg.Douyin.Targets,
		},
		Logger: log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Schedule.Enabled {
		if err := sched.Start(ctx); err != nil {
			log.Fatal("scheduler start failed", zap.Error(err))
		}
		defer sched.Stop()
	}

	cronRunner := cronrunner.New(log, ctx)
	retention := time.Duration(cfg.Housekeeping.TaskLogRetention) * 24 * time.Hour
	_, err = cronRunner.Add(cfg.Housekeeping.TaskLogPrune, func(ctx context.Context) {
		n, err := store.PruneTaskLogs(ctx, time.Now().Add(-retention))
		if err != nil {
			log.Warn("task log prune failed", zap.Error(err))
			return
		}
		if n > 0 {
			log.Info("pruned task logs", zap.Int64("count", n))
		}
	})
	if err != nil {
		log.Warn("cron register task log prune failed", zap.Error(err))
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{MonitorDB: monitorDB.Gorm, CookieDB: cookieDB.Gorm}
	healthHandler.Register(engine)
	(&handler.PlatformHandler{Store: store, Logger: log}).Register(engine)
	(&handler.AccountHandler{Store: store, Logger: log}).Register(engine)
	(&handler.RecordHandler{Store: store, Logger: log}).Register(engine)
	(&handler.CookieHandler{Cookies: cookies, Logger: log}).Register(engine)
	(&handler.TaskHandler{Store: store, Sched: sched, Logger: log}).Register(engine)

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
