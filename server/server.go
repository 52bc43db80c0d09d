package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"LyricStage/cache"
	"LyricStage/config"
	"LyricStage/core/scene"
	"LyricStage/core/session"
	"LyricStage/core/stage"
	"LyricStage/core/timeline"
	"LyricStage/logger"
	"LyricStage/storage"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// StageConfig 由配置生成舞台参数，未知的场景名回退到 phrase
func StageConfig(cfg *config.Config) stage.Config {
	sc := stage.DefaultConfig()
	sc.PollInterval = cfg.PollInterval
	sc.SceneConfig = scene.Config{
		FontSize:       cfg.FontSize,
		BaseY:          cfg.BaseY,
		AvailableWidth: cfg.AvailableWidth,
	}
	mode, err := scene.ParseMode(cfg.DefaultScene)
	if err != nil {
		logger.Warn("未知的默认场景，使用 phrase", logger.String("scene", cfg.DefaultScene))
		mode = scene.ModePhrase
	}
	sc.Scene = mode
	return sc
}

// Sources 时间轴来源：本地目录优先，远端来源（MinIO、分析服务）外面包一层 Redis 缓存
type Sources struct {
	Source timeline.Source
	Files  *timeline.FileSource
	Store  *storage.TimelineStore
}

// BuildSources 根据配置组装时间轴来源。Redis 和 MinIO 连接失败只记录日志。
func BuildSources(ctx context.Context, cfg *config.Config) *Sources {
	s := &Sources{Files: timeline.NewFileSource(cfg.TimelineDir)}

	var remote timeline.Chain
	if cfg.MinioEnabled {
		store, err := storage.NewTimelineStore(ctx, cfg)
		if err != nil {
			logger.Warn("MinIO 不可用，跳过", logger.ErrorField(err))
		} else {
			s.Store = store
			remote = append(remote, store)
		}
	}
	if cfg.AnalysisURL != "" {
		client := timeline.NewHTTPSource(cfg.AnalysisURL)
		client.SetTimeout(cfg.AnalysisTimeout)
		remote = append(remote, client)
	}

	chain := timeline.Chain{s.Files}
	if len(remote) > 0 {
		var src timeline.Source = remote
		if cfg.RedisEnabled {
			if err := cache.ConnectRedis(cfg); err != nil {
				logger.Warn("Redis 不可用，不使用缓存", logger.ErrorField(err))
			} else {
				src = timeline.NewCachedSource(cache.NewTimelineCache(nil), remote, cfg.CacheTTL)
			}
		}
		chain = append(chain, src)
	}
	s.Source = chain
	return s
}

// NewRouter 创建路由
func NewRouter(h *Handler, allowedOrigins []string) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", h.HealthHandler).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/songs", h.ListSongsHandler).Methods(http.MethodGet)
	api.HandleFunc("/songs/{id}/timeline", h.GetTimelineHandler).Methods(http.MethodGet)

	api.HandleFunc("/sessions", h.ListSessionsHandler).Methods(http.MethodGet)
	api.HandleFunc("/sessions", h.CreateSessionHandler).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}", h.GetSessionHandler).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", h.DeleteSessionHandler).Methods(http.MethodDelete)
	api.HandleFunc("/sessions/{id}/{action:play|pause|stop}", h.ControlHandler).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/seek", h.SeekHandler).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/scene", h.SceneHandler).Methods(http.MethodPut, http.MethodPost)

	router.HandleFunc("/ws/sessions/{id}", h.WebSocketHandler).Methods(http.MethodGet)

	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         86400,
	}).Handler(router)
}

// Start initializes and starts the HTTP server, blocking until SIGINT/SIGTERM.
func Start(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sources := BuildSources(ctx, cfg)
	defer cache.CloseRedis()

	if cfg.WatchTimelines {
		go func() {
			if err := sources.Files.Watch(ctx); err != nil {
				logger.Warn("时间轴目录监听失败", logger.ErrorField(err))
			}
		}()
	}

	hub := session.NewHub()
	go hub.Run()
	defer hub.Stop()

	manager := session.NewManager(sources.Source, hub, StageConfig(cfg))
	handler := NewHandler(manager, sources.Source, cfg.DefaultSong)

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     NewRouter(handler, cfg.AllowedOrigins),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	// 创建一个通道来接收操作系统信号
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting",
			logger.String("addr", server.Addr),
			logger.String("timelineDir", cfg.TimelineDir),
			logger.Duration("pollInterval", cfg.PollInterval))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-stop:
		logger.Info("Shutting down server...")
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	}

	manager.CloseAll()

	// 创建一个5秒超时的上下文
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server stopped")
	return nil
}
