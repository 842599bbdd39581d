package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"VoxTA/cache"
	"VoxTA/config"
	"VoxTA/core/asr"
	"VoxTA/core/course"
	"VoxTA/core/replace"
	"VoxTA/core/synth"
	"VoxTA/core/task"
	"VoxTA/core/tts"
	"VoxTA/core/voice"
	"VoxTA/db"
	"VoxTA/logger"
	"VoxTA/model"
	"VoxTA/repository"
	"VoxTA/storage"

	"github.com/gorilla/mux"
)

// NewRouter wires all API routes onto a gorilla/mux router.
func NewRouter(h *APIHandler) *mux.Router {
	router := mux.NewRouter()

	// CORS中间件
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Range")
			w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// 用户认证
	router.HandleFunc("/api/auth/register", h.RegisterHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/login", h.LoginHandler).Methods(http.MethodPost)

	// 文本转语音
	router.HandleFunc("/api/tts/synthesize", h.AuthMiddleware(h.SynthesizeHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/tts/preview", h.AuthMiddleware(h.PreviewHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/tts/tasks", h.ListTasksHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tts/status/{task_id}", h.TaskStatusHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tts/download/{task_id}", h.DownloadHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tts/synthesize/stream", h.StreamSynthesizeHandler)

	// 声音样本
	router.HandleFunc("/api/voice/upload", h.AuthMiddleware(h.UploadVoiceHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/voice/list", h.ListVoicesHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/voice/{voice_id}", h.GetVoiceHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/voice/{voice_id}/audio", h.VoiceAudioHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/voice/{voice_id}", h.AuthMiddleware(h.DeleteVoiceHandler)).Methods(http.MethodDelete)

	// 课件配音
	router.HandleFunc("/api/course/upload", h.AuthMiddleware(h.UploadCoursewareHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/course/extract/{file_id}", h.ExtractCoursewareHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/course/synthesize/{file_id}", h.AuthMiddleware(h.SynthesizeCoursewareHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/course/status/{task_id}", h.TaskStatusHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/course/download/{task_id}", h.DownloadHandler).Methods(http.MethodGet)

	// 换声
	router.HandleFunc("/api/replace/upload", h.AuthMiddleware(h.UploadMediaHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/replace/transcribe/{file_id}", h.AuthMiddleware(h.TranscribeHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/replace/process/{task_id}", h.AuthMiddleware(h.ProcessReplaceHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/replace/status/{task_id}", h.TaskStatusHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/replace/subtitles/{task_id}", h.SubtitlesHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/replace/download/{task_id}", h.DownloadHandler).Methods(http.MethodGet)

	return router
}

// Start initializes dependencies and runs the HTTP server until interrupted.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.DefaultConfig())
	defer logger.Sync()

	// 对象存储
	if err := storage.InitMinio(cfg); err != nil {
		logger.Fatal("MinIO初始化失败", logger.ErrorField(err))
	}

	// 数据库
	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("数据库连接失败", logger.ErrorField(err))
	}
	defer db.DB.Close()

	if err := db.InitDB(); err != nil {
		logger.Fatal("数据库初始化失败", logger.ErrorField(err))
	}

	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Fatal("GORM连接失败", logger.ErrorField(err))
	}
	defer db.CloseGormDB()

	if err := db.AutoMigrateModels(&model.CoursewareFile{}, &model.MediaFile{}); err != nil {
		logger.Fatal("GORM迁移失败", logger.ErrorField(err))
	}

	// Redis不可用时降级为直接回源数据库
	if err := cache.ConnectRedis(cfg); err != nil {
		logger.Warn("Redis连接失败，任务快照缓存不可用", logger.ErrorField(err))
	} else {
		defer cache.CloseRedis()
	}

	// 仓库
	taskRepo := repository.NewMySQLTaskRepository()
	voiceRepo := repository.NewMySQLVoiceRepository()
	userRepo := repository.NewMySQLUserRepository()
	coursewareRepo := repository.NewGormCoursewareRepository(db.GormDB)
	mediaRepo := repository.NewGormMediaRepository(db.GormDB)

	// 引擎：配置了外部命令就用命令引擎，否则内置引擎
	var engine synth.Synthesizer
	if cfg.TTSEngineCmd != "" {
		engine = synth.NewCommandEngine(cfg.TTSEngineCmd, cfg.SampleRate)
		logger.Info("使用外部合成引擎", logger.String("cmd", cfg.TTSEngineCmd))
	} else {
		engine = synth.NewBuiltinEngine(cfg.SampleRate)
		logger.Info("使用内置合成引擎")
	}

	probe := asr.NewMediaProbe(cfg.FFmpegPath)
	transcriber := asr.NewDurationTranscriber(probe)
	artifacts := storage.NewArtifactStore(cfg)

	taskTimeout := time.Duration(cfg.TaskTimeout) * time.Second
	taskStore := task.NewStore(taskRepo)
	runner := task.NewRunner(taskStore, cfg.WorkerCount, taskTimeout)
	defer runner.Stop()

	// 服务
	voiceService := voice.NewService(voiceRepo, artifacts, voice.NewProbeExtractor(probe), taskTimeout)
	ttsService := tts.NewService(cfg, taskStore, runner, voiceService, engine, artifacts)
	courseService := course.NewService(coursewareRepo, taskStore, runner, voiceService, course.NewNarrator(engine), artifacts)
	replaceService := replace.NewService(cfg, mediaRepo, taskStore, runner, voiceService, engine, transcriber, probe, artifacts)

	apiHandler := NewAPIHandler(cfg, userRepo, ttsService, voiceService, courseService, replaceService)

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      NewRouter(apiHandler),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("服务器启动", logger.String("addr", cfg.ServerAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("服务器启动失败", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("服务器强制关闭", logger.ErrorField(err))
	}

	logger.Info("服务器已停止")
}
