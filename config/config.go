package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	ServerAddr string
	FFmpegPath string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis配置
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MinIO配置
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	// 合成文本的长度边界（按字符数，不是字节数）
	MinTextLen        int
	MaxTextLen        int
	PreviewMinTextLen int
	PreviewMaxTextLen int

	// 上传限制
	MaxVoiceUploadSize int64
	MaxMediaUploadSize int64

	// 任务执行
	WorkerCount  int
	TaskTimeout  int // 单个任务的超时时间（秒）
	SampleRate   int
	TTSEngineCmd string // 外部合成引擎命令，为空时使用内置引擎

	JWTSecret string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvInt64 gets an environment variable as int64 or returns a default value.
func getEnvInt64(key string, fallback int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// Attempt to load .env file. godotenv.Load() will not override existing env vars.
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),
		FFmpegPath: getEnv("FFMPEG_PATH", "ffmpeg"),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"), // For password, better not to have a hardcoded default
		DBName:     getEnv("DB_NAME", "voxta"),

		// Redis配置，使用默认值
		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", "minioadmin"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "voxta"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		MinTextLen:        getEnvInt("MIN_TEXT_LEN", 1),
		MaxTextLen:        getEnvInt("MAX_TEXT_LEN", 2000),
		PreviewMinTextLen: getEnvInt("PREVIEW_MIN_TEXT_LEN", 5),
		PreviewMaxTextLen: getEnvInt("PREVIEW_MAX_TEXT_LEN", 200),

		MaxVoiceUploadSize: getEnvInt64("MAX_VOICE_UPLOAD_SIZE", 20<<20),  // 20MB
		MaxMediaUploadSize: getEnvInt64("MAX_MEDIA_UPLOAD_SIZE", 200<<20), // 200MB

		WorkerCount:  getEnvInt("WORKER_COUNT", 4),
		TaskTimeout:  getEnvInt("TASK_TIMEOUT", 600),
		SampleRate:   getEnvInt("SAMPLE_RATE", 22050),
		TTSEngineCmd: getEnv("TTS_ENGINE_CMD", ""),

		JWTSecret: getEnv("JWT_SECRET", "voxta-dev-secret"),
	}
}
