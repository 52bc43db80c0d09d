package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"LyricStage/model"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	Port         string
	PollInterval time.Duration
	DefaultScene string // phrase / flowing
	DefaultSong  string

	// 场景布局
	FontSize       float64
	BaseY          float64
	AvailableWidth float64

	// 时间轴来源
	TimelineDir     string
	WatchTimelines  bool
	AnalysisURL     string // 为空时不请求分析服务
	AnalysisTimeout time.Duration
	CacheTTL        time.Duration

	AllowedOrigins []string

	// Redis配置
	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MinIO配置
	MinioEnabled   bool
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioRegion    string

	// 日志配置
	LogLevel      string
	LogPath       string
	LogMaxSize    int
	LogMaxBackups int
	LogMaxAge     int
	LogCompress   bool
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

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("50ms", "24h").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}
	return FromEnv()
}

// FromEnv builds the configuration from the current environment only.
func FromEnv() *Config {
	return &Config{
		Port:         getEnv("PORT", "8080"),
		PollInterval: getEnvDuration("POLL_INTERVAL", 50*time.Millisecond),
		DefaultScene: getEnv("DEFAULT_SCENE", "phrase"),
		DefaultSong:  getEnv("DEFAULT_SONG", model.DefaultSongID),

		FontSize:       getEnvFloat("FONT_SIZE", 0.4),
		BaseY:          getEnvFloat("BASE_Y", 2.0),
		AvailableWidth: getEnvFloat("AVAILABLE_WIDTH", 12.0),

		TimelineDir:     getEnv("TIMELINE_DIR", "timelines"),
		WatchTimelines:  getEnvBool("WATCH_TIMELINES", true),
		AnalysisURL:     getEnv("ANALYSIS_URL", ""),
		AnalysisTimeout: getEnvDuration("ANALYSIS_TIMEOUT", 10*time.Second),
		CacheTTL:        getEnvDuration("TIMELINE_CACHE_TTL", 24*time.Hour),

		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"*"}),

		RedisEnabled:  getEnvBool("REDIS_ENABLED", false),
		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""), // 默认无密码
		RedisDB:       getEnvInt("REDIS_DB", 0),     // 默认使用0号数据库

		MinioEnabled:   getEnvBool("MINIO_ENABLED", false),
		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "lyricstage"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogPath:       getEnv("LOG_PATH", ""),
		LogMaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 3),
		LogMaxAge:     getEnvInt("LOG_MAX_AGE", 28),
		LogCompress:   getEnvBool("LOG_COMPRESS", true),
	}
}
