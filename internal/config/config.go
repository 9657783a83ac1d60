package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"trafficlaw-gateway/internal/usecase"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port       string
	Env        string
	Version    string
	LogLevel   string
	APIKeys    []string
	Model      string
	EmbedModel string

	CacheMaxSize int
	RateLimit    int
	Window       time.Duration
	LimitBackend string
	RedisAddr    string

	TopK         int
	Threshold    float32
	HistoryTurns int

	VectorDBPath     string
	IndexBackend     string
	QdrantHost       string
	QdrantPort       int
	QdrantCollection string

	Profile usecase.Profile
}

// Load reads the optional env files, then the process environment.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		// Missing files are fine: production sets real env vars.
		_ = godotenv.Load(f)
	}

	cfg := &Config{
		Port:             getenv("PORT", "8080"),
		Env:              getenv("APP_ENV", "prod"),
		Version:          getenv("APP_VERSION", "dev"),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		APIKeys:          ParseCredentials(os.Getenv("GEMINI_API_KEY")),
		Model:            getenv("GEMINI_MODEL", "gemini-2.5-flash"),
		EmbedModel:       getenv("EMBEDDING_MODEL", "text-embedding-004"),
		LimitBackend:     strings.ToLower(getenv("RATE_LIMIT_BACKEND", "memory")),
		RedisAddr:        getenv("REDIS_ADDR", "localhost:6379"),
		VectorDBPath:     getenv("VECTOR_DB_PATH", "luat_vector_db.json"),
		IndexBackend:     strings.ToLower(getenv("INDEX_BACKEND", "memory")),
		QdrantHost:       getenv("QDRANT_HOST", "localhost"),
		QdrantCollection: getenv("QDRANT_COLLECTION", "traffic_law"),
	}

	var err error
	if cfg.CacheMaxSize, err = intEnv("CACHE_MAX_SIZE", 100); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = intEnv("RATE_LIMIT", 15); err != nil {
		return nil, err
	}
	windowMs, err := intEnv("WINDOW_MS", 60_000)
	if err != nil {
		return nil, err
	}
	cfg.Window = time.Duration(windowMs) * time.Millisecond
	if cfg.TopK, err = intEnv("RAG_TOP_K", 5); err != nil {
		return nil, err
	}
	threshold, err := floatEnv("RAG_THRESHOLD", 0.6)
	if err != nil {
		return nil, err
	}
	cfg.Threshold = float32(threshold)
	if cfg.HistoryTurns, err = intEnv("HISTORY_TURNS", 5); err != nil {
		return nil, err
	}
	if cfg.QdrantPort, err = intEnv("QDRANT_PORT", 6334); err != nil {
		return nil, err
	}

	cfg.Profile = usecase.DefaultProfile()
	if path := os.Getenv("PROFILE_PATH"); path != "" {
		if cfg.Profile, err = LoadProfile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.CacheMaxSize <= 0 {
		return fmt.Errorf("CACHE_MAX_SIZE must be positive")
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("RATE_LIMIT must be positive")
	}
	if c.Window <= 0 {
		return fmt.Errorf("WINDOW_MS must be positive")
	}
	if c.TopK <= 0 {
		return fmt.Errorf("RAG_TOP_K must be positive")
	}
	if c.HistoryTurns < 0 {
		return fmt.Errorf("HISTORY_TURNS must not be negative")
	}
	switch c.LimitBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("RATE_LIMIT_BACKEND must be memory or redis")
	}
	switch c.IndexBackend {
	case "memory", "qdrant":
	default:
		return fmt.Errorf("INDEX_BACKEND must be memory or qdrant")
	}
	return nil
}

// ParseCredentials splits the comma-separated key list, dropping blanks.
func ParseCredentials(raw string) []string {
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// LoadProfile reads a YAML file over the default profile; keys absent from
// the file keep their defaults.
func LoadProfile(path string) (usecase.Profile, error) {
	profile := usecase.DefaultProfile()
	data, err := os.ReadFile(path)
	if err != nil {
		return profile, fmt.Errorf("read profile: %w", err)
	}
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return profile, fmt.Errorf("parse profile: %w", err)
	}
	if profile.SocialMaxWords <= 0 || profile.DomainMinWords <= 0 {
		return profile, fmt.Errorf("profile word thresholds must be positive")
	}
	return profile, nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func floatEnv(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}
