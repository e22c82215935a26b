package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server ServerConfig
	Limits LimitsConfig
	Log    LogConfig
	Proxy  ProxyConfig
	Auth   AuthConfig
	DB     DBConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ClientURL    string
	MockPrefix   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// IsDev reports whether the server runs in development mode.
func (s ServerConfig) IsDev() bool {
	return s.Env == "development"
}

// AllowedOrigins lists the CORS origins for the UI.
func (s ServerConfig) AllowedOrigins() []string {
	if !s.IsDev() {
		return []string{s.ClientURL}
	}
	return []string{s.ClientURL, "http://localhost:5173", "http://127.0.0.1:5173"}
}

type LimitsConfig struct {
	MaxEndpoints    int
	MaxRequestLog   int
	MaxBodyBytes    int64
	MaxCapturedBody int
}

type LogConfig struct {
	Level  string
	Format string
}

type ProxyConfig struct {
	Timeout      time.Duration
	AllowPrivate bool
}

type AuthConfig struct {
	SecretKey string
	TokenTTL  time.Duration
}

// Enabled reports whether the management API requires a bearer token.
func (a AuthConfig) Enabled() bool {
	return a.SecretKey != ""
}

type DBConfig struct {
	Host    string
	Port    int
	User    string
	Pass    string
	Name    string
	SSLMode string
	DSN     string
}

// Enabled reports whether the request archive database is configured.
func (d DBConfig) Enabled() bool {
	return d.Host != ""
}

func LoadConfig() (*Config, error) {
	maxEndpoints, err := intEnv("MAX_ENDPOINTS", 100)
	if err != nil {
		return nil, err
	}
	maxRequestLog, err := intEnv("MAX_REQUEST_LOG", 1000)
	if err != nil {
		return nil, err
	}
	maxBodyBytes, err := intEnv("MAX_BODY_BYTES", 1<<20)
	if err != nil {
		return nil, err
	}
	maxCapturedBody, err := intEnv("MAX_CAPTURED_BODY", 10000)
	if err != nil {
		return nil, err
	}
	if maxEndpoints <= 0 || maxRequestLog <= 0 || maxBodyBytes <= 0 || maxCapturedBody <= 0 {
		return nil, fmt.Errorf("limits must be positive")
	}

	proxyTimeoutMs, err := intEnv("PROXY_TIMEOUT_MS", 10000)
	if err != nil {
		return nil, err
	}
	allowPrivate, err := boolEnv("PROXY_ALLOW_PRIVATE", true)
	if err != nil {
		return nil, err
	}

	tokenTTL := 24 * time.Hour
	if v := os.Getenv("ADMIN_TOKEN_TTL"); v != "" {
		tokenTTL, err = time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TOKEN_TTL: %v", err)
		}
	}

	mockPrefix := "/" + strings.Trim(stringEnv("MOCK_PREFIX", "/mock"), "/")
	if mockPrefix == "/" {
		return nil, fmt.Errorf("invalid MOCK_PREFIX: must not be the root path")
	}

	serverConfig := ServerConfig{
		Port:         stringEnv("PORT", "3001"),
		Env:          stringEnv("APP_ENV", "development"),
		ClientURL:    stringEnv("CLIENT_URL", "http://localhost:5173"),
		MockPrefix:   mockPrefix,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second, // longer than the maximum mock delay
		IdleTimeout:  60 * time.Second,
	}

	dbConfig := DBConfig{
		Host:    os.Getenv("DB_HOST"),
		User:    os.Getenv("DB_USER"),
		Pass:    os.Getenv("DB_PASS"),
		Name:    os.Getenv("DB_NAME"),
		SSLMode: stringEnv("DB_SSLMODE", "disable"),
	}
	if dbConfig.Enabled() {
		dbConfig.Port, err = intEnv("DB_PORT", 5432)
		if err != nil {
			return nil, err
		}
		dbConfig.DSN = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			dbConfig.Host, dbConfig.Port, dbConfig.User, dbConfig.Pass, dbConfig.Name, dbConfig.SSLMode,
		)
	}

	return &Config{
		Server: serverConfig,
		Limits: LimitsConfig{
			MaxEndpoints:    maxEndpoints,
			MaxRequestLog:   maxRequestLog,
			MaxBodyBytes:    int64(maxBodyBytes),
			MaxCapturedBody: maxCapturedBody,
		},
		Log: LogConfig{
			Level:  stringEnv("LOG_LEVEL", "info"),
			Format: stringEnv("LOG_FORMAT", "console"),
		},
		Proxy: ProxyConfig{
			Timeout:      time.Duration(proxyTimeoutMs) * time.Millisecond,
			AllowPrivate: allowPrivate,
		},
		Auth: AuthConfig{
			SecretKey: os.Getenv("ADMIN_JWT_SECRET"),
			TokenTTL:  tokenTTL,
		},
		DB: dbConfig,
	}, nil
}

func stringEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", key, err)
	}
	return n, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %v", key, err)
	}
	return b, nil
}
