// Package config centralizes how VaultForm reads its settings. Values come
// from defaults, an optional vaultform.yaml file and VAULTFORM_* environment
// variables, in increasing order of precedence.
package config

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Client configures the upload CLI.
type Client struct {
	UploadURL string
	Token     string
	Timeout   time.Duration
	UserAgent string
	LogLevel  string
}

// Server configures the development storage API and its worker.
type Server struct {
	Address           string
	MaxFileSize       int64
	AllowedExtensions []string
	SigningSecret     []byte
	GeneratedSecret   bool
	TokenTTL          time.Duration
	LogLevel          string

	// Blob storage: "memory" or "s3".
	StorageBackend string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3Region       string
	S3UseSSL       bool
	Bucket         string

	// Metadata lives in Postgres when DatabaseURL is set, in memory otherwise.
	DatabaseURL string

	// Jobs go through Redis (asynq) when RedisAddr is set, otherwise they run
	// in process.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Workers       int
}

const (
	defaultUploadPath   = "/api/storage/upload/direct/start/"
	defaultAddress      = ":8080"
	defaultMaxFileSize  = 25 << 20 // 25 MiB
	defaultAllowedExts  = ".png,.jpg,.jpeg,.pdf,.doc,.docx,.xls,.xlsx,.ppt,.pptx,.txt"
	defaultTokenTTL     = 24 * time.Hour
	defaultWorkerCount  = 2
	defaultClientTimeout = 2 * time.Minute
)

// UploadPath is where the storage API accepts uploads.
const UploadPath = defaultUploadPath

func newViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("VAULTFORM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("vaultform")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.vaultform")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		log.Debug().Msg("config file not found, using environment variables and defaults")
	} else {
		log.Debug().Str("file", v.ConfigFileUsed()).Msg("using config file")
	}
	return v, nil
}

// LoadClient reads the CLI configuration. configFile may be empty to search
// the default locations.
func LoadClient(configFile string) (*Client, error) {
	v, err := newViper(configFile)
	if err != nil {
		return nil, err
	}
	v.SetDefault("upload_url", "http://localhost:8080"+defaultUploadPath)
	v.SetDefault("timeout", defaultClientTimeout)
	v.SetDefault("user_agent", "vaultform/1.0")
	v.SetDefault("log_level", "warn")
	v.SetDefault("token", "")

	cfg := &Client{
		UploadURL: v.GetString("upload_url"),
		Token:     v.GetString("token"),
		Timeout:   v.GetDuration("timeout"),
		UserAgent: v.GetString("user_agent"),
		LogLevel:  v.GetString("log_level"),
	}
	if cfg.UploadURL == "" {
		return nil, errors.New("upload_url must not be empty")
	}
	if cfg.Timeout < 0 {
		cfg.Timeout = 0
	}
	return cfg, nil
}

// LoadServer reads the storage API configuration.
func LoadServer(configFile string) (*Server, error) {
	v, err := newViper(configFile)
	if err != nil {
		return nil, err
	}
	v.SetDefault("address", defaultAddress)
	v.SetDefault("max_file_bytes", defaultMaxFileSize)
	v.SetDefault("allowed_extensions", defaultAllowedExts)
	v.SetDefault("signing_secret", "")
	v.SetDefault("token_ttl", defaultTokenTTL)
	v.SetDefault("log_level", "info")
	v.SetDefault("storage", "memory")
	v.SetDefault("s3.endpoint", "localhost:9000")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.use_ssl", false)
	v.SetDefault("s3.bucket", "vaultform-uploads")
	v.SetDefault("database_url", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("workers", defaultWorkerCount)

	cfg := &Server{
		Address:           v.GetString("address"),
		MaxFileSize:       v.GetInt64("max_file_bytes"),
		AllowedExtensions: parseList(v.Get("allowed_extensions")),
		SigningSecret:     []byte(v.GetString("signing_secret")),
		TokenTTL:          v.GetDuration("token_ttl"),
		LogLevel:          v.GetString("log_level"),
		StorageBackend:    strings.ToLower(v.GetString("storage")),
		S3Endpoint:        v.GetString("s3.endpoint"),
		S3AccessKey:       v.GetString("s3.access_key"),
		S3SecretKey:       v.GetString("s3.secret_key"),
		S3Region:          v.GetString("s3.region"),
		S3UseSSL:          v.GetBool("s3.use_ssl"),
		Bucket:            v.GetString("s3.bucket"),
		DatabaseURL:       v.GetString("database_url"),
		RedisAddr:         v.GetString("redis.addr"),
		RedisPassword:     v.GetString("redis.password"),
		RedisDB:           v.GetInt("redis.db"),
		Workers:           v.GetInt("workers"),
	}
	if len(cfg.SigningSecret) == 0 {
		cfg.SigningSecret = randomSecret()
		cfg.GeneratedSecret = true
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultMaxFileSize
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkerCount
	}
	switch cfg.StorageBackend {
	case "memory", "s3":
	default:
		return nil, fmt.Errorf("unknown storage backend %q (want memory or s3)", cfg.StorageBackend)
	}
	return cfg, nil
}

// parseList accepts either a YAML list or a comma separated string.
func parseList(raw any) []string {
	var items []string
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			items = append(items, fmt.Sprint(item))
		}
	case []string:
		items = v
	case string:
		items = strings.Split(v, ",")
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.ToLower(strings.TrimSpace(item))
		if item == "" {
			continue
		}
		if !strings.HasPrefix(item, ".") {
			item = "." + item
		}
		out = append(out, item)
	}
	return out
}

func randomSecret() []byte {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return []byte("vaultform-fallback-secret")
	}
	return buf
}
