package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/pathfinder-backend/internal/data/db"
	"github.com/yungbote/pathfinder-backend/internal/platform/envutil"
	"github.com/yungbote/pathfinder-backend/internal/platform/gcp"
	"github.com/yungbote/pathfinder-backend/internal/platform/logger"
	"github.com/yungbote/pathfinder-backend/internal/platform/openai"
	"github.com/yungbote/pathfinder-backend/internal/platform/redisx"
	"github.com/yungbote/pathfinder-backend/internal/temporalx"
)

const defaultJWTSecret = "defaultsecret"

type Config struct {
	Env            string   `yaml:"env"`
	ServiceName    string   `yaml:"service_name"`
	Version        string   `yaml:"version"`
	Port           string   `yaml:"port"`
	RunServer      bool     `yaml:"run_server"`
	RunWorker      bool     `yaml:"run_worker"`
	CORSOrigins    []string `yaml:"cors_origins"`
	MetricsEnabled bool     `yaml:"metrics_enabled"`

	Auth     AuthConfig        `yaml:"auth"`
	DB       db.Config         `yaml:"db"`
	Redis    redisx.Config     `yaml:"redis"`
	Ranking  RankingConfig     `yaml:"ranking"`
	OpenAI   openai.Config     `yaml:"openai"`
	Catalog  CatalogConfig     `yaml:"catalog"`
	Storage  gcp.StorageConfig `yaml:"storage"`
	Temporal temporalx.Config  `yaml:"temporal"`
}

type AuthConfig struct {
	JWTSecretKey    string        `yaml:"jwt_secret_key"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
	GoogleClientID  string        `yaml:"google_client_id"`
	AllowedGoogleHD string        `yaml:"allowed_google_hd"`
}

type RankingConfig struct {
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	CacheMaxEntries int64         `yaml:"cache_max_entries"`
	OracleTimeout   time.Duration `yaml:"oracle_timeout"`
	OracleRPS       float64       `yaml:"oracle_rps"`
	OracleBurst     int           `yaml:"oracle_burst"`
	TopN            int           `yaml:"top_n"`
}

type CatalogConfig struct {
	SheetID        string `yaml:"sheet_id"`
	SheetURL       string `yaml:"sheet_url"`
	TagConcurrency int    `yaml:"tag_concurrency"`
}

func (c Config) Production() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "production")
}

func defaultConfig() Config {
	return Config{
		Env:            "development",
		ServiceName:    "pathfinder",
		Port:           "8080",
		RunServer:      true,
		RunWorker:      true,
		MetricsEnabled: true,
		Auth: AuthConfig{
			JWTSecretKey:    defaultJWTSecret,
			AccessTokenTTL:  time.Hour,
			RefreshTokenTTL: 7 * 24 * time.Hour,
		},
		DB: db.Config{
			Driver:          db.DriverPostgres,
			PostgresHost:    "localhost",
			PostgresPort:    "5432",
			PostgresUser:    "postgres",
			PostgresName:    "pathfinder",
			PostgresSSLMode: "disable",
			MaxOpenConns:    20,
			MaxIdleConns:    10,
		},
		Ranking: RankingConfig{
			CacheTTL:        10 * time.Minute,
			CacheMaxEntries: 10_000,
			OracleTimeout:   45 * time.Second,
			OracleRPS:       2,
			OracleBurst:     4,
			TopN:            20,
		},
		OpenAI:   openai.ConfigFromEnv(),
		Catalog:  CatalogConfig{TagConcurrency: 4},
		Temporal: temporalx.LoadConfig(),
	}
}

// LoadConfig starts from defaults, overlays CONFIG_FILE when set, then applies
// environment overrides.
func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := defaultConfig()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
		log.Info("Loaded config file", "path", path)
	}

	applyEnv(&cfg)

	if err := cfg.validate(log); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Env = envutil.String("APP_ENV", cfg.Env)
	cfg.ServiceName = envutil.String("OTEL_SERVICE_NAME", cfg.ServiceName)
	cfg.Version = envutil.String("APP_VERSION", cfg.Version)
	cfg.Port = envutil.String("PORT", cfg.Port)
	cfg.RunServer = envutil.Bool("RUN_SERVER", cfg.RunServer)
	cfg.RunWorker = envutil.Bool("RUN_WORKER", cfg.RunWorker)
	cfg.MetricsEnabled = envutil.Bool("METRICS_ENABLED", cfg.MetricsEnabled)
	if raw := envutil.String("CORS_ORIGINS", ""); raw != "" {
		cfg.CORSOrigins = splitList(raw)
	}

	cfg.Auth.JWTSecretKey = envutil.String("JWT_SECRET_KEY", cfg.Auth.JWTSecretKey)
	cfg.Auth.AccessTokenTTL = envutil.Duration("ACCESS_TOKEN_TTL", cfg.Auth.AccessTokenTTL)
	cfg.Auth.RefreshTokenTTL = envutil.Duration("REFRESH_TOKEN_TTL", cfg.Auth.RefreshTokenTTL)
	cfg.Auth.GoogleClientID = envutil.String("GOOGLE_OIDC_CLIENT_ID", cfg.Auth.GoogleClientID)
	cfg.Auth.AllowedGoogleHD = envutil.String("ALLOWED_GOOGLE_HD", cfg.Auth.AllowedGoogleHD)

	cfg.DB.Driver = envutil.String("DB_DRIVER", cfg.DB.Driver)
	cfg.DB.PostgresHost = envutil.String("POSTGRES_HOST", cfg.DB.PostgresHost)
	cfg.DB.PostgresPort = envutil.String("POSTGRES_PORT", cfg.DB.PostgresPort)
	cfg.DB.PostgresUser = envutil.String("POSTGRES_USER", cfg.DB.PostgresUser)
	cfg.DB.PostgresPassword = envutil.String("POSTGRES_PASSWORD", cfg.DB.PostgresPassword)
	cfg.DB.PostgresName = envutil.String("POSTGRES_NAME", cfg.DB.PostgresName)
	cfg.DB.PostgresSSLMode = envutil.String("POSTGRES_SSLMODE", cfg.DB.PostgresSSLMode)
	cfg.DB.SQLitePath = envutil.String("SQLITE_PATH", cfg.DB.SQLitePath)
	cfg.DB.MaxOpenConns = envutil.Int("DB_MAX_OPEN_CONNS", cfg.DB.MaxOpenConns)
	cfg.DB.MaxIdleConns = envutil.Int("DB_MAX_IDLE_CONNS", cfg.DB.MaxIdleConns)

	cfg.Redis.Addr = envutil.String("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = envutil.String("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = envutil.Int("REDIS_DB", cfg.Redis.DB)

	cfg.Ranking.CacheTTL = envutil.Duration("RANKING_CACHE_TTL_SECONDS", cfg.Ranking.CacheTTL)
	cfg.Ranking.CacheMaxEntries = int64(envutil.Int("RANKING_CACHE_MAX_ENTRIES", int(cfg.Ranking.CacheMaxEntries)))
	cfg.Ranking.OracleTimeout = envutil.Duration("RANKING_ORACLE_TIMEOUT_SECONDS", cfg.Ranking.OracleTimeout)
	cfg.Ranking.OracleRPS = envutil.Float("RANKING_ORACLE_RPS", cfg.Ranking.OracleRPS)
	cfg.Ranking.OracleBurst = envutil.Int("RANKING_ORACLE_BURST", cfg.Ranking.OracleBurst)
	cfg.Ranking.TopN = envutil.Int("RANKING_TOP_N", cfg.Ranking.TopN)

	cfg.OpenAI.APIKey = envutil.String("OPENAI_API_KEY", cfg.OpenAI.APIKey)
	cfg.OpenAI.BaseURL = envutil.String("OPENAI_BASE_URL", cfg.OpenAI.BaseURL)
	cfg.OpenAI.Model = envutil.String("OPENAI_MODEL", cfg.OpenAI.Model)
	cfg.OpenAI.EmbedModel = envutil.String("OPENAI_EMBED_MODEL", cfg.OpenAI.EmbedModel)
	cfg.OpenAI.Timeout = envutil.Seconds("OPENAI_TIMEOUT_SECONDS", cfg.OpenAI.Timeout)

	cfg.Catalog.SheetID = envutil.String("CATALOG_SHEET_ID", cfg.Catalog.SheetID)
	cfg.Catalog.SheetURL = envutil.String("CATALOG_SHEET_URL", cfg.Catalog.SheetURL)
	cfg.Catalog.TagConcurrency = envutil.Int("CATALOG_TAG_CONCURRENCY", cfg.Catalog.TagConcurrency)

	cfg.Temporal.Address = envutil.String("TEMPORAL_ADDRESS", cfg.Temporal.Address)
	cfg.Temporal.Namespace = envutil.String("TEMPORAL_NAMESPACE", cfg.Temporal.Namespace)
	cfg.Temporal.TaskQueue = envutil.String("TEMPORAL_TASK_QUEUE", cfg.Temporal.TaskQueue)
	cfg.Temporal.CatalogSyncCron = envutil.String("CATALOG_SYNC_CRON", cfg.Temporal.CatalogSyncCron)
	cfg.Temporal.CatalogSyncPrune = envutil.Bool("CATALOG_SYNC_PRUNE", cfg.Temporal.CatalogSyncPrune)

	cfg.Storage = cfg.Storage.ApplyEnv()
}

func (c *Config) validate(log *logger.Logger) error {
	if strings.TrimSpace(c.Auth.JWTSecretKey) == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.Auth.JWTSecretKey == defaultJWTSecret {
		if c.Production() {
			return fmt.Errorf("JWT_SECRET_KEY must be set in production")
		}
		log.Warn("Using the default JWT secret; set JWT_SECRET_KEY outside development")
	}
	if c.Ranking.TopN <= 0 {
		c.Ranking.TopN = 20
	}
	if c.Ranking.OracleTimeout <= 0 {
		c.Ranking.OracleTimeout = 45 * time.Second
	}
	if c.Storage.Enabled() {
		if c.Storage.Mode == "" {
			c.Storage.Mode = gcp.StorageModeGCS
			if c.Storage.EmulatorHost != "" {
				c.Storage.Mode = gcp.StorageModeGCSEmulator
			}
		}
		if err := c.Storage.Validate(); err != nil {
			return err
		}
	}
	if !c.RunServer && !c.RunWorker {
		return fmt.Errorf("RUN_SERVER and RUN_WORKER are both disabled")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
