package temporalx

import (
	"strings"

	"github.com/yungbote/pathfinder-backend/internal/platform/envutil"
)

// DefaultCatalogSyncCron runs the catalog sync every six hours.
const DefaultCatalogSyncCron = "0 */6 * * *"

type Config struct {
	Address   string `yaml:"address"`
	Namespace string `yaml:"namespace"`
	TaskQueue string `yaml:"task_queue"`

	ClientCertPath string `yaml:"client_cert_path"`
	ClientKeyPath  string `yaml:"client_key_path"`
	ClientCAPath   string `yaml:"client_ca_path"`

	AutoRegisterNamespace bool `yaml:"auto_register_namespace"`
	WorkerConcurrency     int  `yaml:"worker_concurrency"`

	// CatalogSyncCron schedules the catalog_sync workflow. "off" disables it.
	CatalogSyncCron  string `yaml:"catalog_sync_cron"`
	CatalogSyncPrune bool   `yaml:"catalog_sync_prune"`
}

func LoadConfig() Config {
	return Config{
		Address:   envutil.String("TEMPORAL_ADDRESS", ""),
		Namespace: envutil.String("TEMPORAL_NAMESPACE", "pathfinder"),
		TaskQueue: envutil.String("TEMPORAL_TASK_QUEUE", "pathfinder"),

		ClientCertPath: envutil.String("TEMPORAL_CLIENT_CERT_PATH", ""),
		ClientKeyPath:  envutil.String("TEMPORAL_CLIENT_KEY_PATH", ""),
		ClientCAPath:   envutil.String("TEMPORAL_CLIENT_CA_PATH", ""),

		AutoRegisterNamespace: envutil.Bool("TEMPORAL_AUTO_REGISTER_NAMESPACE", false),
		WorkerConcurrency:     envutil.Int("WORKER_CONCURRENCY", 4),

		CatalogSyncCron:  envutil.String("CATALOG_SYNC_CRON", DefaultCatalogSyncCron),
		CatalogSyncPrune: envutil.Bool("CATALOG_SYNC_PRUNE", false),
	}
}

func (c Config) Enabled() bool { return strings.TrimSpace(c.Address) != "" }

// CronEnabled reports whether the catalog sync should be scheduled.
func (c Config) CronEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(c.CatalogSyncCron))
	return v != "" && v != "off" && v != "disabled"
}

func (c Config) useTLS() bool {
	return c.ClientCertPath != "" || c.ClientKeyPath != "" || c.ClientCAPath != ""
}
