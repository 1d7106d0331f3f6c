package gcp

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/yungbote/pathfinder-backend/internal/platform/envutil"
)

type StorageMode string

const (
	StorageModeGCS         StorageMode = "gcs"
	StorageModeGCSEmulator StorageMode = "gcs_emulator"
)

// StorageConfig describes where review images go. An empty Bucket disables
// image uploads.
type StorageConfig struct {
	Mode          StorageMode `yaml:"mode"`
	Bucket        string      `yaml:"bucket"`
	CDNDomain     string      `yaml:"cdn_domain"`
	EmulatorHost  string      `yaml:"emulator_host"`
	PublicBaseURL string      `yaml:"public_base_url"`

	// Credentials is inline service account JSON or a key file path.
	Credentials string `yaml:"credentials"`
}

func (c StorageConfig) Enabled() bool { return strings.TrimSpace(c.Bucket) != "" }

func (c StorageConfig) IsEmulator() bool { return c.Mode == StorageModeGCSEmulator }

// StorageConfigFromEnv reads REVIEW_IMAGE_BUCKET, REVIEW_IMAGE_CDN_DOMAIN,
// OBJECT_STORAGE_MODE, STORAGE_EMULATOR_HOST and OBJECT_STORAGE_PUBLIC_BASE_URL.
// With no explicit mode, a set emulator host selects the emulator.
func StorageConfigFromEnv() (StorageConfig, error) {
	cfg := StorageConfig{
		Bucket:        strings.TrimSpace(envutil.String("REVIEW_IMAGE_BUCKET", "")),
		CDNDomain:     strings.TrimSpace(envutil.String("REVIEW_IMAGE_CDN_DOMAIN", "")),
		EmulatorHost:  strings.TrimRight(strings.TrimSpace(envutil.String("STORAGE_EMULATOR_HOST", "")), "/"),
		PublicBaseURL: strings.TrimRight(strings.TrimSpace(envutil.String("OBJECT_STORAGE_PUBLIC_BASE_URL", "")), "/"),
		Credentials:   credentialsFromEnv(""),
	}
	switch mode := StorageMode(strings.ToLower(strings.TrimSpace(envutil.String("OBJECT_STORAGE_MODE", "")))); mode {
	case "":
		cfg.Mode = StorageModeGCS
		if cfg.EmulatorHost != "" {
			cfg.Mode = StorageModeGCSEmulator
		}
	case StorageModeGCS, StorageModeGCSEmulator:
		cfg.Mode = mode
	default:
		return cfg, fmt.Errorf("invalid OBJECT_STORAGE_MODE=%q (allowed: %q, %q)", mode, StorageModeGCS, StorageModeGCSEmulator)
	}
	return cfg, cfg.Validate()
}

func (c StorageConfig) Validate() error {
	switch c.Mode {
	case StorageModeGCS:
	case StorageModeGCSEmulator:
		if c.EmulatorHost == "" {
			return fmt.Errorf("OBJECT_STORAGE_MODE=%q requires STORAGE_EMULATOR_HOST", StorageModeGCSEmulator)
		}
		if !absoluteURL(c.EmulatorHost) {
			return fmt.Errorf("invalid STORAGE_EMULATOR_HOST=%q; expected absolute URL like http://fake-gcs:4443", c.EmulatorHost)
		}
	default:
		return fmt.Errorf("invalid storage mode %q", c.Mode)
	}
	if c.PublicBaseURL != "" && !absoluteURL(c.PublicBaseURL) {
		return fmt.Errorf("invalid OBJECT_STORAGE_PUBLIC_BASE_URL=%q; expected absolute URL", c.PublicBaseURL)
	}
	return nil
}

func absoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// credentialsFromEnv prefers GOOGLE_APPLICATION_CREDENTIALS_JSON over
// GOOGLE_APPLICATION_CREDENTIALS.
func credentialsFromEnv(def string) string {
	return envutil.String("GOOGLE_APPLICATION_CREDENTIALS_JSON", envutil.String("GOOGLE_APPLICATION_CREDENTIALS", def))
}

// ApplyEnv overrides c with any storage variables that are set.
func (c StorageConfig) ApplyEnv() StorageConfig {
	c.Mode = StorageMode(strings.ToLower(envutil.String("OBJECT_STORAGE_MODE", string(c.Mode))))
	c.Bucket = envutil.String("REVIEW_IMAGE_BUCKET", c.Bucket)
	c.CDNDomain = envutil.String("REVIEW_IMAGE_CDN_DOMAIN", c.CDNDomain)
	c.EmulatorHost = strings.TrimRight(envutil.String("STORAGE_EMULATOR_HOST", c.EmulatorHost), "/")
	c.PublicBaseURL = strings.TrimRight(envutil.String("OBJECT_STORAGE_PUBLIC_BASE_URL", c.PublicBaseURL), "/")
	c.Credentials = credentialsFromEnv(c.Credentials)
	return c
}
