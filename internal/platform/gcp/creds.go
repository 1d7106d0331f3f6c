package gcp

import (
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// clientOptions builds storage client options. Credentials may be inline
// service account JSON or a key file path; empty means application default
// credentials. The emulator never authenticates.
func (c StorageConfig) clientOptions() []option.ClientOption {
	if c.IsEmulator() {
		return []option.ClientOption{option.WithoutAuthentication()}
	}
	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	switch creds := strings.TrimSpace(c.Credentials); {
	case creds == "":
	case strings.HasPrefix(creds, "{"):
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	default:
		opts = append(opts, option.WithCredentialsFile(creds))
	}
	return opts
}
