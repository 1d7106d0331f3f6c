package temporalx

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/api/workflowservice/v1"
	temporalsdkclient "go.temporal.io/sdk/client"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/yungbote/pathfinder-backend/internal/platform/envutil"
	"github.com/yungbote/pathfinder-backend/internal/platform/logger"
)

// retryPolicy bounds a retry loop: exponential sleeps from base up to max,
// giving up once wait has elapsed.
type retryPolicy struct {
	base, max, wait time.Duration
}

// policyFromEnv reads <prefix>_MAX_WAIT_SECONDS, <prefix>_BACKOFF and
// <prefix>_BACKOFF_MAX.
func policyFromEnv(prefix string, wait time.Duration) retryPolicy {
	return retryPolicy{
		base: envutil.Duration(prefix+"_BACKOFF", 250*time.Millisecond),
		max:  envutil.Duration(prefix+"_BACKOFF_MAX", 5*time.Second),
		wait: envutil.Seconds(prefix+"_MAX_WAIT_SECONDS", wait),
	}
}

// run calls fn until it succeeds, returns a permanent error, or the policy
// runs out. fn reports whether its error is worth another attempt.
func (p retryPolicy) run(ctx context.Context, fn func(attempt int) (retry bool, err error)) error {
	deadline := time.Now().Add(p.wait)
	for attempt := 1; ; attempt++ {
		retry, err := fn(attempt)
		if err == nil || !retry || p.wait <= 0 || time.Now().After(deadline) {
			return err
		}
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(clampBackoff(p.base, p.max, attempt)):
		}
	}
}

func (c Config) clientOptions(log *logger.Logger, withNamespace bool) (temporalsdkclient.Options, error) {
	opts := temporalsdkclient.Options{HostPort: c.Address, Logger: log}
	if withNamespace {
		opts.Namespace = c.Namespace
	}
	if c.useTLS() {
		tlsCfg, err := loadTLSConfig(c)
		if err != nil {
			return opts, err
		}
		opts.ConnectionOptions.TLS = tlsCfg
	}
	return opts, nil
}

// NewClient dials Temporal, retrying for TEMPORAL_DIAL_MAX_WAIT_SECONDS. It
// returns a nil client when no address is configured.
func NewClient(ctx context.Context, log *logger.Logger, cfg Config) (temporalsdkclient.Client, error) {
	if !cfg.Enabled() {
		if log != nil {
			log.Warn("TEMPORAL_ADDRESS not set; Temporal disabled")
		}
		return nil, nil
	}
	opts, err := cfg.clientOptions(log, true)
	if err != nil {
		return nil, err
	}

	dialTimeout := envutil.Seconds("TEMPORAL_DIAL_TIMEOUT_SECONDS", 5*time.Second)
	var c temporalsdkclient.Client
	err = policyFromEnv("TEMPORAL_DIAL", 60*time.Second).run(ctx, func(attempt int) (bool, error) {
		dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
		defer cancel()
		dialed, err := temporalsdkclient.DialContext(dialCtx, opts)
		if err != nil {
			if log != nil {
				log.Warn("Temporal not reachable", "address", cfg.Address, "attempt", attempt, "error", err)
			}
			return true, err
		}
		c = dialed
		if log != nil {
			log.Info("Connected to Temporal", "address", cfg.Address, "namespace", cfg.Namespace, "attempts", attempt)
		}
		return false, nil
	})
	if err != nil {
		return nil, fmt.Errorf("temporal dial failed (address=%s namespace=%s): %w", cfg.Address, cfg.Namespace, err)
	}

	if cfg.AutoRegisterNamespace {
		if err := EnsureNamespace(ctx, c, cfg, log); err != nil {
			c.Close()
			return nil, err
		}
	}
	return c, nil
}

// EnsureNamespace registers cfg.Namespace when it does not exist yet. Managed
// Temporal namespaces are provisioned upfront and never reach the register
// call.
func EnsureNamespace(ctx context.Context, c temporalsdkclient.Client, cfg Config, log *logger.Logger) error {
	namespace := strings.TrimSpace(cfg.Namespace)
	if c == nil || !cfg.Enabled() || namespace == "" {
		return nil
	}

	policy := policyFromEnv("TEMPORAL_NAMESPACE_ENSURE", 10*time.Second)
	if policy.wait <= 0 {
		policy.wait = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, policy.wait)
	defer cancel()

	// No namespace header, so this works before the namespace exists.
	opts, err := cfg.clientOptions(log, false)
	if err != nil {
		return err
	}
	nsClient, err := temporalsdkclient.NewNamespaceClient(opts)
	if err != nil {
		return fmt.Errorf("temporal namespace client: %w", err)
	}
	defer nsClient.Close()

	retention := namespaceRetention()
	return policy.run(ctx, func(attempt int) (bool, error) {
		_, err := nsClient.Describe(ctx, namespace)
		var missing *serviceerror.NamespaceNotFound
		switch {
		case err == nil:
			return false, nil
		case !errors.As(err, &missing):
			return isRetryableRPC(err), fmt.Errorf("describe namespace %s: %w", namespace, err)
		}

		err = nsClient.Register(ctx, &workflowservice.RegisterNamespaceRequest{
			Namespace:                        namespace,
			Description:                      "pathfinder auto-registered namespace",
			WorkflowExecutionRetentionPeriod: durationpb.New(retention),
		})
		var exists *serviceerror.NamespaceAlreadyExists
		switch {
		case err == nil:
			if log != nil {
				log.Info("Registered Temporal namespace", "namespace", namespace, "retention", retention)
			}
			return false, nil
		case errors.As(err, &exists):
			return false, nil
		default:
			return isRetryableRPC(err), fmt.Errorf("register namespace %s: %w", namespace, err)
		}
	})
}

// namespaceRetention reads TEMPORAL_NAMESPACE_RETENTION_DAYS, clamped to
// [1, 365] days.
func namespaceRetention() time.Duration {
	days := envutil.Int("TEMPORAL_NAMESPACE_RETENTION_DAYS", 7)
	switch {
	case days < 1:
		days = 7
	case days > 365:
		days = 365
	}
	return time.Duration(days) * 24 * time.Hour
}

func loadTLSConfig(cfg Config) (*tls.Config, error) {
	if cfg.ClientCertPath == "" || cfg.ClientKeyPath == "" {
		return nil, fmt.Errorf("temporal mTLS needs both TEMPORAL_CLIENT_CERT_PATH and TEMPORAL_CLIENT_KEY_PATH")
	}
	cert, err := tls.LoadX509KeyPair(cfg.ClientCertPath, cfg.ClientKeyPath)
	if err != nil {
		return nil, fmt.Errorf("temporal tls: load client cert/key: %w", err)
	}
	tlsCfg := &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
	if cfg.ClientCAPath == "" {
		return tlsCfg, nil
	}
	pem, err := os.ReadFile(cfg.ClientCAPath)
	if err != nil {
		return nil, fmt.Errorf("temporal tls: read CA: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("temporal tls: no certificates in %s", cfg.ClientCAPath)
	}
	tlsCfg.RootCAs = pool
	return tlsCfg, nil
}

func clampBackoff(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	sleep := base
	for i := 1; i < attempt; i++ {
		sleep *= 2
		if max > 0 && sleep >= max {
			return max
		}
	}
	if max > 0 && sleep > max {
		return max
	}
	return sleep
}

func isRetryableRPC(err error) bool {
	if err == nil {
		return false
	}
	s, ok := status.FromError(err)
	if !ok {
		return errors.Is(err, context.DeadlineExceeded)
	}
	switch s.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return true
	default:
		return false
	}
}
