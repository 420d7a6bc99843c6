// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/lessonsync/internal/app/dispatch"
	"github.com/dalemusser/lessonsync/internal/app/maintainers/headers"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for lessonsync.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, notify_backend, etc.
//   - Environment variables: LESSONSYNC_MONGO_URI, LESSONSYNC_NOTIFY_BACKEND, etc.
//   - Command-line flags: --mongo_uri, --notify_backend, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "lessonsync", Desc: "MongoDB database name"},

	// Attachment storage
	{Name: "attachments_backend", Default: "none", Desc: "Attachment storage: 'gcs', 's3' or 'none'"},
	{Name: "gcs_bucket", Default: "", Desc: "Google Cloud Storage bucket for attachments"},
	{Name: "s3_region", Default: "", Desc: "AWS region for S3"},
	{Name: "s3_bucket", Default: "", Desc: "S3 bucket for attachments"},

	// Push notifications
	{Name: "notify_backend", Default: "log", Desc: "Push notifications: 'fcm' or 'log'"},
	{Name: "fcm_project_id", Default: "", Desc: "Firebase project id for FCM"},

	// Ingress
	{Name: "ingress_secret", Default: "", Desc: "HS256 secret for /events and /identity bearer tokens (blank disables them)"},

	// Cascade
	{Name: "max_cascade_hops", Default: dispatch.DefaultMaxHops, Desc: "Maximum cascade depth before an event is rejected"},
	{Name: "featured_projection_policy", Default: string(headers.Retain), Desc: "Vacated featured projection: 'retain' or 'delete'"},

	// Change stream worker
	{Name: "change_stream_enabled", Default: true, Desc: "Watch the content collections and dispatch their changes"},
	{Name: "dispatch_retry_attempts", Default: 3, Desc: "Redeliveries of a failed change before it is skipped"},
	{Name: "dispatch_retry_backoff", Default: "1s", Desc: "Pause before each redelivery (e.g., 500ms, 2s)"},
	{Name: "invocation_timeout", Default: "60s", Desc: "Deadline for handling one change event"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles .env files, config files,
// environment variables (WAFFLE_* for core, LESSONSYNC_* for app) and
// command-line flags, merged with precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "LESSONSYNC", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:      appValues.String("mongo_uri"),
		MongoDatabase: appValues.String("mongo_database"),

		AttachmentsBackend: appValues.String("attachments_backend"),
		GCSBucket:          appValues.String("gcs_bucket"),
		S3Region:           appValues.String("s3_region"),
		S3Bucket:           appValues.String("s3_bucket"),

		NotifyBackend: appValues.String("notify_backend"),
		FCMProjectID:  appValues.String("fcm_project_id"),

		IngressSecret: appValues.String("ingress_secret"),

		MaxCascadeHops:           appValues.Int("max_cascade_hops"),
		FeaturedProjectionPolicy: appValues.String("featured_projection_policy"),

		ChangeStreamEnabled:   appValues.Bool("change_stream_enabled"),
		DispatchRetryAttempts: appValues.Int("dispatch_retry_attempts"),
		DispatchRetryBackoff:  appValues.Duration("dispatch_retry_backoff", time.Second),
		InvocationTimeout:     appValues.Duration("invocation_timeout", 60*time.Second),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Backend selections must name a known backend and carry the settings it
// needs, so that a typo fails startup instead of the first event.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	return validateApp(coreCfg.Env, appCfg)
}

func validateApp(env string, appCfg AppConfig) error {
	if appCfg.MongoDatabase == "" {
		return fmt.Errorf("mongo_database is required")
	}

	switch appCfg.AttachmentsBackend {
	case "none":
	case "gcs":
		if appCfg.GCSBucket == "" {
			return fmt.Errorf("attachments_backend 'gcs' requires gcs_bucket")
		}
	case "s3":
		if appCfg.S3Region == "" || appCfg.S3Bucket == "" {
			return fmt.Errorf("attachments_backend 's3' requires s3_region and s3_bucket")
		}
	default:
		return fmt.Errorf("unknown attachments_backend %q (want gcs, s3 or none)", appCfg.AttachmentsBackend)
	}

	switch appCfg.NotifyBackend {
	case "log":
	case "fcm":
		if appCfg.FCMProjectID == "" {
			return fmt.Errorf("notify_backend 'fcm' requires fcm_project_id")
		}
	default:
		return fmt.Errorf("unknown notify_backend %q (want fcm or log)", appCfg.NotifyBackend)
	}

	if _, err := headers.ParsePolicy(appCfg.FeaturedProjectionPolicy); err != nil {
		return err
	}
	if appCfg.MaxCascadeHops < 1 {
		return fmt.Errorf("max_cascade_hops must be at least 1, got %d", appCfg.MaxCascadeHops)
	}
	if appCfg.DispatchRetryAttempts < 0 {
		return fmt.Errorf("dispatch_retry_attempts must not be negative")
	}
	if appCfg.InvocationTimeout <= 0 {
		return fmt.Errorf("invocation_timeout must be positive")
	}

	// In prod at least one event source must be on.
	if env == "prod" && appCfg.IngressSecret == "" && !appCfg.ChangeStreamEnabled {
		return fmt.Errorf("prod needs ingress_secret or change_stream_enabled, otherwise no events are received")
	}
	return nil
}
