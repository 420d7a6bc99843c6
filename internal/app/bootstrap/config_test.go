package bootstrap

import (
	"strings"
	"testing"
	"time"
)

func validConfig() AppConfig {
	return AppConfig{
		MongoURI:                 "mongodb://localhost:27017",
		MongoDatabase:            "lessonsync",
		AttachmentsBackend:       "none",
		NotifyBackend:            "log",
		MaxCascadeHops:           4,
		FeaturedProjectionPolicy: "retain",
		ChangeStreamEnabled:      true,
		DispatchRetryAttempts:    3,
		DispatchRetryBackoff:     time.Second,
		InvocationTimeout:        time.Minute,
	}
}

func TestValidateApp(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{"defaults", "dev", func(*AppConfig) {}, ""},
		{"gcs", "dev", func(c *AppConfig) { c.AttachmentsBackend, c.GCSBucket = "gcs", "b" }, ""},
		{"gcs without bucket", "dev", func(c *AppConfig) { c.AttachmentsBackend = "gcs" }, "gcs_bucket"},
		{"s3", "dev", func(c *AppConfig) { c.AttachmentsBackend, c.S3Region, c.S3Bucket = "s3", "us-east-1", "b" }, ""},
		{"s3 without region", "dev", func(c *AppConfig) { c.AttachmentsBackend, c.S3Bucket = "s3", "b" }, "s3_region"},
		{"unknown attachments", "dev", func(c *AppConfig) { c.AttachmentsBackend = "local" }, "attachments_backend"},
		{"fcm without project", "dev", func(c *AppConfig) { c.NotifyBackend = "fcm" }, "fcm_project_id"},
		{"unknown notify", "dev", func(c *AppConfig) { c.NotifyBackend = "smtp" }, "notify_backend"},
		{"bad policy", "dev", func(c *AppConfig) { c.FeaturedProjectionPolicy = "keep" }, "keep"},
		{"zero hops", "dev", func(c *AppConfig) { c.MaxCascadeHops = 0 }, "max_cascade_hops"},
		{"negative retries", "dev", func(c *AppConfig) { c.DispatchRetryAttempts = -1 }, "dispatch_retry_attempts"},
		{"zero timeout", "dev", func(c *AppConfig) { c.InvocationTimeout = 0 }, "invocation_timeout"},
		{"missing database", "dev", func(c *AppConfig) { c.MongoDatabase = "" }, "mongo_database"},
		{"prod without sources", "prod", func(c *AppConfig) { c.ChangeStreamEnabled = false }, "ingress_secret"},
		{"prod with ingress only", "prod", func(c *AppConfig) { c.ChangeStreamEnabled, c.IngressSecret = false, "s" }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := validateApp(tt.env, cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
