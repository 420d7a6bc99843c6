// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig covers the framework-level settings (ports, TLS,
// logging, CORS). AppConfig carries what the sync service needs on top:
// where the content tree lives, which attachment and push backends to use,
// and how the cascade is bounded and retried.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI      string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase string // Database holding the content collections

	// Attachment storage
	AttachmentsBackend string // "gcs", "s3" or "none"
	GCSBucket          string // bucket for the gcs backend
	S3Region           string // AWS region for the s3 backend
	S3Bucket           string // bucket for the s3 backend

	// Push notifications
	NotifyBackend string // "fcm" or "log"
	FCMProjectID  string // Firebase project for the fcm backend

	// IngressSecret signs the bearer tokens accepted on /events and
	// /identity. Empty disables both surfaces.
	IngressSecret string

	// Cascade
	MaxCascadeHops           int    // hop bound enforced by the dispatcher
	FeaturedProjectionPolicy string // "retain" or "delete"

	// Change stream delivery
	ChangeStreamEnabled   bool
	DispatchRetryAttempts int
	DispatchRetryBackoff  time.Duration
	InvocationTimeout     time.Duration
}
