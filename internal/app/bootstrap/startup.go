// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/lessonsync/internal/app/dispatch"
	"github.com/dalemusser/lessonsync/internal/app/docstore/mongostore"
	"github.com/dalemusser/lessonsync/internal/app/maintainers"
	"github.com/dalemusser/lessonsync/internal/app/maintainers/headers"
	"github.com/dalemusser/lessonsync/internal/app/system/attachments"
	"github.com/dalemusser/lessonsync/internal/app/system/notify"
	"github.com/dalemusser/lessonsync/internal/app/system/timeouts"
	"github.com/dalemusser/lessonsync/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Runtime is the engine Startup assembles.
type Runtime struct {
	Store       *mongostore.Store
	Attachments attachments.Store
	Notifier    notify.Sender
	Router      *dispatch.Router
	Maintainers *maintainers.Set
	Dispatcher  *dispatch.Dispatcher
	Stream      *workers.ChangeStream
}

// Startup builds the collaborators, the maintainer set and the dispatcher,
// then starts the change stream worker when it is enabled.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{Invocation: appCfg.InvocationTimeout})

	att, err := openAttachments(ctx, appCfg, logger)
	if err != nil {
		return err
	}
	sender, err := openNotifier(ctx, appCfg, logger)
	if err != nil {
		return err
	}
	policy, err := headers.ParsePolicy(appCfg.FeaturedProjectionPolicy)
	if err != nil {
		return err
	}

	rt := deps.Runtime
	rt.Store = mongostore.New(deps.MongoDatabase)
	rt.Attachments = att
	rt.Notifier = sender
	rt.Router, rt.Maintainers = maintainers.NewRouter(maintainers.Deps{
		DB:          rt.Store,
		Attachments: att,
		Notifier:    sender,
		Policy:      policy,
		Logger:      logger.Named("maintainers"),
	})
	rt.Dispatcher = dispatch.New(rt.Router, logger.Named("dispatch"), dispatch.Options{
		MaxHops: appCfg.MaxCascadeHops,
		Timeout: appCfg.InvocationTimeout,
	})

	if appCfg.ChangeStreamEnabled {
		rt.Stream = workers.NewChangeStream(deps.MongoDatabase, rt.Dispatcher, logger.Named("changestream"), workers.ChangeStreamOptions{
			Retries: appCfg.DispatchRetryAttempts,
			Backoff: appCfg.DispatchRetryBackoff,
		})
		rt.Stream.Start()
	}

	logger.Info("sync engine ready",
		zap.String("attachments", appCfg.AttachmentsBackend),
		zap.String("notify", appCfg.NotifyBackend),
		zap.String("projection_policy", string(policy)),
		zap.Int("max_hops", rt.Dispatcher.MaxHops()),
		zap.Int("routes", len(rt.Router.Routes())),
		zap.Bool("change_stream", appCfg.ChangeStreamEnabled))
	return nil
}

func openAttachments(ctx context.Context, appCfg AppConfig, logger *zap.Logger) (attachments.Store, error) {
	switch appCfg.AttachmentsBackend {
	case "gcs":
		s, err := attachments.NewGCS(ctx, appCfg.GCSBucket)
		if err != nil {
			return nil, fmt.Errorf("open gcs bucket %s: %w", appCfg.GCSBucket, err)
		}
		return s, nil
	case "s3":
		s, err := attachments.NewS3(ctx, appCfg.S3Region, appCfg.S3Bucket)
		if err != nil {
			return nil, fmt.Errorf("open s3 bucket %s: %w", appCfg.S3Bucket, err)
		}
		return s, nil
	default:
		logger.Warn("attachment storage disabled; card metadata and object cleanup are skipped")
		return attachments.Disabled{}, nil
	}
}

func openNotifier(ctx context.Context, appCfg AppConfig, logger *zap.Logger) (notify.Sender, error) {
	if appCfg.NotifyBackend == "fcm" {
		s, err := notify.NewFCM(ctx, appCfg.FCMProjectID)
		if err != nil {
			return nil, fmt.Errorf("open fcm: %w", err)
		}
		return s, nil
	}
	return notify.LogSender{Log: logger.Named("notify")}, nil
}
