// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"time"

	healthfeature "github.com/dalemusser/lessonsync/internal/app/features/health"
	identityfeature "github.com/dalemusser/lessonsync/internal/app/features/identity"
	ingressfeature "github.com/dalemusser/lessonsync/internal/app/features/ingress"
	"github.com/dalemusser/lessonsync/internal/app/system/auth"
	"github.com/dalemusser/lessonsync/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler for this WAFFLE app.
//
// /health is public. /events and /identity require a bearer token signed
// with ingress_secret and are not mounted at all when the secret is blank.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	rt := deps.Runtime
	surfaces := handlerDeps{
		DB:       healthfeature.MongoPinger{Client: deps.MongoClient},
		Events:   rt.Dispatcher,
		Accounts: rt.Maintainers.Accounts,
		Secret:   appCfg.IngressSecret,
	}
	if rt.Stream != nil {
		surfaces.Stream = rt.Stream
	}
	return newRouter(surfaces, logger), nil
}

// authFailureLimit is how many rejected tokens one client IP may send per
// minute before it gets 429.
const authFailureLimit = 10

// handlerDeps are the collaborators behind the HTTP surfaces.
type handlerDeps struct {
	DB       healthfeature.Pinger
	Stream   healthfeature.Status
	Events   ingressfeature.Dispatcher
	Accounts identityfeature.Mirror
	Secret   string
}

func newRouter(d handlerDeps, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(d.DB, d.Stream, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	if d.Secret == "" {
		logger.Warn("ingress_secret is blank; /events and /identity are not served")
		return r
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireBearer(d.Secret, ratelimit.New(authFailureLimit, time.Minute), logger.Named("auth")))

		ingressHandler := ingressfeature.NewHandler(d.Events, logger.Named("ingress"))
		r.Mount("/events", ingressfeature.Routes(ingressHandler))

		identityHandler := identityfeature.NewHandler(d.Accounts, logger.Named("identity"))
		r.Mount("/identity", identityfeature.Routes(identityHandler))
	})
	return r
}
