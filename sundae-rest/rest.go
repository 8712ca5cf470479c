// Package sundaerest hosts the publish API behind API Gateway, or as a plain
// http server in console mode.
package sundaerest

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	sundaecli "github.com/SundaeSwap-finance/shoutlog/sundae-cli"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/savaki/apigateway"
)

// Middlewares installs the request logger, CORS and panic recovery on routes.
func Middlewares(logger zerolog.Logger, routes chi.Router) chi.Router {
	routes.Use(
		middleware.RequestID,
		withCORS(),
		withLogger(logger),
		middleware.Recoverer,
	)
	return routes
}

// Mount places routes under the service subpath, if any.
func Mount(service sundaecli.Service, routes chi.Router) chi.Router {
	if service.Subpath == "" {
		return routes
	}
	router := chi.NewRouter()
	router.Mount(fmt.Sprintf("/%v", service.Subpath), routes)
	return router
}

// Webserver serves routes until the process exits.
func Webserver(service sundaecli.Service, logger zerolog.Logger, routes chi.Router) error {
	if sundaecli.CommonOpts.Console {
		logger.Info().Int("port", sundaecli.CommonOpts.Port).Msgf("starting %v", service.Name)
		addr := fmt.Sprintf(":%v", sundaecli.CommonOpts.Port)
		return http.ListenAndServe(addr, Mount(service, routes))
	}

	lambda.Start(apigateway.Wrap(routes, sundaecli.CommonOpts.Env, service.Subpath))
	return nil
}

// RequireAPIKey rejects requests whose bearer token is not one of keys. With
// no keys every request is allowed.
func RequireAPIKey(keys ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			token := strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
			for _, key := range keys {
				if subtle.ConstantTimeCompare([]byte(token), []byte(key)) == 1 {
					next.ServeHTTP(w, req)
					return
				}
			}
			zerolog.Ctx(req.Context()).Warn().Msg("rejecting request without a valid api key")
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		})
	}
}

func withCORS() func(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
	})
}

func withLogger(logger zerolog.Logger) func(handler http.Handler) http.Handler {
	return func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			l := logger.With().
				Str("request_id", middleware.GetReqID(req.Context())).
				Str("path", req.URL.Path).
				Logger()
			req = req.WithContext(l.WithContext(req.Context()))
			handler.ServeHTTP(w, req)
		})
	}
}
