// Package server exposes the services over HTTP on the goa muxer.
package server

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	goahttp "goa.design/goa/v3/http"
	"goa.design/goa/v3/http/middleware"
	goamiddleware "goa.design/goa/v3/middleware"
	"goa.design/goa/v3/security"

	"bigpartner/internal/config"
	"bigpartner/internal/metrics"
	"bigpartner/internal/services"
	apperrors "bigpartner/pkg/errors"
)

// Services groups the application services the routes dispatch to
type Services struct {
	Auth         *services.AuthService
	Property     *services.PropertyService
	Moderation   *services.ModerationService
	Inquiry      *services.InquiryService
	Favorite     *services.FavoriteService
	Registration *services.RegistrationService
	Upload       *services.UploadService
	Health       *services.HealthService
}

// access is the authentication a route requires
type access int

const (
	public access = iota
	// optional authenticates when a valid token is sent and falls back to
	// an anonymous caller otherwise
	optional
	user
	staff
	admin
)

var schemes = map[access]*security.JWTScheme{
	optional: {Name: "jwt", Scopes: []string{services.ScopeStaff, services.ScopeAdmin}},
	user:     {Name: "jwt", Scopes: []string{services.ScopeStaff, services.ScopeAdmin}},
	staff:    {Name: "jwt", Scopes: []string{services.ScopeStaff, services.ScopeAdmin}, RequiredScopes: []string{services.ScopeStaff}},
	admin:    {Name: "jwt", Scopes: []string{services.ScopeStaff, services.ScopeAdmin}, RequiredScopes: []string{services.ScopeAdmin}},
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, vars map[string]string) error

// Server routes requests to the services
type Server struct {
	cfg *config.Config
	svc Services
	mux goahttp.Muxer
}

// New builds the root handler with the full middleware chain:
// Security -> CORS -> Logging -> Prometheus -> RequestID -> routes.
func New(cfg *config.Config, svc Services) http.Handler {
	s := &Server{cfg: cfg, svc: svc, mux: goahttp.NewMuxer()}
	s.mount()

	uploadPrefix := strings.TrimSuffix(cfg.Storage.PublicPath, "/") + "/"
	uploads := http.StripPrefix(uploadPrefix, http.FileServer(http.Dir(cfg.Storage.UploadDir)))

	var root http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/metrics":
			promhttp.Handler().ServeHTTP(w, r)
		case strings.HasPrefix(r.URL.Path, uploadPrefix) && (r.Method == http.MethodGet || r.Method == http.MethodHead):
			metrics.SetRoute(r.Context(), uploadPrefix+"*")
			uploads.ServeHTTP(w, r)
		default:
			s.mux.ServeHTTP(w, r)
		}
	})
	root = echoRequestID(root)
	root = middleware.PopulateRequestContext()(root)
	root = middleware.RequestID(middleware.UseXRequestIDHeaderOption(true))(root)

	return securityHeaders(cors(requestLogging(metrics.PrometheusMiddleware(root)), cfg), cfg)
}

// echoRequestID returns the request id to the client
func echoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := r.Context().Value(goamiddleware.RequestIDKey).(string); ok {
			w.Header().Set("X-Request-ID", id)
		}
		next.ServeHTTP(w, r)
	})
}

// handle mounts h on the muxer behind the JWT guard for the access level
func (s *Server) handle(method, pattern string, a access, h handlerFunc) {
	s.mux.Handle(method, pattern, func(w http.ResponseWriter, r *http.Request) {
		metrics.SetRoute(r.Context(), pattern)

		ctx, err := s.authenticate(r, a)
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		r = r.WithContext(ctx)

		if err := h(w, r, s.mux.Vars(r)); err != nil {
			writeError(ctx, w, err)
		}
	})
}

func (s *Server) authenticate(r *http.Request, a access) (context.Context, error) {
	ctx := r.Context()
	if a == public {
		return ctx, nil
	}

	token := bearerToken(r)
	if token == "" {
		if a == optional {
			return ctx, nil
		}
		return nil, apperrors.Unauthorized("authentication required")
	}

	authed, err := s.svc.Auth.JWTAuth(ctx, token, schemes[a])
	if err != nil {
		if a == optional && apperrors.IsUnauthorized(err) {
			log.Printf("[AUTH] Ignoring invalid token on %s %s", r.Method, r.URL.Path)
			return ctx, nil
		}
		return nil, err
	}
	return authed, nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
