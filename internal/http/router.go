package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/cardfile/cardfile/internal/obs"
	"github.com/cardfile/cardfile/internal/service"
	"github.com/cardfile/cardfile/internal/store"
	"github.com/cardfile/cardfile/pkg/httpx"
	"github.com/cardfile/cardfile/pkg/jwtx"
	"github.com/cardfile/cardfile/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	codec        *jwtx.Codec
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store          store.Store
	AuthFlows      *service.AuthFlows
	Identity       *service.IdentityService
	ContactService *service.ContactService
	UserService    *service.UserService
}

func NewRouter(
	codec *jwtx.Codec,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		codec:        codec,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Default middleware chain; outermost first.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		obs.Instrument,
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerUsers()
	r.registerContacts()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{Flows: r.AuthFlows}

	// Credential endpoints take the strict limit: they are the brute-force
	// and enumeration surface.
	r.Mux.Handle("POST /api/auth/signup",
		httpx.Chain(http.HandlerFunc(h.HandleSignup),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /api/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /api/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// Confirmation links arrive from mail clients that may prefetch, so the
	// limit is looser.
	r.Mux.Handle("GET /api/auth/confirm/{token}",
		httpx.Chain(http.HandlerFunc(h.HandleConfirm),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /api/auth/request-confirm",
		httpx.Chain(http.HandlerFunc(h.HandleRequestConfirm),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /api/auth/request-password-reset",
		httpx.Chain(http.HandlerFunc(h.HandleRequestPasswordReset),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /api/auth/reset-password",
		httpx.Chain(http.HandlerFunc(h.HandleResetPassword),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerUsers() {
	h := &UsersHandler{Users: r.UserService}
	guard := AuthGuard(r.codec, r.Identity)

	r.Mux.Handle("GET /api/users/me",
		httpx.Chain(http.HandlerFunc(h.HandleMe),
			guard,
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("PATCH /api/users/avatar",
		httpx.Chain(http.HandlerFunc(h.HandleAvatar),
			guard,
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerContacts() {
	h := &ContactsHandler{Contacts: r.ContactService}
	guard := AuthGuard(r.codec, r.Identity)

	reads := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn, guard, httpx.RateLimitByUser(httpx.LenientLimit))
	}
	writes := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn, guard, httpx.RateLimitByUser(httpx.MutationLimit))
	}

	r.Mux.Handle("GET /api/contacts", reads(h.HandleList))
	r.Mux.Handle("GET /api/contacts/birthdays", reads(h.HandleBirthdays))
	r.Mux.Handle("GET /api/contacts/{id}", reads(h.HandleGet))
	r.Mux.Handle("POST /api/contacts", writes(h.HandleCreate))
	r.Mux.Handle("PUT /api/contacts/{id}", writes(h.HandleUpdate))
	r.Mux.Handle("DELETE /api/contacts/{id}", writes(h.HandleDelete))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /metrics", obs.Handler())
}
