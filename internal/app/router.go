package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/internhub/internhub/internal/apperrors"
	"github.com/internhub/internhub/internal/audit"
	"github.com/internhub/internhub/internal/auth"
	"github.com/internhub/internhub/internal/companies"
	"github.com/internhub/internhub/internal/config"
	"github.com/internhub/internhub/internal/internships"
	"github.com/internhub/internhub/internal/invites"
	"github.com/internhub/internhub/internal/match"
	"github.com/internhub/internhub/internal/notify"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewRouter creates and configures the Chi router with all middleware and routes
func NewRouter(pool *pgxpool.Pool, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	isProduction := !cfg.IsDev()

	// Middleware stack
	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.BaseURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(auth.AuthMiddleware(cfg.JWTSecret))
	r.Use(APIRateLimitMiddleware(cfg.RateLimitRPM))

	// Shared services
	auditor := audit.NewWriter(pool)
	companySvc := companies.NewService(pool)
	emailClient := notify.NewEmailClient(cfg.EmailAPIURL, cfg.EmailAPIKey, cfg.EmailTimeoutMS)
	notifier := notify.NewService(pool, emailClient, cfg.BaseURL)
	internshipSvc := internships.NewService(pool, companySvc, notifier)
	matchClient := match.NewClient(cfg.MatchAPIURL, cfg.MatchAPIKey, cfg.MatchTimeoutMS)
	matchSvc := match.NewService(matchClient, companySvc, internshipSvc)

	// Health check routes (no authentication required)
	r.Get("/healthz", handleHealthz)
	r.Get("/readyz", handleReadyz(pool))

	// API routes - Authentication
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(CSRFMiddleware())

		r.Post("/signup", auth.HandleSignup(pool, auditor))

		// Login with rate limiting (10 requests per minute)
		r.With(LoginRateLimitMiddleware()).Post("/login", auth.HandleLogin(pool, auditor, cfg.JWTSecret, cfg.SessionDays, isProduction))

		r.With(auth.RequireAuth).Post("/logout", auth.HandleLogout(isProduction))
	})

	// API routes - Companies (require authentication)
	r.Route("/api/v1/companies", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(CSRFMiddleware())
		r.Use(auth.RequireAuth)

		r.Post("/", companies.HandleCreate(pool, auditor))

		// Joining via shared code is rate limited separately: the code is the
		// only credential.
		r.With(JoinRateLimitMiddleware()).Post("/join", invites.HandleJoinViaCode(pool, companySvc, notifier, auditor))

		r.Route("/{company_id}", func(r chi.Router) {
			r.Get("/", companies.HandleGet(pool))
			r.Get("/me", companies.HandleMe(pool))
			r.Get("/audit", companies.HandleAuditLog(pool))
			r.Post("/transfer-ownership", companies.HandleTransferOwnership(pool, auditor))

			// Members
			r.Get("/members", companies.HandleListMembers(pool))
			r.Put("/members/{member_id}/role", companies.HandleUpdateMemberRole(pool, auditor))
			r.Put("/members/{member_id}/permissions", companies.HandleUpdateMemberPermissions(pool, auditor))
			r.Delete("/members/{member_id}", companies.HandleRemoveMember(pool, auditor))

			// Custom roles
			r.Post("/roles", companies.HandleCreateCustomRole(pool, auditor))
			r.Get("/roles", companies.HandleListCustomRoles(pool))
			r.Put("/roles/{role_id}", companies.HandleUpdateCustomRole(pool, auditor))
			r.Delete("/roles/{role_id}", companies.HandleDeleteCustomRole(pool, auditor))

			// Invitations
			r.Post("/invites", invites.HandleCreateInvite(pool, companySvc, notifier, auditor))
			r.Get("/invites", invites.HandleListInvites(pool, companySvc, notifier))
			r.Delete("/invites/{invite_id}", invites.HandleRevokeInvite(pool, companySvc, notifier, auditor))

			// Shared company code
			r.Post("/code/regenerate", invites.HandleRegenerateCode(pool, companySvc, notifier, auditor))
			r.Get("/code", invites.HandleGetCodeStatus(pool, companySvc, notifier))
			r.Patch("/code", invites.HandleUpdateCodeSettings(pool, companySvc, notifier, auditor))

			// Internships
			r.Post("/internships", internships.HandleCreateInternship(pool, companySvc, notifier, auditor))
			r.Get("/internships", internships.HandleListCompanyInternships(pool, companySvc, notifier))
			r.Put("/internships/{internship_id}", internships.HandleUpdateInternship(pool, companySvc, notifier))
			r.Delete("/internships/{internship_id}", internships.HandleDeleteInternship(pool, companySvc, notifier))
			r.Get("/internships/{internship_id}/applications", internships.HandleListApplications(pool, companySvc, notifier))
			r.Post("/internships/{internship_id}/suggestions", match.HandleSuggestCandidates(matchSvc))

			// Applications and interviews
			r.Put("/applications/{application_id}/status", internships.HandleReviewApplication(pool, companySvc, notifier, auditor))
			r.Post("/applications/{application_id}/interviews", internships.HandleScheduleInterview(pool, companySvc, notifier, auditor))
			r.Get("/applications/{application_id}/interviews", internships.HandleListInterviews(pool, companySvc, notifier))
		})
	})

	// API routes - Invitations addressed to the authenticated user
	r.Route("/api/v1/invites", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(CSRFMiddleware())
		r.Use(auth.RequireAuth)

		r.Post("/accept", invites.HandleAcceptInvite(pool, companySvc, notifier, auditor))
		r.Post("/decline", invites.HandleDeclineInvite(pool, companySvc, notifier))
	})

	// API routes - Student-facing browsing and applications
	r.Route("/api/v1/internships", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(CSRFMiddleware())
		r.Use(auth.RequireAuth)

		r.Get("/", internships.HandleListOpenInternships(pool, companySvc, notifier))
		r.Post("/{internship_id}/apply", internships.HandleApply(pool, companySvc, notifier))
	})

	r.Route("/api/v1/applications", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(auth.RequireAuth)

		r.Get("/", internships.HandleListMyApplications(pool, companySvc, notifier))
	})

	// API routes - In-app notifications
	r.Route("/api/v1/notifications", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(CSRFMiddleware())
		r.Use(auth.RequireAuth)

		r.Get("/", notify.HandleList(notifier))
		r.Post("/{notification_id}/read", notify.HandleMarkRead(notifier))
		r.Post("/read-all", notify.HandleMarkAllRead(notifier))
	})

	return r
}

// handleHealthz returns a simple liveness check
// Always returns 200 OK if the service is running
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// handleReadyz returns a readiness check that includes database connectivity
// Returns 200 OK if service is ready to accept traffic, 503 if not
func handleReadyz(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			apperrors.WriteServiceUnavailable(w, r, "Database connection failed")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{
			"status": "ready",
			"db":     "ok",
		})
	}
}
