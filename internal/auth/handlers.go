package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/internhub/internhub/internal/apperrors"
	"github.com/internhub/internhub/internal/audit"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// AccountTypeStudent and AccountTypeCompany are the account-level role tags.
// A student account is promoted to company-type when it joins a company.
const (
	AccountTypeStudent = "student"
	AccountTypeCompany = "company"
)

type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type SignupResponse struct {
	UserID   uuid.UUID `json:"user_id"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	UserID      uuid.UUID `json:"user_id"`
	Email       string    `json:"email"`
	AccountType string    `json:"account_type"`
	CSRFToken   string    `json:"csrf_token"`
}

// HandleSignup processes user registration
func HandleSignup(pool *pgxpool.Pool, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SignupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		req.Email = strings.ToLower(strings.TrimSpace(req.Email))
		req.FullName = strings.TrimSpace(req.FullName)

		if req.Email == "" || len(req.Email) > 320 {
			apperrors.WriteBadRequest(w, r, "Invalid email address")
			return
		}
		if _, err := mail.ParseAddress(req.Email); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid email address")
			return
		}
		if len(req.Password) < 8 {
			apperrors.WriteBadRequest(w, r, "Password must be at least 8 characters")
			return
		}
		if len(req.FullName) > 120 {
			apperrors.WriteBadRequest(w, r, "Name is too long")
			return
		}

		passwordHash, err := HashPassword(req.Password)
		if err != nil {
			log.Error().Err(err).Msg("Failed to hash password")
			apperrors.WriteInternalError(w, r, "Failed to create account")
			return
		}

		var userID uuid.UUID
		err = pool.QueryRow(r.Context(), `
			INSERT INTO users (email, password_hash, full_name)
			VALUES ($1, $2, $3)
			RETURNING id
		`, req.Email, passwordHash, req.FullName).Scan(&userID)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				apperrors.WriteConflict(w, r, "Email address already registered")
				return
			}
			log.Error().Err(err).Str("email", req.Email).Msg("Failed to insert user")
			apperrors.WriteInternalError(w, r, "Failed to create account")
			return
		}

		if err := auditor.LogUserSignup(r.Context(), userID, req.Email); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, SignupResponse{
			UserID:   userID,
			Email:    req.Email,
			FullName: req.FullName,
		})
	}
}

// HandleLogin authenticates a user and establishes a session cookie
func HandleLogin(pool *pgxpool.Pool, auditor *audit.Writer, jwtSecret string, sessionDays int, isProduction bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		req.Email = strings.ToLower(strings.TrimSpace(req.Email))

		var userID uuid.UUID
		var passwordHash, accountType string
		err := pool.QueryRow(r.Context(), `
			SELECT id, password_hash, account_type
			FROM users
			WHERE email = $1
		`, req.Email).Scan(&userID, &passwordHash, &accountType)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// Same response as a wrong password so accounts cannot be enumerated.
				if logErr := auditor.LogLoginFailed(r.Context(), req.Email, r.RemoteAddr); logErr != nil {
					log.Error().Err(logErr).Msg("Failed to log audit event")
				}
				apperrors.WriteUnauthorized(w, r, "Invalid email or password")
				return
			}
			log.Error().Err(err).Msg("Failed to load user")
			apperrors.WriteInternalError(w, r, "Failed to log in")
			return
		}

		if err := VerifyPassword(passwordHash, req.Password); err != nil {
			if logErr := auditor.LogLoginFailed(r.Context(), req.Email, r.RemoteAddr); logErr != nil {
				log.Error().Err(logErr).Msg("Failed to log audit event")
			}
			apperrors.WriteUnauthorized(w, r, "Invalid email or password")
			return
		}

		token, err := CreateToken(userID, jwtSecret, sessionDays)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create session token")
			apperrors.WriteInternalError(w, r, "Failed to log in")
			return
		}

		csrfToken, err := GenerateCSRFToken()
		if err != nil {
			log.Error().Err(err).Msg("Failed to generate CSRF token")
			apperrors.WriteInternalError(w, r, "Failed to log in")
			return
		}

		SetSessionCookie(w, token, sessionDays, isProduction)
		SetCSRFCookie(w, csrfToken, isProduction)

		apperrors.WriteSuccess(w, r, http.StatusOK, LoginResponse{
			UserID:      userID,
			Email:       req.Email,
			AccountType: accountType,
			CSRFToken:   csrfToken,
		})
	}
}

// HandleLogout clears the session cookie
func HandleLogout(isProduction bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ClearSessionCookie(w)
		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{
			"status": "logged_out",
		})
	}
}
