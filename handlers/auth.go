package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/castledepotsmail-cyber/castle-depots/auth"
	"github.com/castledepotsmail-cyber/castle-depots/cache"
	"github.com/castledepotsmail-cyber/castle-depots/config"
	"github.com/castledepotsmail-cyber/castle-depots/email"
	"github.com/castledepotsmail-cyber/castle-depots/middleware"
	"github.com/castledepotsmail-cyber/castle-depots/models"
)

const resetTokenTTL = 30 * time.Minute

const userColumns = `id, username, email, password_hash, first_name, last_name,
	phone_number, google_id, profile_picture, is_staff, created_at`

type AuthHandler struct {
	db     *sql.DB
	rdb    *redis.Client
	mail   *email.Client
	jwtCfg *config.JWTConfig
	logger *zap.Logger
}

func NewAuthHandler(db *sql.DB, rdb *redis.Client, mail *email.Client, jwtCfg *config.JWTConfig, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		db:     db,
		rdb:    rdb,
		mail:   mail,
		jwtCfg: jwtCfg,
		logger: logger,
	}
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName,
		&u.LastName, &u.PhoneNumber, &u.GoogleID, &u.ProfilePicture, &u.IsStaff, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (h *AuthHandler) Register(c *gin.Context) {
	ctx, span := otel.Tracer("castle-depots").Start(c.Request.Context(), "Register")
	defer span.End()

	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Password != req.ConfirmPassword {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Passwords don't match"})
		return
	}

	// Check if user already exists
	var existingID string
	err := h.db.QueryRowContext(ctx,
		"SELECT id FROM users WHERE email = $1 OR username = $2",
		req.Email, req.Username,
	).Scan(&existingID)
	if err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "User already exists"})
		return
	} else if !errors.Is(err, sql.ErrNoRows) {
		h.logger.Error("Database error", zap.String("trace_id", middleware.GetTraceID(ctx)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("Failed to hash password", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	user, err := scanUser(h.db.QueryRowContext(ctx,
		`INSERT INTO users (username, email, password_hash, first_name, last_name, phone_number)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
		 RETURNING `+userColumns,
		req.Username, req.Email, string(hashedPassword), req.FirstName, req.LastName, req.PhoneNumber,
	))
	if err != nil {
		h.logger.Error("Failed to create user", zap.String("trace_id", middleware.GetTraceID(ctx)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.logger.Info("User registered", zap.String("email", req.Email))
	c.JSON(http.StatusCreated, gin.H{
		"message": "User created successfully",
		"user":    user,
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	ctx, span := otel.Tracer("castle-depots").Start(c.Request.Context(), "Login")
	defer span.End()

	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := scanUser(h.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = $1", req.Email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		h.logger.Error("Database error", zap.String("trace_id", middleware.GetTraceID(ctx)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	h.issueTokens(c, user)
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	ctx, span := otel.Tracer("castle-depots").Start(c.Request.Context(), "RefreshToken")
	defer span.End()

	var req models.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	claims, err := auth.ParseToken(h.jwtCfg, req.Refresh, auth.TokenTypeRefresh)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired refresh token"})
		return
	}

	// Re-read the user so revoked accounts and staff changes take effect.
	user, err := scanUser(h.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", claims.UserID))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired refresh token"})
		return
	}

	h.issueTokens(c, user)
}

func (h *AuthHandler) GoogleAuth(c *gin.Context) {
	ctx, span := otel.Tracer("castle-depots").Start(c.Request.Context(), "GoogleAuth")
	defer span.End()

	var req models.GoogleAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := scanUser(h.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE google_id = $1", req.GoogleID))
	if errors.Is(err, sql.ErrNoRows) {
		user, err = scanUser(h.db.QueryRowContext(ctx,
			`INSERT INTO users (username, email, first_name, last_name, google_id, profile_picture)
			 VALUES ($1, $1, $2, $3, $4, NULLIF($5, ''))
			 RETURNING `+userColumns,
			req.Email, req.FirstName, req.LastName, req.GoogleID, req.ProfilePicture,
		))
	} else if err == nil && req.ProfilePicture != "" {
		// Keep the picture fresh on every sign-in.
		_, updErr := h.db.ExecContext(ctx,
			"UPDATE users SET profile_picture = $1 WHERE id = $2", req.ProfilePicture, user.ID)
		if updErr != nil {
			h.logger.Warn("Failed to update profile picture", zap.Error(updErr))
		} else {
			user.ProfilePicture = &req.ProfilePicture
		}
	}
	if err != nil {
		h.logger.Error("Google auth failed", zap.String("trace_id", middleware.GetTraceID(ctx)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.issueTokens(c, user)
}

func (h *AuthHandler) issueTokens(c *gin.Context, user *models.User) {
	pair, err := auth.GenerateTokenPair(h.jwtCfg, user.ID, user.Email, user.IsStaff)
	if err != nil {
		h.logger.Error("Failed to generate tokens", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.logger.Info("User logged in", zap.String("email", user.Email))
	c.JSON(http.StatusOK, models.TokenPairResponse{
		Access:  pair.Access,
		Refresh: pair.Refresh,
		User:    *user,
	})
}

func (h *AuthHandler) GetProfile(c *gin.Context) {
	claims := middleware.CurrentUser(c)

	user, err := scanUser(h.db.QueryRowContext(c.Request.Context(),
		"SELECT "+userColumns+" FROM users WHERE id = $1", claims.UserID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		h.logger.Error("Failed to load profile", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	claims := middleware.CurrentUser(c)

	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := scanUser(h.db.QueryRowContext(c.Request.Context(),
		`UPDATE users SET
			first_name = COALESCE(NULLIF($1, ''), first_name),
			last_name = COALESCE(NULLIF($2, ''), last_name),
			phone_number = COALESCE(NULLIF($3, ''), phone_number)
		 WHERE id = $4
		 RETURNING `+userColumns,
		req.FirstName, req.LastName, req.PhoneNumber, claims.UserID,
	))
	if err != nil {
		h.logger.Error("Failed to update profile", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, user)
}

// PasswordResetRequest always answers with the same success message so
// callers cannot probe which emails are registered.
func (h *AuthHandler) PasswordResetRequest(c *gin.Context) {
	ctx, span := otel.Tracer("castle-depots").Start(c.Request.Context(), "PasswordResetRequest")
	defer span.End()

	var req models.PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	uniform := gin.H{"message": "If the email exists, a reset link has been sent"}

	var userID string
	err := h.db.QueryRowContext(ctx, "SELECT id FROM users WHERE email = $1", req.Email).Scan(&userID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			h.logger.Error("Password reset lookup failed", zap.Error(err))
		}
		c.JSON(http.StatusOK, uniform)
		return
	}

	token := uuid.NewString()
	if err := cache.SetResetToken(ctx, h.rdb, token, userID, resetTokenTTL); err != nil {
		h.logger.Error("Failed to store reset token", zap.Error(err))
		c.JSON(http.StatusOK, uniform)
		return
	}

	if h.mail != nil {
		h.mail.SendAsync(email.Message{
			Subject: "Password Reset",
			To:      []string{req.Email},
			Text:    fmt.Sprintf("Use this token to reset your password: %s. It expires in 30 minutes.", token),
		})
	}

	c.JSON(http.StatusOK, uniform)
}

func (h *AuthHandler) PasswordResetConfirm(c *gin.Context) {
	ctx, span := otel.Tracer("castle-depots").Start(c.Request.Context(), "PasswordResetConfirm")
	defer span.End()

	var req models.PasswordResetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Passwords don't match"})
		return
	}

	userID, err := cache.ConsumeResetToken(ctx, h.rdb, req.Token)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired reset token"})
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("Failed to hash password", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if _, err := h.db.ExecContext(ctx,
		"UPDATE users SET password_hash = $1 WHERE id = $2", string(hashedPassword), userID); err != nil {
		h.logger.Error("Failed to update password", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
}
