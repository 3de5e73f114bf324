package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jsensharma/carhub/internal/config"
	"github.com/jsensharma/carhub/internal/domain/user"
	"github.com/jsensharma/carhub/internal/http/middlewares"
	"github.com/jsensharma/carhub/internal/mail"
	"github.com/jsensharma/carhub/internal/oauth"
	"github.com/jsensharma/carhub/internal/observability"
	"github.com/jsensharma/carhub/internal/security"
)

// UsersStore is the slice of the credential store the auth flows need.
type UsersStore interface {
	Create(ctx context.Context, u user.User) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	UpdateProfile(ctx context.Context, id string, name, email *string) (user.User, error)
	SetResetOTP(ctx context.Context, id, otp string, expiry time.Time) error
	ResetPassword(ctx context.Context, id, passwordHash string) error
}

type TokenIssuer interface {
	GenerateToken(userID, email, role string) (string, error)
}

type AuthHandler struct {
	users  UsersStore
	jwt    TokenIssuer
	mailer mail.Mailer
	google oauth.Verifier
	prom   *observability.Prom
}

func NewAuthHandler(users UsersStore, jwt TokenIssuer, mailer mail.Mailer, google oauth.Verifier, prom *observability.Prom) *AuthHandler {
	return &AuthHandler{
		users:  users,
		jwt:    jwt,
		mailer: mailer,
		google: google,
		prom:   prom,
	}
}

type SignUpRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type GoogleLoginRequest struct {
	TokenID string `json:"tokenId" binding:"required"`
}

type UpdateProfileRequest struct {
	Name  *string `json:"name" binding:"omitempty,min=2,max=100"`
	Email *string `json:"email" binding:"omitempty,email"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type VerifyOTPRequest struct {
	Email       string `json:"email" binding:"required,email"`
	OTP         string `json:"otp" binding:"required,len=6"`
	NewPassword string `json:"newPassword" binding:"required,min=8"`
}

func (h *AuthHandler) authFailure(reason string) {
	if h.prom != nil {
		h.prom.AuthFailuresTotal.WithLabelValues(reason).Inc()
	}
}

// signUp carries the shared signup flow; the admin variant differs only
// in role and in the conflict it can hit.
func (h *AuthHandler) signUp(ctx *gin.Context, role string) {
	var req SignUpRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	hash, err := security.HashPassword(req.Password)

	if err != nil {
		RespondInternal(ctx, "Could not create user")
		return
	}

	now := time.Now().UTC()

	u, err := h.users.Create(cctx, user.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Name:         req.Name,
		Role:         role,
		AuthProvider: user.ProviderLocal,
		PasswordHash: &hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})

	if err != nil {
		switch {
		case errors.Is(err, user.ErrEmailTaken):
			RespondBadRequestCode(ctx, "email_taken", "User already exists")
		case errors.Is(err, user.ErrAdminExists):
			RespondBadRequestCode(ctx, "admin_exists", "Admin is already created")
		default:
			RespondInternal(ctx, "Could not create user")
		}
		return
	}

	token, err := h.jwt.GenerateToken(u.ID, u.Email, u.Role)

	if err != nil {
		RespondInternal(ctx, "Could not generate token")
		return
	}

	message := "User created successfully"
	if role == user.RoleAdmin {
		message = "Admin created successfully"
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"message": message,
		"token":   token,
		"user":    u.Profile(),
	})
}

func (h *AuthHandler) SignUp(ctx *gin.Context) {
	h.signUp(ctx, user.RoleUser)
}

func (h *AuthHandler) AdminSignUp(ctx *gin.Context) {
	h.signUp(ctx, user.RoleAdmin)
}

// login is the shared credential check. The response is identical for
// an unknown email and a wrong password so the message itself cannot be
// used for account enumeration.
func (h *AuthHandler) login(ctx *gin.Context, requiredRole string) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}
	// short timeout for DB lookup
	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	foundUser, err := h.users.GetByEmail(cctx, req.Email)
	if err != nil {
		h.authFailure("credentials")
		RespondBadRequestCode(ctx, "invalid_credentials", "Invalid credentials")
		return
	}

	if requiredRole != "" && foundUser.Role != requiredRole {
		h.authFailure("credentials")
		RespondBadRequestCode(ctx, "invalid_credentials", "Invalid credentials")
		return
	}

	// Google-only accounts have no password hash to check against.
	if foundUser.PasswordHash == nil {
		h.authFailure("credentials")
		RespondBadRequestCode(ctx, "invalid_credentials", "Invalid credentials")
		return
	}

	err = security.CheckPassword(*foundUser.PasswordHash, req.Password)

	if err != nil {
		h.authFailure("credentials")
		RespondBadRequestCode(ctx, "invalid_credentials", "Invalid credentials")
		return
	}

	token, err := h.jwt.GenerateToken(foundUser.ID, foundUser.Email, foundUser.Role)

	if err != nil {
		RespondInternal(ctx, "Could not generate token")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   token,
		"user":    foundUser.Profile(),
	})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	h.login(ctx, "")
}

func (h *AuthHandler) AdminLogin(ctx *gin.Context) {
	h.login(ctx, user.RoleAdmin)
}

// GoogleLogin serves both the login and signup entry points: first
// sight of a verified Google identity creates the local account, every
// later call just logs into it.
func (h *AuthHandler) GoogleLogin(ctx *gin.Context) {
	var req GoogleLoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	identity, err := h.google.Verify(cctx, req.TokenID)

	if err != nil {
		h.authFailure("token")
		RespondBadRequestCode(ctx, "invalid_token", "Could not verify Google token")
		return
	}

	u, err := h.users.GetByEmail(cctx, identity.Email)

	if errors.Is(err, user.ErrNotFound) {
		now := time.Now().UTC()
		subject := identity.Subject

		u, err = h.users.Create(cctx, user.User{
			ID:              uuid.NewString(),
			Email:           identity.Email,
			Name:            identity.Name,
			Role:            user.RoleUser,
			AuthProvider:    user.ProviderGoogle,
			ProviderSubject: &subject,
			CreatedAt:       now,
			UpdatedAt:       now,
		})

		if errors.Is(err, user.ErrEmailTaken) {
			// lost a first-sight race, the account exists now
			u, err = h.users.GetByEmail(cctx, identity.Email)
		}
	}

	if err != nil {
		RespondInternal(ctx, "Could not log in with Google")
		return
	}

	token, err := h.jwt.GenerateToken(u.ID, u.Email, u.Role)

	if err != nil {
		RespondInternal(ctx, "Could not generate token")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *AuthHandler) GetProfile(ctx *gin.Context) {
	id, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	u, err := h.users.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondUnAuthorized(ctx, "unauthorized", "Unknown account")
			return
		}
		RespondInternal(ctx, "Could not fetch profile")
		return
	}

	ctx.JSON(http.StatusOK, u.Profile())
}

func (h *AuthHandler) UpdateProfile(ctx *gin.Context) {
	id, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	var req UpdateProfileRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if req.Name == nil && req.Email == nil {
		RespondBadRequest(ctx, "Nothing to update", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	u, err := h.users.UpdateProfile(cctx, id, req.Name, req.Email)

	if err != nil {
		switch {
		case errors.Is(err, user.ErrEmailTaken):
			RespondBadRequestCode(ctx, "email_taken", "Email is already in use")
		case errors.Is(err, user.ErrNotFound):
			RespondUnAuthorized(ctx, "unauthorized", "Unknown account")
		default:
			RespondInternal(ctx, "Could not update profile")
		}
		return
	}

	ctx.JSON(http.StatusOK, u.Profile())
}

// ForgotPassword persists the OTP before dispatching the mail. A failed
// dispatch leaves the code stored and returns 500; the user has to
// request a fresh one, which supersedes it.
func (h *AuthHandler) ForgotPassword(ctx *gin.Context) {
	var req ForgotPasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	u, err := h.users.GetByEmail(cctx, req.Email)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		RespondInternal(ctx, "Could not start password reset")
		return
	}

	otp, err := security.GenerateOTP()

	if err != nil {
		RespondInternal(ctx, "Could not start password reset")
		return
	}

	err = h.users.SetResetOTP(cctx, u.ID, otp, security.OTPExpiry(time.Now()))

	if err != nil {
		RespondInternal(ctx, "Could not start password reset")
		return
	}

	err = h.mailer.SendPasswordReset(cctx, mail.SendPasswordResetInput{
		Email: u.Email,
		Name:  u.Name,
		OTP:   otp,
	})

	if h.prom != nil {
		result := "ok"
		if err != nil {
			result = "error"
		}
		h.prom.MailSendsTotal.WithLabelValues(result).Inc()
	}

	if err != nil {
		RespondInternal(ctx, "Could not send OTP email")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "OTP sent to your email"})
}

func (h *AuthHandler) VerifyOTPAndReset(ctx *gin.Context) {
	var req VerifyOTPRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	u, err := h.users.GetByEmail(cctx, req.Email)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		RespondInternal(ctx, "Could not reset password")
		return
	}

	// expiry is checked lazily, there is no timeout transition
	if u.ResetOTP == nil || u.OTPExpiry == nil ||
		*u.ResetOTP != req.OTP || time.Now().UTC().After(*u.OTPExpiry) {
		h.authFailure("otp")
		RespondBadRequestCode(ctx, "invalid_otp", "Invalid or expired OTP")
		return
	}

	hash, err := security.HashPassword(req.NewPassword)

	if err != nil {
		RespondInternal(ctx, "Could not reset password")
		return
	}

	// clears the OTP fields in the same statement, codes are single use
	err = h.users.ResetPassword(cctx, u.ID, hash)

	if err != nil {
		RespondInternal(ctx, "Could not reset password")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Password reset successfully"})
}

// Logout is advisory only: tokens are self-contained and not tracked
// server-side, so the client just drops its copy.
func (h *AuthHandler) Logout(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}
