package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/lalith-99/cdpcore/internal/auth"
	"github.com/lalith-99/cdpcore/internal/middleware"
	"github.com/lalith-99/cdpcore/internal/repository"
)

// AuthHandler serves signup and login, the only operator endpoints that
// run without a token.
type AuthHandler struct {
	operators repository.OperatorRepository
	companies repository.CompanyRepository
	jwtSecret string
	tokenTTL  time.Duration
	logger    *zap.Logger
}

func NewAuthHandler(
	operators repository.OperatorRepository,
	companies repository.CompanyRepository,
	jwtSecret string,
	tokenTTL time.Duration,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		operators: operators,
		companies: companies,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		logger:    logger,
	}
}

type signupRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"display_name" binding:"required"`
	CompanyName string `json:"company_name" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// authResponse carries the bearer token the dashboard sends on every
// later request.
type authResponse struct {
	Token     string `json:"token"`
	CompanyID string `json:"company_id"`
}

// Signup handles POST /v1/auth/signup. It creates a company and its first
// operator, then returns a token for that operator.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	existing, err := h.operators.GetByEmail(c.Request.Context(), email)
	if err != nil {
		h.logger.Error("failed to check existing operator", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "signup failed"})
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("failed to hash password", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "signup failed"})
		return
	}

	company, err := h.companies.Create(c.Request.Context(), strings.TrimSpace(req.CompanyName))
	if err != nil {
		h.logger.Error("failed to create company", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "signup failed"})
		return
	}

	op, err := h.operators.Create(c.Request.Context(), company.ID, email, strings.TrimSpace(req.DisplayName), string(hash))
	if errors.Is(err, repository.ErrDuplicate) {
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		return
	}
	if err != nil {
		h.logger.Error("failed to create operator", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "signup failed"})
		return
	}

	token, err := auth.GenerateToken(op.ID, company.ID, op.Email, h.jwtSecret, h.tokenTTL)
	if err != nil {
		h.logger.Error("failed to generate token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "signup failed"})
		return
	}

	h.logger.Info("company created", zap.String("company_id", company.ID.String()))
	c.JSON(http.StatusCreated, authResponse{Token: token, CompanyID: company.ID.String()})
}

// Login handles POST /v1/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	op, err := h.operators.GetByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		h.logger.Error("failed to find operator", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	// Same answer for unknown email and wrong password.
	if op == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}

	token, err := auth.GenerateToken(op.ID, op.CompanyID, op.Email, h.jwtSecret, h.tokenTTL)
	if err != nil {
		h.logger.Error("failed to generate token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	c.JSON(http.StatusOK, authResponse{Token: token, CompanyID: op.CompanyID.String()})
}

// Me handles GET /v1/me.
func (h *AuthHandler) Me(c *gin.Context) {
	op, err := h.operators.GetByID(c.Request.Context(), middleware.GetCompanyID(c), middleware.GetOperatorID(c))
	if err != nil {
		h.logger.Error("failed to get operator", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get operator"})
		return
	}
	if op == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "operator not found"})
		return
	}
	c.JSON(http.StatusOK, op)
}
