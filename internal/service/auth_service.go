package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"budstack-service/internal/model"
	"budstack-service/prometheus"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// passwordCost is lowered in tests
var passwordCost = bcrypt.DefaultCost

const minPasswordLength = 8

// TokenIssuer signs session tokens
type TokenIssuer interface {
	GenerateToken(email string, userID uint, role string, tenantID *uint, tenantName string) (string, error)
}

// AuthResult is returned by login and registration
type AuthResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// RegisterInput creates a storefront customer
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthService struct {
	users  UserStore
	tokens TokenIssuer
	logger *zap.Logger
}

func NewAuthService(users UserStore, tokens TokenIssuer, logger *zap.Logger) *AuthService {
	return &AuthService{users: users, tokens: tokens, logger: logger}
}

// Login checks credentials. With a tenant the account is looked up inside that store first;
// platform accounts (super admins) are found without one.
func (s *AuthService) Login(ctx context.Context, email, password string, tenant *model.Tenant) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		prometheus.RecordAuthError("invalid_request")
		return nil, model.NewValidationError("email", "email and password are required")
	}

	user, err := s.findForLogin(ctx, email, tenant)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			prometheus.RecordAuthError("user_not_found")
			return nil, fmt.Errorf("invalid credentials: %w", model.ErrUnauthorized)
		}
		return nil, err
	}

	if !checkPassword(user.PasswordHash, password) {
		prometheus.RecordAuthError("invalid_password")
		return nil, fmt.Errorf("invalid credentials: %w", model.ErrUnauthorized)
	}
	if !user.IsActive {
		prometheus.RecordAuthError("inactive_user")
		return nil, fmt.Errorf("account is disabled: %w", model.ErrForbidden)
	}

	token, err := s.issue(user, tenant)
	if err != nil {
		return nil, err
	}
	s.logger.Info("User logged in",
		zap.Uint("user_id", user.ID),
		zap.String("role", user.Role))
	return &AuthResult{Token: token, User: user}, nil
}

func (s *AuthService) findForLogin(ctx context.Context, email string, tenant *model.Tenant) (*model.User, error) {
	if tenant != nil {
		user, err := s.users.FindByEmail(ctx, email, &tenant.ID)
		if err == nil || !errors.Is(err, model.ErrNotFound) {
			return user, err
		}
	}
	user, err := s.users.FindByEmail(ctx, email, nil)
	if err != nil {
		return nil, err
	}
	if user.Role != model.RoleSuperAdmin {
		return nil, model.ErrNotFound
	}
	return user, nil
}

// Register creates a customer account of the tenant and signs it in
func (s *AuthService) Register(ctx context.Context, tenant *model.Tenant, input RegisterInput) (*AuthResult, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if err := requireLength("name", input.Name, 1, 100); err != nil {
		return nil, err
	}
	if err := requireEmail("email", input.Email); err != nil {
		return nil, err
	}
	if len(input.Password) < minPasswordLength {
		return nil, model.NewValidationError("password", "must be at least 8 characters")
	}

	if _, err := s.users.FindByEmail(ctx, input.Email, &tenant.ID); err == nil {
		prometheus.RecordAuthError("email_already_exists")
		return nil, fmt.Errorf("email already registered: %w", model.ErrConflict)
	} else if !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}

	hash, err := hashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		Email:        input.Email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(input.Name),
		Role:         model.RoleCustomer,
		TenantID:     &tenant.ID,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}

	token, err := s.issue(user, tenant)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Customer registered", zap.Uint("user_id", user.ID), zap.Uint("tenant_id", tenant.ID))
	return &AuthResult{Token: token, User: user}, nil
}

func (s *AuthService) Profile(ctx context.Context, userID uint) (*model.User, error) {
	return s.users.GetByID(ctx, userID)
}

// EnsureSuperAdmin creates the platform account unless it already exists
func (s *AuthService) EnsureSuperAdmin(ctx context.Context, email, password string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := s.users.FindByEmail(ctx, email, nil); err == nil {
		return false, nil
	} else if !errors.Is(err, model.ErrNotFound) {
		return false, err
	}
	if len(password) < minPasswordLength {
		return false, model.NewValidationError("password", "must be at least 8 characters")
	}
	hash, err := hashPassword(password)
	if err != nil {
		return false, err
	}
	user := &model.User{Email: email, PasswordHash: hash, Name: "Platform Admin", Role: model.RoleSuperAdmin, IsActive: true}
	if err := s.users.Create(ctx, user); err != nil {
		return false, fmt.Errorf("create super admin: %w", err)
	}
	return true, nil
}

func (s *AuthService) issue(user *model.User, tenant *model.Tenant) (string, error) {
	var tenantName string
	tenantID := user.TenantID
	if tenant != nil && tenantID != nil && *tenantID == tenant.ID {
		tenantName = tenant.BusinessName
	}
	token, err := s.tokens.GenerateToken(user.Email, user.ID, user.Role, tenantID, tenantName)
	if err != nil {
		prometheus.RecordAuthError("token_generation_failed")
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
