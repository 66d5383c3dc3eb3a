package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/clock"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// bcryptCost is lowered by tests.
var bcryptCost = bcrypt.DefaultCost

// Identity is the authenticated caller as seen by the core.
type Identity struct {
	UserID uuid.UUID
	Role   models.Role
}

func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == models.RoleAdmin
}

type AuthService struct {
	db    *gorm.DB
	cfg   *config.Config
	clock clock.Clock
}

func NewAuthService(db *gorm.DB, cfg *config.Config, clk clock.Clock) *AuthService {
	return &AuthService{db: db, cfg: cfg, clock: clk}
}

func (s *AuthService) Register(req *dto.RegisterRequest) (*dto.AuthResponse, error) {
	username := strings.TrimSpace(req.Username)
	if n := utf8.RuneCountInString(username); n < 3 || n > 50 {
		return nil, invalid("username must be between 3 and 50 characters")
	}
	if len(req.Password) < 6 {
		return nil, invalid("password must be at least 6 characters")
	}

	var email *string
	if e := strings.TrimSpace(req.Email); e != "" {
		if _, err := mail.ParseAddress(e); err != nil {
			return nil, invalid("email is not a valid address")
		}
		email = &e
	}

	var count int64
	if err := s.db.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if count > 0 {
		return nil, ruleViolation("username already taken")
	}
	if email != nil {
		if err := s.db.Model(&models.User{}).Where("email = ?", *email).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to check email: %w", err)
		}
		if count > 0 {
			return nil, ruleViolation("email already registered")
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		Username: username,
		Email:    email,
		Password: string(hash),
		Role:     models.RoleUser,
		Active:   true,
	}
	if err := s.db.Create(&user).Error; err != nil {
		if database.IsUniqueViolation(err) {
			slog.Warn("registration lost uniqueness race", "action", "register", "event", "concurrency_conflict", "username", username)
			return nil, conflict(err, "username or email already registered")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user registered", "action", "register", "user_id", user.ID)
	return s.generateTokenPair(&user)
}

func (s *AuthService) Login(req *dto.LoginRequest) (*dto.AuthResponse, error) {
	var user models.User
	if err := s.db.Where("username = ?", strings.TrimSpace(req.Username)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, authRequired("invalid username or password")
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, authRequired("invalid username or password")
	}
	if !user.Active {
		return nil, authRequired("account is disabled")
	}

	now := s.clock.Now()
	if err := s.db.Model(&user).Update("last_login_at", now).Error; err != nil {
		return nil, fmt.Errorf("failed to stamp last login: %w", err)
	}
	user.LastLoginAt = &now

	return s.generateTokenPair(&user)
}

func (s *AuthService) Refresh(req *dto.RefreshRequest) (*dto.AuthResponse, error) {
	tokenHash := hashToken(req.RefreshToken)

	var user models.User
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var stored models.RefreshToken
		if err := tx.Where("token_hash = ? AND revoked = ?", tokenHash, false).First(&stored).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return authRequired("invalid or expired refresh token")
			}
			return err
		}

		if s.clock.Now().After(stored.ExpiresAt) {
			return authRequired("invalid or expired refresh token")
		}

		// Conditional update so two concurrent refreshes cannot both rotate the same token.
		res := tx.Model(&models.RefreshToken{}).
			Where("id = ? AND revoked = ?", stored.ID, false).
			Update("revoked", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return authRequired("invalid or expired refresh token")
		}

		if err := tx.First(&user, "id = ?", stored.UserID).Error; err != nil {
			return fmt.Errorf("user not found: %w", err)
		}
		if !user.Active {
			return authRequired("account is disabled")
		}
		return nil
	})
	if err != nil {
		// A rejected token is consumed as well.
		if KindOf(err) == KindAuthenticationRequired {
			if rerr := s.db.Model(&models.RefreshToken{}).Where("token_hash = ?", tokenHash).Update("revoked", true).Error; rerr != nil {
				slog.Warn("refresh token revocation failed", "action", "refresh", "error", rerr)
			}
		}
		return nil, err
	}

	return s.generateTokenPair(&user)
}

func (s *AuthService) Logout(req *dto.LogoutRequest) error {
	tokenHash := hashToken(req.RefreshToken)
	return s.db.Model(&models.RefreshToken{}).
		Where("token_hash = ?", tokenHash).
		Update("revoked", true).Error
}

// ResolveUser validates a bearer access token and returns the caller's identity.
func (s *AuthService) ResolveUser(tokenString string) (*Identity, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
	if tokenString == "" {
		return nil, authRequired("missing access token")
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.clock.Now))
	if err != nil || !token.Valid {
		return nil, authRequired("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, authRequired("invalid token claims")
	}
	return s.IdentityFromClaims(claims)
}

// IdentityFromClaims resolves already-verified claims against the user table.
// The role comes from the database, so a demotion takes effect before the token expires.
func (s *AuthService) IdentityFromClaims(claims jwt.MapClaims) (*Identity, error) {
	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, authRequired("invalid token subject")
	}

	var user models.User
	if err := s.db.Select("id", "role", "active").First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, authRequired("user no longer exists")
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.Active {
		return nil, authRequired("account is disabled")
	}

	return &Identity{UserID: user.ID, Role: user.Role}, nil
}

// Authorize checks that the identity holds at least the given role.
func (s *AuthService) Authorize(identity *Identity, role models.Role) error {
	if identity == nil {
		return authRequired("authentication required")
	}
	if role == models.RoleAdmin && identity.Role != models.RoleAdmin {
		return denied("admin access required")
	}
	return nil
}

func (s *AuthService) GetUser(userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("user not found")
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

func (s *AuthService) ListUsers(page, limit int) ([]models.User, int64, error) {
	page, limit = normalizePage(page, limit)

	var total int64
	if err := s.db.Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	var users []models.User
	if err := s.db.Order("created_at ASC, id ASC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}

func (s *AuthService) SetRole(userID uuid.UUID, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, invalid("unknown role %q", role)
	}
	user, err := s.GetUser(userID)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(user).Update("role", role).Error; err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}
	user.Role = role
	slog.Info("user role changed", "action", "set_role", "user_id", userID, "role", role)
	return user, nil
}

// SetActive enables or disables an account. Disabling revokes every refresh token.
func (s *AuthService) SetActive(userID uuid.UUID, active bool) (*models.User, error) {
	user, err := s.GetUser(userID)
	if err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(user).Update("active", active).Error; err != nil {
			return err
		}
		if !active {
			return tx.Model(&models.RefreshToken{}).Where("user_id = ?", userID).Update("revoked", true).Error
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}
	user.Active = active
	slog.Info("user activation changed", "action", "set_active", "user_id", userID, "active", active)
	return user, nil
}

// EnsureAdmin creates the configured admin account, or promotes and re-enables
// it when the username already exists. No-op without credentials.
func (s *AuthService) EnsureAdmin() error {
	username := strings.TrimSpace(s.cfg.AdminUsername)
	if username == "" || s.cfg.AdminPassword == "" {
		return nil
	}

	var user models.User
	err := s.db.Where("username = ?", username).First(&user).Error
	if err == nil {
		if user.Role == models.RoleAdmin && user.Active {
			return nil
		}
		return s.db.Model(&user).Updates(map[string]interface{}{
			"role":   models.RoleAdmin,
			"active": true,
		}).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to look up admin: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(s.cfg.AdminPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user = models.User{
		Username: username,
		Password: string(hash),
		Role:     models.RoleAdmin,
		Active:   true,
	}
	if e := strings.TrimSpace(s.cfg.AdminEmail); e != "" {
		user.Email = &e
	}
	if err := s.db.Create(&user).Error; err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	slog.Info("admin account seeded", "action", "seed_admin", "user_id", user.ID)
	return nil
}

func (s *AuthService) generateTokenPair(user *models.User) (*dto.AuthResponse, error) {
	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.generateRefreshToken(user)
	if err != nil {
		return nil, err
	}

	return &dto.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         ToUserResponse(user),
	}, nil
}

func (s *AuthService) generateAccessToken(user *models.User) (string, error) {
	now := s.clock.Now()
	claims := jwt.MapClaims{
		"sub":      user.ID.String(),
		"username": user.Username,
		"role":     string(user.Role),
		"iat":      now.Unix(),
		"exp":      now.Add(s.cfg.JWTAccessExpiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

func (s *AuthService) generateRefreshToken(user *models.User) (string, error) {
	rawBytes := make([]byte, 32)
	if _, err := rand.Read(rawBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	rawToken := base64.URLEncoding.EncodeToString(rawBytes)

	record := models.RefreshToken{
		UserID:    user.ID,
		TokenHash: hashToken(rawToken),
		ExpiresAt: s.clock.Now().Add(s.cfg.JWTRefreshExpiry),
	}
	if err := s.db.Create(&record).Error; err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	return rawToken, nil
}

func ToUserResponse(user *models.User) dto.UserResponse {
	return dto.UserResponse{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		Role:        string(user.Role),
		Active:      user.Active,
		LastLoginAt: user.LastLoginAt,
	}
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", h)
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
