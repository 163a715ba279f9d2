package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/trackwell/issuetracker/internal/config"
	"github.com/trackwell/issuetracker/internal/metrics"
	"github.com/trackwell/issuetracker/internal/models"
	"github.com/trackwell/issuetracker/internal/rbac"
	"github.com/trackwell/issuetracker/internal/utils"
	"github.com/trackwell/issuetracker/pkg/logger"
	"github.com/trackwell/issuetracker/pkg/response"
	"gorm.io/gorm"
)

const (
	DefaultAdminEmail    = "admin@localhost"
	defaultAdminPassword = "admin"
)

var (
	errBadCredentials = response.NewUnauthorized("invalid email or password")
	errUserDisabled   = response.NewForbidden("user is disabled")
	errBadRefresh     = response.NewUnauthorized("invalid refresh token")
)

type AuthService struct {
	db        *gorm.DB
	ldap      *LDAPService
	jwtConfig *config.JWTConfig
	configSvc *SystemConfigService
	denylist  TokenDenylist
}

func NewAuthService(db *gorm.DB, cfg *config.Config, denylist TokenDenylist) *AuthService {
	if denylist == nil {
		denylist = noopDenylist{}
	}
	return &AuthService{
		db:        db,
		ldap:      NewLDAPService(&cfg.LDAP),
		jwtConfig: &cfg.JWT,
		configSvc: NewSystemConfigService(db),
		denylist:  denylist,
	}
}

// LoginRequest identifies the account by email for local logins and by the
// directory username for LDAP logins.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	AuthType string `json:"auth_type"` // local, ldap
}

type LoginResult struct {
	AccessToken     string       `json:"access_token"`
	AccessExpireAt  time.Time    `json:"access_expire_at"`
	RefreshToken    string       `json:"refresh_token"`
	RefreshExpireAt time.Time    `json:"refresh_expire_at"`
	User            *models.User `json:"user"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (s *AuthService) Login(ctx context.Context, req *LoginRequest, clientIP, userAgent string) (*LoginResult, error) {
	if req.AuthType == "" {
		req.AuthType = "local"
	}

	var (
		user *models.User
		err  error
	)
	switch req.AuthType {
	case "local":
		user, err = s.localAuth(ctx, req.Email, req.Password)
	case "ldap":
		user, err = s.ldapAuth(ctx, req.Email, req.Password)
	default:
		return nil, response.NewBadRequest("invalid auth type")
	}

	result := "success"
	if err != nil {
		result = "failure"
	}
	metrics.AuthLoginsTotal.WithLabelValues(req.AuthType, result).Inc()
	if err != nil {
		LogWarning("Auth", "Login", "login failed for "+req.Email+": "+err.Error(), nil, clientIP, userAgent, nil)
		return nil, err
	}

	out, err := s.issue(ctx, user, clientIP, userAgent)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user.LastLogin = &now
	if err := s.db.WithContext(ctx).Model(user).Update("last_login", now).Error; err != nil {
		logger.Warn().Err(err).Str("user_id", user.ID).Msg("failed to update last login")
	}

	uid := user.ID
	LogInfo("Auth", "Login", "user logged in", &uid, clientIP, userAgent, nil)
	out.User = user
	return out, nil
}

// issue creates an access token and a stored refresh token for user.
func (s *AuthService) issue(ctx context.Context, user *models.User, clientIP, userAgent string) (*LoginResult, error) {
	accessHours := s.configSvc.GetInt("auth_access_token_expire_hours", s.jwtConfig.ExpireHour)
	refreshHours := s.configSvc.GetInt("auth_refresh_token_expire_hours", s.jwtConfig.RefreshExpireHour)

	access, err := utils.GenerateToken(user.ID, user.Email, user.Role, accessHours)
	if err != nil {
		return nil, err
	}
	refresh, err := s.createRefreshToken(s.db.WithContext(ctx), user.ID, refreshHours, clientIP, userAgent)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		AccessToken:     access,
		AccessExpireAt:  time.Now().Add(time.Duration(accessHours) * time.Hour),
		RefreshToken:    refresh.plain,
		RefreshExpireAt: refresh.record.ExpiresAt,
	}, nil
}

type issuedRefresh struct {
	plain  string
	record models.RefreshToken
}

func (s *AuthService) createRefreshToken(tx *gorm.DB, userID string, hours int, clientIP, userAgent string) (*issuedRefresh, error) {
	plain, hash, err := generateRefreshToken()
	if err != nil {
		return nil, err
	}
	rec := models.RefreshToken{
		UserID:      userID,
		TokenHash:   hash,
		ExpiresAt:   time.Now().Add(time.Duration(hours) * time.Hour),
		CreatedByIP: clientIP,
		UserAgent:   truncate(userAgent, 255),
	}
	if err := tx.Create(&rec).Error; err != nil {
		return nil, err
	}
	return &issuedRefresh{plain: plain, record: rec}, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is returned.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, clientIP, userAgent string) (*LoginResult, error) {
	if refreshToken == "" {
		return nil, errBadRefresh
	}
	db := s.db.WithContext(ctx)

	var stored models.RefreshToken
	if err := db.Where("token_hash = ?", hashRefreshToken(refreshToken)).First(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errBadRefresh
		}
		return nil, err
	}
	if stored.RevokedAt != nil || time.Now().After(stored.ExpiresAt) {
		return nil, errBadRefresh
	}

	var user models.User
	if err := db.Where("id = ?", stored.UserID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errBadRefresh
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, errUserDisabled
	}

	accessHours := s.configSvc.GetInt("auth_access_token_expire_hours", s.jwtConfig.ExpireHour)
	refreshHours := s.configSvc.GetInt("auth_refresh_token_expire_hours", s.jwtConfig.RefreshExpireHour)

	access, err := utils.GenerateToken(user.ID, user.Email, user.Role, accessHours)
	if err != nil {
		return nil, err
	}

	var next *issuedRefresh
	err = db.Transaction(func(tx *gorm.DB) error {
		var err error
		if next, err = s.createRefreshToken(tx, user.ID, refreshHours, clientIP, userAgent); err != nil {
			return err
		}
		// The revoked_at guard makes concurrent rotations of one token race
		// to a single winner.
		res := tx.Model(&models.RefreshToken{}).
			Where("id = ? AND revoked_at IS NULL", stored.ID).
			Updates(map[string]interface{}{
				"revoked_at":           time.Now(),
				"replaced_by_token_id": next.record.ID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errBadRefresh
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken:     access,
		AccessExpireAt:  time.Now().Add(time.Duration(accessHours) * time.Hour),
		RefreshToken:    next.plain,
		RefreshExpireAt: next.record.ExpiresAt,
		User:            &user,
	}, nil
}

// Logout revokes the refresh token, if given, and denylists the access token
// carried by claims until it expires.
func (s *AuthService) Logout(ctx context.Context, refreshToken string, claims *utils.Claims) error {
	if refreshToken != "" {
		if err := s.db.WithContext(ctx).Model(&models.RefreshToken{}).
			Where("token_hash = ? AND revoked_at IS NULL", hashRefreshToken(refreshToken)).
			Update("revoked_at", time.Now()).Error; err != nil {
			return err
		}
	}
	if claims != nil && claims.ExpiresAt != nil {
		if err := s.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
			return err
		}
	}
	return nil
}

// IsRevoked reports whether an access token jti was logged out.
func (s *AuthService) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return s.denylist.IsRevoked(ctx, jti)
}

// CleanupRefreshTokens removes rows that expired before cutoff.
func (s *AuthService) CleanupRefreshTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at < ?", cutoff).Delete(&models.RefreshToken{})
	return res.RowsAffected, res.Error
}

func generateRefreshToken() (token string, tokenHash string, err error) {
	randomBytes := make([]byte, 32)
	if _, err = rand.Read(randomBytes); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(randomBytes)
	return token, hashRefreshToken(token), nil
}

func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func (s *AuthService) localAuth(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("LOWER(email) = ? AND auth_type = ?", models.NormalizeEmail(email), "local").
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errBadCredentials
		}
		return nil, err
	}
	if !utils.CheckPassword(password, user.Password) {
		return nil, errBadCredentials
	}
	if !user.IsActive {
		return nil, errUserDisabled
	}
	return &user, nil
}

// ldapAuth verifies against the directory and provisions a MEMBER account
// the first time a directory user signs in.
func (s *AuthService) ldapAuth(ctx context.Context, username, password string) (*models.User, error) {
	if !s.ldap.IsEnabled() {
		return nil, response.NewBadRequest("LDAP is not enabled")
	}
	ldapUser, err := s.ldap.Authenticate(username, password)
	if err != nil {
		logger.Warn().Err(err).Str("username", username).Msg("LDAP authentication failed")
		return nil, errBadCredentials
	}
	if ldapUser.Email == "" {
		return nil, response.NewForbidden("directory account has no email")
	}

	db := s.db.WithContext(ctx)
	email := models.NormalizeEmail(ldapUser.Email)

	var user models.User
	err = db.Where("LOWER(email) = ?", email).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = models.User{
			Email:    email,
			Name:     ldapUser.Name,
			Role:     string(rbac.RoleMember),
			AuthType: "ldap",
			IsActive: true,
		}
		if err := db.Create(&user).Error; err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	case user.AuthType != "ldap":
		return nil, errBadCredentials
	}

	if !user.IsActive {
		return nil, errUserDisabled
	}
	if ldapUser.Name != "" && ldapUser.Name != user.Name {
		user.Name = ldapUser.Name
		db.Model(&user).Update("name", user.Name)
	}
	return &user, nil
}

func (s *AuthService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("user not found")
		}
		return nil, err
	}
	return &user, nil
}

// CreateAdminIfNotExists seeds a local ADMIN account when none exists.
func (s *AuthService) CreateAdminIfNotExists() error {
	var count int64
	if err := s.db.Model(&models.User{}).Where("role = ?", string(rbac.RoleAdmin)).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashed, err := utils.HashPassword(defaultAdminPassword)
	if err != nil {
		return err
	}
	admin := models.User{
		Email:    DefaultAdminEmail,
		Name:     "Administrator",
		Password: hashed,
		Role:     string(rbac.RoleAdmin),
		AuthType: "local",
		IsActive: true,
	}
	if err := s.db.Create(&admin).Error; err != nil {
		return err
	}
	logger.Warn().Str("email", DefaultAdminEmail).Msg("created default admin account, change its password")
	return nil
}

func (s *AuthService) IsLDAPEnabled() bool {
	return s.ldap.IsEnabled()
}
