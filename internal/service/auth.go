package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lumenflow/portal/internal/identity"
	"github.com/lumenflow/portal/internal/model"
	"github.com/lumenflow/portal/internal/repository"
	"github.com/lumenflow/portal/internal/validation"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrNameRequired       = errors.New("name is required")
	ErrInvalidRole        = errors.New("invalid role")
)

type AuthTokenExpiry struct {
	Access   time.Duration
	Refresh  time.Duration
	Invite   time.Duration
	Recovery time.Duration
}

// AuthService is the identity provider: password sign-in, rotating refresh
// tokens, JWT access tokens, invites and password recovery links.
type AuthService struct {
	userRepository    repository.UserRepository
	profileRepository repository.ProfileRepository
	tokenRepository   repository.TokenRepository
	projectRepository repository.ProjectRepository
	emailService      *EmailService
	jwtSecret         string
	appURL            string
	expiry            AuthTokenExpiry
	now               func() time.Time
}

func NewAuthService(
	userRepository repository.UserRepository,
	profileRepository repository.ProfileRepository,
	tokenRepository repository.TokenRepository,
	projectRepository repository.ProjectRepository,
	emailService *EmailService,
	jwtSecret string,
	appURL string,
	expiry AuthTokenExpiry,
) *AuthService {
	return &AuthService{
		userRepository:    userRepository,
		profileRepository: profileRepository,
		tokenRepository:   tokenRepository,
		projectRepository: projectRepository,
		emailService:      emailService,
		jwtSecret:         jwtSecret,
		appURL:            strings.TrimSuffix(appURL, "/"),
		expiry:            expiry,
		now:               time.Now,
	}
}

var _ identity.Backend = (*AuthService)(nil)

func (s *AuthService) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	email = normalizeEmail(email)

	user, err := s.userRepository.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, identity.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	// Invited users have no password until they accept the invite
	if !user.HasPassword() {
		return nil, identity.ErrInvalidCredentials
	}

	err = s.ComparePassword(password, *user.PasswordHash)
	if err != nil {
		return nil, identity.ErrInvalidCredentials
	}

	return s.issue(ctx, user)
}

// Refresh exchanges a refresh token for a new session. The old refresh token
// is consumed so it cannot be replayed.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*model.Session, error) {
	token, err := s.tokenRepository.Consume(ctx, refreshToken, model.TokenTypeRefresh)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return nil, identity.ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to consume refresh token: %w", err)
	}

	user, err := s.userRepository.ByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, identity.ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return s.issue(ctx, user)
}

func (s *AuthService) Revoke(ctx context.Context, refreshToken string) error {
	_, err := s.tokenRepository.Consume(ctx, refreshToken, model.TokenTypeRefresh)
	if errors.Is(err, repository.ErrTokenNotFound) {
		return identity.ErrInvalidToken
	}
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

func (s *AuthService) UserFromAccessToken(ctx context.Context, accessToken string) (*model.User, error) {
	claims, err := s.VerifyJWT(accessToken)
	if err != nil {
		return nil, identity.ErrInvalidToken
	}

	user, err := s.userRepository.ByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, identity.ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *AuthService) UpdatePassword(ctx context.Context, userID, password string) error {
	err := validation.ValidatePassword(password)
	if err != nil {
		return err
	}

	hash, err := s.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	err = s.userRepository.UpdatePassword(ctx, userID, hash)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	slog.Info("password updated", "user_id", userID)
	return nil
}

type Invite struct {
	Email      string
	Name       string
	Role       string
	ProjectIDs []string
}

// Invite creates the account (or reuses one that never accepted an invite),
// adds it to the given projects and emails an invite link.
func (s *AuthService) Invite(ctx context.Context, inv Invite) (*model.User, error) {
	email := normalizeEmail(inv.Email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, ErrInvalidEmail
	}
	name := strings.TrimSpace(inv.Name)
	if err := validation.ValidateName(name); err != nil {
		return nil, ErrNameRequired
	}
	role := inv.Role
	if role == "" {
		role = model.RoleClient
	}
	if !model.ValidRole(role) {
		return nil, ErrInvalidRole
	}

	user, err := s.userRepository.ByEmail(ctx, email)
	switch {
	case err == nil:
		if user.HasPassword() {
			return nil, ErrEmailAlreadyExists
		}
	case errors.Is(err, repository.ErrUserNotFound):
		user, err = s.createInvited(ctx, email, name, role)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("failed to lookup user: %w", err)
	}

	for _, projectID := range inv.ProjectIDs {
		err = s.projectRepository.AddMember(ctx, projectID, user.ID)
		if err != nil && !errors.Is(err, repository.ErrAlreadyMember) {
			return nil, fmt.Errorf("failed to add member to project %s: %w", projectID, err)
		}
	}

	link, err := s.linkFor(ctx, user.ID, model.TokenTypeInvite, s.expiry.Invite)
	if err != nil {
		return nil, err
	}

	err = s.emailService.SendInviteEmail(ctx, user.Email, name, link)
	if err != nil {
		return nil, fmt.Errorf("failed to send invite email: %w", err)
	}

	slog.Info("user invited", "user_id", user.ID, "email", user.Email, "role", role, "projects", len(inv.ProjectIDs))
	return user, nil
}

func (s *AuthService) createInvited(ctx context.Context, email, name, role string) (*model.User, error) {
	now := s.now()
	user := &model.User{
		ID:        uuid.New().String(),
		Email:     email,
		CreatedAt: now,
	}
	err := s.userRepository.Create(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	profile := &model.Profile{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Name:      name,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.profileRepository.Create(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	return user, nil
}

// SendRecovery emails a password recovery link. Unknown addresses succeed
// silently so the response never reveals which emails have accounts.
func (s *AuthService) SendRecovery(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return ErrInvalidEmail
	}

	user, err := s.userRepository.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			slog.Info("recovery requested for unknown email", "email", email)
			return nil
		}
		return fmt.Errorf("failed to lookup user: %w", err)
	}

	link, err := s.linkFor(ctx, user.ID, model.TokenTypeRecovery, s.expiry.Recovery)
	if err != nil {
		return err
	}

	err = s.emailService.SendRecoveryEmail(ctx, user.Email, link)
	if err != nil {
		slog.Error("failed to send recovery email", "error", err, "user_id", user.ID)
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// VerifyLink consumes an invite or recovery token and returns the session
// tokens to hand to the client as a URL fragment.
func (s *AuthService) VerifyLink(ctx context.Context, token, linkType string) (*identity.Fragment, error) {
	tokenType, ok := linkTokenTypes[linkType]
	if !ok {
		return nil, identity.ErrInvalidLink
	}

	t, err := s.tokenRepository.Consume(ctx, token, tokenType)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return nil, identity.ErrInvalidLink
		}
		return nil, fmt.Errorf("failed to consume link token: %w", err)
	}

	user, err := s.userRepository.ByID(ctx, t.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, identity.ErrInvalidLink
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if user.EmailVerifiedAt == nil {
		err = s.userRepository.MarkVerified(ctx, user.ID)
		if err != nil {
			slog.Warn("failed to mark email verified", "error", err, "user_id", user.ID)
		}
	}

	session, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}

	slog.Info("link verified", "user_id", user.ID, "type", linkType)
	return &identity.Fragment{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		Type:         linkType,
		ExpiresIn:    int(s.expiry.Access.Seconds()),
	}, nil
}

var linkTokenTypes = map[string]string{
	identity.LinkInvite:   model.TokenTypeInvite,
	identity.LinkRecovery: model.TokenTypeRecovery,
}

func (s *AuthService) linkFor(ctx context.Context, userID, tokenType string, ttl time.Duration) (string, error) {
	err := s.tokenRepository.DeleteByUserAndType(ctx, userID, tokenType)
	if err != nil {
		slog.Warn("failed to delete old link tokens", "error", err, "user_id", userID, "type", tokenType)
	}

	value, err := s.GenerateToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	now := s.now()
	err = s.tokenRepository.Create(ctx, &model.Token{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      tokenType,
		Token:     value,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create token: %w", err)
	}

	q := url.Values{}
	q.Set("token", value)
	q.Set("type", tokenType)
	return s.appURL + "/auth/verify?" + q.Encode(), nil
}

func (s *AuthService) issue(ctx context.Context, user *model.User) (*model.Session, error) {
	now := s.now()
	expiresAt := now.Add(s.expiry.Access)

	access, err := s.GenerateJWT(user, now, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refresh, err := s.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	err = s.tokenRepository.Create(ctx, &model.Token{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Type:      model.TokenTypeRefresh,
		Token:     refresh,
		ExpiresAt: now.Add(s.expiry.Refresh),
		CreatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &model.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresAt:    expiresAt,
		User:         user,
	}, nil
}

func (s *AuthService) HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

func (s *AuthService) ComparePassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

func (s *AuthService) GenerateToken() (string, error) {
	bytes := make([]byte, 32)
	_, err := rand.Read(bytes)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

type accessClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func (s *AuthService) GenerateJWT(user *model.User, issuedAt, expiresAt time.Time) (string, error) {
	claims := accessClaims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

func (s *AuthService) VerifyJWT(tokenString string) (*accessClaims, error) {
	claims := &accessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
