package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/google/uuid"
	"github.com/snapvault/snapvault/internal/common"
	"github.com/snapvault/snapvault/internal/dbx"
	"github.com/snapvault/snapvault/internal/logging"
	"github.com/snapvault/snapvault/internal/server/auth"
	"github.com/snapvault/snapvault/internal/server/models"
	"github.com/snapvault/snapvault/internal/server/repositories/repomanager"
)

const minPasswordLength = 8

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// UserService handles registration, login, and issuing/refreshing JWTs
// plus server-stored refresh tokens. Refresh tokens are rotated on every
// use: the presented token is deleted and a new one stored.
type UserService struct {
	db         dbx.DBTX
	tx         dbx.TxRunner
	rm         repomanager.RepositoryManager
	tokens     *auth.TokenIssuer
	refreshTTL time.Duration
	logger     logging.Logger
}

// NewUserService constructs a UserService.
func NewUserService(db dbx.DBTX, tx dbx.TxRunner, rm repomanager.RepositoryManager, tokens *auth.TokenIssuer, refreshTTL time.Duration, logger logging.Logger) *UserService {
	return &UserService{
		db:         db,
		tx:         tx,
		rm:         rm,
		tokens:     tokens,
		refreshTTL: refreshTTL,
		logger:     logger.With("module", "users"),
	}
}

// Register creates a new account. The password is stored as a bcrypt hash.
func (s *UserService) Register(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: invalid email", common.ErrorValidation)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", common.ErrorValidation, minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, common.ErrorInternal
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.rm.Users(s.db).Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// Login verifies the credentials and, on success, returns a new TokenPair.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.rm.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// burn comparable time so absent accounts don't answer faster
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, common.ErrorInvalidCredentials
		}
		return nil, common.ErrorInternal
	}

	if bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)) != nil {
		return nil, common.ErrorInvalidCredentials
	}

	return s.generateTokenPair(ctx, user, s.db)
}

// dummyHash is a bcrypt digest of an unguessable value, used only to even
// out login timing for unknown emails.
var dummyHash = func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	return h
}()

// Refresh validates a refresh token, rotates it transactionally, and
// returns a fresh TokenPair. An expired token yields
// common.ErrorTokenExpired so clients know to re-login.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokens.Validate(refreshToken)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != auth.TokenTypeRefresh {
		return nil, fmt.Errorf("%w: not a refresh token", common.ErrorUnauthorized)
	}

	stored, err := s.rm.RefreshTokens(s.db).Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("error searching refresh token: %w", err)
	}
	if stored.Expires.Before(time.Now()) {
		return nil, common.ErrorTokenExpired
	}

	user, err := s.rm.Users(s.db).GetByID(ctx, stored.UserID)
	if err != nil {
		return nil, fmt.Errorf("error loading user: %w", err)
	}

	var pair *TokenPair
	if err := s.tx.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.rm.RefreshTokens(tx).Delete(ctx, refreshToken); err != nil {
			return fmt.Errorf("error deleting refresh token: %w", err)
		}
		var genErr error
		pair, genErr = s.generateTokenPair(ctx, user, tx)
		return genErr
	}); err != nil {
		return nil, err
	}
	return pair, nil
}

func (s *UserService) generateTokenPair(ctx context.Context, user *models.User, tx dbx.DBTX) (*TokenPair, error) {
	access, err := s.tokens.IssueAccess(user.ID, user.Email)
	if err != nil {
		return nil, common.ErrorInternal
	}
	refresh, err := s.tokens.IssueRefresh(user.ID)
	if err != nil {
		return nil, common.ErrorInternal
	}
	if err := s.rm.RefreshTokens(tx).Create(ctx, user.ID, refresh, s.refreshTTL); err != nil {
		return nil, common.ErrorInternal
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
