package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/unicode/norm"

	"github.com/backoffice/backoffice/internal/token"
)

// SessionStore is the slice of the session registry the authenticator relies on.
type SessionStore interface {
	Put(ctx context.Context, sessionID, userID string, ttl time.Duration) (string, error)
	CurrentSession(ctx context.Context, userID string) (string, bool, error)
	Delete(ctx context.Context, userID string) (bool, error)
	Touch(ctx context.Context, userID, sessionID string, ttl time.Duration) (bool, error)
	ListLiveUserIDs(ctx context.Context) (map[string]struct{}, error)
}

// Signer issues one credential flavor.
type Signer interface {
	Sign(p token.Payload) (string, error)
}

// ServiceOptions tunes the authenticator.
type ServiceOptions struct {
	// SessionTTL is applied to stored sessions; zero keeps them until logout.
	SessionTTL time.Duration
	Logger     *slog.Logger
	Clock      func() time.Time
}

// Service wraps authentication business rules.
type Service struct {
	repo       Repository
	sessions   SessionStore
	access     Signer
	refresh    Signer
	sessionTTL time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// NewService constructs a new Service.
func NewService(repo Repository, sessions SessionStore, access, refresh Signer, opts ServiceOptions) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:       repo,
		sessions:   sessions,
		access:     access,
		refresh:    refresh,
		sessionTTL: opts.SessionTTL,
		logger:     logger,
		now:        now,
	}
}

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// compareDummy spends the same bcrypt work as a real comparison so unknown
// nicknames answer in the same time as wrong passwords.
func compareDummy(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("backoffice-dummy-password"), bcrypt.DefaultCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}

// NormalizeNickname trims and NFC-normalises a submitted nickname.
func NormalizeNickname(nickname string) string {
	return norm.NFC.String(strings.TrimSpace(nickname))
}

// Login checks credentials and mints a new session with its credential pair.
// The session is not stored; callers follow up with OpenSession.
func (s *Service) Login(ctx context.Context, nickname, password string) (Grant, error) {
	account, err := s.repo.FindByNickname(ctx, NormalizeNickname(nickname))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			compareDummy(password)
			return Grant{}, ErrInvalidCredentials
		}
		return Grant{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return Grant{}, ErrInvalidCredentials
	}
	if !account.CanAccess {
		return Grant{}, ErrAccessDenied
	}
	if !account.Activated {
		return Grant{}, ErrInactiveAccount
	}

	payload := token.Payload{
		SessionID: uuid.NewString(),
		UserID:    account.UserID,
		Firstname: account.Firstname,
		Lastname:  account.Lastname,
		Avatar:    account.Avatar,
		Email:     account.Email,
		RoleName:  account.RoleName,
	}
	pair, err := s.sign(payload)
	if err != nil {
		return Grant{}, err
	}
	return Grant{Pair: pair, SessionID: payload.SessionID, UserID: account.UserID, Email: account.Email}, nil
}

// OpenSession stores the granted session, replacing any previous one of the
// same user. It returns the displaced session id. Store failures propagate.
func (s *Service) OpenSession(ctx context.Context, grant Grant) (string, error) {
	displaced, err := s.sessions.Put(ctx, grant.SessionID, grant.UserID, s.sessionTTL)
	if err != nil {
		return "", err
	}
	if err := s.repo.TouchLastLogin(ctx, grant.UserID, s.now()); err != nil {
		s.logger.Warn("touch last login", slog.String("user_id", grant.UserID), slog.Any("error", err))
	}
	return displaced, nil
}

// Refresh re-signs a pair for an already verified refresh payload. The
// identity store is not consulted; the live session must still be the one
// named by the payload.
func (s *Service) Refresh(ctx context.Context, p token.Payload) (Pair, error) {
	current, ok, err := s.sessions.CurrentSession(ctx, p.UserID)
	if err != nil {
		return Pair{}, err
	}
	if !ok || current != p.SessionID {
		return Pair{}, ErrSessionExpired
	}
	pair, err := s.sign(p)
	if err != nil {
		return Pair{}, err
	}
	if s.sessionTTL > 0 {
		touched, err := s.sessions.Touch(ctx, p.UserID, p.SessionID, s.sessionTTL)
		if err != nil {
			return Pair{}, err
		}
		if !touched {
			return Pair{}, ErrSessionExpired
		}
	}
	return pair, nil
}

// Logout removes the user's session. A missing session is reported as false, not an error.
func (s *Service) Logout(ctx context.Context, userID string) (bool, error) {
	return s.sessions.Delete(ctx, userID)
}

// VerifyConnected reports whether sessionID is still the live session of userID.
func (s *Service) VerifyConnected(ctx context.Context, userID, sessionID string) (bool, error) {
	current, ok, err := s.sessions.CurrentSession(ctx, userID)
	if err != nil {
		return false, err
	}
	return ok && current == sessionID, nil
}

// ConnectedUsers lists users holding a live session. It is meant for presence
// displays only: cache failures are logged and yield an empty set.
func (s *Service) ConnectedUsers(ctx context.Context) map[string]struct{} {
	live, err := s.sessions.ListLiveUserIDs(ctx)
	if err != nil {
		s.logger.Warn("list connected users", slog.Any("error", err))
		return map[string]struct{}{}
	}
	return live
}

func (s *Service) sign(p token.Payload) (Pair, error) {
	access, err := s.access.Sign(p)
	if err != nil {
		return Pair{}, fmt.Errorf("auth: sign access token: %w", err)
	}
	refresh, err := s.refresh.Sign(p)
	if err != nil {
		return Pair{}, fmt.Errorf("auth: sign refresh token: %w", err)
	}
	return Pair{AccessToken: access, RefreshToken: refresh}, nil
}
