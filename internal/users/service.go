package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLength = 8

var (
	// ErrInvalidEmail indicates an unusable email address.
	ErrInvalidEmail = errors.New("users: invalid email address")
	// ErrWeakPassword indicates the password does not meet the minimum length.
	ErrWeakPassword = errors.New("users: password too short")
	// ErrEmailTaken indicates an account already exists for the address.
	ErrEmailTaken = errors.New("users: email already registered")
	// ErrInvalidCredentials indicates a failed email/password check. The
	// message is surfaced verbatim to the staff login form.
	ErrInvalidCredentials = errors.New("users: invalid email or password")
	// ErrAccountNotConfirmed indicates sign-in before confirmation.
	ErrAccountNotConfirmed = errors.New("users: confirm your account before signing in")
	// ErrInvalidConfirmation indicates an unknown confirmation token.
	ErrInvalidConfirmation = errors.New("users: invalid confirmation token")

	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

// SessionEvent is pushed to listeners on every sign-in and sign-out.
type SessionEvent struct {
	Authenticated bool
	Subject       string
	Email         string
}

// ServiceConfig describes the dependencies of the account service.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service manages staff accounts and acts as the identity collaborator:
// password sign-up and sign-in, and push notifications consumed by the
// session gate.
type Service struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger

	mu        sync.Mutex
	listeners map[int64]func(SessionEvent)
	nextID    int64
}

// NewService constructs the account service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: %w", errMissingDatabase)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		db:        cfg.Database,
		clock:     clock,
		logger:    logger,
		listeners: make(map[int64]func(SessionEvent)),
	}, nil
}

// OnSessionChange registers a listener for session events and returns its
// remover. The session gate subscribes here.
func (s *Service) OnSessionChange(listener func(SessionEvent)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = listener
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// SignUp registers a new staff account and returns it with the confirmation
// token to be delivered out of band. The account cannot sign in until the
// token is redeemed.
func (s *Service) SignUp(ctx context.Context, email, password string) (Account, error) {
	address := normalizeEmail(email)
	if address == "" || !strings.Contains(address, "@") {
		return Account{}, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return Account{}, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, err
	}

	account := Account{
		ID:                uuid.NewString(),
		Email:             address,
		PasswordHash:      hash,
		ConfirmationToken: uuid.NewString(),
		LastSeenAt:        s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
		if isDuplicateEmail(err) {
			return Account{}, ErrEmailTaken
		}
		s.logger.Error("account insert failed", zap.Error(err))
		return Account{}, err
	}

	s.logger.Info("staff account created",
		zap.String("account_id", account.ID),
		zap.String("confirmation_token", account.ConfirmationToken))
	return account, nil
}

// Confirm redeems a confirmation token, enabling sign-in for the account.
func (s *Service) Confirm(ctx context.Context, token string) error {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return ErrInvalidConfirmation
	}

	var account Account
	err := s.db.WithContext(ctx).
		Where("confirmation_token = ?", trimmed).
		Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrInvalidConfirmation
	}
	if err != nil {
		return err
	}
	if account.Confirmed() {
		return nil
	}

	confirmedAt := s.clock().UTC()
	return s.db.WithContext(ctx).
		Model(&Account{}).
		Where("id = ?", account.ID).
		Updates(map[string]interface{}{
			"confirmed_at":       confirmedAt,
			"confirmation_token": "",
		}).Error
}

// SignInWithPassword checks credentials and pushes an authenticated session
// event on success. Credential failures and unconfirmed accounts surface as
// sentinel errors whose text reaches the user verbatim.
func (s *Service) SignInWithPassword(ctx context.Context, email, password string) (Account, error) {
	address := normalizeEmail(email)

	var account Account
	err := s.db.WithContext(ctx).Where("email = ?", address).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, ErrInvalidCredentials
	}
	if err != nil {
		s.logger.Error("account lookup failed", zap.Error(err))
		return Account{}, err
	}

	if bcrypt.CompareHashAndPassword(account.PasswordHash, []byte(password)) != nil {
		return Account{}, ErrInvalidCredentials
	}
	if !account.Confirmed() {
		return Account{}, ErrAccountNotConfirmed
	}

	if err := s.db.WithContext(ctx).
		Model(&Account{}).
		Where("id = ?", account.ID).
		Update("last_seen_at", s.clock().UTC()).Error; err != nil {
		s.logger.Warn("last seen update failed", zap.Error(err))
	}

	s.publish(SessionEvent{Authenticated: true, Subject: account.ID, Email: account.Email})
	return account, nil
}

// SignOut ends the subject's session and pushes the sign-out event.
func (s *Service) SignOut(_ context.Context, subject string) {
	s.publish(SessionEvent{Authenticated: false, Subject: subject})
}

func (s *Service) publish(event SessionEvent) {
	s.mu.Lock()
	notify := make([]func(SessionEvent), 0, len(s.listeners))
	for _, listener := range s.listeners {
		notify = append(notify, listener)
	}
	s.mu.Unlock()

	for _, listener := range notify {
		listener(event)
	}
}

func isDuplicateEmail(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
