// Package auth issues and verifies the bearer tokens that identify the acting
// user, and tells interested parties when a user signs in or out.
package auth

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/oggyb/muzz-connect/internal/db"
	svcErr "github.com/oggyb/muzz-connect/internal/errors"
	"github.com/oggyb/muzz-connect/internal/repository"
)

var (
	ErrUnauthenticated = fmt.Errorf("%w: invalid or missing token", svcErr.ErrUnauthenticated)
	ErrMissingUser     = fmt.Errorf("%w: user id is required", svcErr.ErrInvalid)
	ErrBadUser         = fmt.Errorf("%w: user id may not contain '.' or ':'", svcErr.ErrInvalid)
)

// maxVerified bounds the verified-token cache; it is emptied when full.
const maxVerified = 10000

// Session describes a sign-in state change of one user.
type Session struct {
	UserID   string
	SignedIn bool
}

type Callback func(ctx context.Context, s Session)

// Authenticator issues tokens of the form "<user id>.<secret>". Only a bcrypt
// hash of the secret is stored.
type Authenticator struct {
	accounts *repository.AccountRepository
	log      *slog.Logger

	mu        sync.RWMutex
	verified  map[[sha256.Size]byte]string
	byUser    map[string][][sha256.Size]byte
	callbacks []Callback
}

func New(accounts *repository.AccountRepository, log *slog.Logger) *Authenticator {
	return &Authenticator{
		accounts: accounts,
		log:      log,
		verified: make(map[[sha256.Size]byte]string),
		byUser:   make(map[string][][sha256.Size]byte),
	}
}

// OnSessionChange registers cb for every sign-in and sign-out.
func (a *Authenticator) OnSessionChange(cb Callback) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.callbacks = append(a.callbacks, cb)
}

// Issue signs userID in with a fresh token. Earlier tokens stop working.
func (a *Authenticator) Issue(ctx context.Context, userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrMissingUser
	}
	if strings.Contains(userID, ".") || !db.ValidUserID(userID) {
		return "", ErrBadUser
	}

	secret := strings.ReplaceAll(uuid.NewString(), "-", "")
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash token: %w", err)
	}
	if err := a.accounts.Upsert(ctx, userID, string(hash)); err != nil {
		return "", svcErr.Retryable("store token", err)
	}

	a.evict(userID)
	a.notify(ctx, Session{UserID: userID, SignedIn: true})
	a.log.Info("token issued", "user", userID)
	return userID + "." + secret, nil
}

// Authenticate returns the user a token belongs to.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (string, error) {
	userID, secret, ok := strings.Cut(strings.TrimSpace(token), ".")
	if !ok || userID == "" || secret == "" {
		return "", ErrUnauthenticated
	}

	digest := sha256.Sum256([]byte(token))
	a.mu.RLock()
	cached, hit := a.verified[digest]
	a.mu.RUnlock()
	if hit && cached == userID {
		return userID, nil
	}

	acc, err := a.accounts.Get(ctx, userID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return "", ErrUnauthenticated
	case err != nil:
		return "", svcErr.Retryable("load account", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(acc.TokenHash), []byte(secret)) != nil {
		return "", ErrUnauthenticated
	}

	a.mu.Lock()
	if len(a.verified) >= maxVerified {
		a.verified = make(map[[sha256.Size]byte]string)
		a.byUser = make(map[string][][sha256.Size]byte)
	}
	a.verified[digest] = userID
	a.byUser[userID] = append(a.byUser[userID], digest)
	a.mu.Unlock()
	return userID, nil
}

// SignOut revokes userID's token.
func (a *Authenticator) SignOut(ctx context.Context, userID string) error {
	if err := a.accounts.Delete(ctx, userID); err != nil {
		return svcErr.Retryable("revoke token", err)
	}
	a.evict(userID)
	a.notify(ctx, Session{UserID: userID})
	a.log.Info("signed out", "user", userID)
	return nil
}

func (a *Authenticator) evict(userID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, d := range a.byUser[userID] {
		delete(a.verified, d)
	}
	delete(a.byUser, userID)
}

func (a *Authenticator) notify(ctx context.Context, s Session) {
	a.mu.RLock()
	cbs := append([]Callback(nil), a.callbacks...)
	a.mu.RUnlock()
	for _, cb := range cbs {
		cb(ctx, s)
	}
}

// ParseBearer extracts the token from an "authorization" value.
func ParseBearer(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

type ctxKey struct{}

// WithUser stores the acting user in ctx.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserFrom returns the acting user stored by WithUser.
func UserFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}
