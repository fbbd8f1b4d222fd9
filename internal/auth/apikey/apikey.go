// Package apikey validates API keys. Raw keys are generated with
// crypto/rand and only their SHA-256 digest is stored. Keys carry a role;
// admin routes require the admin role.
package apikey

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/postgres"
)

var (
	ErrInvalidKey = errors.New("invalid api key")
	ErrExpiredKey = errors.New("api key expired")
)

type Role string

const (
	RoleReader Role = "reader"
	RoleAdmin  Role = "admin"
)

// ParseRole accepts "reader" and "admin".
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleReader, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// KeyInfo holds metadata about a validated API key.
type KeyInfo struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Role      Role       `json:"role"`
	RateLimit float64    `json:"rate_limit"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Allows reports whether the key may act with role.
func (k *KeyInfo) Allows(role Role) bool {
	return k.Role == RoleAdmin || k.Role == role
}

// Source validates raw keys.
type Source interface {
	Validate(ctx context.Context, rawKey string) (*KeyInfo, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS api_keys (
    id         BIGSERIAL PRIMARY KEY,
    key_hash   TEXT NOT NULL UNIQUE,
    name       TEXT NOT NULL,
    role       TEXT NOT NULL DEFAULT 'reader',
    rate_limit DOUBLE PRECISION NOT NULL DEFAULT 0,
    is_active  BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    expires_at TIMESTAMPTZ
)`

// Validator validates API keys against the api_keys table.
type Validator struct {
	db     *postgres.Client
	now    func() time.Time
	logger *slog.Logger
}

func NewValidator(db *postgres.Client) *Validator {
	return &Validator{
		db:     db,
		now:    time.Now,
		logger: logger.WithComponent("apikey-validator"),
	}
}

// EnsureSchema creates the api_keys table if it is missing.
func (v *Validator) EnsureSchema(ctx context.Context) error {
	if _, err := v.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating api_keys table: %w", err)
	}
	return nil
}

// Validate returns the key's metadata, or ErrInvalidKey / ErrExpiredKey.
func (v *Validator) Validate(ctx context.Context, rawKey string) (*KeyInfo, error) {
	var (
		info      KeyInfo
		role      string
		expiresAt sql.NullTime
	)
	err := v.db.DB.QueryRowContext(ctx,
		`SELECT id::text, name, role, rate_limit, is_active, created_at, expires_at
		 FROM api_keys
		 WHERE key_hash = $1 AND is_active = true`,
		HashKey(rawKey),
	).Scan(&info.ID, &info.Name, &role, &info.RateLimit, &info.IsActive, &info.CreatedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidKey
	}
	if err != nil {
		return nil, fmt.Errorf("querying api key: %w", err)
	}
	info.Role = Role(role)
	if expiresAt.Valid {
		if expiresAt.Time.Before(v.now()) {
			return nil, ErrExpiredKey
		}
		info.ExpiresAt = &expiresAt.Time
	}
	return &info, nil
}

// CreateKey generates a key, stores its hash and returns the raw key. The
// raw key cannot be retrieved again.
func (v *Validator) CreateKey(ctx context.Context, name string, role Role, rateLimit float64, expiresAt *time.Time) (string, error) {
	rawKey := generateRawKey()
	var expiry sql.NullTime
	if expiresAt != nil {
		expiry = sql.NullTime{Time: *expiresAt, Valid: true}
	}
	_, err := v.db.DB.ExecContext(ctx,
		`INSERT INTO api_keys (key_hash, name, role, rate_limit, expires_at) VALUES ($1, $2, $3, $4, $5)`,
		HashKey(rawKey), name, string(role), rateLimit, expiry,
	)
	if err != nil {
		return "", fmt.Errorf("creating api key: %w", err)
	}
	v.logger.Info("api key created", "name", name, "role", role, "rate_limit", rateLimit)
	return rawKey, nil
}

// RevokeKey deactivates a key by id.
func (v *Validator) RevokeKey(ctx context.Context, id string) error {
	result, err := v.db.DB.ExecContext(ctx,
		`UPDATE api_keys SET is_active = false WHERE id::text = $1 AND is_active = true`, id,
	)
	if err != nil {
		return fmt.Errorf("revoking api key: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrInvalidKey
	}
	v.logger.Info("api key revoked", "id", id)
	return nil
}

// ListKeys returns all active keys, newest first.
func (v *Validator) ListKeys(ctx context.Context) ([]KeyInfo, error) {
	rows, err := v.db.DB.QueryContext(ctx,
		`SELECT id::text, name, role, rate_limit, is_active, created_at, expires_at
		 FROM api_keys WHERE is_active = true ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing api keys: %w", err)
	}
	defer rows.Close()

	var keys []KeyInfo
	for rows.Next() {
		var (
			k         KeyInfo
			role      string
			expiresAt sql.NullTime
		)
		if err := rows.Scan(&k.ID, &k.Name, &role, &k.RateLimit, &k.IsActive, &k.CreatedAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("scanning api key row: %w", err)
		}
		k.Role = Role(role)
		if expiresAt.Valid {
			k.ExpiresAt = &expiresAt.Time
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Static holds keys configured at startup, such as the bootstrap admin
// key. It serves deployments without a key table.
type Static struct {
	keys map[string]KeyInfo
}

// NewStatic returns an empty Static source.
func NewStatic() *Static {
	return &Static{keys: make(map[string]KeyInfo)}
}

// Add registers rawKey under info. Empty keys are ignored.
func (s *Static) Add(rawKey string, info KeyInfo) {
	if rawKey == "" {
		return
	}
	if info.ID == "" {
		info.ID = "static:" + HashKey(rawKey)[:12]
	}
	info.IsActive = true
	s.keys[HashKey(rawKey)] = info
}

func (s *Static) Validate(_ context.Context, rawKey string) (*KeyInfo, error) {
	info, ok := s.keys[HashKey(rawKey)]
	if !ok {
		return nil, ErrInvalidKey
	}
	return &info, nil
}

// Chain tries each source in order and returns the first match.
type Chain []Source

func (c Chain) Validate(ctx context.Context, rawKey string) (*KeyInfo, error) {
	for _, src := range c {
		info, err := src.Validate(ctx, rawKey)
		if errors.Is(err, ErrInvalidKey) {
			continue
		}
		return info, err
	}
	return nil, ErrInvalidKey
}

// HashKey returns the SHA-256 hex digest of a raw API key.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func generateRawKey() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
