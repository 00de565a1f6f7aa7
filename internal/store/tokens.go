package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"panelcast/internal/services"
)

// MintToken returns the share token for a cached fingerprint, creating one on
// first use. Repeated calls return the same token.
func (s *Store) MintToken(ctx context.Context, fp string) (string, error) {
	var token string
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM cache_entries WHERE fingerprint = ?`, fp,
		).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return fmt.Errorf("%w: fingerprint %s has no finished manifest", services.ErrNotFound, fp)
		}

		err := tx.QueryRowContext(ctx,
			`SELECT token FROM share_tokens WHERE fingerprint = ?`, fp,
		).Scan(&token)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		token = newToken()
		_, err = tx.ExecContext(ctx,
			`INSERT INTO share_tokens (token, fingerprint, created_at) VALUES (?, ?, ?)`,
			token, fp, formatTime(time.Now()),
		)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("mint token: %w", err)
	}
	return token, nil
}

// ResolveToken maps a token back to its fingerprint.
func (s *Store) ResolveToken(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("%w: empty token", services.ErrNotFound)
	}
	var fp string
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT fingerprint FROM share_tokens WHERE token = ?`, token,
	).Scan(&fp)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: token", services.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("resolve token: %w", err)
	}
	return fp, nil
}

// 122 random bits from a v4 uuid, URL safe.
func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
