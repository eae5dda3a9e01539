package backend

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"
)

const (
	roleAnon          = "anon"
	roleAuthenticated = "authenticated"
)

// Run executes fn inside a transaction that carries the caller's token
// claims, so row-level security sees the same identity the REST gateway
// would. Without a session the transaction runs as anon.
func (c *Client) Run(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	claims, role, err := c.requestClaims()
	if err != nil {
		return err
	}

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`SELECT set_config('request.jwt.claims', $1, true), set_config('role', $2, true)`,
		claims, role,
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("apply request claims: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (c *Client) requestClaims() (string, string, error) {
	sess := c.currentSession()
	if sess == nil || sess.AccessToken == "" {
		return `{"role":"anon"}`, roleAnon, nil
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(sess.AccessToken, claims); err != nil {
		return "", "", fmt.Errorf("parse access token: %w", err)
	}

	role := roleAuthenticated
	if r, ok := claims["role"].(string); ok && r != "" {
		role = r
	}

	data, err := json.Marshal(claims)
	if err != nil {
		return "", "", err
	}
	return string(data), role, nil
}
