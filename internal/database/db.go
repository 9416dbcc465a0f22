package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

// Open はPostgreSQLデータベース接続を開く。
// sql.Openは接続を試行しないため、実際の接続確認にはPingを使用すること。
func Open(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return db, nil
}

// Connections はアプリケーションが使う2種類のDB接続を保持する。
//
// App はRLSの対象となる低権限ロールの接続で、タスクとセッションの操作に使う。
// Admin はRLSをバイパスする特権ロールの接続で、許可リストの参照と管理にのみ使う。
type Connections struct {
	App   *sql.DB
	Admin *sql.DB
}

// OpenConnections はアプリケーション接続と特権接続を開く。
func OpenConnections(appURL, adminURL string) (*Connections, error) {
	app, err := Open(appURL)
	if err != nil {
		return nil, fmt.Errorf("app connection: %w", err)
	}
	admin, err := Open(adminURL)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("admin connection: %w", err)
	}
	return &Connections{App: app, Admin: admin}, nil
}

// Ping は両方の接続の疎通を確認する。
func (c *Connections) Ping(ctx context.Context) error {
	if err := c.App.PingContext(ctx); err != nil {
		return fmt.Errorf("app connection: %w", err)
	}
	if err := c.Admin.PingContext(ctx); err != nil {
		return fmt.Errorf("admin connection: %w", err)
	}
	return nil
}

// Close は両方の接続を閉じる。
func (c *Connections) Close() error {
	return errors.Join(c.App.Close(), c.Admin.Close())
}
