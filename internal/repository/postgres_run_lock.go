package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// PostgresRunLocker はPostgreSQLのアドバイザリロックによる実行ロック。
// アドバイザリロックはセッション単位のため、専用のコネクションを保持する。
type PostgresRunLocker struct {
	db *sql.DB
}

// NewPostgresRunLocker はPostgresRunLockerを生成する。
func NewPostgresRunLocker(db *sql.DB) *PostgresRunLocker {
	return &PostgresRunLocker{db: db}
}

// TryLock はpg_try_advisory_lockでロック取得を試みる。
// 取得できた場合、返される関数でロックを解放しコネクションをプールへ返却する。
func (l *PostgresRunLocker) TryLock(ctx context.Context, key string) (func(), bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("ロック用コネクションの取得に失敗しました: %w", err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx,
		`SELECT pg_try_advisory_lock(hashtext($1))`, key,
	).Scan(&acquired); err != nil {
		conn.Close()
		return nil, false, fmt.Errorf("アドバイザリロックの取得に失敗しました: %w", err)
	}

	if !acquired {
		conn.Close()
		return nil, false, nil
	}

	unlock := func() {
		// 呼び出し元のctxがキャンセル済みでも解放できるようBackgroundを使う
		if _, err := conn.ExecContext(context.Background(),
			`SELECT pg_advisory_unlock(hashtext($1))`, key,
		); err != nil {
			slog.Error("アドバイザリロックの解放に失敗しました",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
		conn.Close()
	}

	return unlock, true, nil
}

// compile-time interface check
var _ RunLocker = (*PostgresRunLocker)(nil)
