package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/taskman/internal/model"
)

const findIdentityQuery = `
	SELECT id, user_id, provider, provider_user_id, created_at
	FROM identities
	WHERE provider = $1 AND provider_user_id = $2`

// PostgresIdentityRepo はIdPのアカウントとtaskmanのユーザーの紐付けを保持する。
// 紐付け先の users.id がタスクの所有者IDになる。
// identitiesはRLSの対象外で、DATABASE_URLの接続で参照する。
type PostgresIdentityRepo struct {
	db *sql.DB
}

// NewPostgresIdentityRepo はPostgresIdentityRepoを生成する。
func NewPostgresIdentityRepo(db *sql.DB) *PostgresIdentityRepo {
	return &PostgresIdentityRepo{db: db}
}

// FindByProviderAndProviderUserID はIdP上のユーザーIDから紐付けを引く。
// 初回ログインなど紐付けがない場合は nil, nil を返す。
// メールアドレスはIdP側で変わりうるため照合には使わない。
func (r *PostgresIdentityRepo) FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
	var identity model.Identity
	err := r.db.QueryRowContext(ctx, findIdentityQuery, provider, providerUserID).
		Scan(&identity.ID, &identity.UserID, &identity.Provider, &identity.ProviderUserID, &identity.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find identity (provider=%s): %w", provider, err)
	}
	return &identity, nil
}

var _ IdentityRepository = (*PostgresIdentityRepo)(nil)
