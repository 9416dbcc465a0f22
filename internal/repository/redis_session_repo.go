package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/taskman/internal/model"
)

// RedisSessionRepo はRedisを使用したセッションリポジトリ。
// セッション本体は session:<id> にJSONで保存し、有効期限はキーのTTLで表す。
// ユーザー単位の削除のため user_sessions:<user_id> にセッションIDの集合を持つ。
// 集合のTTLはそのユーザーで最も遅く切れるセッションに合わせ、全セッションの失効とともに消える。
type RedisSessionRepo struct {
	client *redis.Client
	prefix string
}

// NewRedisSessionRepo はRedisSessionRepoを生成する。
func NewRedisSessionRepo(client *redis.Client, prefix string) *RedisSessionRepo {
	return &RedisSessionRepo{client: client, prefix: prefix}
}

func (r *RedisSessionRepo) key(k string) string {
	if r.prefix == "" {
		return k
	}
	return r.prefix + ":" + k
}

func (r *RedisSessionRepo) sessionKey(id string) string {
	return r.key("session:" + id)
}

func (r *RedisSessionRepo) userKey(userID string) string {
	return r.key("user_sessions:" + userID)
}

// Create はセッションを作成する。
func (r *RedisSessionRepo) Create(ctx context.Context, session *model.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("failed to create session: already expired")
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	setTTL, err := r.userSetTTL(ctx, session.UserID, ttl)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.sessionKey(session.ID), data, ttl)
		pipe.SAdd(ctx, r.userKey(session.UserID), session.ID)
		pipe.PExpire(ctx, r.userKey(session.UserID), setTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れまたは存在しない場合はnilを返す。
func (r *RedisSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	data, err := r.client.Get(ctx, r.sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	if !session.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	return &session, nil
}

// ExtendExpiry はセッションの有効期限とキーのTTLを延長する。
// セッションが既に消えている場合は何もしない。
func (r *RedisSessionRepo) ExtendExpiry(ctx context.Context, id string, expiresAt time.Time) error {
	session, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}

	session.ExpiresAt = expiresAt
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	ttl := time.Until(expiresAt)
	setTTL, err := r.userSetTTL(ctx, session.UserID, ttl)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.sessionKey(id), data, ttl)
		pipe.SAdd(ctx, r.userKey(session.UserID), id)
		pipe.PExpire(ctx, r.userKey(session.UserID), setTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to extend session: %w", err)
	}
	return nil
}

// userSetTTL はセッション集合に設定するTTLを返す。現在のTTLより短くはしない。
// PTTLはキーがない場合やTTL未設定の場合に負の値を返す。
func (r *RedisSessionRepo) userSetTTL(ctx context.Context, userID string, ttl time.Duration) (time.Duration, error) {
	current, err := r.client.PTTL(ctx, r.userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read user session set ttl: %w", err)
	}
	if current > ttl {
		return current, nil
	}
	return ttl, nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *RedisSessionRepo) DeleteByID(ctx context.Context, id string) error {
	session, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.sessionKey(id))
		if session != nil {
			pipe.SRem(ctx, r.userKey(session.UserID), id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteByUserID は指定ユーザーの全セッションを削除する。
func (r *RedisSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	ids, err := r.client.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("failed to list user sessions: %w", err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, r.sessionKey(id))
	}
	keys = append(keys, r.userKey(userID))

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SessionRepository = (*RedisSessionRepo)(nil)
