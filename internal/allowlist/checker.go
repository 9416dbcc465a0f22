// Package allowlist はログイン済みユーザーの利用可否を許可リストで判定する。
package allowlist

import (
	"context"
	"fmt"
	"strings"

	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/repository"
)

// Checker は許可リストに対する判定を行う。
// 判定結果はキャッシュせず、毎回ストアに問い合わせる。
type Checker struct {
	repo repository.AllowListRepository
}

// NewChecker はCheckerを生成する。repoは特権接続で構築したものを渡すこと。
func NewChecker(repo repository.AllowListRepository) *Checker {
	return &Checker{repo: repo}
}

// IsAllowed はメールアドレスが許可リストに含まれるかを返す。
// 完全一致するemailエントリを先に調べ、なければドメイン部でdomainエントリを調べる。
// 小文字化以外の正規化はしない。前後に空白を含むアドレスはどのエントリにも一致しない。
func (c *Checker) IsAllowed(ctx context.Context, email string) (bool, error) {
	normalized := strings.ToLower(email)
	if normalized == "" {
		return false, nil
	}

	ok, err := c.repo.Exists(ctx, model.AllowListEntryEmail, normalized)
	if err != nil {
		return false, fmt.Errorf("許可リスト(email)の照会に失敗しました: %w", err)
	}
	if ok {
		return true, nil
	}

	ok, err = c.repo.Exists(ctx, model.AllowListEntryDomain, DomainOf(normalized))
	if err != nil {
		return false, fmt.Errorf("許可リスト(domain)の照会に失敗しました: %w", err)
	}
	return ok, nil
}

// DomainOf は "@" で区切った2番目の要素を "@" 付きで返す。
// "a@b@c" なら "@b"。"@" を含まない場合は "@" のみを返す。
func DomainOf(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) < 2 {
		return "@"
	}
	return "@" + parts[1]
}

// ParseEntry は管理コマンドの引数からエントリを組み立てる。
// "@" で始まる値はdomain、それ以外はemailとして扱う。
func ParseEntry(raw string) (*model.AllowListEntry, error) {
	pattern := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case pattern == "" || pattern == "@":
		return nil, fmt.Errorf("empty allow list pattern")
	case strings.HasPrefix(pattern, "@"):
		if strings.Contains(pattern[1:], "@") {
			return nil, fmt.Errorf("invalid domain pattern: %q", raw)
		}
		return &model.AllowListEntry{Type: model.AllowListEntryDomain, Pattern: pattern}, nil
	default:
		local, domain, found := strings.Cut(pattern, "@")
		if !found || local == "" || domain == "" {
			return nil, fmt.Errorf("invalid email pattern: %q", raw)
		}
		return &model.AllowListEntry{Type: model.AllowListEntryEmail, Pattern: pattern}, nil
	}
}

// Normalize は型付きエントリを検証し、小文字化したものを返す。
// YAMLから読み込んだエントリの種別とパターンの形式が食い違う場合はエラーにする。
func Normalize(entry model.AllowListEntry) (*model.AllowListEntry, error) {
	parsed, err := ParseEntry(entry.Pattern)
	if err != nil {
		return nil, err
	}
	if entry.Type != "" && entry.Type != parsed.Type {
		return nil, fmt.Errorf("pattern %q does not match type %q", entry.Pattern, entry.Type)
	}
	return parsed, nil
}
