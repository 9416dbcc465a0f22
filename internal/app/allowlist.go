package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hitoshi/taskman/internal/allowlist"
	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/repository"
)

// allowListFile は allowlist import が読み込むYAMLファイルの形式。
//
//	entries:
//	  - pattern: alice@example.com
//	  - type: domain
//	    pattern: "@example.com"
//
// typeは省略でき、省略した場合はpatternの形式から判定する。
type allowListFile struct {
	Entries []model.AllowListEntry `yaml:"entries"`
}

// parseAllowListFile はYAMLを読み込み、全エントリを検証する。
// 1件でも不正なエントリがあればどれも返さない。
func parseAllowListFile(data []byte) ([]*model.AllowListEntry, error) {
	var file allowListFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse allow list file: %w", err)
	}
	if len(file.Entries) == 0 {
		return nil, errors.New("allow list file has no entries")
	}

	entries := make([]*model.AllowListEntry, 0, len(file.Entries))
	var errs []error
	for i, raw := range file.Entries {
		entry, err := allowlist.Normalize(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("entries[%d]: %w", i, err))
			continue
		}
		entries = append(entries, entry)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return entries, nil
}

func listAllowList(ctx context.Context, repo repository.AllowListRepository, out io.Writer) error {
	entries, err := repo.List(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%-6s  %s\n", e.Type, e.Pattern)
	}
	return nil
}

func addAllowList(ctx context.Context, repo repository.AllowListRepository, out io.Writer, raw string) error {
	entry, err := allowlist.ParseEntry(raw)
	if err != nil {
		return err
	}
	if err := repo.Add(ctx, entry); err != nil {
		return err
	}
	fmt.Fprintf(out, "added %s %s\n", entry.Type, entry.Pattern)
	return nil
}

func removeAllowList(ctx context.Context, repo repository.AllowListRepository, out io.Writer, raw string) error {
	pattern := strings.ToLower(strings.TrimSpace(raw))
	removed, err := repo.Remove(ctx, pattern)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("no allow list entry matches %q", pattern)
	}
	fmt.Fprintf(out, "removed %s\n", pattern)
	return nil
}

func importAllowList(ctx context.Context, repo repository.AllowListRepository, out io.Writer, data []byte) error {
	entries, err := parseAllowListFile(data)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := repo.Add(ctx, entry); err != nil {
			return fmt.Errorf("failed to add %s: %w", entry.Pattern, err)
		}
	}
	fmt.Fprintf(out, "imported %d entries\n", len(entries))
	return nil
}
