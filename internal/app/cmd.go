package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hitoshi/taskman/internal/database"
	"github.com/hitoshi/taskman/internal/repository"
)

// NewRootCommand はtaskmanのルートコマンドを生成する。
// サブコマンドを省略した場合はserveとして動作する。
// wにはログとコマンド出力の両方を書き込む。
func NewRootCommand(w io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "taskman",
		Short: "Multi-tenant task tracker API",
		Long: `taskman はGoogleアカウントでログインするマルチテナントのタスク管理APIサーバー。

環境変数:
  DATABASE_URL        RLS対象の低権限ロールの接続先
  ADMIN_DATABASE_URL  許可リストとマイグレーションに使う特権ロールの接続先
  ENV_FILE_PATH       読み込む .env ファイル（デフォルト: .env）`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), w)
		},
	}
	root.SetOut(w)
	root.SetErr(w)

	root.AddCommand(
		newServeCommand(w),
		newMigrateCommand(w),
		newHealthcheckCommand(),
		newCleanupCommand(w),
		newAllowListCommand(w),
	)
	return root
}

func newServeCommand(w io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), w)
		},
	}
}

func serve(ctx context.Context, w io.Writer) error {
	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", "serve"),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)
	return runServe(ctx, cfg)
}

func newMigrateCommand(w io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply all pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := initDatabaseOnly(w)
			if err != nil {
				return fmt.Errorf("initialization failed: %w", err)
			}
			return runMigrate(cfg)
		},
	}
}

// newHealthcheckCommand は軽量サブコマンドのため、フル初期化をスキップする。
func newHealthcheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe the local /health endpoint (for container health checks)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealthcheck(healthcheckPort())
		},
	}
}

func newCleanupCommand(w io.Writer) *cobra.Command {
	var graceHours int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired sessions from the PostgreSQL session store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := initDatabaseOnly(w)
			if err != nil {
				return fmt.Errorf("initialization failed: %w", err)
			}
			return runCleanup(cmd.Context(), cfg, graceHours)
		},
	}
	cmd.Flags().IntVar(&graceHours, "grace-hours", 24, "keep sessions for this many hours after they expire")
	return cmd
}

func newAllowListCommand(w io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "allowlist",
		Short: "Manage the sign-in allow list",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List all entries",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withAllowListRepo(cmd.Context(), w, func(ctx context.Context, repo repository.AllowListRepository) error {
					return listAllowList(ctx, repo, cmd.OutOrStdout())
				})
			},
		},
		&cobra.Command{
			Use:   "add <email|@domain>",
			Short: "Allow an email address or a whole domain",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withAllowListRepo(cmd.Context(), w, func(ctx context.Context, repo repository.AllowListRepository) error {
					return addAllowList(ctx, repo, cmd.OutOrStdout(), args[0])
				})
			},
		},
		&cobra.Command{
			Use:   "remove <email|@domain>",
			Short: "Remove an entry",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withAllowListRepo(cmd.Context(), w, func(ctx context.Context, repo repository.AllowListRepository) error {
					return removeAllowList(ctx, repo, cmd.OutOrStdout(), args[0])
				})
			},
		},
		&cobra.Command{
			Use:   "import <file.yaml>",
			Short: "Add every entry listed in a YAML file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", args[0], err)
				}
				return withAllowListRepo(cmd.Context(), w, func(ctx context.Context, repo repository.AllowListRepository) error {
					return importAllowList(ctx, repo, cmd.OutOrStdout(), data)
				})
			},
		},
	)
	return cmd
}

// withAllowListRepo は特権接続を開いて許可リストのリポジトリを渡す。
func withAllowListRepo(ctx context.Context, w io.Writer, fn func(context.Context, repository.AllowListRepository) error) error {
	cfg, err := initDatabaseOnly(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	db, err := database.Open(cfg.AdminDatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	return fn(ctx, repository.NewPostgresAllowListRepo(db))
}
