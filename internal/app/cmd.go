package app

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// commandRunner は各サブコマンドの実処理。テストで差し替える。
type commandRunner struct {
	serve       func(w io.Writer) error
	migrate     func(w io.Writer, down int) error
	healthcheck func(port string) error
}

// NewRootCommand はサブコマンドを登録したルートコマンドを返す。
// サブコマンドを省略した場合はserveとして動作する。
func NewRootCommand(w io.Writer) *cobra.Command {
	return newRootCommand(w, commandRunner{
		serve:       runServeCommand,
		migrate:     runMigrateCommand,
		healthcheck: runHealthcheck,
	})
}

func newRootCommand(w io.Writer, runner commandRunner) *cobra.Command {
	root := &cobra.Command{
		Use:           "later",
		Short:         "URLを保存して後で読むためのリーディングリストサービス",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runner.serve(w)
		},
	}
	root.SetOut(w)
	root.SetErr(w)

	serveCmd := &cobra.Command{
		Use:   string(CommandServe),
		Short: "APIサーバーを起動する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runner.serve(w)
		},
	}

	var down int
	migrateCmd := &cobra.Command{
		Use:   string(CommandMigrate),
		Short: "データベースマイグレーションを適用する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runner.migrate(w, down)
		},
	}
	migrateCmd.Flags().IntVar(&down, "down", 0, "指定した件数だけマイグレーションを巻き戻す")

	var port string
	healthcheckCmd := &cobra.Command{
		Use:   string(CommandHealthcheck),
		Short: "稼働中のサーバーの /health を確認する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runner.healthcheck(port)
		},
	}
	healthcheckCmd.Flags().StringVar(&port, "port", defaultPort(), "確認するサーバーのポート")

	root.AddCommand(serveCmd, migrateCmd, healthcheckCmd)
	return root
}

// defaultPort はSERVER_PORTまたは8080を返す。
// healthcheckは軽量サブコマンドのため、設定の読み込みを行わない。
func defaultPort() string {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		return port
	}
	return "8080"
}
