package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd は pglife コマンドを作成します。サブコマンドなしで実行するとサーバーを起動します。
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pglife",
		Short: "PG LIFE property listing API",
		Long: `PG LIFE is the backend for listing paying-guest properties.
Running without a subcommand starts the HTTP server.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewCreateAdminCmd())

	return cmd
}

// NewServeCmd は serve サブコマンドを作成します。
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}
}
