package main

import (
	"context"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/yourusername/pg-life/internal/account"
	"github.com/yourusername/pg-life/internal/auth"
	"github.com/yourusername/pg-life/internal/config"
	"github.com/yourusername/pg-life/internal/logging"
)

const defaultAdminTimeout = 30 * time.Second

type createAdminConfig struct {
	input   auth.RegisterInput
	timeout time.Duration
}

// NewCreateAdminCmd は管理者アカウントを作成する create-admin サブコマンドを作成します。
// HTTP の登録 API は常に一般ユーザーを作るため、管理者はこのコマンドで作ります。
func NewCreateAdminCmd() *cobra.Command {
	cfg := &createAdminConfig{}

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCreateAdmin(cmd, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.input.Name, "name", "", "display name")
	flags.StringVar(&cfg.input.Email, "email", "", "login e-mail address")
	flags.StringVar(&cfg.input.Password, "password", "", "login password")
	flags.StringVar(&cfg.input.PhoneNumber, "phone", "", "phone number")
	flags.StringVar(&cfg.input.CollegeName, "college", "", "institution name")
	flags.StringVar(&cfg.input.Gender, "gender", "", "male or female")
	flags.DurationVar(&cfg.timeout, "timeout", defaultAdminTimeout, "timeout for store operations")
	for _, name := range []string{"name", "email", "password", "phone", "college", "gender"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func runCreateAdmin(cmd *cobra.Command, cfg *createAdminConfig) error {
	appCfg, err := config.Load()
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrapf(err, "failed to load config")
	}
	// 確認メールのジョブは不要
	appCfg.QueueRedisURL = ""

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	a, err := newApp(ctx, appCfg, logging.Nop())
	if err != nil {
		return err
	}
	defer a.close()

	acc, err := a.auth.CreateAccount(ctx, cfg.input, account.RoleAdmin)
	if err != nil {
		return err
	}

	cmd.Printf("created admin %s (%s)\n", acc.Email, acc.ID)
	return nil
}
