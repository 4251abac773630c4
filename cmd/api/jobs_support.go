package main

import (
	"github.com/yourusername/pg-life/internal/account"
	"github.com/yourusername/pg-life/internal/config"
	"github.com/yourusername/pg-life/internal/jobs"
	"github.com/yourusername/pg-life/internal/logging"
	"github.com/yourusername/pg-life/internal/observability"
)

// setupJobs は確認メールジョブのキューとワーカーを組み立てます。
// チケットはドキュメントストア側に、タスクはキュー用の Redis に置きます。
func setupJobs(cfg *config.Config, accounts account.Directory, tickets *jobs.TicketStore, logger logging.Logger, metrics *observability.Metrics) (*jobs.Manager, error) {
	verifier := jobs.NewVerifier(accounts, tickets, nil, cfg.VerificationBaseURL, logger.With("component", "verification"), metrics)
	return jobs.NewManager(cfg.QueueRedisURL, verifier, logger)
}
