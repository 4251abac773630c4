// Package jobs はメールアドレス確認の非同期ジョブを提供します。
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/hibiken/asynq"
	"github.com/samber/oops"

	"github.com/yourusername/pg-life/internal/account"
	"github.com/yourusername/pg-life/internal/logging"
	"github.com/yourusername/pg-life/internal/observability"
)

// Notifier は確認リンクを利用者へ届けます。
type Notifier interface {
	SendVerification(ctx context.Context, acc *account.Account, link string) error
}

// LogNotifier は確認リンクの発行をログに記録するだけの Notifier です。
// チケットはログに残さず、リンクの token は伏せて出力します。
type LogNotifier struct {
	Logger logging.Logger
}

func (n LogNotifier) SendVerification(ctx context.Context, acc *account.Account, link string) error {
	n.Logger.Info(ctx, "verification link issued", "accountId", acc.ID, "link", redactLink(link))
	return nil
}

const redacted = "REDACTED"

// redactLink は token クエリの値を伏せたリンクを返します。
func redactLink(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return redacted
	}
	q := u.Query()
	if q.Has("token") {
		q.Set("token", redacted)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// Verifier は確認チケットを発行してアカウントに記録し、リンクを通知します。
type Verifier struct {
	accounts account.Directory
	tickets  *TicketStore
	notifier Notifier
	baseURL  string
	logger   logging.Logger
	metrics  *observability.Metrics
}

// NewVerifier は Verifier を作成します。notifier が nil ならログ出力を使います。
func NewVerifier(accounts account.Directory, tickets *TicketStore, notifier Notifier, baseURL string, logger logging.Logger, metrics *observability.Metrics) *Verifier {
	if logger == nil {
		logger = logging.Nop()
	}
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}
	return &Verifier{
		accounts: accounts,
		tickets:  tickets,
		notifier: notifier,
		baseURL:  baseURL,
		logger:   logger,
		metrics:  metrics,
	}
}

// Process は accountID の確認リンクを発行します。確認済みのアカウントには何もしません。
func (v *Verifier) Process(ctx context.Context, accountID string) error {
	acc, err := v.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			v.metrics.VerificationJobDone("skipped")
			// 再試行しても結果は変わらない
			return fmt.Errorf("account %s: %w", accountID, asynq.SkipRetry)
		}
		v.metrics.VerificationJobDone("failure")
		return err
	}
	if acc.IsVerified {
		v.metrics.VerificationJobDone("skipped")
		return nil
	}

	ticket, err := v.tickets.Issue(ctx, acc.ID)
	if err != nil {
		v.metrics.VerificationJobDone("failure")
		return err
	}

	acc, err = v.accounts.Modify(ctx, acc.ID, func(a *account.Account) error {
		a.VerificationToken = ticket
		return nil
	})
	if err != nil {
		v.metrics.VerificationJobDone("failure")
		return err
	}

	if err := v.notifier.SendVerification(ctx, acc, v.link(ticket)); err != nil {
		v.metrics.VerificationJobDone("failure")
		return oops.Code("VERIFICATION_NOTIFY_FAILED").With("accountId", acc.ID).Wrap(err)
	}
	v.metrics.VerificationJobDone("success")
	return nil
}

// HandleTask は asynq のタスクハンドラーです。
func (v *Verifier) HandleTask(ctx context.Context, task *asynq.Task) error {
	var payload VerificationPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.AccountID == "" {
		return fmt.Errorf("missing accountId in payload: %w", asynq.SkipRetry)
	}
	return v.Process(ctx, payload.AccountID)
}

func (v *Verifier) link(ticket string) string {
	u, err := url.Parse(v.baseURL)
	if err != nil || v.baseURL == "" {
		return "?token=" + url.QueryEscape(ticket)
	}
	q := u.Query()
	q.Set("token", ticket)
	u.RawQuery = q.Encode()
	return u.String()
}
