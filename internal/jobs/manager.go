package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/yourusername/pg-life/internal/logging"
)

// Manager は確認タスクの投入とワーカーの起動を担います。
type Manager struct {
	client   *asynq.Client
	server   *asynq.Server
	mux      *asynq.ServeMux
	verifier *Verifier
	logger   logging.Logger
}

// NewManager は queueURL の Redis を使う Manager を初期化します。
func NewManager(queueURL string, verifier *Verifier, logger logging.Logger) (*Manager, error) {
	if verifier == nil {
		return nil, errors.New("verifier is nil")
	}
	if logger == nil {
		logger = logging.Nop()
	}
	opt, err := asynq.ParseRedisURI(queueURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := asynq.NewClient(opt)
	server := asynq.NewServer(
		opt,
		asynq.Config{
			Concurrency: 2,
			Queues: map[string]int{
				queueName: 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	manager := &Manager{
		client:   client,
		server:   server,
		mux:      mux,
		verifier: verifier,
		logger:   logger,
	}
	mux.HandleFunc(TaskTypeVerification, verifier.HandleTask)
	return manager, nil
}

// StartWorkers は Asynq サーバーをバックグラウンドで起動します。
func (m *Manager) StartWorkers() {
	go func() {
		if err := m.server.Run(m.mux); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
			m.logger.Error(context.Background(), "asynq server stopped with error", "error", err)
		}
	}()
}

// Shutdown はサーバーとクライアントを閉じます。
func (m *Manager) Shutdown() error {
	m.server.Shutdown()
	return m.client.Close()
}

// ScheduleVerification は accountID の確認タスクをキューに投入します。
func (m *Manager) ScheduleVerification(ctx context.Context, accountID string) error {
	task, err := NewVerificationTask(accountID)
	if err != nil {
		return err
	}
	info, err := m.client.EnqueueContext(ctx, task)
	if err != nil {
		return err
	}
	m.logger.Debug(ctx, "verification task enqueued", "accountId", accountID, "taskId", info.ID)
	return nil
}

// NewVerificationTask は確認タスクを作成します。失敗時は 3 回まで再試行します。
func NewVerificationTask(accountID string) (*asynq.Task, error) {
	if accountID == "" {
		return nil, fmt.Errorf("accountID is required")
	}
	body, err := json.Marshal(VerificationPayload{AccountID: accountID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeVerification, body, asynq.Queue(queueName), asynq.MaxRetry(3)), nil
}
