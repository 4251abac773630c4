package jobs

import "time"

const (
	// TaskTypeVerification は確認リンク発行タスクの種別です。
	TaskTypeVerification = "account:verification"

	queueName = "verification"

	// DefaultTicketTTL は確認チケットの既定の有効期間です。
	DefaultTicketTTL = 24 * time.Hour
)

// VerificationPayload は確認リンク発行タスクのペイロードです。
type VerificationPayload struct {
	AccountID string `json:"accountId"`
}
