package webhook

import "encoding/json"

// Event types form a closed set; anything else is acknowledged and ignored.
const (
	EventPaymentCompleted  = "PAYMENT_COMPLETED"
	EventTransferCompleted = "TRANSFER_COMPLETED"
	EventTransferFailed    = "TRANSFER_FAILED"
	EventPayoutCompleted   = "PAYOUT_COMPLETED"
	EventPayoutFailed      = "PAYOUT_FAILED"
)

// envelope is the outer shape of a provider event. Data stays raw; only the
// reference key is extracted from it.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// eventData carries the join key matching the event to exactly one local
// transaction.
type eventData struct {
	MerchantReference string `json:"merchant_reference_id"`
}
