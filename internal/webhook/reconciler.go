package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/PeaceOloruntoba/payment-wallet-app/internal/ledger"
)

// Reconciler replays verified provider events against the ledger engine's
// state machine. It holds no state of its own: every transition goes through
// the engine's idempotent finalizers, so re-delivered and out-of-order events
// are safe.
type Reconciler struct {
	engine   *ledger.Engine
	logger   *slog.Logger
	handlers map[string]func(ctx context.Context, reference string, raw []byte) error
}

// New builds the reconciler and its event dispatch table.
func New(engine *ledger.Engine, logger *slog.Logger) *Reconciler {
	r := &Reconciler{engine: engine, logger: logger}
	r.handlers = map[string]func(ctx context.Context, reference string, raw []byte) error{
		EventPaymentCompleted: func(ctx context.Context, ref string, raw []byte) error {
			return engine.FinalizeDeposit(ctx, ref, true, raw)
		},
		EventTransferCompleted: func(ctx context.Context, ref string, raw []byte) error {
			return engine.FinalizeTransfer(ctx, ref, true, raw)
		},
		EventTransferFailed: func(ctx context.Context, ref string, raw []byte) error {
			return engine.FinalizeTransfer(ctx, ref, false, raw)
		},
		EventPayoutCompleted: func(ctx context.Context, ref string, raw []byte) error {
			return engine.FinalizePayout(ctx, ref, true, raw)
		},
		EventPayoutFailed: func(ctx context.Context, ref string, raw []byte) error {
			return engine.FinalizePayout(ctx, ref, false, raw)
		},
	}
	return r
}

// Process parses a verified raw event and applies the matching transition.
// Unknown event types, missing or unmatched references, and malformed bodies
// are logged and swallowed — failing the webhook for those only provokes
// provider retry storms. Storage-level failures are returned so the provider
// retries delivery.
func (r *Reconciler) Process(ctx context.Context, raw []byte) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		r.logger.Warn("malformed webhook body", slog.Any("error", err))
		return nil
	}

	handler, ok := r.handlers[env.Type]
	if !ok {
		r.logger.Info("ignoring unhandled webhook event", slog.String("type", env.Type))
		return nil
	}

	var data eventData
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			r.logger.Warn("malformed webhook data", slog.String("type", env.Type), slog.Any("error", err))
			return nil
		}
	}
	if data.MerchantReference == "" {
		r.logger.Warn("webhook event without reference", slog.String("type", env.Type))
		return nil
	}

	if err := handler(ctx, data.MerchantReference, raw); err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			// Possibly stale or unrelated to this deployment; acknowledge.
			r.logger.Info("webhook reference matches no transaction",
				slog.String("type", env.Type), slog.String("reference", data.MerchantReference))
			return nil
		}
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			// Deferred payout debit cannot be covered right now; the record
			// stays pending for out-of-band reconciliation.
			r.logger.Error("deferred debit not coverable",
				slog.String("reference", data.MerchantReference))
			return nil
		}
		return fmt.Errorf("apply %s for %s: %w", env.Type, data.MerchantReference, err)
	}

	r.logger.Info("webhook event applied",
		slog.String("type", env.Type), slog.String("reference", data.MerchantReference))
	return nil
}
