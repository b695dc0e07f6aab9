package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/revenac/apiserver/internal/logging"
	"github.com/revenac/apiserver/internal/mq"
	"github.com/revenac/apiserver/internal/services"
	"github.com/revenac/apiserver/types"
	"github.com/rs/zerolog"
)

// Subscriber consumes a channel. *mq.MQ satisfies it.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler mq.Handler) error
}

// CodeGenerator issues an earn code for one deposit.
type CodeGenerator interface {
	Generate(ctx context.Context, deposit services.Deposit) (types.EarnCode, error)
}

// DepositWorker turns machine deposit messages into earn codes. The codes
// themselves are announced on mq.ChannelCodes by the code service.
type DepositWorker struct {
	sub    Subscriber
	codes  CodeGenerator
	logger zerolog.Logger
}

func NewDepositWorker(sub Subscriber, codes CodeGenerator, logger zerolog.Logger) *DepositWorker {
	return &DepositWorker{
		sub:    sub,
		codes:  codes,
		logger: logger.With().Str("component", "deposit_worker").Logger(),
	}
}

// Run consumes mq.ChannelDeposits until ctx is cancelled.
func (w *DepositWorker) Run(ctx context.Context) error {
	w.logger.Info().Str("channel", mq.ChannelDeposits).Msg("consuming deposits")
	err := w.sub.Subscribe(ctx, mq.ChannelDeposits, w.Handle)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Handle processes one deposit message. Malformed or invalid deposits are
// dropped; only store failures are returned, leaving the backoff and
// dead-lettering to the mq backend.
func (w *DepositWorker) Handle(ctx context.Context, msg mq.Message) error {
	var deposit services.Deposit
	if err := json.Unmarshal(msg.Data, &deposit); err != nil {
		w.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("drop malformed deposit")
		return nil
	}

	code, err := w.codes.Generate(ctx, deposit)
	if err != nil {
		if services.KindOf(err) == services.KindInvalidInput {
			w.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("drop invalid deposit")
			return nil
		}
		w.logger.Error().Err(err).Str("message_id", msg.ID).Int("attempt", msg.Attempt).Msg("generate code, handing back for retry")
		return err
	}

	w.logger.Debug().
		Str("message_id", msg.ID).
		Str("machine_id", code.MachineID).
		Str("code", logging.Redact(code.Code)).
		Msg("deposit processed")
	return nil
}
