package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/revenac/apiserver/internal/mq"
	"github.com/revenac/apiserver/internal/services"
	"github.com/revenac/apiserver/internal/store"
	"github.com/revenac/apiserver/types"
	"github.com/rs/zerolog"
)

type codeRepo struct {
	created []types.EarnCode
	err     error
}

func (r *codeRepo) Create(ctx context.Context, code types.EarnCode) (types.EarnCode, error) {
	if r.err != nil {
		return types.EarnCode{}, r.err
	}
	code.ID = int64(len(r.created) + 1)
	r.created = append(r.created, code)
	return code, nil
}

type channelSubscriber struct {
	messages []mq.Message
	results  []error
	channel  string
}

func (s *channelSubscriber) Subscribe(ctx context.Context, channel string, handler mq.Handler) error {
	s.channel = channel
	for _, msg := range s.messages {
		s.results = append(s.results, handler(ctx, msg))
	}
	return context.Canceled
}

func newWorker(repo *codeRepo, sub Subscriber) *DepositWorker {
	codes := services.NewCodeService(repo, nil, nil, zerolog.Nop())
	return NewDepositWorker(sub, codes, zerolog.Nop())
}

func TestDepositWorkerGeneratesCodes(t *testing.T) {
	repo := &codeRepo{}
	sub := &channelSubscriber{messages: []mq.Message{
		{ID: "1", Data: []byte(`{"machine_id":"rvm01","item_type":"GLASS_BOTTLE"}`)},
		{ID: "2", Data: []byte(`not json`)},
		{ID: "3", Data: []byte(`{"item_type":"PAPER"}`)},
	}}

	if err := newWorker(repo, sub).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if sub.channel != mq.ChannelDeposits {
		t.Fatalf("subscribed to %q", sub.channel)
	}
	for i, err := range sub.results {
		if err != nil {
			t.Fatalf("message %d should be acked, got %v", i, err)
		}
	}
	if len(repo.created) != 1 || repo.created[0].TokenValue != 20 {
		t.Fatalf("unexpected codes %+v", repo.created)
	}
}

func TestDepositWorkerRetriesStoreFailures(t *testing.T) {
	repo := &codeRepo{err: errors.New("db down")}
	w := newWorker(repo, nil)

	err := w.Handle(context.Background(), mq.Message{ID: "1", Data: []byte(`{"machine_id":"M","item_type":"PAPER"}`)})
	if services.KindOf(err) != services.KindStoreFailure {
		t.Fatalf("expected store failure for redelivery, got %v", err)
	}

	repo.err = store.ErrConflict
	if err := w.Handle(context.Background(), mq.Message{ID: "2", Data: []byte(`{"machine_id":"M","item_type":"PAPER"}`)}); err == nil {
		t.Fatalf("expected error after exhausted retries")
	}
}
