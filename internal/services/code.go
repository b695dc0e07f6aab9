package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/revenac/apiserver/config"
	"github.com/revenac/apiserver/internal/metrics"
	"github.com/revenac/apiserver/internal/mq"
	"github.com/revenac/apiserver/internal/store"
	"github.com/revenac/apiserver/types"
	"github.com/rs/zerolog"
)

const (
	codePrefix        = "RVM"
	codeRandomBytes   = 8
	codeCreateRetries = 3
)

// EarnCodeRepository defines persistence operations for earn codes.
type EarnCodeRepository interface {
	Create(ctx context.Context, code types.EarnCode) (types.EarnCode, error)
}

// Deposit describes one item accepted by a reverse-vending machine.
type Deposit struct {
	MachineID       string  `json:"machine_id"`
	MachineLocation *string `json:"machine_location,omitempty"`
	ItemType        string  `json:"item_type"`
}

// CodeService issues single-use earn codes for machine deposits.
type CodeService struct {
	repo   EarnCodeRepository
	values config.ItemValues
	events EventPublisher
	logger zerolog.Logger
	random func([]byte) (int, error)
}

// NewCodeService constructs a CodeService. events may be nil.
func NewCodeService(repo EarnCodeRepository, values config.ItemValues, events EventPublisher, logger zerolog.Logger) *CodeService {
	if values == nil {
		values = config.DefaultItemValues()
	}
	return &CodeService{
		repo:   repo,
		values: values,
		events: events,
		logger: logger.With().Str("component", "codes").Logger(),
		random: rand.Read,
	}
}

// Generate stores a fresh unconsumed code for the deposit. The token value is
// taken from the item table.
func (s *CodeService) Generate(ctx context.Context, deposit Deposit) (types.EarnCode, error) {
	machineID := strings.ToUpper(strings.TrimSpace(deposit.MachineID))
	itemType := strings.ToUpper(strings.TrimSpace(deposit.ItemType))
	if machineID == "" {
		return types.EarnCode{}, invalidInput("machine_id is required")
	}
	if strings.ContainsAny(machineID, " \t\r\n") {
		return types.EarnCode{}, invalidInput("invalid machine_id")
	}
	if itemType == "" {
		return types.EarnCode{}, invalidInput("item_type is required")
	}

	code := types.EarnCode{
		MachineID:       machineID,
		MachineLocation: trimOptional(deposit.MachineLocation),
		ItemType:        itemType,
		TokenValue:      s.values.TokensFor(itemType),
	}

	var lastErr error
	for attempt := 0; attempt < codeCreateRetries; attempt++ {
		value, err := s.newCode(machineID)
		if err != nil {
			return types.EarnCode{}, storeFailure(err)
		}
		code.Code = value

		created, err := s.repo.Create(ctx, code)
		if err == nil {
			metrics.IncCodeGenerated(itemType)
			s.logger.Info().
				Str("machine_id", machineID).
				Str("item_type", itemType).
				Int("tokens", created.TokenValue).
				Msg("earn code generated")
			publishEvent(ctx, s.events, s.logger, mq.ChannelCodes, created)
			return created, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return types.EarnCode{}, storeFailure(err)
		}
		lastErr = err
	}
	return types.EarnCode{}, storeFailure(fmt.Errorf("generate unique code: %w", lastErr))
}

func (s *CodeService) newCode(machineID string) (string, error) {
	buf := make([]byte, codeRandomBytes)
	if _, err := s.random(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return fmt.Sprintf("%s-%s-%s", codePrefix, machineID, strings.ToUpper(hex.EncodeToString(buf))), nil
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
