package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/habit-elevate/agent/contract"
	vapix "github.com/tanpawarit/habit-elevate/pkg/vapi"
)

// CallClient is the part of the voice provider client used to place and read calls.
type CallClient interface {
	CreateCall(ctx context.Context, phoneNumber string) (vapix.Call, error)
	GetCall(ctx context.Context, callID string) (vapix.Call, error)
}

// CallDispatcher places outbound calls and remembers the last call id per user.
type CallDispatcher struct {
	client CallClient
	calls  contractx.CallLog
}

var (
	_ contractx.CallDispatcher = (*CallDispatcher)(nil)
	_ contractx.CallReader     = (*CallDispatcher)(nil)
)

// NewCallDispatcher builds a dispatcher. calls may be nil, in which case call ids are not
// recorded.
func NewCallDispatcher(client CallClient, calls contractx.CallLog) (*CallDispatcher, error) {
	if client == nil {
		return nil, errors.New("call client is required")
	}
	return &CallDispatcher{client: client, calls: calls}, nil
}

func (d *CallDispatcher) Dispatch(ctx context.Context, phoneNumber string, userID string) (string, error) {
	if strings.TrimSpace(phoneNumber) == "" {
		return "", fmt.Errorf("%w: phone number is required", contractx.ErrValidation)
	}

	call, err := d.client.CreateCall(ctx, phoneNumber)
	if err != nil {
		return "", fmt.Errorf("%w: create call: %w", contractx.ErrUpstream, err)
	}

	logger := log.With().Str("call_id", call.ID).Str("user_id", userID).Logger()
	logger.Info().Msg("outbound call initiated")

	if d.calls != nil && strings.TrimSpace(userID) != "" {
		if err := d.calls.SaveLastCall(ctx, userID, call.ID); err != nil {
			logger.Warn().Err(err).Msg("record last call id failed")
		}
	}
	return call.ID, nil
}

func (d *CallDispatcher) GetCall(ctx context.Context, callID string) (contractx.Call, error) {
	call, err := d.client.GetCall(ctx, callID)
	if errors.Is(err, vapix.ErrCallNotFound) {
		return contractx.Call{}, fmt.Errorf("%w: %w", contractx.ErrNotFound, err)
	}
	if err != nil {
		return contractx.Call{}, fmt.Errorf("%w: get call: %w", contractx.ErrUpstream, err)
	}
	return contractx.Call{
		ID:         call.ID,
		Status:     call.Status,
		Transcript: call.TranscriptText(),
	}, nil
}
