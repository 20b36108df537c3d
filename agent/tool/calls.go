package tool

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/habit-elevate/agent/contract"
)

type callTools struct {
	dispatcher contractx.CallDispatcher
	reader     contractx.CallReader
	log        contractx.CallLog
	userID     string
}

type CallPlaced struct {
	CallID  string `json:"call_id"`
	Message string `json:"message"`
}

type CallTranscript struct {
	CallID     string `json:"call_id"`
	Status     string `json:"status,omitempty"`
	Transcript string `json:"transcript"`
}

func (c callTools) call(ctx context.Context, tool string, args map[string]any) contractx.ToolResult {
	phone, _ := stringArg(args, "phone_number")
	if strings.TrimSpace(phone) == "" {
		return contractx.ToolResult{Tool: tool, Error: "phone_number is required"}
	}

	callID, err := c.dispatcher.Dispatch(ctx, phone, c.userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", c.userID).Str("tool", tool).Msg("call dispatch failed")
		return contractx.ToolResult{Tool: tool, Error: "Failed to place call: " + err.Error()}
	}
	return contractx.ToolResult{Tool: tool, Result: CallPlaced{CallID: callID, Message: "Call initiated"}}
}

func (c callTools) transcript(ctx context.Context, tool string, args map[string]any) contractx.ToolResult {
	callID, _ := stringArg(args, "call_id")
	callID = strings.TrimSpace(callID)

	if callID == "" && c.log != nil {
		last, err := c.log.LastCall(ctx, c.userID)
		if err != nil && !errors.Is(err, contractx.ErrNotFound) {
			log.Warn().Err(err).Str("user_id", c.userID).Msg("read last call id failed")
		}
		callID = strings.TrimSpace(last)
	}
	if callID == "" {
		return contractx.ToolResult{Tool: tool, Error: "No call found for this user"}
	}

	call, err := c.reader.GetCall(ctx, callID)
	if err != nil {
		return contractx.ToolResult{Tool: tool, Error: "Failed to fetch call: " + err.Error()}
	}
	if strings.TrimSpace(call.Transcript) == "" {
		return contractx.ToolResult{Tool: tool, Result: CallTranscript{CallID: call.ID, Status: call.Status}, Error: "Transcript not available yet"}
	}
	return contractx.ToolResult{Tool: tool, Result: CallTranscript{
		CallID:     call.ID,
		Status:     call.Status,
		Transcript: call.Transcript,
	}}
}
