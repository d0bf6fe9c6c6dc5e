package orchestration

import (
	"context"

	"github.com/koscakluka/ema-live/core/tools"
)

func sessionControlTools(s *Session) []tools.Tool {
	return []tools.Tool{
		tools.MustNewTool("microphone_control", "Mute or unmute the user's microphone, might be referred to as 'listening'",
			func(_ context.Context, parameters struct {
				IsMuted bool `json:"is_muted" jsonschema:"description=Whether the microphone should be muted"`
			}) (any, error) {
				s.Mute(parameters.IsMuted)
				return "Success. Respond with a very short phrase", nil
			}),
		tools.MustNewTool("end_session", "End the live session when the user says goodbye or asks to hang up",
			func(_ context.Context, _ struct{}) (any, error) {
				// Stopping closes the dispatcher, so this call's own response is
				// dropped. Run it after the handler returns.
				go s.stop("ended by model")
				return "Ending session", nil
			}),
	}
}
