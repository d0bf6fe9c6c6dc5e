package gemini

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/transport"
	"google.golang.org/genai"
)

func liveConnectConfig(config transport.SessionConfig) (*genai.LiveConnectConfig, error) {
	modalities := []genai.Modality{genai.ModalityAudio}
	if len(config.ResponseModalities) > 0 {
		modalities = modalities[:0]
		for _, modality := range config.ResponseModalities {
			modalities = append(modalities, genai.Modality(modality))
		}
	}

	voice := config.Voice
	if voice == "" {
		voice = DefaultVoice
	}

	liveConfig := &genai.LiveConnectConfig{
		ResponseModalities: modalities,
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
	}

	if config.SystemInstruction != "" {
		liveConfig.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: config.SystemInstruction}},
		}
	}
	if config.InputTranscription {
		liveConfig.InputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}
	if config.OutputTranscription {
		liveConfig.OutputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}

	if len(config.Tools) > 0 {
		declarations := make([]*genai.FunctionDeclaration, 0, len(config.Tools))
		for _, tool := range config.Tools {
			declaration := &genai.FunctionDeclaration{Name: tool.Name, Description: tool.Description}
			if len(tool.Parameters) > 0 {
				var schema map[string]any
				if err := json.Unmarshal(tool.Parameters, &schema); err != nil {
					return nil, fmt.Errorf("%w: invalid parameter schema for tool %q: %w", transport.ErrFatalConfig, tool.Name, err)
				}
				declaration.ParametersJsonSchema = schema
			}
			declarations = append(declarations, declaration)
		}
		liveConfig.Tools = []*genai.Tool{{FunctionDeclarations: declarations}}
	}

	return liveConfig, nil
}

func inboundMessage(msg *genai.LiveServerMessage) transport.InboundMessage {
	var inbound transport.InboundMessage
	if msg == nil {
		return inbound
	}
	inbound.SetupComplete = msg.SetupComplete != nil

	if content := msg.ServerContent; content != nil {
		inbound.Interrupted = content.Interrupted
		inbound.TurnComplete = content.TurnComplete
		if content.InputTranscription != nil {
			inbound.InputTranscription = content.InputTranscription.Text
		}
		if content.OutputTranscription != nil {
			inbound.OutputTranscription = content.OutputTranscription.Text
		}

		var text strings.Builder
		if content.ModelTurn != nil {
			for _, part := range content.ModelTurn.Parts {
				if part == nil {
					continue
				}
				if part.InlineData != nil && strings.HasPrefix(part.InlineData.MIMEType, "audio/") {
					inbound.Audio = append(inbound.Audio, audio.WireAudioFrame{
						Data:     base64.StdEncoding.EncodeToString(part.InlineData.Data),
						MimeType: part.InlineData.MIMEType,
					})
				}
				if part.Text != "" && !part.Thought {
					text.WriteString(part.Text)
				}
			}
		}
		// Text modality sessions carry the model output as plain text parts.
		if inbound.OutputTranscription == "" {
			inbound.OutputTranscription = text.String()
		}
	}

	if msg.ToolCall != nil {
		for _, call := range msg.ToolCall.FunctionCalls {
			if call == nil {
				continue
			}
			args, err := json.Marshal(call.Args)
			if err != nil || call.Args == nil {
				args = []byte("{}")
			}
			inbound.ToolCalls = append(inbound.ToolCalls, transport.ToolCall{
				ID:   call.ID,
				Name: call.Name,
				Args: args,
			})
		}
	}

	return inbound
}
