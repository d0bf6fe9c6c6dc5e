// Package events defines the typed events a live session reports to its
// caller.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - session.*
//   - user_input.*
//   - assistant_response.*
//   - assistant_playback.*
//   - tool_call.*
//   - turn_state.*
//
// Semantics used across the package:
//
//   - Segment: append-only text piece emitted in stream order.
//   - Final: terminal immutable text for the current turn.
//   - Changed: a state transition with the new value.
//
// session events
//
//   - SessionStateChanged (session.state_changed): the session moved from
//     one state to another.
//   - SessionReconnected (session.reconnected): a new connection replaced
//     the previous one after a context update or key rotation.
//   - SessionClosed (session.closed): the session reached Closed; carries
//     the reason.
//
// user_input events
//
//   - UserVolume (user_input.volume): RMS level of a captured block, reported
//     even while muted.
//   - UserMuteChanged (user_input.mute_changed): microphone mute toggled.
//   - UserTranscriptSegment (user_input.transcript_segment): transcription
//     fragment of the user's speech.
//   - UserTranscriptFinal (user_input.transcript_final): the user's utterance
//     flushed at the end of the turn.
//   - UserStopKeyword (user_input.stop_keyword): a stop keyword was heard in
//     the running user transcript.
//
// assistant_response events
//
//   - AssistantResponseSegment (assistant_response.segment): transcription
//     fragment of the model's speech.
//   - AssistantResponseFinal (assistant_response.final): the model's
//     utterance flushed at the end of the turn.
//
// assistant_playback events
//
//   - AssistantSpeakingChanged (assistant_playback.speaking_changed): local
//     playback started or stopped, after the debounce.
//   - AssistantPlaybackInterrupted (assistant_playback.interrupted): playback
//     was ducked or hard-stopped by a barge-in.
//
// tool_call events
//
//   - ToolCallStarted (tool_call.started): a validated tool call was handed
//     to its handler.
//   - ToolCallCompleted (tool_call.completed): tool execution completed.
//   - ToolCallFailed (tool_call.failed): tool execution failed.
//
// turn_state events
//
//   - TurnCompleted (turn_state.completed): the model finished its turn.
//   - TurnInterrupted (turn_state.interrupted): the model reported that the
//     user talked over it.
package events
