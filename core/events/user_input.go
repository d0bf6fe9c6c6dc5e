package events

const (
	// KindUserVolume identifies capture level reports.
	KindUserVolume Kind = "user_input.volume"
	// KindUserMuteChanged identifies microphone mute changes.
	KindUserMuteChanged Kind = "user_input.mute_changed"
	// KindUserTranscriptSegment identifies append-only user transcript fragments.
	KindUserTranscriptSegment Kind = "user_input.transcript_segment"
	// KindUserTranscriptFinal identifies the flushed user utterance.
	KindUserTranscriptFinal Kind = "user_input.transcript_final"
	// KindUserStopKeyword identifies a detected stop keyword.
	KindUserStopKeyword Kind = "user_input.stop_keyword"
)

// UserVolume carries the RMS level of a captured block.
type UserVolume struct {
	Base
	Level float64
}

// NewUserVolume creates a user volume event.
func NewUserVolume(level float64) UserVolume {
	return UserVolume{Base: NewBase(KindUserVolume), Level: level}
}

// UserMuteChanged carries the new microphone mute state.
type UserMuteChanged struct {
	Base
	Muted bool
}

// NewUserMuteChanged creates a user mute changed event.
func NewUserMuteChanged(muted bool) UserMuteChanged {
	return UserMuteChanged{Base: NewBase(KindUserMuteChanged), Muted: muted}
}

// UserTranscriptSegment carries a user transcript fragment.
type UserTranscriptSegment struct {
	Base
	Segment string
}

// NewUserTranscriptSegment creates a user transcript segment event.
func NewUserTranscriptSegment(segment string) UserTranscriptSegment {
	return UserTranscriptSegment{Base: NewBase(KindUserTranscriptSegment), Segment: segment}
}

// UserTranscriptFinal carries the user's utterance for the turn.
type UserTranscriptFinal struct {
	Base
	Transcript string
}

// NewUserTranscriptFinal creates a final user transcript event.
func NewUserTranscriptFinal(transcript string) UserTranscriptFinal {
	return UserTranscriptFinal{Base: NewBase(KindUserTranscriptFinal), Transcript: transcript}
}

// UserStopKeyword carries the running transcript a stop keyword was found in.
type UserStopKeyword struct {
	Base
	Transcript string
}

// NewUserStopKeyword creates a stop keyword event.
func NewUserStopKeyword(transcript string) UserStopKeyword {
	return UserStopKeyword{Base: NewBase(KindUserStopKeyword), Transcript: transcript}
}
