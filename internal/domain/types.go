package domain

// RecordingState is the coordinator's toggle state. Exactly one per coordinator.
type RecordingState string

const (
	RecordingStateIdle      RecordingState = "idle"
	RecordingStateRecording RecordingState = "recording"
)

// SessionState models the transcription connection lifecycle.
type SessionState string

const (
	SessionStateDisconnected       SessionState = "disconnected"
	SessionStateConnectedIdle      SessionState = "connected_idle"
	SessionStateConnectedRecording SessionState = "connected_recording"
	SessionStateAwaitingFinal      SessionState = "awaiting_final"
)

// Phase is the user-facing lifecycle reported to the event sink.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseRecording    Phase = "recording"
	PhaseTranscribing Phase = "transcribing"
)

// PhaseReason provides a structured reason for phase transitions.
type PhaseReason string

const (
	ReasonReady                        PhaseReason = "ready"
	ReasonRecordingStarted             PhaseReason = "recording_started"
	ReasonTranscribing                 PhaseReason = "transcribing"
	ReasonTranscriptCopied             PhaseReason = "transcript_copied"
	ReasonTranscriptPasted             PhaseReason = "transcript_pasted"
	ReasonTranscriptReadyClipboardFail PhaseReason = "transcript_clipboard_failed"
	ReasonNoTranscript                 PhaseReason = "no_transcript"
	ReasonStartFailed                  PhaseReason = "start_failed"
	ReasonShutdown                     PhaseReason = "shutdown"
)

// ErrorCode identifies non-fatal and fatal backend errors.
type ErrorCode string

const (
	ErrorCodeStartup     ErrorCode = "startup"
	ErrorCodeConnect     ErrorCode = "connect"
	ErrorCodeAudioStart  ErrorCode = "audio_start"
	ErrorCodeAudioStream ErrorCode = "audio_stream"
	ErrorCodeSession     ErrorCode = "session"
	ErrorCodeClipboard   ErrorCode = "clipboard"
	ErrorCodePaste       ErrorCode = "paste"
	ErrorCodeToggle      ErrorCode = "toggle"
)

// StopResult is returned once recording is stopped and the transcript delivered.
type StopResult struct {
	Transcript string `json:"transcript"`
	Copied     bool   `json:"copied"`
	Pasted     bool   `json:"pasted"`
}

// Status summarizes the current runtime status.
type Status struct {
	State   RecordingState `json:"state"`
	Session SessionState   `json:"session"`
	Active  bool           `json:"active"`
}
