package controller

// connState tracks a connection through the handshake.
type connState int

const (
	// stateWaitIV covers both cleartext handshake frames: the identity
	// and the remote initial vector.
	stateWaitIV connState = iota

	// stateConnected means both AES contexts are established.
	stateConnected
)

func (s connState) String() string {
	switch s {
	case stateWaitIV:
		return "WAIT_IV"
	case stateConnected:
		return "CONNECTED"
	default:
		return "INVALID"
	}
}

// TerminalCode classifies how a connection ended.
type TerminalCode int

// Terminal codes reported by a connection handler.
const (
	// CodeNoError is a clean close with nothing to do.
	CodeNoError TerminalCode = iota

	// CodeAnswered means the in-flight message was answered and its
	// callback fired.
	CodeAnswered

	// CodeSent means commands hit the wire but the connection ended
	// before an answer arrived.
	CodeSent

	// CodeNoUnitID means the identity frame was missing or malformed.
	CodeNoUnitID

	// CodeNoMessageToSend means identity was fine but nothing was
	// queued for the device.
	CodeNoMessageToSend

	// CodeDeviceLockTimeout means the per-device use-lock could not be
	// acquired in time.
	CodeDeviceLockTimeout

	// CodeMissingAESKey means no key is available for the unit id.
	CodeMissingAESKey

	// CodeResponseError means a type-2 frame failed to decrypt or its
	// plaintext failed JSON decoding.
	CodeResponseError

	// CodeTCPError is an unexpected EOF.
	CodeTCPError

	// CodeSocketError is an OS-level socket error.
	CodeSocketError

	// CodeUnknownError is an unclassified failure.
	CodeUnknownError
)

func (c TerminalCode) String() string {
	switch c {
	case CodeNoError:
		return "NO_ERROR"
	case CodeAnswered:
		return "ANSWERED"
	case CodeSent:
		return "SENT"
	case CodeNoUnitID:
		return "NO_UNIT_ID"
	case CodeNoMessageToSend:
		return "NO_MESSAGE_TO_SEND"
	case CodeDeviceLockTimeout:
		return "DEVICE_LOCK_TIMEOUT"
	case CodeMissingAESKey:
		return "MISSING_AES_KEY"
	case CodeResponseError:
		return "RESPONSE_ERROR"
	case CodeTCPError:
		return "TCP_ERROR"
	case CodeSocketError:
		return "SOCKET_ERROR"
	case CodeUnknownError:
		return "UNKNOWN_ERROR"
	default:
		return "INVALID"
	}
}
