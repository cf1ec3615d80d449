package wire

// FrameType identifies the payload carried by a frame.
type FrameType uint8

// Frame types used by the QCX local protocol.
const (
	// TypeIdentity is a cleartext JSON identity announcement.
	// Always the first frame a device sends after connecting.
	TypeIdentity FrameType = 0

	// TypeIV carries the 8-byte AES initial vector of the sender.
	TypeIV FrameType = 1

	// TypeData carries an AES-CBC encrypted, space-padded JSON payload.
	TypeData FrameType = 2
)

// IsValid returns true for the three known frame types.
func (t FrameType) IsValid() bool {
	return t <= TypeData
}

func (t FrameType) String() string {
	switch t {
	case TypeIdentity:
		return "Identity"
	case TypeIV:
		return "IV"
	case TypeData:
		return "Data"
	default:
		return "Unknown"
	}
}
