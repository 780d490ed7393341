package common

const (
	PacketSize = 188
	SyncByte   = 0x47
	NullPid    = 8191
	PidMask    = 0x1FFF

	// MaxFilterPids is the largest number of PIDs that can be hidden per route.
	MaxFilterPids = 100

	RTPVersion    = 2
	RTPHeaderSize = 12

	// DefaultDatagramSize is the default receive buffer size.
	DefaultDatagramSize = 1400
	MaxDatagramSize     = 65507
)
