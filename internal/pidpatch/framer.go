package pidpatch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Eyevinn/mp2ts-pidhider/common"
	"github.com/pion/rtp"
)

var (
	ErrShortRTP             = errors.New("RTP packet too short")
	ErrRTPVersion           = errors.New("incompatible RTP version")
	ErrUnknownEncapsulation = errors.New("unknown encapsulation")
)

// Encapsulation tells how TS packets are carried in a datagram.
type Encapsulation int

const (
	// EncapAuto infers the header length from the datagram size.
	EncapAuto Encapsulation = iota
	// EncapRaw means TS packets start at byte 0.
	EncapRaw
	// EncapRTP means an RTP header precedes the TS packets.
	EncapRTP
)

var encapNames = map[Encapsulation]string{
	EncapAuto: "auto",
	EncapRaw:  "raw",
	EncapRTP:  "rtp",
}

func (e Encapsulation) String() string {
	if n, ok := encapNames[e]; ok {
		return n
	}
	return fmt.Sprintf("Encapsulation(%d)", int(e))
}

func ParseEncapsulation(s string) (Encapsulation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return EncapAuto, nil
	case "raw", "udp":
		return EncapRaw, nil
	case "rtp":
		return EncapRTP, nil
	}
	return EncapAuto, fmt.Errorf("%w: %q", ErrUnknownEncapsulation, s)
}

// Framing describes where the TS packets of a datagram are.
type Framing struct {
	Offset int // first byte of the first TS packet
	Count  int // number of complete TS packets
	// Trailing is the number of bytes after the last complete packet that
	// could not form a packet. Always 0 for EncapAuto.
	Trailing int
}

// Frame splits a datagram of the given length into a leading header and
// complete TS packets. The header length is whatever is left over after
// taking as many 188-byte packets as fit.
func Frame(length int) (count, offset int) {
	if length <= 0 {
		return 0, 0
	}
	count = length / common.PacketSize
	offset = length - count*common.PacketSize
	return count, offset
}

// FrameDatagram locates the TS packets in buf according to enc.
func FrameDatagram(buf []byte, enc Encapsulation) (Framing, error) {
	switch enc {
	case EncapAuto:
		count, offset := Frame(len(buf))
		return Framing{Offset: offset, Count: count}, nil
	case EncapRaw:
		return framePayload(0, len(buf)), nil
	case EncapRTP:
		return frameRTP(buf)
	}
	return Framing{}, fmt.Errorf("%w: %d", ErrUnknownEncapsulation, int(enc))
}

func framePayload(start, end int) Framing {
	n := end - start
	if n < 0 {
		n = 0
	}
	count := n / common.PacketSize
	return Framing{Offset: start, Count: count, Trailing: n - count*common.PacketSize}
}

func frameRTP(buf []byte) (Framing, error) {
	if len(buf) < common.RTPHeaderSize {
		return Framing{}, fmt.Errorf("%w: %d bytes", ErrShortRTP, len(buf))
	}
	var h rtp.Header
	n, err := h.Unmarshal(buf)
	if err != nil {
		return Framing{}, fmt.Errorf("%w: %v", ErrShortRTP, err)
	}
	if h.Version != common.RTPVersion {
		return Framing{}, fmt.Errorf("%w: %d", ErrRTPVersion, h.Version)
	}
	end := len(buf)
	if h.Padding {
		end -= int(buf[end-1])
		if end < n {
			return Framing{}, fmt.Errorf("%w: padding %d exceeds payload", ErrShortRTP, buf[len(buf)-1])
		}
	}
	return framePayload(n, end), nil
}
