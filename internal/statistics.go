package internal

import "github.com/Eyevinn/mp2ts-pidhider/internal/pidpatch"

// RelayStatistics are running totals for one route.
type RelayStatistics struct {
	Route          string `json:"route,omitempty"`
	Datagrams      uint64 `json:"datagrams"`
	Bytes          uint64 `json:"bytes"`
	LastSize       int    `json:"lastDatagramSize"`
	TSPackets      uint64 `json:"tsPackets"`
	Patched        uint64 `json:"patched"`
	SyncErrors     uint64 `json:"syncErrors"`
	FramingErrors  uint64 `json:"framingErrors"`
	ShortDatagrams uint64 `json:"shortDatagrams"`
	ReceiveErrors  uint64 `json:"receiveErrors"`
	SendErrors     uint64 `json:"sendErrors"`
}

// AddDatagram accounts for a datagram that was framed and patched.
// Datagrams with trailing bytes are counted as framing errors, datagrams
// without a single complete TS packet (empty ones included) as short.
func (s *RelayStatistics) AddDatagram(size int, res pidpatch.Result) {
	s.addSize(size)
	s.TSPackets += uint64(res.Count)
	s.Patched += uint64(res.Patched)
	s.SyncErrors += uint64(res.SyncErrors)
	if res.Trailing > 0 {
		s.FramingErrors++
	}
	if res.Count == 0 {
		s.ShortDatagrams++
	}
}

// AddFramingError accounts for a datagram whose TS packets could not be located.
func (s *RelayStatistics) AddFramingError(size int) {
	s.addSize(size)
	s.FramingErrors++
}

func (s *RelayStatistics) addSize(size int) {
	s.Datagrams++
	s.Bytes += uint64(size)
	s.LastSize = size
}

// PcapStatistics summarises a pcap run.
type PcapStatistics struct {
	Frames      uint64 `json:"frames"`
	OtherFrames uint64 `json:"otherFrames"`
	RelayStatistics
}

func (p *JsonPrinter) PrintStatistics(s RelayStatistics, show bool) {
	p.Print(s, show)
}
