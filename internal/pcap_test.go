package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"testing"
	"time"

	"github.com/Eyevinn/mp2ts-pidhider/common"
	"github.com/Eyevinn/mp2ts-pidhider/internal/pidpatch"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/require"
)

func udpFrame(t *testing.T, dst string, dstPort uint16, payload []byte) []byte {
	t.Helper()
	dstIP := net.ParseIP(dst)
	require.NotNil(t, dstIP)
	udp := &layers.UDP{SrcPort: 40000, DstPort: layers.UDPPort(dstPort)}

	var ip gopacket.SerializableLayer
	eth := &layers.Ethernet{SrcMAC: net.HardwareAddr{0, 1, 2, 3, 4, 5}}
	if dstIP.To4() != nil {
		eth.DstMAC = net.HardwareAddr{0x01, 0x00, 0x5e, 1, 1, 1}
		eth.EthernetType = layers.EthernetTypeIPv4
		ip4 := &layers.IPv4{
			Version:  4,
			IHL:      5,
			TTL:      16,
			Protocol: layers.IPProtocolUDP,
			SrcIP:    net.IPv4(10, 0, 0, 1),
			DstIP:    dstIP,
		}
		require.NoError(t, udp.SetNetworkLayerForChecksum(ip4))
		ip = ip4
	} else {
		eth.DstMAC = net.HardwareAddr{0x33, 0x33, 0, 0, 0, 1}
		eth.EthernetType = layers.EthernetTypeIPv6
		ip6 := &layers.IPv6{
			Version:    6,
			HopLimit:   16,
			NextHeader: layers.IPProtocolUDP,
			SrcIP:      net.ParseIP("fd00::1"),
			DstIP:      dstIP,
		}
		require.NoError(t, udp.SetNetworkLayerForChecksum(ip6))
		ip = ip6
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(payload)))
	return append([]byte{}, buf.Bytes()...)
}

func writePcap(t *testing.T, frames ...[]byte) *bytes.Buffer {
	t.Helper()
	out := &bytes.Buffer{}
	w := pcapgo.NewWriter(out)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))
	ts := time.Unix(1700000000, 0)
	for i, f := range frames {
		ci := gopacket.CaptureInfo{Timestamp: ts.Add(time.Duration(i) * time.Millisecond), CaptureLength: len(f), Length: len(f)}
		require.NoError(t, w.WritePacket(ci, f))
	}
	return out
}

func readFrames(t *testing.T, r *bytes.Buffer) [][]byte {
	t.Helper()
	pr, err := pcapgo.NewReader(r)
	require.NoError(t, err)
	var frames [][]byte
	for {
		data, _, err := pr.ReadPacketData()
		if err == io.EOF {
			return frames
		}
		require.NoError(t, err)
		frames = append(frames, data)
	}
}

func udpLayer(t *testing.T, frame []byte) *layers.UDP {
	t.Helper()
	pkt := gopacket.NewPacket(frame, layers.LinkTypeEthernet, gopacket.Default)
	udp, ok := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP)
	require.True(t, ok)
	return udp
}

func TestHidePidsInPcap(t *testing.T) {
	rtpHdr := []byte{0x80, 0x21, 0, 1, 0, 0, 0, 0, 0, 0, 0, 1}
	selected := joinPackets(rtpHdr, tsPacket(100, 0), tsPacket(200, 0))
	other := joinPackets(nil, tsPacket(100, 1))
	in := writePcap(t,
		udpFrame(t, "239.1.1.1", 5000, selected),
		udpFrame(t, "239.9.9.9", 5000, other),
	)

	text, out, ts := bytes.Buffer{}, bytes.Buffer{}, bytes.Buffer{}
	o := Options{PidsToHide: "100", Encapsulation: "rtp", Destination: "239.1.1.1:5000"}
	require.NoError(t, HidePidsInPcap(context.Background(), &text, &out, &ts, in, o))

	var stats PcapStatistics
	require.NoError(t, json.Unmarshal(text.Bytes(), &stats))
	require.Equal(t, uint64(2), stats.Frames)
	require.Equal(t, uint64(1), stats.OtherFrames)
	require.Equal(t, uint64(1), stats.Datagrams)
	require.Equal(t, uint64(2), stats.TSPackets)
	require.Equal(t, uint64(1), stats.Patched)

	// A patched frame must equal a frame built from scratch around the
	// patched payload, checksum included.
	hidden := joinPackets(rtpHdr, tsPacket(100, 0), tsPacket(200, 0))
	pidpatch.SetPID(hidden[12:], common.NullPid)
	frames := readFrames(t, &out)
	require.Len(t, frames, 2)
	require.Equal(t, udpFrame(t, "239.1.1.1", 5000, hidden), frames[0])
	require.NotEqual(t, uint16(0), udpLayer(t, frames[0]).Checksum)
	require.Equal(t, udpFrame(t, "239.9.9.9", 5000, other), frames[1], "other flows are not touched")

	require.Len(t, ts.Bytes(), 376)
	require.Equal(t, uint16(common.NullPid), pidpatch.PID(ts.Bytes()))
	require.Equal(t, uint16(200), pidpatch.PID(ts.Bytes()[188:]))
}

func TestHidePidsInPcapChecksums(t *testing.T) {
	payload := joinPackets(nil, tsPacket(100, 0), tsPacket(101, 0))
	hidden := joinPackets(nil, tsPacket(100, 0), tsPacket(101, 0))
	pidpatch.SetPID(hidden, common.NullPid)

	v4NoChecksum := udpFrame(t, "239.1.1.1", 5000, payload)
	udpStart := 14 + 20
	v4NoChecksum[udpStart+6], v4NoChecksum[udpStart+7] = 0, 0

	in := writePcap(t,
		udpFrame(t, "ff3e::1234", 5000, payload),
		v4NoChecksum,
	)
	text, out := bytes.Buffer{}, bytes.Buffer{}
	o := Options{PidsToHide: "100", Encapsulation: "raw"}
	require.NoError(t, HidePidsInPcap(context.Background(), &text, &out, nil, in, o))

	frames := readFrames(t, &out)
	require.Len(t, frames, 2)
	require.Equal(t, udpFrame(t, "ff3e::1234", 5000, hidden), frames[0])

	udp := udpLayer(t, frames[1])
	require.Equal(t, uint16(0), udp.Checksum, "disabled IPv4 checksum stays disabled")
	require.Equal(t, hidden, udp.Payload)
}

func TestHidePidsInPcapErrors(t *testing.T) {
	ctx := context.Background()
	in := writePcap(t)
	require.Error(t, HidePidsInPcap(ctx, &bytes.Buffer{}, nil, nil, in, Options{PidsToHide: "x"}))
	require.Error(t, HidePidsInPcap(ctx, &bytes.Buffer{}, nil, nil, in, Options{PidsToHide: "1", Encapsulation: "srt"}))
	require.Error(t, HidePidsInPcap(ctx, &bytes.Buffer{}, nil, nil, in, Options{Destination: "239.1.1.1"}))
	require.Error(t, HidePidsInPcap(ctx, &bytes.Buffer{}, nil, nil, bytes.NewBufferString("not a pcap"), Options{}))
}
