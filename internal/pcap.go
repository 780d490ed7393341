package internal

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"

	"github.com/Eyevinn/mp2ts-pidhider/common"
	"github.com/Eyevinn/mp2ts-pidhider/internal/pidpatch"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// udpDestination selects the datagrams of one flow in a capture.
type udpDestination struct {
	ip   net.IP
	port int
}

func parseDestination(s string) (*udpDestination, error) {
	if s == "" {
		return nil, nil
	}
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return nil, fmt.Errorf("parsing destination %w", err)
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("parsing destination port %w", err)
	}
	d := &udpDestination{port: p}
	if host != "" {
		if d.ip = net.ParseIP(host); d.ip == nil {
			return nil, fmt.Errorf("invalid destination address %q", host)
		}
	}
	return d, nil
}

func (d *udpDestination) match(pkt gopacket.Packet, udp *layers.UDP) bool {
	if d == nil {
		return true
	}
	if int(udp.DstPort) != d.port {
		return false
	}
	if d.ip == nil {
		return true
	}
	if nl := pkt.NetworkLayer(); nl != nil {
		return net.IP(nl.NetworkFlow().Dst().Raw()).Equal(d.ip)
	}
	return false
}

// fixUDPChecksum recomputes the checksum of a patched UDP datagram in place.
// An IPv4 checksum of zero means none and is kept.
func fixUDPChecksum(pkt gopacket.Packet, udp *layers.UDP) error {
	switch nl := pkt.NetworkLayer().(type) {
	case *layers.IPv4:
		if udp.Checksum == 0 {
			return nil
		}
		if err := udp.SetNetworkLayerForChecksum(nl); err != nil {
			return err
		}
	case *layers.IPv6:
		if err := udp.SetNetworkLayerForChecksum(nl); err != nil {
			return err
		}
	default:
		return nil
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, udp, gopacket.Payload(udp.Payload)); err != nil {
		return fmt.Errorf("computing UDP checksum %w", err)
	}
	copy(udp.Contents[6:8], buf.Bytes()[6:8])
	return nil
}

// HidePidsInPcap applies the PID hiding of the relay to every UDP payload of
// a pcap capture. All frames are written to pcapWriter, patched ones with
// their UDP checksum recomputed. If tsWriter is set, the TS packets of the
// patched datagrams are written to it as well.
func HidePidsInPcap(ctx context.Context, textWriter, pcapWriter, tsWriter io.Writer, f io.Reader, o Options) error {
	pids, err := ParsePidsFromString(o.PidsToHide)
	if err != nil {
		return err
	}
	filter, err := pidpatch.NewPidFilter(pids)
	if err != nil {
		return err
	}
	enc, err := pidpatch.ParseEncapsulation(o.Encapsulation)
	if err != nil {
		return err
	}
	dst, err := parseDestination(o.Destination)
	if err != nil {
		return err
	}

	r, err := pcapgo.NewReader(f)
	if err != nil {
		return fmt.Errorf("reading pcap header %w", err)
	}
	var w *pcapgo.Writer
	if pcapWriter != nil {
		w = pcapgo.NewWriter(pcapWriter)
		if err := w.WriteFileHeader(r.Snaplen(), r.LinkType()); err != nil {
			return fmt.Errorf("writing pcap header %w", err)
		}
	}

	jp := &JsonPrinter{W: textWriter, Indent: o.Indent}
	stats := PcapStatistics{RelayStatistics: RelayStatistics{Route: o.Destination}}

frameLoop:
	for {
		// Check if context was cancelled
		select {
		case <-ctx.Done():
			break frameLoop
		default:
		}

		data, ci, err := r.ReadPacketData()
		if err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break frameLoop
			}
			return fmt.Errorf("reading pcap frame %w", err)
		}
		stats.Frames++

		pkt := gopacket.NewPacket(data, r.LinkType(), gopacket.NoCopy)
		udp, ok := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP)
		if !ok || len(udp.Payload) == 0 || !dst.match(pkt, udp) {
			stats.OtherFrames++
		} else {
			d := udp.Payload
			res, err := pidpatch.Process(d, enc, filter)
			if err != nil {
				stats.AddFramingError(len(d))
			} else {
				stats.AddDatagram(len(d), res)
				if res.Patched > 0 && !pkt.Metadata().Truncated && ci.CaptureLength == ci.Length {
					if err := fixUDPChecksum(pkt, udp); err != nil {
						return err
					}
				}
				if tsWriter != nil && res.Count > 0 {
					if _, err := tsWriter.Write(d[res.Offset : res.Offset+res.Count*common.PacketSize]); err != nil {
						return fmt.Errorf("writing TS %w", err)
					}
				}
			}
		}

		if w != nil {
			if err := w.WritePacket(ci, data); err != nil {
				return fmt.Errorf("writing pcap frame %w", err)
			}
		}
	}

	jp.Print(stats, true)
	return jp.Error()
}
