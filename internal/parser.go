package internal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Comcast/gots/v2/packet"
	"github.com/Eyevinn/mp2ts-pidhider/common"
	"github.com/asticode/go-astits"
	slices "golang.org/x/exp/slices"
)

type ElementaryStreamInfo struct {
	PID    uint16 `json:"pid"`
	Codec  string `json:"codec"`
	Type   string `json:"type"`
	Hidden bool   `json:"hidden,omitempty"`
}

func ParseAstitsElementaryStreamInfo(es *astits.PMTElementaryStream) *ElementaryStreamInfo {
	var streamInfo *ElementaryStreamInfo
	switch es.StreamType {
	case astits.StreamTypeH264Video:
		streamInfo = &ElementaryStreamInfo{PID: es.ElementaryPID, Codec: "AVC", Type: "video"}
	case astits.StreamTypeAACAudio:
		streamInfo = &ElementaryStreamInfo{PID: es.ElementaryPID, Codec: "AAC", Type: "audio"}
	case astits.StreamTypeH265Video:
		streamInfo = &ElementaryStreamInfo{PID: es.ElementaryPID, Codec: "HEVC", Type: "video"}
	case astits.StreamTypeSCTE35:
		streamInfo = &ElementaryStreamInfo{PID: es.ElementaryPID, Codec: "SCTE35", Type: "cue"}
	default:
		streamInfo = &ElementaryStreamInfo{PID: es.ElementaryPID, Codec: fmt.Sprintf("0x%02x", uint8(es.StreamType)), Type: "other"}
	}

	return streamInfo
}

// ParseInfo prints the elementary streams of the first PMT, and the SDT if
// asked for. Streams whose PID is in o.PidsToHide are marked hidden.
func ParseInfo(ctx context.Context, w io.Writer, f io.Reader, o Options) error {
	hide, err := ParsePidsFromString(o.PidsToHide)
	if err != nil {
		return err
	}
	rd := bufio.NewReaderSize(f, 1000*common.PacketSize)
	dmx := astits.NewDemuxer(ctx, rd)
	pmtPID := -1
	jp := &JsonPrinter{W: w, Indent: o.Indent}
dataLoop:
	for {
		// Check if context was cancelled
		select {
		case <-ctx.Done():
			break dataLoop
		default:
		}

		d, err := dmx.NextData()
		if err != nil {
			if errors.Is(err, astits.ErrNoMorePackets) {
				break dataLoop
			}
			return fmt.Errorf("reading next data %w", err)
		}

		// Print PID information
		if pmtPID < 0 && d.PMT != nil {
			for _, es := range d.PMT.ElementaryStreams {
				streamInfo := ParseAstitsElementaryStreamInfo(es)
				streamInfo.Hidden = slices.Contains(hide, int(es.ElementaryPID))
				jp.Print(streamInfo, o.ShowStreamInfo)
			}
			pmtPID = int(d.PID)
		}
		if pmtPID == -1 {
			continue
		}

		// Exit immediately if we don't want service information
		if !o.ShowService {
			break dataLoop
		}

		if d.SDT != nil {
			jp.PrintSdtInfo(d.SDT, o.ShowService)
			break dataLoop
		}
	}

	return jp.Error()
}

type PidCount struct {
	PID     int    `json:"pid"`
	Packets uint64 `json:"packets"`
	Null    bool   `json:"null,omitempty"`
}

type PidCountSummary struct {
	Packets    uint64 `json:"packets"`
	SyncErrors uint64 `json:"syncErrors"`
	Pids       int    `json:"pids"`
}

// CountPids counts the TS packets per PID, e.g. to check that hidden PIDs
// turned into null packets.
func CountPids(ctx context.Context, w io.Writer, f io.Reader, o Options) error {
	reader := bufio.NewReader(f)
	_, err := packet.Sync(reader)
	if err != nil {
		return fmt.Errorf("syncing with reader %w", err)
	}

	counts := make(map[int]uint64)
	var summary PidCountSummary
	var pkt packet.Packet
readLoop:
	for {
		select {
		case <-ctx.Done():
			break readLoop
		default:
		}

		if _, err := io.ReadFull(reader, pkt[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return fmt.Errorf("reading Packet %w", err)
		}
		summary.Packets++
		if pkt[0] != common.SyncByte {
			summary.SyncErrors++
			continue
		}
		counts[packet.Pid(&pkt)]++
	}

	pids := make([]int, 0, len(counts))
	for pid := range counts {
		pids = append(pids, pid)
	}
	slices.Sort(pids)

	jp := &JsonPrinter{W: w, Indent: o.Indent}
	for _, pid := range pids {
		jp.Print(PidCount{PID: pid, Packets: counts[pid], Null: pid == common.NullPid}, true)
	}
	summary.Pids = len(pids)
	jp.Print(summary, true)
	return jp.Error()
}
