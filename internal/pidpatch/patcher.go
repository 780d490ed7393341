package pidpatch

import "github.com/Eyevinn/mp2ts-pidhider/common"

type PatchResult struct {
	Patched    int
	SyncErrors int
}

// Result is the outcome of processing one datagram.
type Result struct {
	Framing
	PatchResult
}

// Patch rewrites the PID of every TS packet whose PID is in filter to the
// NULL PID. count packets are visited starting at offset. Packets without
// a sync byte are counted and left as they are. Nothing but the PID bits is
// ever written.
func Patch(buf []byte, offset, count int, filter *PidFilter) PatchResult {
	var res PatchResult
	if offset < 0 {
		return res
	}
	if fit := (len(buf) - offset) / common.PacketSize; count > fit {
		count = fit
	}
	for i := 0; i < count; i++ {
		pkt := buf[offset+i*common.PacketSize : offset+(i+1)*common.PacketSize]
		if !hasSync(pkt) {
			res.SyncErrors++
			continue
		}
		if filter.Contains(PID(pkt)) {
			SetPID(pkt, common.NullPid)
			res.Patched++
		}
	}
	return res
}

// Process frames buf according to enc and patches it in place.
// On a framing error buf is left untouched.
func Process(buf []byte, enc Encapsulation, filter *PidFilter) (Result, error) {
	fr, err := FrameDatagram(buf, enc)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Framing:     fr,
		PatchResult: Patch(buf, fr.Offset, fr.Count, filter),
	}, nil
}
