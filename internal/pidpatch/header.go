// Package pidpatch locates TS packets inside UDP datagrams and hides selected
// PIDs by rewriting them to the NULL PID in place.
package pidpatch

import "github.com/Eyevinn/mp2ts-pidhider/common"

// Only the first 4 bytes of a TS packet are looked at:
//
//	byte 0: sync (0x47)
//	byte 1: tei(1) pusi(1) priority(1) pid[12:8](5)
//	byte 2: pid[7:0]
//	byte 3: tsc(2) afc(2) cc(4)

func hasSync(pkt []byte) bool {
	return pkt[0] == common.SyncByte
}

// PID returns the 13-bit PID of the TS packet starting at pkt[0].
func PID(pkt []byte) uint16 {
	return uint16(pkt[1]&0x1F)<<8 | uint16(pkt[2])
}

// SetPID overwrites the PID of the TS packet starting at pkt[0].
// The three flag bits sharing byte 1 are kept.
func SetPID(pkt []byte, pid uint16) {
	pid &= common.PidMask
	pkt[1] = pkt[1]&0xE0 | byte(pid>>8)
	pkt[2] = byte(pid)
}
