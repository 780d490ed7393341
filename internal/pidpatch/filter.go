package pidpatch

import (
	"errors"
	"fmt"

	"github.com/Eyevinn/mp2ts-pidhider/common"
	slices "golang.org/x/exp/slices"
)

var (
	ErrTooManyPids   = errors.New("too many pids to hide")
	ErrPidOutOfRange = errors.New("pid out of range")
)

// PidFilter is the set of PIDs to hide. It is built once and never changed.
type PidFilter struct {
	pids []uint16
}

func NewPidFilter(pids []int) (*PidFilter, error) {
	if len(pids) > common.MaxFilterPids {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyPids, len(pids), common.MaxFilterPids)
	}
	f := &PidFilter{pids: make([]uint16, 0, len(pids))}
	for _, pid := range pids {
		if pid < 0 || pid > common.NullPid {
			return nil, fmt.Errorf("%w: %d", ErrPidOutOfRange, pid)
		}
		f.pids = append(f.pids, uint16(pid))
	}
	return f, nil
}

// Contains does a linear scan, lists are at most 100 entries.
func (f *PidFilter) Contains(pid uint16) bool {
	if f == nil {
		return false
	}
	return slices.Contains(f.pids, pid)
}

// Pids returns a copy of the configured PIDs in configuration order.
func (f *PidFilter) Pids() []int {
	if f == nil {
		return nil
	}
	out := make([]int, len(f.pids))
	for i, p := range f.pids {
		out[i] = int(p)
	}
	return out
}

func (f *PidFilter) Len() int {
	if f == nil {
		return 0
	}
	return len(f.pids)
}
