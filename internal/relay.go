package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/Eyevinn/mp2ts-pidhider/common"
	"github.com/Eyevinn/mp2ts-pidhider/internal/pidpatch"
	"github.com/Eyevinn/mp2ts-pidhider/internal/udp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type RelayOptions struct {
	Name          string
	Encapsulation pidpatch.Encapsulation
	Filter        *pidpatch.PidFilter
	BufferSize    int
	StatsInterval time.Duration
}

// Relay receives datagrams, hides the filtered PIDs and forwards the
// datagrams unchanged in size and order. One datagram is handled at a time.
type Relay struct {
	o     RelayOptions
	in    io.ReadCloser
	out   io.Writer
	jp    *JsonPrinter
	buf   []byte
	stats RelayStatistics
	log   *log.Entry

	now         func() time.Time
	lastDisplay time.Time
	reported    RelayStatistics
}

func NewRelay(in io.ReadCloser, out io.Writer, jp *JsonPrinter, o RelayOptions) *Relay {
	if o.BufferSize <= 0 {
		o.BufferSize = common.DefaultDatagramSize
	}
	return &Relay{
		o:     o,
		in:    in,
		out:   out,
		jp:    jp,
		buf:   make([]byte, o.BufferSize),
		stats: RelayStatistics{Route: o.Name},
		log:   log.WithField("route", o.Name),
		now:   time.Now,
	}
}

// Run loops until ctx is cancelled or the input is exhausted. Cancelling ctx
// closes the input to unblock a pending read. Receive and send errors are
// counted and do not stop the loop.
func (r *Relay) Run(ctx context.Context) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			r.in.Close()
		case <-stop:
		}
	}()

	r.lastDisplay = r.now()
	defer r.printStatistics()
	for {
		n, err := r.in.Read(r.buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("route %s: %w", r.o.Name, err)
			}
			r.stats.ReceiveErrors++
			r.log.Debugf("receiving datagram: %v", err)
			continue
		}
		r.HandleDatagram(r.buf[:n])
		r.maybePrintStatistics()
	}
}

// HandleDatagram patches d in place and forwards it.
func (r *Relay) HandleDatagram(d []byte) {
	res, err := pidpatch.Process(d, r.o.Encapsulation, r.o.Filter)
	if err != nil {
		r.stats.AddFramingError(len(d))
		r.log.Debugf("framing %d byte datagram: %v", len(d), err)
	} else {
		r.stats.AddDatagram(len(d), res)
		if res.SyncErrors > 0 {
			r.log.Debugf("%d sync errors in %d byte datagram", res.SyncErrors, len(d))
		}
	}

	if _, err := r.out.Write(d); err != nil {
		r.stats.SendErrors++
		r.log.Debugf("sending datagram: %v", err)
	}
}

// Statistics returns a copy of the running totals.
func (r *Relay) Statistics() RelayStatistics {
	return r.stats
}

func (r *Relay) maybePrintStatistics() {
	if r.o.StatsInterval <= 0 {
		return
	}
	if now := r.now(); now.Sub(r.lastDisplay) >= r.o.StatsInterval {
		r.printStatistics()
		r.lastDisplay = now
	}
}

// printStatistics prints the totals and logs errors seen since the last print.
func (r *Relay) printStatistics() {
	s, prev := r.stats, r.reported
	if d := s.SyncErrors - prev.SyncErrors; d > 0 {
		r.log.Warnf("%d TS sync errors", d)
	}
	if d := s.FramingErrors - prev.FramingErrors; d > 0 {
		r.log.Warnf("%d datagrams not made of whole TS packets", d)
	}
	if d := s.ReceiveErrors - prev.ReceiveErrors; d > 0 {
		r.log.Warnf("%d receive errors", d)
	}
	if d := s.SendErrors - prev.SendErrors; d > 0 {
		r.log.Warnf("%d send errors", d)
	}
	r.reported = s
	if r.jp != nil {
		r.jp.PrintStatistics(s, r.o.StatsInterval > 0)
	}
}

// OpenRoute opens the sockets of a route. The returned closer releases the
// output socket, the input is closed by the relay.
func OpenRoute(rc RouteConfig, c *Config, jp *JsonPrinter) (*Relay, io.Closer, error) {
	enc, err := pidpatch.ParseEncapsulation(rc.Encapsulation)
	if err != nil {
		return nil, nil, err
	}
	filter, err := pidpatch.NewPidFilter(rc.Pids)
	if err != nil {
		return nil, nil, err
	}

	in, err := udp.Listen(rc.Input, rc.InputInterface)
	if err != nil {
		return nil, nil, fmt.Errorf("route %s: %w", rc.Name, err)
	}
	out, err := udp.Dial(rc.Output, udp.SenderOptions{Interface: rc.OutputInterface, TTL: rc.TTL, Loopback: rc.Loopback})
	if err != nil {
		in.Close()
		return nil, nil, fmt.Errorf("route %s: %w", rc.Name, err)
	}

	rlog := log.WithFields(log.Fields{
		"route":         rc.Name,
		"input":         rc.Input,
		"inputIf":       ifaceOrAny(rc.InputInterface),
		"output":        rc.Output,
		"outputIf":      ifaceOrAny(rc.OutputInterface),
		"encapsulation": enc.String(),
		"pids":          filter.Pids(),
	})
	rlog.Info("route ready")
	warnSpecialPids(rlog, filter)

	relay := NewRelay(in, out, jp, RelayOptions{
		Name:          rc.Name,
		Encapsulation: enc,
		Filter:        filter,
		BufferSize:    c.BufferSize,
		StatsInterval: c.StatsInterval,
	})
	return relay, out, nil
}

func ifaceOrAny(s string) string {
	if s == "" {
		return "any"
	}
	return s
}

func warnSpecialPids(l *log.Entry, f *pidpatch.PidFilter) {
	if f.Len() == 0 {
		l.Warn("no pids to hide, datagrams are forwarded unchanged")
	}
	if f.Contains(0) {
		l.Warn("hiding PAT (pid 0), receivers will not find any program")
	}
	if f.Contains(common.NullPid) {
		l.Warn("null pid listed, null packets will be counted as patched")
	}
}

// RunRoutes opens all routes and runs each in its own goroutine until ctx is
// cancelled or a route fails.
func RunRoutes(ctx context.Context, c *Config, jp *JsonPrinter) error {
	relays := make([]*Relay, 0, len(c.Routes))
	closers := make([]io.Closer, 0, len(c.Routes))
	defer func() {
		for _, cl := range closers {
			cl.Close()
		}
	}()
	for _, rc := range c.Routes {
		relay, out, err := OpenRoute(rc, c, jp)
		if err != nil {
			for _, r := range relays {
				r.in.Close()
			}
			return err
		}
		relays = append(relays, relay)
		closers = append(closers, out)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, r := range relays {
		r := r
		g.Go(func() error {
			return r.Run(ctx)
		})
	}
	return g.Wait()
}
