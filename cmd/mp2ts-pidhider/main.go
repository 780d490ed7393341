package main

import (
	"fmt"
	"os"

	"github.com/Eyevinn/mp2ts-pidhider/internal"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
)

var usg = `Usage of %s:

%s relays MPEG-TS over UDP multicast (raw or RTP) from an input group to an
output group, replacing the PID of every TS packet on the listed PIDs with the
null PID 8191. Everything else in the datagram is forwarded untouched.

PIDs can be decimal or hex (0x100). More routes can be given in a config file.
`

func main() {
	internal.DefineFlags(flag.CommandLine)
	flag.Usage = func() {
		name := internal.ToolName()
		fmt.Fprintf(os.Stderr, usg, name, name)
		fmt.Fprintf(os.Stderr, "\nRun as: %s [options] mcast_in port_in mcast_out port_out pid1 [pid2 ...] with options:\n\n", name)
		flag.PrintDefaults()
	}
	flag.Parse()

	if v, _ := flag.CommandLine.GetBool("version"); v {
		fmt.Printf("%s version %s\n", internal.ToolName(), internal.GetVersion())
		os.Exit(0)
	}

	c, err := internal.LoadConfig(flag.CommandLine)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n\n", err)
		flag.Usage()
		os.Exit(1)
	}
	if err := internal.InitLogging(c.Level, c.LogFile); err != nil {
		log.Fatal(err)
	}
	log.WithFields(log.Fields{
		"version": internal.GetVersion(),
		"routes":  len(c.Routes),
	}).Infof("%s starting", internal.ToolName())

	ctx, cancel := internal.SignalContext()
	defer cancel()

	jp := &internal.JsonPrinter{W: os.Stdout, Indent: c.Indent}
	if err := internal.RunRoutes(ctx, c, jp); err != nil {
		log.Fatal(err)
	}
	log.Info("stopped")
}
