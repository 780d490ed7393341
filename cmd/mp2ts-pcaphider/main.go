package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Eyevinn/mp2ts-pidhider/internal"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
)

var usg = `Usage of %s:

%s hides PIDs in the UDP payloads of a pcap capture, the same way
mp2ts-pidhider does on the network. Statistics are printed as JSON.
`

func parseOptions() internal.Options {
	opts := internal.Options{}
	flag.StringVar(&opts.PidsToHide, "hide", "", "pids to hide (split by space or comma), e.g. \"256 257\"")
	flag.StringVar(&opts.Encapsulation, "encapsulation", "auto", "datagram encapsulation: auto, raw or rtp")
	flag.StringVar(&opts.Destination, "destination", "", "only patch datagrams to this ip:port (or :port)")
	flag.StringVar(&opts.OutPutTo, "output", "", "write the patched capture to this pcap file")
	flag.StringVar(&opts.TsOutPutTo, "ts", "", "write the TS packets of the patched datagrams to this file")
	flag.BoolVar(&opts.Indent, "indent", true, "indent JSON output")
	flag.BoolVar(&opts.Version, "version", false, "print version")

	flag.Usage = func() {
		name := internal.ToolName()
		fmt.Fprintf(os.Stderr, usg, name, name)
		fmt.Fprintf(os.Stderr, "\nRun as: %s [options] capture.pcap (- for stdin) with options:\n\n", name)
		flag.PrintDefaults()
	}

	flag.Parse()
	return opts
}

func hide(ctx context.Context, w io.Writer, f io.Reader, o internal.Options) error {
	var pcapOutput, tsOutput io.Writer
	if o.OutPutTo != "" {
		file, err := internal.CreateOutputFile(o.OutPutTo)
		if err != nil {
			return err
		}
		defer file.Close()
		pcapOutput = file
	}
	if o.TsOutPutTo != "" {
		file, err := internal.CreateOutputFile(o.TsOutPutTo)
		if err != nil {
			return err
		}
		defer file.Close()
		tsOutput = file
	}
	return internal.HidePidsInPcap(ctx, w, pcapOutput, tsOutput, f, o)
}

func main() {
	o, inFile := internal.ParseParams(parseOptions)
	err := internal.Execute(os.Stdout, o, inFile, hide)
	if err != nil {
		log.Fatal(err)
	}
}
