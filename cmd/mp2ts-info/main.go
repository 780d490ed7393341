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

%s lists information about TS files, e.g. pids, service and packet counts per pid.
Use it to check which PIDs to hide, and that hidden PIDs only show up as null packets.
`

func parseOptions() internal.Options {
	opts := internal.Options{ShowStreamInfo: true, Indent: true}
	flag.BoolVar(&opts.ShowService, "service", false, "show service information")
	flag.BoolVar(&opts.ShowPidCounts, "pids", false, "count packets per pid instead of listing streams")
	flag.StringVar(&opts.PidsToHide, "hide", "", "mark these pids (split by space or comma) as hidden")
	flag.BoolVar(&opts.Indent, "indent", true, "indent JSON output")
	flag.BoolVar(&opts.Version, "version", false, "print version")

	flag.Usage = func() {
		name := internal.ToolName()
		fmt.Fprintf(os.Stderr, usg, name, name)
		fmt.Fprintf(os.Stderr, "\nRun as: %s [options] file.ts (- for stdin) with options:\n\n", name)
		flag.PrintDefaults()
	}

	flag.Parse()
	return opts
}

func parseInfo(ctx context.Context, w io.Writer, f io.Reader, o internal.Options) error {
	if o.ShowPidCounts {
		return internal.CountPids(ctx, w, f, o)
	}
	return internal.ParseInfo(ctx, w, f, o)
}

func main() {
	o, inFile := internal.ParseParams(parseOptions)
	err := internal.Execute(os.Stdout, o, inFile, parseInfo)
	if err != nil {
		log.Fatal(err)
	}
}
