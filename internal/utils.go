package internal

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
)

// Options are the settings of the file based tools (mp2ts-info, mp2ts-pcaphider).
type Options struct {
	Version        bool
	Indent         bool
	ShowStreamInfo bool
	ShowService    bool
	ShowPidCounts  bool
	PidsToHide     string
	Encapsulation  string
	Destination    string
	OutPutTo       string
	TsOutPutTo     string
}

type OptionParseFunc func() Options
type RunableFunc func(ctx context.Context, w io.Writer, f io.Reader, o Options) error

// ParsePidsFromString parses PIDs separated by spaces or commas, e.g. "256 257" or "256,257".
func ParsePidsFromString(input string) ([]int, error) {
	words := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	pids := make([]int, 0, len(words))
	for _, word := range words {
		number, err := parsePid(word)
		if err != nil {
			return nil, err
		}
		pids = append(pids, number)
	}
	return pids, nil
}

// parsePid accepts decimal or 0x-prefixed hexadecimal PIDs. Leading zeros
// are decimal, not octal.
func parsePid(s string) (int, error) {
	var n int64
	var err error
	if hex, ok := cutHexPrefix(s); ok {
		n, err = strconv.ParseInt(hex, 16, 32)
	} else {
		n, err = strconv.ParseInt(s, 10, 32)
	}
	if err != nil {
		return 0, fmt.Errorf("parsing pid %q %w", s, err)
	}
	return int(n), nil
}

func cutHexPrefix(s string) (string, bool) {
	if rest, ok := strings.CutPrefix(s, "0x"); ok {
		return rest, true
	}
	return strings.CutPrefix(s, "0X")
}

func RemoveFileIfExists(file string) error {
	err := os.Remove(file)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func OpenFileAndAppend(file string) (*os.File, error) {
	// Create and append to the new file
	fo, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("creating output file %w", err)
	}

	return fo, nil
}

// CreateOutputFile truncates any existing file and opens it for writing.
func CreateOutputFile(file string) (*os.File, error) {
	if err := RemoveFileIfExists(file); err != nil {
		return nil, err
	}
	return OpenFileAndAppend(file)
}

// ToolName is the base name of the running binary.
func ToolName() string {
	return filepath.Base(os.Args[0])
}

func ParseParams(function OptionParseFunc) (o Options, inFile string) {
	o = function()
	if o.Version {
		fmt.Printf("%s version %s\n", ToolName(), GetVersion())
		os.Exit(0)
	}
	if len(flag.Args()) < 1 {
		flag.Usage()
		os.Exit(1)
	}
	inFile = flag.Args()[0]
	return o, inFile
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-ch:
			log.Infof("received %s, stopping", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(ch)
	}()
	return ctx, cancel
}

func Execute(w io.Writer, o Options, inFile string, function RunableFunc) error {
	// Create a cancellable context in case you want to stop reading packets/data any time you want
	ctx, cancel := SignalContext()
	defer cancel()

	var f io.Reader
	if inFile == "-" {
		f = os.Stdin
	} else {
		fh, err := os.Open(inFile)
		if err != nil {
			return fmt.Errorf("opening input %w", err)
		}
		f = fh
		defer fh.Close()
	}

	return function(ctx, w, f, o)
}
