package internal

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// JsonPrinter writes one JSON document per line. It is safe for use by
// several relays at once. The first error is kept and stops further output.
type JsonPrinter struct {
	W        io.Writer
	Indent   bool
	AccError error
	mu       sync.Mutex
}

func (p *JsonPrinter) Print(data any, show bool) {
	if !show {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []byte
	var err error
	if p.AccError != nil {
		return
	}
	if p.Indent {
		out, err = json.MarshalIndent(data, "", "  ")
	} else {
		out, err = json.Marshal(data)
	}
	if err != nil {
		p.AccError = err
		return
	}
	_, p.AccError = fmt.Fprintln(p.W, string(out))
}

func (p *JsonPrinter) Error() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.AccError
}
