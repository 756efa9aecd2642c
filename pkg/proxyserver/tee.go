package proxyserver

import (
	"io"

	"github.com/mnemohq/mnemo/pkg/buffer"
)

// maxTeeBufferBytes caps the accumulation side of the response tee; an
// upstream larger than this is ingested truncated rather than held in
// memory whole.
const maxTeeBufferBytes = 1 << 20

// responseTee is an io.ReadCloser wrapper over the upstream body:
// every byte read by the client also lands in a bounded Capture.
// onTerminal fires exactly once, with whatever was captured, the first
// time src's Read returns any error (EOF on a clean finish, anything
// else on a broken stream).
type responseTee struct {
	src        io.ReadCloser
	acc        *buffer.Capture
	fired      bool
	onTerminal func(data []byte)
}

func newResponseTee(src io.ReadCloser, onTerminal func([]byte)) *responseTee {
	return &responseTee{
		src:        src,
		acc:        buffer.NewCapture(maxTeeBufferBytes),
		onTerminal: onTerminal,
	}
}

func (t *responseTee) Read(p []byte) (int, error) {
	n, err := t.src.Read(p)
	if n > 0 {
		_, _ = t.acc.Write(p[:n])
	}
	if err != nil && !t.fired {
		t.fired = true
		if t.onTerminal != nil {
			go t.onTerminal(t.acc.Bytes())
		}
	}
	return n, err
}

func (t *responseTee) Close() error {
	return t.src.Close()
}
