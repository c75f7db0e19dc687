package terminal

import (
	"bytes"
	"io"
	"sync"
)

// maxTranscript bounds the output a session keeps in memory.
const maxTranscript = 1 << 20

// panel collects a session's output and echoes it to out once shown.
type panel struct {
	mu      sync.Mutex
	out     io.Writer
	buf     bytes.Buffer
	visible bool
}

func newPanel(out io.Writer) *panel {
	return &panel{out: out}
}

func (p *panel) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buf.Write(b)
	if over := p.buf.Len() - maxTranscript; over > 0 {
		p.buf.Next(over)
	}
	if p.visible {
		// Echo failures must not kill the shell.
		_, _ = p.out.Write(b)
	}
	return len(b), nil
}

// show makes the panel visible and replays earlier output. It reports
// whether the panel was hidden before.
func (p *panel) show() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.visible {
		return false
	}
	p.visible = true
	_, _ = p.out.Write(p.buf.Bytes())
	return true
}

func (p *panel) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.String()
}
