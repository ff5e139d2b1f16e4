// Package display renders counter values into append-only text panels.
//
// Panels are mutated only on the delivery loop; Watch is the bridge from a
// flow subscription to that loop.
package display

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"eventflow/internal/mainloop"
	"eventflow/internal/storage"
	logx "eventflow/pkg/logx"
)

const journalTimeout = 2 * time.Second

// Panel is one observation surface: every value delivered to it is appended
// as a new line and never removed.
type Panel struct {
	name string
	log  logx.Logger

	journal storage.Journal
	writer  mainloop.Executor
	session string
	echo    io.Writer

	mu    sync.Mutex
	lines []int
}

type Option func(*Panel)

// WithJournal persists every appended line, tagged with session.
// Writes run on writer so a slow journal never holds the delivery loop;
// a nil writer writes inline.
func WithJournal(j storage.Journal, session string, writer mainloop.Executor) Option {
	return func(p *Panel) {
		p.journal = j
		p.session = session
		p.writer = writer
	}
}

// WithEcho writes "<panel> <value>" to w for every appended line.
func WithEcho(w io.Writer) Option {
	return func(p *Panel) { p.echo = w }
}

func WithLogger(log logx.Logger) Option {
	return func(p *Panel) { p.log = log }
}

func NewPanel(name string, opts ...Option) *Panel {
	p := &Panel{name: name}
	for _, o := range opts {
		o(p)
	}
	if p.log.IsZero() {
		p.log = logx.Nop()
	}
	p.log = p.log.With(logx.String("panel", name))
	return p
}

func (p *Panel) Name() string { return p.name }

// Append adds v as the panel's newest line.
func (p *Panel) Append(v int) {
	p.mu.Lock()
	seq := len(p.lines)
	p.lines = append(p.lines, v)
	// Queued under mu: a writer flush covers every line a reader has seen,
	// and journal order matches seq. Post never blocks.
	queued := true
	var e storage.Entry
	if p.journal != nil {
		e = storage.Entry{At: time.Now(), Session: p.session, Panel: p.name, Value: v, Seq: seq}
		if p.writer != nil {
			queued = p.writer.Post(func() { p.persist(e) })
		}
	}
	p.mu.Unlock()

	p.log.Trace("panel line appended", logx.Int("value", v), logx.Int("seq", seq))

	if p.echo != nil {
		_, _ = fmt.Fprintf(p.echo, "%-16s %d\n", p.name, v)
	}
	switch {
	case p.journal == nil:
	case p.writer == nil:
		p.persist(e)
	case !queued:
		p.log.Warn("journal writer stopped; line not persisted", logx.Int("value", v))
	}
}

func (p *Panel) persist(e storage.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	if err := p.journal.Append(ctx, e); err != nil {
		p.log.Warn("journal append failed", logx.Int("value", e.Value), logx.Err(err))
	}
}

// Lines returns a copy of the panel content, oldest first.
func (p *Panel) Lines() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.lines...)
}

func (p *Panel) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.lines)
}

// String renders the panel on one line, e.g. "StateFlow: -99 0 1".
func (p *Panel) String() string {
	lines := p.Lines()
	var b strings.Builder
	b.WriteString(p.name)
	b.WriteByte(':')
	for _, v := range lines {
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(v))
	}
	return b.String()
}
