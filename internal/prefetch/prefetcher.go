// internal/prefetch/prefetcher.go
package prefetch

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tamzrod/gw-hbloader/internal/loader"
)

// SlotCount is the number of cache slots. Entry id lives in slot id % SlotCount.
const SlotCount = 3

// File names inside an entry directory.
const (
	ManifestFile = "MANIFEST.TXT"
	IconFile     = "ICON.BMP"
)

// Caller is the part of the command channel the prefetcher uses.
type Caller interface {
	CallNonBlock(op loader.Opcode, req loader.Request) error
	IsDone() (bool, error)
	IsDoneIgnoreMissing() (bool, error)
	LastStatus() loader.Status
	Acknowledge()
	Result() uint32
}

// Slot is one cache entry.
type Slot struct {
	ID      int // loaded entry, -1 when empty
	Pending int // requested entry, -1 when none
	Step    Step

	Name    string
	Author  string
	Version string
	Bitmap  Bitmap
}

// Armed reports whether the slot starts a load the next time it is serviced.
func (s *Slot) Armed() bool { return s.Step == Idle && s.Pending >= 0 }

// superseded reports whether a newer request arrived during the current load.
func (s *Slot) superseded() bool { return s.Pending >= 0 }

// Prefetcher loads entry metadata in the background, one step per Update.
// It owns the cache slots and the shared data buffer.
type Prefetcher struct {
	ch      Caller
	data    []byte
	entries []string
	slots   [SlotCount]Slot
	cursor  int
	log     logrus.FieldLogger
}

// Option configures a Prefetcher.
type Option func(*Prefetcher)

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(p *Prefetcher) { p.log = l }
}

// New creates a prefetcher with empty slots. data receives manifest and
// icon reads and must not be used by anyone else while a load runs.
func New(ch Caller, data []byte, opts ...Option) *Prefetcher {
	p := &Prefetcher{
		ch:   ch,
		data: data,
		log:  logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.Reset(nil)
	return p
}

// Reset empties every slot and installs a new entry list.
func (p *Prefetcher) Reset(entries []string) {
	p.entries = entries
	p.cursor = 0
	for i := range p.slots {
		p.slots[i] = Slot{ID: -1, Pending: -1, Bitmap: HourglassIcon()}
	}
}

// Count returns the number of entries.
func (p *Prefetcher) Count() int { return len(p.entries) }

// Slot returns a copy of slot i.
func (p *Prefetcher) Slot(i int) Slot { return p.slots[i%SlotCount] }

// Cursor returns the slot serviced by the next Update.
func (p *Prefetcher) Cursor() int { return p.cursor }

// ------------------------------------------------------------
// REQUESTS
// ------------------------------------------------------------

// Request asks for entry id to be loaded into its slot.
// Ids past the end and ids already loaded with nothing pending are ignored.
// The slot shows the hourglass until the load completes.
func (p *Prefetcher) Request(id int) {
	if id < 0 || id >= len(p.entries) {
		return
	}
	s := &p.slots[id%SlotCount]
	if id == s.ID && s.Pending < 0 {
		return
	}
	s.Pending = id
	s.Name, s.Author, s.Version = "", "", ""
	s.Bitmap = HourglassIcon()
}

// Idle reports whether no slot is loading or armed.
func (p *Prefetcher) Idle() bool {
	for i := range p.slots {
		if p.slots[i].Step != Idle || p.slots[i].Pending >= 0 {
			return false
		}
	}
	return true
}

// Drain runs Update until Idle. The channel is free afterwards.
func (p *Prefetcher) Drain(ctx context.Context) error {
	for !p.Idle() {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "prefetch: drain")
		}
		if err := p.Update(); err != nil {
			return err
		}
	}
	return nil
}

// ------------------------------------------------------------
// STATE MACHINE
// ------------------------------------------------------------

// Update services the slot under the cursor once.
// An armed slot starts its load, a loading slot runs one step and an
// idle slot passes the turn to the next one.
// Errors are fatal: a *loader.FatalError or a transport failure.
func (p *Prefetcher) Update() error {
	i := p.cursor
	s := &p.slots[i]

	if s.Armed() {
		s.Step = EnterDir
		s.ID = s.Pending
		s.Pending = -1
	}

	if s.Step == Idle {
		p.advance()
		return nil
	}

	from := s.Step
	var err error
	switch s.Step.Kind() {
	case KindIssue:
		err = p.issue(i, s)
	case KindAwait:
		err = p.await(s)
	case KindAwaitOpen:
		err = p.awaitOpen(i, s)
	case KindFinish:
		s.Step = Idle
		p.advance()
	}
	if err != nil {
		return err
	}

	if s.Step != from {
		p.log.WithFields(logrus.Fields{"slot": i, "id": s.ID, "from": from, "to": s.Step}).Trace("prefetch step")
	}
	return nil
}

func (p *Prefetcher) advance() { p.cursor = (p.cursor + 1) % SlotCount }

func (p *Prefetcher) issue(i int, s *Slot) error {
	var (
		op  loader.Opcode
		req loader.Request
	)

	switch s.Step {
	case EnterDir:
		op, req = loader.OpChdir, loader.Request{Name: p.entries[s.ID]}

	case OpenManifest:
		op, req = loader.OpOpenRead, loader.Request{Name: ManifestFile}

	case ReadManifest, ReadIcon:
		op, req = loader.OpRead, loader.Request{Length: uint32(len(p.data)), Data: p.data}

	case ParseManifestData:
		if !s.superseded() {
			m := ParseManifest(p.data[:p.readLen()])
			s.Name, s.Author, s.Version = m.Name, m.Author, m.Version
		}
		op = loader.OpClose

	case OpenIcon:
		op, req = loader.OpOpenRead, loader.Request{Name: IconFile}

	case DecodeIconData:
		if !s.superseded() {
			s.Bitmap = DecodeIcon(p.data[:p.readLen()])
		}
		op = loader.OpClose

	case ExitDir:
		op, req = loader.OpChdir, loader.Request{Name: loader.UpDir}
	}

	if err := p.ch.CallNonBlock(op, req); err != nil {
		return errors.Wrapf(err, "prefetch: slot %d step %s", i, s.Step)
	}
	s.Step++
	return nil
}

func (p *Prefetcher) await(s *Slot) error {
	done, err := p.ch.IsDone()
	if err != nil {
		return err
	}
	if done {
		s.Step++
	}
	return nil
}

// awaitOpen handles the optional files. A missing manifest fills in the
// placeholder text and the default icon, a missing icon the default icon.
// Both skip to ExitDir.
func (p *Prefetcher) awaitOpen(i int, s *Slot) error {
	done, err := p.ch.IsDoneIgnoreMissing()
	if err != nil {
		return err
	}
	switch {
	case done:
		s.Step++
	case p.ch.LastStatus() == loader.ErrFileNotFound:
		p.missing(i, s)
	}
	return nil
}

func (p *Prefetcher) missing(i int, s *Slot) {
	p.ch.Acknowledge()

	if !s.superseded() {
		if s.Step == AwaitManifestOpen {
			s.Name, s.Author, s.Version = MissingName, MissingAuthor, MissingVersion
		}
		s.Bitmap = DefaultIcon()
	}

	p.log.WithFields(logrus.Fields{"slot": i, "id": s.ID, "step": s.Step}).Debug("prefetch: optional file missing")
	s.Step = ExitDir
}

func (p *Prefetcher) readLen() int {
	n := int(p.ch.Result())
	if n > len(p.data) {
		n = len(p.data)
	}
	return n
}
