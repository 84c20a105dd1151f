// internal/loader/sim/controller.go
package sim

import (
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/tamzrod/gw-hbloader/internal/loader"
)

// Directory listing record types.
const (
	EntryFile = loader.EntryFile
	EntryDir  = loader.EntryDir
)

// Write modes accepted by open-write (word 2).
const (
	WriteTruncate = loader.WriteTruncate
	WriteAppend   = loader.WriteAppend
)

// DefaultCapacitySectors is reported by detect when no capacity is configured (16 GB).
const DefaultCapacitySectors = 31250000

// Option configures a Controller.
type Option func(*Controller)

// WithLatency sets how many polls report processing before a call completes.
func WithLatency(n int) Option {
	return func(c *Controller) { c.latency = n }
}

// WithCapacity sets the capacity reported by detect, in 512-byte sectors.
func WithCapacity(sectors uint32) Option {
	return func(c *Controller) { c.capacity = sectors }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Controller) { c.log = l }
}

// Controller is an in-process loader controller serving a host directory
// as the removable storage. It implements loader.Transport.
//
// Every posted call stays "processing" for the configured number of polls
// and then completes on the next poll. Names are matched case-insensitively
// and can never leave the root.
type Controller struct {
	mu sync.Mutex

	root     string
	cwd      string // slash-separated, relative to root
	latency  int
	capacity uint32
	log      logrus.FieldLogger

	buf       loader.Buffer
	arg       loader.Arg
	busy      bool
	countdown int

	file   *os.File
	inject map[loader.Opcode]loader.Status

	calls  []loader.Opcode
	resets int
}

// New creates a controller serving root.
func New(root string, opts ...Option) (*Controller, error) {
	st, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return nil, &fs.PathError{Op: "sim", Path: root, Err: fs.ErrInvalid}
	}
	c := &Controller{
		root:     root,
		capacity: DefaultCapacitySectors,
		log:      logrus.StandardLogger(),
		inject:   make(map[loader.Opcode]loader.Status),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ---- loader.Transport ----

func (c *Controller) Post(buf loader.Buffer, arg loader.Arg) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.buf = buf
	c.arg = arg
	c.busy = true
	c.countdown = c.latency
	c.calls = append(c.calls, loader.Opcode(buf[0]))
	return nil
}

func (c *Controller) Peek() (loader.Buffer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.busy {
		return c.buf, nil
	}
	if c.countdown > 0 {
		c.countdown--
		c.buf.SetStatus(loader.StatusProcessing)
		return c.buf, nil
	}

	op := loader.Opcode(c.buf[0])
	st := c.execute(op)
	if forced, ok := c.inject[op]; ok {
		delete(c.inject, op)
		st = forced
	}
	c.buf.SetStatus(st)
	c.busy = false

	c.log.WithFields(logrus.Fields{"op": op, "status": st, "cwd": c.cwd}).Debug("sim call done")
	return c.buf, nil
}

// ---- test hooks ----

// Inject makes the next call of op finish with st.
func (c *Controller) Inject(op loader.Opcode, st loader.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inject[op] = st
}

// Calls returns every opcode posted so far.
func (c *Controller) Calls() []loader.Opcode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]loader.Opcode(nil), c.calls...)
}

// Resets returns how many halt or reset calls were served.
func (c *Controller) Resets() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resets
}

// Cwd returns the current directory relative to root.
func (c *Controller) Cwd() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cwd
}

// ------------------------------------------------------------
// CALL EXECUTION
// ------------------------------------------------------------

func (c *Controller) execute(op loader.Opcode) loader.Status {
	switch op {
	case loader.OpDetect:
		c.buf.SetWord(loader.WordLength, c.capacity)
		c.buf.SetWord(loader.WordArg, c.freeSectors())
		return loader.StatusOK

	case loader.OpOpenRead:
		return c.openRead()

	case loader.OpOpenWrite:
		return c.openWrite()

	case loader.OpRead:
		return c.read()

	case loader.OpWrite:
		return c.write()

	case loader.OpClose:
		c.closeFile()
		return loader.StatusOK

	case loader.OpTell, loader.OpSeekStart, loader.OpSeekEnd, loader.OpSeekOffset, loader.OpSeekPosition:
		return c.seek(op)

	case loader.OpChdir:
		return c.chdir(c.arg.Name)

	case loader.OpReadDir:
		return c.readDir()

	case loader.OpHalt, loader.OpReset, loader.OpResetHalt:
		c.closeFile()
		c.cwd = ""
		c.resets++
		return loader.StatusOK
	}
	return loader.ErrIO
}

func (c *Controller) openRead() loader.Status {
	if c.file != nil {
		return loader.ErrFileAlreadyOpen
	}
	full, ok := c.lookup(c.arg.Name)
	if !ok {
		return loader.ErrFileNotFound
	}
	st, err := os.Stat(full)
	if err != nil || st.IsDir() {
		return loader.ErrFileNotFound
	}
	f, err := os.Open(full)
	if err != nil {
		return loader.ErrIO
	}
	c.file = f
	c.buf.SetWord(loader.WordResult, uint32(st.Size()))
	return loader.StatusOK
}

func (c *Controller) openWrite() loader.Status {
	if c.file != nil {
		return loader.ErrFileAlreadyOpen
	}
	flags := os.O_WRONLY | os.O_CREATE
	switch c.buf.Word(loader.WordLength) {
	case WriteTruncate:
		flags |= os.O_TRUNC
	case WriteAppend:
		flags |= os.O_APPEND
	default:
		return loader.ErrUnknownWriteMode
	}
	full, ok := c.lookup(c.arg.Name)
	if !ok {
		var safe bool
		full, safe = c.sanitize(c.arg.Name)
		if !safe {
			return loader.ErrFileNotFound
		}
	}
	f, err := os.OpenFile(full, flags, 0o644)
	if err != nil {
		return loader.ErrNotEnoughSpace
	}
	c.file = f
	return loader.StatusOK
}

func (c *Controller) read() loader.Status {
	if c.file == nil {
		return loader.ErrIO
	}
	n := int(c.buf.Word(loader.WordLength))
	if n > len(c.arg.Data) {
		n = len(c.arg.Data)
	}
	got, err := io.ReadFull(c.file, c.arg.Data[:n])
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return loader.ErrIO
	}
	c.buf.SetWord(loader.WordResult, uint32(got))
	return loader.StatusOK
}

func (c *Controller) write() loader.Status {
	if c.file == nil {
		return loader.ErrIO
	}
	n := int(c.buf.Word(loader.WordLength))
	if n > len(c.arg.Data) {
		n = len(c.arg.Data)
	}
	got, err := c.file.Write(c.arg.Data[:n])
	c.buf.SetWord(loader.WordResult, uint32(got))
	if err != nil {
		return loader.ErrNotEnoughSpace
	}
	return loader.StatusOK
}

// seek serves tell and the four seek calls. Word 1 returns the new position.
func (c *Controller) seek(op loader.Opcode) loader.Status {
	if c.file == nil {
		return loader.ErrIO
	}
	arg := c.buf.Word(loader.WordLength)

	var (
		pos int64
		err error
	)
	switch op {
	case loader.OpTell:
		pos, err = c.file.Seek(0, io.SeekCurrent)
	case loader.OpSeekStart:
		pos, err = c.file.Seek(0, io.SeekStart)
	case loader.OpSeekEnd:
		pos, err = c.file.Seek(0, io.SeekEnd)
	case loader.OpSeekOffset:
		pos, err = c.file.Seek(int64(int32(arg)), io.SeekCurrent)
	case loader.OpSeekPosition:
		pos, err = c.file.Seek(int64(arg), io.SeekStart)
	}
	if err != nil {
		return loader.ErrIO
	}
	c.buf.SetWord(loader.WordResult, uint32(pos))
	return loader.StatusOK
}

func (c *Controller) chdir(name string) loader.Status {
	if name == loader.UpDir {
		if c.cwd == "" {
			return loader.ErrFileNotFound
		}
		c.cwd = path.Dir(c.cwd)
		if c.cwd == "." {
			c.cwd = ""
		}
		return loader.StatusOK
	}
	full, ok := c.lookup(name)
	if !ok {
		return loader.ErrFileNotFound
	}
	st, err := os.Stat(full)
	if err != nil || !st.IsDir() {
		return loader.ErrFileNotFound
	}
	c.cwd = filepath.ToSlash(filepath.Join(c.cwd, filepath.Base(full)))
	return loader.StatusOK
}

// readDir writes one record per entry: a type byte followed by the name.
// A zero byte ends the listing. Entries that do not fit are dropped.
func (c *Controller) readDir() loader.Status {
	entries, err := os.ReadDir(c.dir())
	if err != nil {
		return loader.ErrIO
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	out := c.arg.Data
	if len(out) == 0 {
		return loader.ErrNotEnoughSpace
	}
	n := 0
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") || !printable(name) {
			continue
		}
		if n+1+len(name) >= len(out) {
			break
		}
		if e.IsDir() {
			out[n] = EntryDir
		} else {
			out[n] = EntryFile
		}
		n++
		n += copy(out[n:], name)
	}
	out[n] = 0
	c.buf.SetWord(loader.WordResult, uint32(n))
	return loader.StatusOK
}

// ---- helpers ----

func (c *Controller) dir() string {
	return filepath.Join(c.root, filepath.FromSlash(c.cwd))
}

// sanitize joins name onto the current directory and refuses anything
// that escapes it.
func (c *Controller) sanitize(name string) (string, bool) {
	if name == "" || filepath.IsAbs(name) || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return "", false
	}
	full := filepath.Join(c.dir(), name)
	rel, err := filepath.Rel(c.root, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return full, true
}

// lookup resolves name in the current directory, ignoring case.
func (c *Controller) lookup(name string) (string, bool) {
	full, ok := c.sanitize(name)
	if !ok {
		return "", false
	}
	if _, err := os.Stat(full); err == nil {
		return full, true
	}
	entries, err := os.ReadDir(c.dir())
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if strings.EqualFold(e.Name(), name) {
			return filepath.Join(c.dir(), e.Name()), true
		}
	}
	return "", false
}

func (c *Controller) closeFile() {
	if c.file != nil {
		_ = c.file.Close()
		c.file = nil
	}
}

func (c *Controller) freeSectors() uint32 {
	var used int64
	_ = filepath.WalkDir(c.root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			used += info.Size()
		}
		return nil
	})
	sectors := uint32((used + 511) / 512)
	if sectors > c.capacity {
		return 0
	}
	return c.capacity - sectors
}

func printable(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7E {
			return false
		}
	}
	return true
}
