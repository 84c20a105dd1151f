// internal/loader/channel.go
package loader

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Request is the argument set of one call.
type Request struct {
	Length uint32 // word 2
	Name   string // word 3, for open and chdir
	Data   []byte // word 3, for read and read-dir
}

// Option configures a Channel.
type Option func(*Channel)

// WithLogger sets the logger used for call tracing.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Channel) { c.log = l }
}

// WithPollInterval sets the pause between two polls of the buffer.
// Zero spins.
func WithPollInterval(d time.Duration) Option {
	return func(c *Channel) { c.poll = d }
}

// Channel is the command channel to the loader controller.
// It is not safe for concurrent use: one call is in flight at a time.
type Channel struct {
	tr   Transport
	log  logrus.FieldLogger
	poll time.Duration

	buf     Buffer // last view of the buffer
	pending Opcode // opcode of the last non-blocking call
}

// New creates a channel over tr.
func New(tr Transport, opts ...Option) *Channel {
	c := &Channel{
		tr:  tr,
		log: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ------------------------------------------------------------
// BLOCKING CALLS
// ------------------------------------------------------------

// Call runs op to completion.
// Any status other than OK is returned as *FatalError.
func (c *Channel) Call(ctx context.Context, op Opcode, req Request) error {
	st, err := c.exchange(ctx, op, req)
	if err != nil {
		return err
	}
	if st != StatusOK {
		c.log.WithFields(logrus.Fields{"op": op, "status": st}).Error("loader call failed")
		return &FatalError{Op: op, Status: st, Buffer: c.buf}
	}
	return nil
}

// CallCatchError runs op to completion and returns the raw status.
// A controller status never produces an error; err is set only when the
// transport fails or ctx is cancelled.
func (c *Channel) CallCatchError(ctx context.Context, op Opcode, req Request) (Status, error) {
	st, err := c.exchange(ctx, op, req)
	if err != nil {
		return 0, err
	}
	if st != StatusOK {
		c.log.WithFields(logrus.Fields{"op": op, "status": st}).Debug("loader call returned error status")
	}
	return st, nil
}

// exchange posts op and waits through both phases of the protocol:
// the controller first replaces the opcode with processing or a final
// status, then replaces processing with the final status.
func (c *Channel) exchange(ctx context.Context, op Opcode, req Request) (Status, error) {
	if err := c.post(op, req); err != nil {
		return 0, err
	}

	st, err := c.spin(ctx, op, func(s Status) bool { return s == Status(op) })
	if err != nil {
		return 0, err
	}
	if st != StatusProcessing && st != StatusOK {
		return st, nil
	}

	st, err = c.spin(ctx, op, func(s Status) bool { return s == StatusProcessing })
	if err != nil {
		return 0, err
	}
	return st, nil
}

// ------------------------------------------------------------
// NON-BLOCKING CALLS
// ------------------------------------------------------------

// CallNonBlock posts op and returns immediately.
// Completion is checked with IsDone or IsDoneIgnoreMissing.
func (c *Channel) CallNonBlock(op Opcode, req Request) error {
	c.pending = op
	return c.post(op, req)
}

// IsDone polls the buffer once.
// It reports true on OK, false while the call is pending and returns
// *FatalError when the controller reports an error.
func (c *Channel) IsDone() (bool, error) {
	st, err := c.peek()
	if err != nil {
		return false, err
	}
	if st == StatusOK {
		return true, nil
	}
	if st.IsError() {
		return false, &FatalError{Op: c.pending, Status: st, Buffer: c.buf}
	}
	return false, nil
}

// IsDoneIgnoreMissing is IsDone with file-not-found reported as not done.
// The caller inspects LastStatus to tell a missing file from a pending call.
func (c *Channel) IsDoneIgnoreMissing() (bool, error) {
	st, err := c.peek()
	if err != nil {
		return false, err
	}
	switch {
	case st == StatusOK:
		return true, nil
	case st == ErrFileNotFound:
		return false, nil
	case st.IsError():
		return false, &FatalError{Op: c.pending, Status: st, Buffer: c.buf}
	}
	return false, nil
}

// LastStatus returns byte 0 of the last view of the buffer.
func (c *Channel) LastStatus() Status { return c.buf.Status() }

// Acknowledge consumes a terminal status so later checks see OK.
func (c *Channel) Acknowledge() { c.buf.SetStatus(StatusOK) }

// Result returns word 1 of the last view of the buffer.
func (c *Channel) Result() uint32 { return c.buf.Word(WordResult) }

// Buffer returns the last view of the buffer.
func (c *Channel) Buffer() Buffer { return c.buf }

// ---- internal helpers ----

func (c *Channel) post(op Opcode, req Request) error {
	var b Buffer
	b.SetStatus(Status(op))
	b.SetWord(WordLength, req.Length)
	if req.Name != "" {
		b.SetWord(WordArg, uint32(len(req.Name)))
	} else {
		b.SetWord(WordArg, uint32(len(req.Data)))
	}

	c.log.WithFields(logrus.Fields{"op": op, "length": req.Length, "name": req.Name}).Trace("loader post")

	if err := c.tr.Post(b, Arg{Name: req.Name, Data: req.Data}); err != nil {
		return errors.Wrapf(err, "loader: post %s", op)
	}
	c.buf = b
	return nil
}

func (c *Channel) peek() (Status, error) {
	b, err := c.tr.Peek()
	if err != nil {
		return 0, errors.Wrap(err, "loader: peek")
	}
	c.buf = b
	return b.Status(), nil
}

// spin polls until busy returns false. There is no timeout.
func (c *Channel) spin(ctx context.Context, op Opcode, busy func(Status) bool) (Status, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, errors.Wrapf(err, "loader: wait %s", op)
		}
		st, err := c.peek()
		if err != nil {
			return 0, err
		}
		if !busy(st) {
			return st, nil
		}
		if c.poll > 0 {
			time.Sleep(c.poll)
		}
	}
}
