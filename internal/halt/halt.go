// internal/halt/halt.go
package halt

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tamzrod/gw-hbloader/internal/buttons"
	"github.com/tamzrod/gw-hbloader/internal/display"
	"github.com/tamzrod/gw-hbloader/internal/loader"
)

// Defaults.
const (
	DefaultFrame      = 16 * time.Millisecond
	DefaultBlink      = 500 * time.Millisecond
	DefaultBufferAddr = 0x24000000
)

// Backlight switches the panel backlight.
type Backlight interface {
	SetBacklight(on bool) error
}

// Buttons is read once per parked frame so the power button keeps working.
type Buttons interface {
	Get() (buttons.Mask, error)
}

// Handler stops the world after an unrecoverable error.
// Nothing it starts ever hands control back to the menu.
type Handler struct {
	screen    *display.Screen
	panel     display.Panel
	backlight Backlight
	buttons   Buttons

	frame time.Duration
	blink time.Duration
	addr  uint32
	log   logrus.FieldLogger
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(h *Handler) { h.log = l }
}

// WithFrameInterval sets the diagnostic redraw interval.
func WithFrameInterval(d time.Duration) Option {
	return func(h *Handler) { h.frame = d }
}

// WithBlinkInterval sets the backlight half period.
func WithBlinkInterval(d time.Duration) Option {
	return func(h *Handler) { h.blink = d }
}

// WithBufferAddr sets the address printed beside the buffer dump rows.
func WithBufferAddr(addr uint32) Option {
	return func(h *Handler) { h.addr = addr }
}

// New creates a handler drawing into screen.
func New(screen *display.Screen, panel display.Panel, bl Backlight, btn Buttons, opts ...Option) *Handler {
	h := &Handler{
		screen:    screen,
		panel:     panel,
		backlight: bl,
		buttons:   btn,
		frame:     DefaultFrame,
		blink:     DefaultBlink,
		addr:      DefaultBufferAddr,
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Park handles err forever.
// Command channel errors get the diagnostic screen with a running frame
// counter. Everything else blinks the backlight.
// It returns only when ctx is done, with ctx's error.
func (h *Handler) Park(ctx context.Context, err error) error {
	if fe, ok := loader.AsFatal(err); ok {
		h.log.WithFields(logrus.Fields{
			"op":     fe.Op,
			"status": fe.Status,
			"buffer": fe.Buffer,
		}).Error("command channel failure")
		return h.diagnostic(ctx, fe)
	}
	h.log.WithError(err).Error("hardware failure")
	return h.blinkForever(ctx)
}

// Hold keeps the current screen up and services the buttons until ctx is done.
func (h *Handler) Hold(ctx context.Context) error {
	if err := h.panel.Present(h.screen); err != nil {
		h.log.WithError(err).Warn("present failed")
	}
	return h.every(ctx, h.frame, func(int) {
		h.poll()
	})
}

// ------------------------------------------------------------
// LOOPS
// ------------------------------------------------------------

func (h *Handler) diagnostic(ctx context.Context, fe *loader.FatalError) error {
	draw := func(frame int) {
		h.screen.Diagnostic(fe, h.addr, frame)
		if err := h.panel.Present(h.screen); err != nil {
			h.log.WithError(err).Debug("present failed")
		}
		h.poll()
	}
	draw(1)
	return h.every(ctx, h.frame, func(n int) { draw(n + 1) })
}

func (h *Handler) blinkForever(ctx context.Context) error {
	set := func(on bool) {
		if err := h.backlight.SetBacklight(on); err != nil {
			h.log.WithError(err).Debug("backlight failed")
		}
	}
	set(false)
	return h.every(ctx, h.blink, func(n int) { set(n%2 == 1) })
}

// every calls fn with 1, 2, 3... once per tick until ctx is done.
func (h *Handler) every(ctx context.Context, d time.Duration, fn func(n int)) error {
	ticker := time.NewTicker(d)
	defer ticker.Stop()

	for n := 1; ; n++ {
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "halt")
		case <-ticker.C:
			fn(n)
		}
	}
}

func (h *Handler) poll() {
	if h.buttons == nil {
		return
	}
	if _, err := h.buttons.Get(); err != nil {
		h.log.WithError(err).Debug("buttons failed")
	}
}

// ---- backlights ----

// LogBacklight reports backlight changes on a logger.
type LogBacklight struct {
	Log logrus.FieldLogger
}

func (b LogBacklight) SetBacklight(on bool) error {
	b.Log.WithField("on", on).Info("backlight")
	return nil
}
