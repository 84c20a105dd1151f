// internal/prefetch/prefetcher_test.go
package prefetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/tamzrod/gw-hbloader/internal/loader"
	"github.com/tamzrod/gw-hbloader/internal/loader/sim"
)

// recordingCaller counts posted calls and keeps their names.
type recordingCaller struct {
	*loader.Channel
	ops   []loader.Opcode
	names []string
}

func (r *recordingCaller) CallNonBlock(op loader.Opcode, req loader.Request) error {
	r.ops = append(r.ops, op)
	if op == loader.OpChdir {
		r.names = append(r.names, req.Name)
	}
	return r.Channel.CallNonBlock(op, req)
}

type entry struct {
	name     string
	manifest string // "" means no MANIFEST.TXT
	icon     bool
	iconData []byte // written as ICON.BMP when set
}

func iconFile(px uint16) []byte {
	const off = 0x46
	b := make([]byte, off+IconPixels*2)
	b[0], b[1] = 'B', 'M'
	b[pixelOffsetField] = off
	for i := 0; i < IconPixels; i++ {
		b[off+2*i] = byte(px)
		b[off+2*i+1] = byte(px >> 8)
	}
	return b
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// setup builds a card with the given entries and a prefetcher over it.
func setup(t *testing.T, entries []entry) (*Prefetcher, *recordingCaller, *sim.Controller) {
	t.Helper()
	root := t.TempDir()
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		dir := filepath.Join(root, e.name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if e.manifest != "" {
			writeFile(t, filepath.Join(dir, ManifestFile), []byte(e.manifest))
		}
		if e.icon {
			writeFile(t, filepath.Join(dir, IconFile), iconFile(0x07E0))
		}
		if e.iconData != nil {
			writeFile(t, filepath.Join(dir, IconFile), e.iconData)
		}
		names = append(names, e.name)
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.WarnLevel)

	ctrl, err := sim.New(root, sim.WithLatency(2), sim.WithLogger(log))
	if err != nil {
		t.Fatalf("sim.New: %v", err)
	}
	rc := &recordingCaller{Channel: loader.New(ctrl, loader.WithLogger(log))}
	p := New(rc, make([]byte, 64*1024), WithLogger(log))
	p.Reset(names)
	return p, rc, ctrl
}

func numbered(n int) []entry {
	out := make([]entry, n)
	for i := range out {
		out[i] = entry{
			name:     fmt.Sprintf("GAME%d", i),
			manifest: fmt.Sprintf("Name=Game %d\nAuthor=Author %d\nVersion=%d.0\n", i, i, i),
			icon:     true,
		}
	}
	return out
}

func runUntil(t *testing.T, p *Prefetcher, cond func() bool) {
	t.Helper()
	for n := 0; n < 10000; n++ {
		if cond() {
			return
		}
		if err := p.Update(); err != nil {
			t.Fatalf("Update err=%v", err)
		}
	}
	t.Fatalf("condition not reached")
}

// ---- tests ----

func TestStepTable(t *testing.T) {
	for s := EnterDir; s < Done; s++ {
		want := KindIssue
		if s%2 == 0 {
			want = KindAwait
		}
		if s == AwaitManifestOpen || s == AwaitIconOpen {
			want = KindAwaitOpen
		}
		if s.Kind() != want {
			t.Fatalf("step %d (%s) kind=%d want %d", int(s), s, s.Kind(), want)
		}
	}
	if Done != 17 || Done.Kind() != KindFinish || Idle.Kind() != KindIdle {
		t.Fatalf("terminal steps wrong")
	}
}

func TestFreshSlot_LoadsInEightExchanges(t *testing.T) {
	p, rc, ctrl := setup(t, numbered(1))
	p.Request(0)

	runUntil(t, p, p.Idle)

	s := p.Slot(0)
	if s.ID != 0 || s.Step != Idle || s.Pending != -1 {
		t.Fatalf("slot state %+v", s)
	}
	if s.Name != "Game 0" || s.Author != "Author 0" || s.Version != "0.0" {
		t.Fatalf("fields %q %q %q", s.Name, s.Author, s.Version)
	}
	if s.Bitmap[0] != 0x07E0 || s.Bitmap[IconPixels-1] != 0x07E0 {
		t.Fatalf("icon not decoded")
	}

	want := []loader.Opcode{
		loader.OpChdir, loader.OpOpenRead, loader.OpRead, loader.OpClose,
		loader.OpOpenRead, loader.OpRead, loader.OpClose, loader.OpChdir,
	}
	if len(rc.ops) != len(want) {
		t.Fatalf("ops=%v", rc.ops)
	}
	for i := range want {
		if rc.ops[i] != want[i] {
			t.Fatalf("op %d = %s want %s", i, rc.ops[i], want[i])
		}
	}
	if ctrl.Cwd() != "" {
		t.Fatalf("left in directory %q", ctrl.Cwd())
	}
}

func TestSupersede_InFlightLoadFinishesUntouched(t *testing.T) {
	p, rc, _ := setup(t, numbered(6))
	p.Request(2)

	// stop with slot 2 about to parse the manifest of entry 2
	runUntil(t, p, func() bool { return p.Slot(2).Step == ParseManifestData && p.Cursor() == 2 })

	p.Request(5)
	if s := p.Slot(2); s.Pending != 5 || s.ID != 2 || s.Name != "" {
		t.Fatalf("after request: %+v", s)
	}

	// the old load runs to its end without publishing anything
	runUntil(t, p, func() bool { return p.Slot(2).Step == Done })
	if s := p.Slot(2); s.Name != "" || s.Bitmap != HourglassIcon() {
		t.Fatalf("superseded load published data: %q", s.Name)
	}

	// next service of slot 2 re-arms it for entry 5 from the first step
	runUntil(t, p, func() bool { return p.Slot(2).ID == 5 })
	if s := p.Slot(2); s.Step != EnterDir+1 || s.Pending != -1 {
		t.Fatalf("re-armed slot %+v", s)
	}

	runUntil(t, p, p.Idle)
	s := p.Slot(2)
	if s.ID != 5 || s.Name != "Game 5" || s.Version != "5.0" {
		t.Fatalf("final slot %+v", s)
	}

	wantDirs := []string{"GAME2", loader.UpDir, "GAME5", loader.UpDir}
	if fmt.Sprint(rc.names) != fmt.Sprint(wantDirs) {
		t.Fatalf("chdir sequence %v want %v", rc.names, wantDirs)
	}
}

func TestMissingManifest_SkipsToExit(t *testing.T) {
	p, rc, _ := setup(t, []entry{{name: "BROKEN", icon: true}})
	p.Request(0)

	runUntil(t, p, p.Idle)

	s := p.Slot(0)
	if s.Name != MissingName || s.Author != MissingAuthor || s.Version != MissingVersion {
		t.Fatalf("fields %q %q %q", s.Name, s.Author, s.Version)
	}
	if s.Bitmap != DefaultIcon() {
		t.Fatalf("default icon not used")
	}
	want := []loader.Opcode{loader.OpChdir, loader.OpOpenRead, loader.OpChdir}
	if fmt.Sprint(rc.ops) != fmt.Sprint(want) {
		t.Fatalf("ops=%v want %v", rc.ops, want)
	}
}

func TestMissingIcon_KeepsManifest(t *testing.T) {
	p, rc, _ := setup(t, []entry{{name: "NOICON", manifest: "Name=Plain\r\n"}})
	p.Request(0)

	runUntil(t, p, p.Idle)

	s := p.Slot(0)
	if s.Name != "Plain" || s.Author != DefaultAuthor || s.Version != DefaultVersion {
		t.Fatalf("fields %q %q %q", s.Name, s.Author, s.Version)
	}
	if s.Bitmap != DefaultIcon() {
		t.Fatalf("default icon not used")
	}
	if len(rc.ops) != 6 {
		t.Fatalf("ops=%v", rc.ops)
	}
}

func TestTruncatedIcon_DecodesBlack(t *testing.T) {
	bmp := make([]byte, 50)
	bmp[0], bmp[1] = 'B', 'M'
	bmp[pixelOffsetField] = 0x46
	p, rc, _ := setup(t, []entry{{name: "CUT", manifest: "Name=Cut\n", iconData: bmp}})
	p.Request(0)

	runUntil(t, p, func() bool { return p.Slot(0).Step == Done })
	runUntil(t, p, p.Idle)

	s := p.Slot(0)
	if s.ID != 0 || s.Name != "Cut" || s.Version != DefaultVersion {
		t.Fatalf("slot %+v", s)
	}
	if s.Bitmap != (Bitmap{}) {
		t.Fatalf("truncated icon must decode black")
	}
	if len(rc.ops) != 8 {
		t.Fatalf("ops=%v", rc.ops)
	}
}

func TestRequest_Ignored(t *testing.T) {
	p, _, _ := setup(t, numbered(2))

	p.Request(2)
	p.Request(-1)
	if !p.Idle() {
		t.Fatalf("out of range request armed a slot")
	}

	p.Request(1)
	runUntil(t, p, p.Idle)
	p.Request(1)
	if !p.Idle() {
		t.Fatalf("loaded entry was requested again")
	}
}

func TestFatalStatus(t *testing.T) {
	p, _, ctrl := setup(t, numbered(1))
	ctrl.Inject(loader.OpRead, loader.ErrIO)
	p.Request(0)

	var err error
	for n := 0; n < 1000 && err == nil; n++ {
		err = p.Update()
	}
	fe, ok := loader.AsFatal(err)
	if !ok {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if fe.Op != loader.OpRead || fe.Status != loader.ErrIO {
		t.Fatalf("fatal %+v", fe)
	}
}

func TestDrain(t *testing.T) {
	p, _, _ := setup(t, numbered(4))
	for i := 0; i < 3; i++ {
		p.Request(i)
	}
	if err := p.Drain(context.Background()); err != nil {
		t.Fatalf("Drain err=%v", err)
	}
	for i := 0; i < 3; i++ {
		if s := p.Slot(i); s.ID != i || s.Name != fmt.Sprintf("Game %d", i) {
			t.Fatalf("slot %d = %+v", i, s)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Request(3)
	if err := p.Drain(ctx); err == nil {
		t.Fatalf("expected cancellation")
	}
}
