// internal/app/builder_test.go
package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/tamzrod/gw-hbloader/internal/buttons"
	"github.com/tamzrod/gw-hbloader/internal/config"
	"github.com/tamzrod/gw-hbloader/internal/intflash"
)

func simConfig(t *testing.T, root string) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.Loader.Sim.Root = root
	latency := 1
	c.Loader.Sim.Latency = &latency
	c.Flash.External.Size = 256 * 1024
	if err := config.Validate(c); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	config.Normalize(c)
	return c
}

func quiet() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestBuild_SimFlashesEntry(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "RETRO")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	img := bytes.Repeat([]byte{0x5A}, 3000)
	if err := os.WriteFile(filepath.Join(dir, "MAIN.BIN"), img, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	a, err := Build(simConfig(t, root), Frontend{Buttons: buttons.NewScript()}, quiet())
	if err != nil {
		t.Fatalf("Build err=%v", err)
	}
	defer a.Close()

	if a.Sim == nil {
		t.Fatalf("sim transport not exposed")
	}

	ctx := context.Background()
	if err := a.Menu.Start(ctx); err != nil {
		t.Fatalf("Start err=%v", err)
	}
	if err := a.Sequencer.Run(ctx, a.Menu.Entries()[0]); err != nil {
		t.Fatalf("Run err=%v", err)
	}

	mem := a.Internal.Bytes()
	if !bytes.Equal(mem[:len(img)], img) || mem[len(img)] != 0xFF {
		t.Fatalf("internal flash content wrong")
	}
	if a.Internal.Size() != 16*intflash.SectorSize || a.Sim.Resets() != 1 {
		t.Fatalf("size=%d resets=%d", a.Internal.Size(), a.Sim.Resets())
	}
}

func TestBuild_Errors(t *testing.T) {
	c := simConfig(t, filepath.Join(t.TempDir(), "missing"))
	if _, err := Build(c, Frontend{}, quiet()); err == nil {
		t.Fatalf("missing card root accepted")
	}

	c = simConfig(t, t.TempDir())
	c.Loader.Transport = "carrier-pigeon"
	if _, err := Build(c, Frontend{}, quiet()); err == nil {
		t.Fatalf("unknown transport accepted")
	}
}
