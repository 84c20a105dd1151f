// internal/sequencer/progress.go
package sequencer

// Phase names a part of the flashing sequence.
type Phase string

const (
	PhaseInternalErase Phase = "internal-erase"
	PhaseInternalWrite Phase = "internal-write"
	PhaseExternalErase Phase = "external-erase"
	PhaseExternalWrite Phase = "external-write"
	PhaseReboot        Phase = "reboot"
	PhaseDump          Phase = "dump"
)

// Progress is reported after every chunk.
type Progress struct {
	Phase Phase
	Step  int
	Total int
	Bytes int // image bytes handled so far in this phase
}

// ProgressCallback receives progress reports. It runs on the flashing
// goroutine and must return quickly.
type ProgressCallback func(Progress)

// Notice is a centered message window.
type Notice struct {
	Width  int
	Height int
	Top    int // y of the first line
	Lines  []string
}
