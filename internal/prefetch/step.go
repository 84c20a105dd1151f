// internal/prefetch/step.go
package prefetch

import "fmt"

// Step is the position of a slot in its load sequence.
// The numbering is part of the observable behaviour: issue steps are odd,
// await steps are even, Idle is zero.
type Step int

const (
	Idle Step = iota
	EnterDir
	AwaitEnterDir
	OpenManifest
	AwaitManifestOpen
	ReadManifest
	AwaitManifestRead
	ParseManifestData
	AwaitManifestClose
	OpenIcon
	AwaitIconOpen
	ReadIcon
	AwaitIconRead
	DecodeIconData
	AwaitIconClose
	ExitDir
	AwaitExitDir
	Done
)

// Kind tells what a step does when its slot is serviced.
type Kind int

// An issue step posts the next non-blocking call, an await step polls it.
// An await-open step also turns file-not-found into a jump to ExitDir.
const (
	KindIdle Kind = iota
	KindIssue
	KindAwait
	KindAwaitOpen
	KindFinish
)

type stepInfo struct {
	name string
	kind Kind
}

var stepTable = [...]stepInfo{
	Idle:               {"idle", KindIdle},
	EnterDir:           {"enter-dir", KindIssue},
	AwaitEnterDir:      {"await-enter-dir", KindAwait},
	OpenManifest:       {"open-manifest", KindIssue},
	AwaitManifestOpen:  {"await-manifest-open", KindAwaitOpen},
	ReadManifest:       {"read-manifest", KindIssue},
	AwaitManifestRead:  {"await-manifest-read", KindAwait},
	ParseManifestData:  {"parse-manifest", KindIssue},
	AwaitManifestClose: {"await-manifest-close", KindAwait},
	OpenIcon:           {"open-icon", KindIssue},
	AwaitIconOpen:      {"await-icon-open", KindAwaitOpen},
	ReadIcon:           {"read-icon", KindIssue},
	AwaitIconRead:      {"await-icon-read", KindAwait},
	DecodeIconData:     {"decode-icon", KindIssue},
	AwaitIconClose:     {"await-icon-close", KindAwait},
	ExitDir:            {"exit-dir", KindIssue},
	AwaitExitDir:       {"await-exit-dir", KindAwait},
	Done:               {"done", KindFinish},
}

// Kind returns the step kind.
func (s Step) Kind() Kind {
	if s < 0 || int(s) >= len(stepTable) {
		return KindIdle
	}
	return stepTable[s].kind
}

func (s Step) String() string {
	if s < 0 || int(s) >= len(stepTable) {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepTable[s].name
}
