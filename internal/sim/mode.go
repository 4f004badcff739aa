package sim

import "github.com/pkg/errors"

// Mode selects how the simulator produces responses.
type Mode string

const (
	ModeGenerate Mode = "generate"
	ModeRecord   Mode = "record"
	ModeReplay   Mode = "replay"
)

// ParseMode validates a mode coming from configuration.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeGenerate, ModeRecord, ModeReplay:
		return Mode(s), nil

	case "":
		return ModeGenerate, nil

	default:
		return "", errors.Errorf("unknown mode %q (supported: %s, %s, %s)", s, ModeGenerate, ModeRecord, ModeReplay)
	}
}

// UsesRecordings reports whether the mode needs the recording store.
func (m Mode) UsesRecordings() bool {
	return m == ModeRecord || m == ModeReplay
}
