package battlefield

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrReentrantUpdate   = errors.New("battlefield: update called while draining")
	ErrEntityExists      = errors.New("battlefield: entity already added")
	ErrEntityNotPhysical = errors.New("battlefield: entity has no physical registration")
	ErrUnknownCommand    = errors.New("battlefield: unknown command")
	ErrInvalidWorldSize  = errors.New("battlefield: world size must be positive and finite")
)

// CommandError is the failure of one command of a tick batch. The rest of
// the batch is still applied.
type CommandError struct {
	Tick    uint64
	Index   int
	Command Command
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("tick %d: command %d %s: %v", e.Tick, e.Index, e.Command.Name(), e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// WorldSize is the logical extent of the world. It does not change after
// construction.
type WorldSize struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

func (s WorldSize) Validate() error {
	for _, v := range []float64{s.Width, s.Height} {
		if v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
			return fmt.Errorf("%w: %gx%g", ErrInvalidWorldSize, s.Width, s.Height)
		}
	}
	return nil
}
