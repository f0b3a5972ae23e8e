package adra

import (
	"errors"
	"fmt"
)

// ErrMissingVetoLayer marks a record that cannot be finalized because the
// execution-veto layer is absent. Finalization must surface this to the
// caller; it is never defaulted away.
var ErrMissingVetoLayer = errors.New("record missing L7 veto layer")

// Validate checks envelope identity before finalization.
func Validate(r Record) error {
	if _, ok := r[LayerVeto]; !ok {
		return fmt.Errorf("%w (record %s)", ErrMissingVetoLayer, r.ID())
	}
	return nil
}
