package wire

import (
	"strconv"

	"github.com/wippyai/guest-bridge/errors"
)

// State is one position of a return hint: up to three accepted type tags,
// tried in order against the runtime value.
type State struct {
	Accepted []Tag
}

// Hint describes the expected shape of a call's result. It is parsed once
// per invocation from the operations stream, consumed immediately to
// validate and encode the result, and never persisted beyond the pending
// async call that carries it.
//
//	None   - value must be absent
//	Single - exactly one value, one state
//	List   - homogeneous sequence, one state applied to every element
//	Multi  - heterogeneous sequence, one state per position
type Hint struct {
	Arity  Arity
	States []State
}

const maxStateArity = 3

// ParseHint decodes a return hint at cursor:
//
//	HintStart(200) arity [state]* HintStop(201)
//	state = state-arity(1..3) accepted-tag^state-arity
func ParseHint(s *Source, cursor int) (Hint, int, error) {
	marker, cursor, err := s.ReadByte(cursor)
	if err != nil {
		return Hint{}, 0, err
	}
	if marker != HintStart {
		return Hint{}, 0, errors.Framing(errors.PhaseDecode, cursor-1, HintStart, marker)
	}

	arityByte, cursor, err := s.ReadByte(cursor)
	if err != nil {
		return Hint{}, 0, err
	}
	if arityByte > byte(ArityMulti) {
		return Hint{}, 0, errors.InvalidData(errors.PhaseDecode, []string{"hint"},
			"unknown return arity "+strconv.Itoa(int(arityByte)))
	}
	hint := Hint{Arity: Arity(arityByte)}

	for {
		b, cur, err := s.ReadByte(cursor)
		if err != nil {
			return Hint{}, 0, err
		}
		if b == HintStop {
			cursor = cur
			break
		}

		if b == 0 || b > maxStateArity {
			return Hint{}, 0, errors.InvalidData(errors.PhaseDecode, []string{"hint"},
				"state arity must be 1..3, got "+strconv.Itoa(int(b)))
		}
		cursor = cur

		state := State{Accepted: make([]Tag, b)}
		for i := range state.Accepted {
			tagByte, cur, err := s.ReadByte(cursor)
			if err != nil {
				return Hint{}, 0, err
			}
			cursor = cur
			state.Accepted[i] = Tag(tagByte)
		}
		hint.States = append(hint.States, state)
	}

	if err := hint.checkShape(); err != nil {
		return Hint{}, 0, err
	}
	return hint, cursor, nil
}

func (h Hint) checkShape() error {
	switch h.Arity {
	case ArityNone:
		if len(h.States) != 0 {
			return errors.ArityMismatch(errors.PhaseDecode, "none hint carries states")
		}
	case AritySingle, ArityList:
		if len(h.States) != 1 {
			return errors.ArityMismatch(errors.PhaseDecode, "single/list hint needs exactly one state")
		}
	case ArityMulti:
		if len(h.States) == 0 {
			return errors.ArityMismatch(errors.PhaseDecode, "multi hint needs at least one state")
		}
	}
	return nil
}

