package domain

import "sort"

const DefaultCancelState = "cancelled"

// ReservationState is one row of the configurable lifecycle catalog.
type ReservationState struct {
	Code      string `json:"code" yaml:"code"`
	Name      string `json:"name" yaml:"name"`
	Releasing bool   `json:"releasing" yaml:"releasing"`
	Initial   bool   `json:"initial" yaml:"initial"`
	SortOrder int    `json:"sort_order" yaml:"sort_order"`
}

// StateSet is a snapshot of the lifecycle catalog taken for one operation.
// It must not outlive the operation that loaded it.
type StateSet struct {
	byCode  map[string]ReservationState
	ordered []ReservationState
}

func NewStateSet(states []ReservationState) StateSet {
	ordered := make([]ReservationState, len(states))
	copy(ordered, states)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].SortOrder < ordered[j].SortOrder })

	byCode := make(map[string]ReservationState, len(ordered))
	for _, s := range ordered {
		byCode[s.Code] = s
	}

	return StateSet{byCode: byCode, ordered: ordered}
}

func (s StateSet) Has(code string) bool {
	_, ok := s.byCode[code]
	return ok
}

// IsReleasing reports whether reservations in code free their slots.
// Unknown codes hold resources.
func (s StateSet) IsReleasing(code string) bool {
	return s.byCode[code].Releasing
}

// Releasing returns the codes of every releasing state, never nil.
func (s StateSet) Releasing() []string {
	out := []string{}
	for _, st := range s.ordered {
		if st.Releasing {
			out = append(out, st.Code)
		}
	}
	return out
}

// Initial is the state flagged initial, or the first holding state.
func (s StateSet) Initial() (string, bool) {
	for _, st := range s.ordered {
		if st.Initial && !st.Releasing {
			return st.Code, true
		}
	}
	for _, st := range s.ordered {
		if !st.Releasing {
			return st.Code, true
		}
	}
	return "", false
}

// CancelState resolves the releasing state used by a cancel request.
func (s StateSet) CancelState(requested string) (string, bool) {
	if requested != "" {
		return requested, s.IsReleasing(requested)
	}
	if s.IsReleasing(DefaultCancelState) {
		return DefaultCancelState, true
	}
	for _, st := range s.ordered {
		if st.Releasing {
			return st.Code, true
		}
	}
	return "", false
}

func (s StateSet) All() []ReservationState {
	out := make([]ReservationState, len(s.ordered))
	copy(out, s.ordered)
	return out
}
