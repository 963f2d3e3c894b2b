package models

import (
	"fmt"
	"strings"
	"sync"
)

type Mode string

const (
	ModePrivate Mode = "private"
	ModeGroup   Mode = "group"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModePrivate:
		return ModePrivate, nil
	case ModeGroup:
		return ModeGroup, nil
	}
	return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidArgument, s)
}

// ModeState holds a target only in group mode.
type ModeState struct {
	Mode          Mode   `json:"mode"`
	TargetGroupID *int64 `json:"target_group_id,omitempty"`
}

func (s ModeState) Validate() error {
	switch s.Mode {
	case ModePrivate:
		return nil
	case ModeGroup:
		if s.TargetGroupID == nil || *s.TargetGroupID <= 0 {
			return fmt.Errorf("%w: group mode requires a positive target group id", ErrInvalidArgument)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown mode %q", ErrInvalidArgument, s.Mode)
}

func (s ModeState) clone() ModeState {
	if s.TargetGroupID == nil {
		return s
	}
	id := *s.TargetGroupID
	return ModeState{Mode: s.Mode, TargetGroupID: &id}
}

type ModeController struct {
	mu    sync.RWMutex
	state ModeState
}

func NewModeController(initial ModeState) (*ModeController, error) {
	mc := &ModeController{state: ModeState{Mode: ModePrivate}}
	if err := mc.Restore(initial); err != nil {
		return nil, err
	}
	return mc, nil
}

// SetMode switches delivery immediately. On error the current state is kept.
func (mc *ModeController) SetMode(mode Mode, target *int64) error {
	next := ModeState{Mode: mode}
	if mode == ModeGroup && target != nil {
		id := *target
		next.TargetGroupID = &id
	}
	if err := next.Validate(); err != nil {
		return err
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.state = next
	return nil
}

func (mc *ModeController) Current() ModeState {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.state.clone()
}

func (mc *ModeController) Restore(state ModeState) error {
	if err := state.Validate(); err != nil {
		return err
	}
	next := state.clone()
	if next.Mode == ModePrivate {
		next.TargetGroupID = nil
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.state = next
	return nil
}

// Targets returns the chats a feedback message is forwarded to.
func (mc *ModeController) Targets(owner int64, admins []int64) []int64 {
	state := mc.Current()
	if state.Mode == ModeGroup {
		return []int64{*state.TargetGroupID}
	}
	seen := make(map[int64]struct{}, len(admins)+1)
	out := make([]int64, 0, len(admins)+1)
	for _, id := range append(append([]int64{}, admins...), owner) {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
