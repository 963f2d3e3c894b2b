package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshot_Check(t *testing.T) {
	ok := &Snapshot{
		Users: []UserRecord{{ID: 1}, {ID: 2}},
		Mode:  ModeState{Mode: ModePrivate},
	}
	assert.NoError(t, ok.Check())

	dup := &Snapshot{
		Users: []UserRecord{{ID: 1}, {ID: 1}},
		Mode:  ModeState{Mode: ModePrivate},
	}
	assert.ErrorIs(t, dup.Check(), ErrInvalidArgument)

	badID := &Snapshot{Users: []UserRecord{{ID: 0}}, Mode: ModeState{Mode: ModePrivate}}
	assert.ErrorIs(t, badID.Check(), ErrInvalidArgument)

	badMode := &Snapshot{Mode: ModeState{Mode: ModeGroup}}
	assert.ErrorIs(t, badMode.Check(), ErrInvalidArgument)
}

func TestSnapshot_Consistent(t *testing.T) {
	s := &Snapshot{
		Users: []UserRecord{{ID: 1, MessageCount: 2, Blocked: true}, {ID: 2, MessageCount: 1}},
		Stats: Stats{TotalUsers: 2, TotalMessages: 3, BlockedUsers: 1},
	}
	assert.True(t, s.Consistent())

	s.Stats.BlockedUsers = 0
	assert.False(t, s.Consistent())
}
