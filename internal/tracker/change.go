package tracker

import (
	"fmt"

	"github.com/Joseda-hg/lazytracker/internal/model"
)

type Op string

const (
	OpCreated  Op = "created"
	OpUpdated  Op = "updated"
	OpDeleted  Op = "deleted"
	OpCleared  Op = "cleared"
	OpViewed   Op = "viewed"
	OpRestored Op = "restored"
)

// Change describes one state transition of a Manager. ID is zero for
// OpCleared and OpRestored.
type Change struct {
	Op   Op
	Kind model.Kind
	ID   int64
}

func (c Change) String() string {
	if c.ID == 0 {
		return fmt.Sprintf("%s %s", c.Op, c.Kind)
	}
	return fmt.Sprintf("%s %s %d", c.Op, c.Kind, c.ID)
}
