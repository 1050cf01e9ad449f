package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	RunID      ID
	StrategyID ID
)

func (id RunID) String() string      { return ID(id).String() }
func (id StrategyID) String() string { return ID(id).String() }

// NewRunID identifies one validation run.
func NewRunID() RunID { return RunID(NewID()) }

// ParseRunID parses a string into RunID
func ParseRunID(s string) (RunID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("run ID cannot be empty")
	}
	return RunID(s), nil
}

// ParseStrategyID parses a string into StrategyID
func ParseStrategyID(s string) (StrategyID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("strategy ID cannot be empty")
	}
	return StrategyID(strings.TrimSpace(s)), nil
}
