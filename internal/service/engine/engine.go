// Package engine adapts a third-party chess rules library to the narrow
// contract the session coordinator consumes: whose turn it is, apply a
// candidate move if it is legal, and read the current position.
package engine

import (
	"errors"
	"fmt"
)

// Side is the side whose turn it is. The first side moves first.
type Side int

const (
	SideFirst Side = iota
	SideSecond
)

func (s Side) String() string {
	switch s {
	case SideFirst:
		return "First"
	case SideSecond:
		return "Second"
	default:
		return fmt.Sprintf("Side(%d)", int(s))
	}
}

// Move is an unvalidated move proposal. Squares use file+rank notation
// ("e2"); Promotion is optional.
type Move struct {
	From      string
	To        string
	Promotion string
}

func (m Move) String() string {
	return m.From + m.To + m.Promotion
}

// ErrIllegalMove marks a well-formed move that the current position does
// not allow. Any other error from ApplyIfLegal is an engine fault.
var ErrIllegalMove = errors.New("illegal move")

type Engine interface {
	CurrentTurn() Side
	// ApplyIfLegal returns the new snapshot when the move is accepted.
	ApplyIfLegal(m Move) (string, error)
	Snapshot() string
	// Outcome reports the result ("*" while in progress) and how it was reached.
	Outcome() (result string, method string)
}
