package services

import (
	"errors"
	"fmt"
)

var (
	ErrTaskNotFound     = errors.New("task not found")
	ErrTaskExists       = errors.New("task already exists")
	ErrAlreadyCompleted = errors.New("task already completed")
	ErrAlreadyClaimed   = errors.New("check-in already claimed today")
	ErrExpired          = errors.New("task expired")
	ErrNotYetOpen       = errors.New("task not yet open")
	ErrUserLock         = errors.New("user locked")
	ErrInvalidWindow    = errors.New("start time must precede end time")
	ErrZeroReward       = errors.New("points reward must not be zero")
	ErrLastAdmin        = errors.New("cannot remove the last admin")
	ErrNotAdmin         = errors.New("admin required")
	ErrBalanceTooLow    = errors.New("insufficient balance")
	ErrProofRequired    = errors.New("proof required")
)

// RequirementError names the first requirement a user failed.
type RequirementError struct {
	Requirement string
	Detail      string
}

func (e *RequirementError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("requirement unmet: %s", e.Requirement)
	}
	return fmt.Sprintf("requirement unmet: %s (%s)", e.Requirement, e.Detail)
}
