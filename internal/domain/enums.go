// Package domain defines the core domain models for the bot.
package domain

// TurnStatus represents the outcome of one chat turn.
type TurnStatus string

const (
	TurnStatusCompleted TurnStatus = "COMPLETED"
	TurnStatusFailed    TurnStatus = "FAILED"
	TurnStatusAborted   TurnStatus = "ABORTED"
)
