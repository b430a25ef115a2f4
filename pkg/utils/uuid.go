package utils

import "github.com/google/uuid"

// NewTaskID returns a random id used to correlate a background task in logs
func NewTaskID() string {
	return uuid.NewString()
}
