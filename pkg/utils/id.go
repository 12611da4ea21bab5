package utils

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var (
	// Counter for sequential IDs
	idCounter uint64
)

// GenerateID generates a unique ID
func GenerateID() string {
	// Increment counter atomically
	count := atomic.AddUint64(&idCounter, 1)

	// Combine timestamp with counter for uniqueness
	timestamp := time.Now().UnixNano()
	return fmt.Sprintf("%x-%x", timestamp, count)
}

// GenerateStudyID generates a study ID with a timestamp prefix
func GenerateStudyID() string {
	timestamp := time.Now().Format("20060102-150405")
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Sprintf("study-%s-%s", timestamp, GenerateID())
	}
	return fmt.Sprintf("study-%s-%s", timestamp, id.String()[:8])
}
