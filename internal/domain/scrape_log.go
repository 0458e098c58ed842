package domain

import "time"

// ScrapeLogEntry records one observation the pipeline dropped, with enough
// context to trace the producer that sent it.
type ScrapeLogEntry struct {
	ID           int64
	ProductCode  string
	Source       string
	Field        string
	ErrorMessage string
	Payload      []byte
	CreatedAt    time.Time
}
