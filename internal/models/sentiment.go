package models

import "time"

// SentimentRecord is produced by an external scorer and only read here.
type SentimentRecord struct {
	TokenID    string    `json:"tokenId"`
	Score      float64   `json:"score"`
	Label      string    `json:"label"`
	SampleSize int       `json:"sampleSize"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
