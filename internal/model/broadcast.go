package model

import "time"

// BroadcastJob 一次群发（不落库）
type BroadcastJob struct {
	ID          string
	Text        string
	RequesterID int64
	Targets     []int64
	CreatedAt   time.Time
}

// BroadcastSummary 群发结果
type BroadcastSummary struct {
	JobID     string
	Attempted int
	Delivered int
	Elapsed   time.Duration
}

func (s BroadcastSummary) Failed() int { return s.Attempted - s.Delivered }
