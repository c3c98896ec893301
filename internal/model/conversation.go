package model

import "time"

// FeedResult is the merged cross-platform timeline.
type FeedResult struct {
	Messages     []UnifiedMessage    `json:"messages"`
	UnreadCounts UnreadCounts        `json:"unreadCounts"`
	Errors       map[Platform]string `json:"errors,omitempty"`
	GeneratedAt  time.Time           `json:"generatedAt"`
}

type UnreadCounts struct {
	Facebook  int `json:"facebook"`
	Instagram int `json:"instagram"`
	Gmail     int `json:"gmail"`
	Total     int `json:"total"`
}

// PlatformSummary is one tile of the dashboard summary.
type PlatformSummary struct {
	Platform      Platform `json:"platform"`
	Unread        int      `json:"unread"`
	NeedsReply    int      `json:"needsReply"`
	Conversations int      `json:"conversations"`
	Error         string   `json:"error,omitempty"`
}
