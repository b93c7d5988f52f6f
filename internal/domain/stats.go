package domain

import "time"

// SubscriberStats holds the running counters of a feed subscriber.
type SubscriberStats struct {
	Processed int64
	Skipped   int64
	Errors    int64
}

// ReplayStats holds statistics about a replay run.
type ReplayStats struct {
	Selected  int
	Processed int
	Created   int
	Updated   int
	NoOp      int
	Errors    int
	Duration  time.Duration
}

// ArticleCounts is a snapshot of ingestion volume used by status and stats reports.
type ArticleCounts struct {
	Total        int64
	SoftDeleted  int64
	LastDay      int64
	LastWeek     int64
	LastMonth    int64
	Today        int64
	LastReceived *time.Time
}

type SourceCount struct {
	Name         string `db:"name"`
	ArticleCount int64  `db:"article_count"`
}

type TagCount struct {
	Name         string `db:"name"`
	ArticleCount int64  `db:"article_count"`
}

// ArticleFilter selects stored articles. A zero ID and nil CreatedSince select everything.
type ArticleFilter struct {
	ID           int64
	CreatedSince *time.Time
}
