package chat

import (
	"sort"
	"time"
)

// Bucket labels a recency group in the session list.
type Bucket string

const (
	BucketToday     Bucket = "Today"
	BucketYesterday Bucket = "Yesterday"
	BucketLastWeek  Bucket = "Last 7 Days"
	BucketLastMonth Bucket = "Last 30 Days"
	BucketOlder     Bucket = "Older"
)

// bucketOrder fixes the display order of recency groups.
var bucketOrder = []Bucket{
	BucketToday,
	BucketYesterday,
	BucketLastWeek,
	BucketLastMonth,
	BucketOlder,
}

// BucketGroup is one non-empty recency group, newest session first.
type BucketGroup struct {
	Bucket   Bucket
	Sessions []Session
}

// GroupByRecency groups sessions by how recently they were updated,
// relative to the calendar day containing now. Boundaries are
// half-open day intervals anchored at local midnight, so a session
// updated at 23:59 yesterday and one updated at 00:01 today land in
// different groups even though they are minutes apart. Empty groups
// are omitted and group order is fixed.
func GroupByRecency(sessions []Session, now time.Time) []BucketGroup {
	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	thresholds := recencyThresholds{
		today:     startOfToday,
		yesterday: startOfToday.AddDate(0, 0, -1),
		week:      startOfToday.AddDate(0, 0, -7),
		month:     startOfToday.AddDate(0, 0, -30),
	}

	grouped := make(map[Bucket][]Session, len(bucketOrder))
	for _, sess := range sessions {
		bucket := thresholds.bucketFor(sess.UpdatedAt)
		grouped[bucket] = append(grouped[bucket], sess.Clone())
	}

	out := make([]BucketGroup, 0, len(grouped))
	for _, bucket := range bucketOrder {
		members := grouped[bucket]
		if len(members) == 0 {
			continue
		}
		sort.SliceStable(members, func(i, j int) bool {
			return members[i].UpdatedAt.After(members[j].UpdatedAt)
		})
		out = append(out, BucketGroup{Bucket: bucket, Sessions: members})
	}
	return out
}

type recencyThresholds struct {
	today     time.Time
	yesterday time.Time
	week      time.Time
	month     time.Time
}

func (t recencyThresholds) bucketFor(updatedAt time.Time) Bucket {
	switch {
	case !updatedAt.Before(t.today):
		return BucketToday
	case !updatedAt.Before(t.yesterday):
		return BucketYesterday
	case !updatedAt.Before(t.week):
		return BucketLastWeek
	case !updatedAt.Before(t.month):
		return BucketLastMonth
	default:
		return BucketOlder
	}
}
