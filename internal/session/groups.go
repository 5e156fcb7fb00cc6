package session

import "time"

// Group is a chronological bucket of index entries for the sidebar.
type Group struct {
	Label   string
	Entries []IndexEntry
}

const (
	GroupToday     = "Today"
	GroupYesterday = "Yesterday"
	GroupWeek      = "Previous 7 Days"
	GroupOlder     = "Older"
)

var groupOrder = []string{GroupToday, GroupYesterday, GroupWeek, GroupOlder}

// GroupByAge partitions entries by calendar-day distance from now. Order
// within a group follows the input order, so callers feeding an index keep
// most-recently-saved first. Empty groups are omitted.
func GroupByAge(entries []IndexEntry, now time.Time) []Group {
	buckets := make(map[string][]IndexEntry, len(groupOrder))
	for _, e := range entries {
		label := ageLabel(e.Timestamp, now)
		buckets[label] = append(buckets[label], e)
	}

	groups := make([]Group, 0, len(groupOrder))
	for _, label := range groupOrder {
		if len(buckets[label]) == 0 {
			continue
		}
		groups = append(groups, Group{Label: label, Entries: buckets[label]})
	}
	return groups
}

func ageLabel(ts, now time.Time) string {
	switch days := calendarDaysBetween(ts, now); {
	case days <= 0:
		return GroupToday
	case days == 1:
		return GroupYesterday
	case days <= 7:
		return GroupWeek
	default:
		return GroupOlder
	}
}

func calendarDaysBetween(ts, now time.Time) int {
	y1, m1, d1 := ts.Local().Date()
	y2, m2, d2 := now.Local().Date()
	a := time.Date(y1, m1, d1, 0, 0, 0, 0, time.Local)
	b := time.Date(y2, m2, d2, 0, 0, 0, 0, time.Local)
	return int(b.Sub(a).Hours() / 24)
}
