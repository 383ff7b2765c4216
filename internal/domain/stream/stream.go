// internal/domain/stream/stream.go
package stream

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"sweep_reminder_bot/internal/domain/schedule"
	"sweep_reminder_bot/internal/domain/segment"
)

// Side is one of the two mutually exclusive orientations of a street segment.
type Side string

const (
	SideA Side = "A"
	SideB Side = "B"
)

// Label renders a side for the human-readable stream summary.
func (s Side) Label() string {
	switch s {
	case SideA:
		return "side A"
	case SideB:
		return "side B"
	}
	return string(s)
}

// LocationSide is one side of a physical street segment together with the
// recurring schedule that cleans it.
type LocationSide struct {
	SegmentID   string
	BlockNumber int
	StreetName  string
	Side        Side
	Schedule    schedule.RecurringSchedule
}

// Member identifies one location-side folded into a stream. JSON tags match
// the persisted stream record's members field.
type Member struct {
	SegmentID   string `json:"segment_id"`
	BlockNumber int    `json:"block_number"`
	Side        Side   `json:"side"`
}

// NotificationStream is the unit a subscriber actually receives reminders
// for: all of their selected location-sides sharing a street and a schedule.
// StreamKey is a pure function of (owner, street, schedule), so recomputing
// a subscriber's streams from the same selections reproduces the same keys.
type NotificationStream struct {
	ID         int64
	OwnerID    int64
	StreamKey  string
	StreetName string
	Schedule   schedule.RecurringSchedule
	Members    []Member
	Summary    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// GroupKey is the composite identity two sides must share to belong to the
// same stream: same street, cleaned under literally the same recurring rule.
// Which physical side a member is on does not enter the key.
type GroupKey struct {
	StreetName string
	DayOfWeek  time.Weekday
	StartTime  string
	EndTime    string
	Frequency  schedule.Frequency
}

// Expand unconditionally splits every selected segment into up to two
// independent location-side records, one per side that has a schedule.
func Expand(segments []segment.Segment) []LocationSide {
	sides := make([]LocationSide, 0, 2*len(segments))
	for _, seg := range segments {
		if seg.SideA != nil {
			sides = append(sides, LocationSide{
				SegmentID:   seg.ID,
				BlockNumber: seg.BlockNumber,
				StreetName:  seg.StreetName,
				Side:        SideA,
				Schedule:    *seg.SideA,
			})
		}
		if seg.SideB != nil {
			sides = append(sides, LocationSide{
				SegmentID:   seg.ID,
				BlockNumber: seg.BlockNumber,
				StreetName:  seg.StreetName,
				Side:        SideB,
				Schedule:    *seg.SideB,
			})
		}
	}
	return sides
}

// GroupByStream partitions location-sides by (street, schedule) identity.
func GroupByStream(sides []LocationSide) map[GroupKey][]LocationSide {
	groups := make(map[GroupKey][]LocationSide)
	for _, side := range sides {
		key := GroupKey{
			StreetName: side.StreetName,
			DayOfWeek:  side.Schedule.DayOfWeek,
			StartTime:  side.Schedule.StartTime,
			EndTime:    side.Schedule.EndTime,
			Frequency:  side.Schedule.Frequency,
		}
		groups[key] = append(groups[key], side)
	}
	return groups
}

// StreamKey derives the stable 16-hex-character identifier for an
// (owner, street, schedule) tuple: a truncated SHA-256 digest, so identical
// inputs always reproduce the identical key and collisions are negligible at
// expected cardinalities.
func StreamKey(ownerID int64, streetName string, s schedule.RecurringSchedule) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%d|%s|%s|%s", ownerID, streetName, s.DayOfWeek, s.StartTime, s.EndTime, s.Frequency)
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// FormatBlockRange renders a set of block numbers compactly: sorted
// ascending, adjacent values exactly 100 apart merged into "lo-hi" runs,
// singletons emitted bare, disjoint runs comma-joined.
func FormatBlockRange(numbers []int) string {
	if len(numbers) == 0 {
		return ""
	}
	sorted := append([]int(nil), numbers...)
	sort.Ints(sorted)

	var parts []string
	runStart, prev := sorted[0], sorted[0]
	flush := func() {
		if runStart == prev {
			parts = append(parts, strconv.Itoa(runStart))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", runStart, prev))
		}
	}
	for _, n := range sorted[1:] {
		if n == prev {
			continue
		}
		if n == prev+100 {
			prev = n
			continue
		}
		flush()
		runStart, prev = n, n
	}
	flush()
	return strings.Join(parts, ", ")
}

// SideLabel summarizes which orientations a stream's members cover.
func SideLabel(sides []Side) string {
	var hasA, hasB bool
	for _, s := range sides {
		switch s {
		case SideA:
			hasA = true
		case SideB:
			hasB = true
		}
	}
	switch {
	case hasA && hasB:
		return "both sides"
	case hasA:
		return SideA.Label()
	case hasB:
		return SideB.Label()
	}
	return ""
}

// ComputeStreams folds a subscriber's selected segments into the minimal set
// of notification streams. Pure and deterministic: identical inputs yield
// identical keys, summaries and ordering, which is what makes re-upserting
// against persisted state safe.
func ComputeStreams(ownerID int64, segments []segment.Segment) []NotificationStream {
	groups := GroupByStream(Expand(segments))

	streams := make([]NotificationStream, 0, len(groups))
	for key, sides := range groups {
		blockSet := make(map[int]struct{})
		var members []Member
		var present []Side
		for _, side := range sides {
			blockSet[side.BlockNumber] = struct{}{}
			members = append(members, Member{
				SegmentID:   side.SegmentID,
				BlockNumber: side.BlockNumber,
				Side:        side.Side,
			})
			present = append(present, side.Side)
		}
		blocks := make([]int, 0, len(blockSet))
		for b := range blockSet {
			blocks = append(blocks, b)
		}
		sort.Slice(members, func(i, j int) bool {
			if members[i].SegmentID != members[j].SegmentID {
				return members[i].SegmentID < members[j].SegmentID
			}
			return members[i].Side < members[j].Side
		})

		sched := sides[0].Schedule
		streams = append(streams, NotificationStream{
			OwnerID:    ownerID,
			StreamKey:  StreamKey(ownerID, key.StreetName, sched),
			StreetName: key.StreetName,
			Schedule:   sched,
			Members:    members,
			Summary:    fmt.Sprintf("%s (%s)", FormatBlockRange(blocks), SideLabel(present)),
		})
	}

	sort.Slice(streams, func(i, j int) bool {
		if streams[i].StreetName != streams[j].StreetName {
			return streams[i].StreetName < streams[j].StreetName
		}
		return streams[i].StreamKey < streams[j].StreamKey
	})
	return streams
}
