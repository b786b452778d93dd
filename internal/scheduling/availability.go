package scheduling

import (
	"sort"

	"clinic-booking/internal/catalog"
)

// AvailableSlots computes the bookable start times for a doctor on a single
// day. The calculation is pure over the loaded schedule data:
//
//  1. a day off empties the whole day,
//  2. slots are walked per active working-hour range in slotDuration steps,
//     dropping the final partial slot that would cross the range end,
//  3. start times already booked are excluded,
//  4. when cutoff is given (the current clock time on the requested day),
//     start times strictly before it are excluded.
//
// Ranges are sorted by start time first, and a slot emitted by overlapping
// ranges appears only once. The result is ascending.
func AvailableSlots(workingHours []*catalog.WorkingHour, dayOff *catalog.DayOff, booked []catalog.TimeOfDay, slotDuration int, cutoff *catalog.TimeOfDay) []catalog.TimeOfDay {
	slots := make([]catalog.TimeOfDay, 0)
	if dayOff != nil || slotDuration <= 0 {
		return slots
	}
	ranges := make([]*catalog.WorkingHour, len(workingHours))
	copy(ranges, workingHours)
	sort.SliceStable(ranges, func(i, j int) bool {
		return ranges[i].StartTime.Before(ranges[j].StartTime)
	})
	bookedSet := make(map[int]bool, len(booked))
	for _, start := range booked {
		bookedSet[start.Minutes()] = true
	}
	seen := make(map[int]bool)
	for _, workingHour := range ranges {
		if !workingHour.Active {
			continue
		}
		current := workingHour.StartTime
		for current.Add(slotDuration).Minutes() <= workingHour.EndTime.Minutes() {
			start := current
			current = current.Add(slotDuration)
			if seen[start.Minutes()] || bookedSet[start.Minutes()] {
				continue
			}
			if cutoff != nil && start.Before(*cutoff) {
				continue
			}
			seen[start.Minutes()] = true
			slots = append(slots, start)
		}
	}
	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].Before(slots[j])
	})
	return slots
}
