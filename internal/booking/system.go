package booking

import "fmt"

// System is the booking machine's state (corral's S type parameter).
// Exported fields keep it a plain, JSON- and gob-friendly value so it can
// sit behind either frame implementation.
type System struct {
	Schedule map[Day][]TimeRange
	Bookings map[Slot]ConfirmedBooking
	Pending  map[ReqID]PendingReq
	NextID   ReqID
}

// NewSystem returns an empty clinic with no open hours and no bookings.
func NewSystem() System {
	return System{
		Schedule: map[Day][]TimeRange{},
		Bookings: map[Slot]ConfirmedBooking{},
		Pending:  map[ReqID]PendingReq{},
		NextID:   1,
	}
}

// DefaultSchedule returns a System pre-populated with a representative
// five-day clinic schedule, useful for demos and simulation seeding.
func DefaultSchedule() System {
	s := NewSystem()
	s.AddSchedule(Monday, NewTimeRange(NewTime(9, 0), NewTime(12, 0)))
	s.AddSchedule(Monday, NewTimeRange(NewTime(14, 0), NewTime(17, 0)))
	s.AddSchedule(Tuesday, NewTimeRange(NewTime(9, 0), NewTime(12, 0)))
	s.AddSchedule(Tuesday, NewTimeRange(NewTime(13, 0), NewTime(16, 0)))
	s.AddSchedule(Wednesday, NewTimeRange(NewTime(9, 0), NewTime(12, 0)))
	s.AddSchedule(Wednesday, NewTimeRange(NewTime(14, 0), NewTime(18, 0)))
	s.AddSchedule(Thursday, NewTimeRange(NewTime(10, 0), NewTime(13, 0)))
	s.AddSchedule(Thursday, NewTimeRange(NewTime(14, 0), NewTime(17, 0)))
	s.AddSchedule(Friday, NewTimeRange(NewTime(9, 0), NewTime(15, 0)))
	return s
}

func (s *System) AddSchedule(day Day, r TimeRange) {
	s.Schedule[day] = append(s.Schedule[day], r)
}

// IsAvailable reports whether a duration starting at slot fits the clinic's
// open hours on that day and does not overlap any confirmed booking.
func (s *System) IsAvailable(slot Slot, durMins int) bool {
	ranges, ok := s.Schedule[slot.Day]
	if !ok {
		return false
	}
	fits := false
	for _, r := range ranges {
		if r.CanFit(slot.Time, durMins) {
			fits = true
			break
		}
	}
	if !fits {
		return false
	}

	end := slot.Time.Add(durMins)
	for booked, booking := range s.Bookings {
		if booked.Day != slot.Day {
			continue
		}
		bookedEnd := booked.Time.Add(booking.AptType.DurMins())
		if slot.Time.Before(bookedEnd) && booked.Time.Before(end) {
			return false
		}
	}
	return true
}

// FindSlot searches days (in order) and, within each day's open ranges
// intersected with the caller's preferred ranges, in 15-minute increments,
// for the first slot that can hold durMins and is not already booked.
func (s *System) FindSlot(days []Day, prefs []TimeRange, durMins int) (Slot, bool) {
	for _, day := range days {
		schedRanges, ok := s.Schedule[day]
		if !ok {
			continue
		}
		for _, sched := range schedRanges {
			for _, pref := range prefs {
				start := sched.Start
				if pref.Start.Mins() > start.Mins() {
					start = pref.Start
				}
				end := sched.End
				if pref.End.Mins() < end.Mins() {
					end = pref.End
				}
				if !start.Before(end) {
					continue
				}

				for t := start; t.Add(durMins).Mins() <= end.Mins(); t = t.Add(15) {
					slot := Slot{Day: day, Time: t}
					if s.IsAvailable(slot, durMins) {
						return slot, true
					}
				}
			}
		}
	}
	return Slot{}, false
}

// CheckInvariants re-derives the machine's correctness properties from
// scratch: no two confirmed bookings overlap, every booking fits the
// clinic's open hours, and every SlotConfirmed pending request has a
// matching entry in Bookings. Intended for use from a simulation harness's
// CheckInvariants hook after every transition.
func (s *System) CheckInvariants() error {
	type entry struct {
		slot    Slot
		booking ConfirmedBooking
	}
	entries := make([]entry, 0, len(s.Bookings))
	for slot, b := range s.Bookings {
		entries = append(entries, entry{slot: slot, booking: b})
	}
	for i := range entries {
		for j := i + 1; j < len(entries); j++ {
			a, b := entries[i], entries[j]
			if a.slot.Day != b.slot.Day {
				continue
			}
			aEnd := a.slot.Time.Add(a.booking.AptType.DurMins())
			bEnd := b.slot.Time.Add(b.booking.AptType.DurMins())
			if a.slot.Time.Before(bEnd) && b.slot.Time.Before(aEnd) {
				return fmt.Errorf("overlapping bookings: %s (%s) and %s (%s)", a.slot, a.booking.AptType, b.slot, b.booking.AptType)
			}
		}
	}

	for slot, booking := range s.Bookings {
		ranges, ok := s.Schedule[slot.Day]
		if !ok {
			return fmt.Errorf("booking %s on day without schedule", slot)
		}
		fits := false
		for _, r := range ranges {
			if r.CanFit(slot.Time, booking.AptType.DurMins()) {
				fits = true
				break
			}
		}
		if !fits {
			return fmt.Errorf("booking %s doesn't fit schedule (dur %d)", slot, booking.AptType.DurMins())
		}
	}

	for id, pending := range s.Pending {
		if pending.Status != SlotConfirmed {
			continue
		}
		if pending.Slot == nil {
			return fmt.Errorf("confirmed request %d has no slot", id)
		}
		if _, ok := s.Bookings[*pending.Slot]; !ok {
			return fmt.Errorf("confirmed request %d slot %s not in bookings", id, *pending.Slot)
		}
	}
	return nil
}
