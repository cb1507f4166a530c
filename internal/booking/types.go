// Package booking implements a dentist-clinic scheduling machine: a worked
// domain example of corral.Machine with a payment preauthorization step
// modeled as a tracked action. Grounded on the clinic scheduling domain
// carried over from the reference implementation this module's algebra was
// distilled from, rewritten here against corral's Machine/Actions/Input
// types instead of that implementation's future-based poll loop.
package booking

import "fmt"

// Day is a day of the week the clinic may be open.
type Day int

const (
	Monday Day = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

func (d Day) String() string {
	names := [...]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}
	if int(d) < 0 || int(d) >= len(names) {
		return fmt.Sprintf("Day(%d)", int(d))
	}
	return names[d]
}

// Time is a wall-clock time of day as an hour and minute; Mins converts it
// to minutes since midnight.
type Time struct {
	Hour, Minute int
}

func NewTime(hour, minute int) Time { return Time{Hour: hour, Minute: minute} }

func (t Time) Mins() int { return t.Hour*60 + t.Minute }

func fromMins(m int) Time { return Time{Hour: m / 60, Minute: m % 60} }

func (t Time) Add(mins int) Time { return fromMins(t.Mins() + mins) }

func (t Time) Before(other Time) bool { return t.Mins() < other.Mins() }

func (t Time) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

// TimeRange is a half-open interval [Start, End).
type TimeRange struct {
	Start, End Time
}

func NewTimeRange(start, end Time) TimeRange { return TimeRange{Start: start, End: end} }

func (r TimeRange) Contains(t Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

func (r TimeRange) CanFit(start Time, durMins int) bool {
	return r.Contains(start) && !r.End.Before(start.Add(durMins))
}

// AptType is a kind of appointment, each with a fixed duration and price.
type AptType int

const (
	Cleaning AptType = iota
	Checkup
	Filling
	RootCanal
)

func (a AptType) DurMins() int {
	switch a {
	case Cleaning:
		return 15
	case Checkup:
		return 30
	case Filling:
		return 45
	case RootCanal:
		return 60
	default:
		return 0
	}
}

func (a AptType) PriceCents() int {
	switch a {
	case Cleaning:
		return 5000
	case Checkup:
		return 7500
	case Filling:
		return 15000
	case RootCanal:
		return 20000
	default:
		return 0
	}
}

func (a AptType) String() string {
	names := [...]string{"Cleaning", "Checkup", "Filling", "Root Canal"}
	if int(a) < 0 || int(a) >= len(names) {
		return fmt.Sprintf("AptType(%d)", int(a))
	}
	return names[a]
}

// Slot identifies one bookable appointment start time.
type Slot struct {
	Day  Day
	Time Time
}

func (s Slot) String() string { return fmt.Sprintf("%s %s", s.Day, s.Time) }

// MarshalText renders a Slot as a map-key-safe token so Bookings (keyed by
// Slot) can round-trip through encoding/json, which only accepts string,
// integer, or TextMarshaler map keys.
func (s Slot) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("%d-%d-%d", int(s.Day), s.Time.Hour, s.Time.Minute)), nil
}

// UnmarshalText parses the format written by MarshalText.
func (s *Slot) UnmarshalText(data []byte) error {
	var day, hour, minute int
	if _, err := fmt.Sscanf(string(data), "%d-%d-%d", &day, &hour, &minute); err != nil {
		return fmt.Errorf("booking: invalid slot %q: %w", data, err)
	}
	s.Day = Day(day)
	s.Time = Time{Hour: hour, Minute: minute}
	return nil
}

// ConfirmedBooking is a finalized, paid-for appointment.
type ConfirmedBooking struct {
	UserID      uint64
	Name        string
	Email       string
	AptType     AptType
	AmountPaid  int // cents actually captured
}

// ReqStatus is the lifecycle state of a PendingReq.
type ReqStatus int

const (
	AwaitingPreauth ReqStatus = iota
	PreauthSuccess
	SlotConfirmed
	SlotTaken
	NoSlot
	Released
)

func (s ReqStatus) String() string {
	names := [...]string{"AwaitingPreauth", "PreauthSuccess", "SlotConfirmed", "SlotTaken", "NoSlot", "Released"}
	if int(s) < 0 || int(s) >= len(names) {
		return fmt.Sprintf("ReqStatus(%d)", int(s))
	}
	return names[s]
}

// PendingReq is an in-flight booking request awaiting a payment preauth
// completion before it is confirmed or abandoned.
type PendingReq struct {
	UserID  uint64
	Name    string
	Email   string
	Slot    *Slot
	AptType AptType
	Status  ReqStatus
}

// ReqID identifies a PendingReq; it doubles as the corral.ActionID for the
// tracked payment request issued on its behalf (a state-derived
// deterministic identifier is all ActionID requires, and req ids already
// satisfy that).
type ReqID = uint64
