package catalog

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TimeOfDay is a clock time without a date, used for working-hour ranges and
// appointment start times. It marshals as "HH:MM" and maps to a TIME column.
type TimeOfDay struct {
	hour   int
	minute int
}

// NewTimeOfDay creates a TimeOfDay from the given hour and minute.
func NewTimeOfDay(hour int, minute int) TimeOfDay {
	return TimeOfDay{hour: hour, minute: minute}
}

// ParseTimeOfDay parses a "HH:MM" or "HH:MM:SS" string.
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	var hour, minute int
	parts := strings.Split(value, ":")
	if len(parts) < 2 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day: %s", value)
	}
	if _, err := fmt.Sscanf(parts[0]+":"+parts[1], "%d:%d", &hour, &minute); err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day: %s", value)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day: %s", value)
	}
	return TimeOfDay{hour: hour, minute: minute}, nil
}

// Hour gets the hour component.
func (t TimeOfDay) Hour() int {
	return t.hour
}

// Minute gets the minute component.
func (t TimeOfDay) Minute() int {
	return t.minute
}

// Minutes gets the total minutes elapsed since midnight.
func (t TimeOfDay) Minutes() int {
	return t.hour*60 + t.minute
}

// Add returns the time of day the given number of minutes later.
func (t TimeOfDay) Add(minutes int) TimeOfDay {
	total := t.Minutes() + minutes
	return TimeOfDay{hour: total / 60, minute: total % 60}
}

// Before reports whether t is earlier than other.
func (t TimeOfDay) Before(other TimeOfDay) bool {
	return t.Minutes() < other.Minutes()
}

// At anchors the time of day on the given date in the given location.
func (t TimeOfDay) At(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.hour, t.minute, 0, 0, loc)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.hour, t.minute)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Scan implements sql.Scanner, accepting TIME column representations.
func (t *TimeOfDay) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		*t = TimeOfDay{hour: v.Hour(), minute: v.Minute()}
		return nil
	case []byte:
		parsed, err := ParseTimeOfDay(string(v))
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	case string:
		parsed, err := ParseTimeOfDay(v)
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	}
	return fmt.Errorf("cannot scan %T into TimeOfDay", src)
}

// Value implements driver.Valuer.
func (t TimeOfDay) Value() (driver.Value, error) {
	return fmt.Sprintf("%02d:%02d:00", t.hour, t.minute), nil
}
