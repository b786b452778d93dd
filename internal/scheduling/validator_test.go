package scheduling

import (
	"testing"
	"time"

	"clinic-booking/internal/apierrors"
	"clinic-booking/internal/catalog"
)

func TestValidate(t *testing.T) {
	today := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	nextMonday := today.AddDate(0, 0, 7)
	mondayHours := []*catalog.WorkingHour{
		workingHour(1, catalog.NewTimeOfDay(9, 0), catalog.NewTimeOfDay(17, 0)),
	}
	type args struct {
		snapshot  Snapshot
		date      time.Time
		startTime catalog.TimeOfDay
	}
	tests := []struct {
		name         string
		args         args
		wantErr      bool
		wantDetail   string
		wantConflict bool
	}{
		{
			name: "should accept a valid booking",
			args: args{
				snapshot:  Snapshot{Today: today, HorizonDays: 90, WorkingHours: mondayHours},
				date:      nextMonday,
				startTime: catalog.NewTimeOfDay(9, 0),
			},
		},
		{
			name: "should reject a past date",
			args: args{
				snapshot:  Snapshot{Today: today, HorizonDays: 90, WorkingHours: mondayHours},
				date:      today.AddDate(0, 0, -1),
				startTime: catalog.NewTimeOfDay(9, 0),
			},
			wantErr:    true,
			wantDetail: ErrPastDate,
		},
		{
			name: "should reject a date beyond the booking horizon",
			args: args{
				snapshot:  Snapshot{Today: today, HorizonDays: 90, WorkingHours: mondayHours},
				date:      today.AddDate(0, 0, 91),
				startTime: catalog.NewTimeOfDay(9, 0),
			},
			wantErr:    true,
			wantDetail: ErrTooFarInAdvance,
		},
		{
			name: "should reject a weekday without active working hours",
			args: args{
				snapshot:  Snapshot{Today: today, HorizonDays: 90},
				date:      nextMonday,
				startTime: catalog.NewTimeOfDay(9, 0),
			},
			wantErr:    true,
			wantDetail: ErrDoctorUnavailableWeekday,
		},
		{
			name: "should reject a start time outside every range",
			args: args{
				snapshot:  Snapshot{Today: today, HorizonDays: 90, WorkingHours: mondayHours},
				date:      nextMonday,
				startTime: catalog.NewTimeOfDay(17, 0),
			},
			wantErr:    true,
			wantDetail: ErrOutsideWorkingHours,
		},
		{
			name: "should reject a date with a day off",
			args: args{
				snapshot:  Snapshot{Today: today, HorizonDays: 90, WorkingHours: mondayHours, DayOff: &catalog.DayOff{}},
				date:      nextMonday,
				startTime: catalog.NewTimeOfDay(9, 0),
			},
			wantErr:    true,
			wantDetail: ErrDoctorDayOff,
		},
		{
			name: "should reject an already booked slot with a conflict",
			args: args{
				snapshot: Snapshot{
					Today:        today,
					HorizonDays:  90,
					WorkingHours: mondayHours,
					BookedStarts: []catalog.TimeOfDay{catalog.NewTimeOfDay(9, 0)},
				},
				date:      nextMonday,
				startTime: catalog.NewTimeOfDay(9, 0),
			},
			wantErr:      true,
			wantConflict: true,
		},
		{
			name: "should accept booking the same day at the horizon boundary",
			args: args{
				snapshot:  Snapshot{Today: today, HorizonDays: 7, WorkingHours: mondayHours},
				date:      nextMonday,
				startTime: catalog.NewTimeOfDay(9, 0),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.args.snapshot, tt.args.date, tt.args.startTime)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			if tt.wantConflict {
				if _, isConflict := err.(*apierrors.ConflictError); !isConflict {
					t.Errorf("Validate() error = %T, want conflict error", err)
				}
				return
			}
			validationErr, isValidationErr := err.(*apierrors.ValidationError)
			if !isValidationErr {
				t.Fatalf("Validate() error = %T, want validation error", err)
			}
			if validationErr.Description != tt.wantDetail {
				t.Errorf("Validate() description = %s, want %s", validationErr.Description, tt.wantDetail)
			}
		})
	}
}

func TestValidate_checksOrder(t *testing.T) {
	today := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

	// every check would fail here, the earliest one must win
	snapshot := Snapshot{
		Today:        today,
		HorizonDays:  90,
		DayOff:       &catalog.DayOff{},
		BookedStarts: []catalog.TimeOfDay{catalog.NewTimeOfDay(9, 0)},
	}
	err := Validate(snapshot, today.AddDate(0, 0, -1), catalog.NewTimeOfDay(9, 0))
	validationErr, isValidationErr := err.(*apierrors.ValidationError)
	if !isValidationErr {
		t.Fatalf("Validate() error = %T, want validation error", err)
	}
	if validationErr.Description != ErrPastDate {
		t.Errorf("Validate() description = %s, want %s", validationErr.Description, ErrPastDate)
	}
}
