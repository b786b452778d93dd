package scheduling

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"clinic-booking/internal/auth"
	"clinic-booking/internal/catalog"
	"clinic-booking/internal/configs"
	"clinic-booking/internal/events"
	"clinic-booking/internal/mock"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type emptyWriter struct{}

func (e emptyWriter) Write(p []byte) (n int, err error) {
	return 0, nil
}

var logger = log.New(&emptyWriter{}, "", log.LstdFlags)

const (
	testFindDoctorByUUIDQuery       = "SELECT id, uuid, user_id, clinic_id, name, email, specialty FROM tb_doctor WHERE uuid = $1"
	testListActiveWorkingHoursQuery = "SELECT id, uuid, doctor_id, day_of_week, start_time, end_time, active FROM tb_working_hour WHERE doctor_id = $1 AND day_of_week = $2 AND active = TRUE ORDER BY start_time"
	testFindDayOffQuery             = "SELECT id, uuid, doctor_id, date, reason, recurring FROM tb_day_off WHERE doctor_id = $1 AND date = $2"
)

type mockAuthorizer struct {
	mockValidateToken        func(ctx context.Context, token string) (*auth.User, error)
	mockRefreshTokens        func(ctx context.Context, tokens auth.Tokens) (*auth.Tokens, error)
	mockGetAuthenticatedUser func(ctx context.Context) (auth.User, error)
}

func (m mockAuthorizer) ValidateToken(ctx context.Context, token string) (*auth.User, error) {
	return m.mockValidateToken(ctx, token)
}

func (m mockAuthorizer) RefreshTokens(ctx context.Context, tokens auth.Tokens) (*auth.Tokens, error) {
	return m.mockRefreshTokens(ctx, tokens)
}

func (m mockAuthorizer) GetAuthenticatedUser(ctx context.Context) (auth.User, error) {
	return m.mockGetAuthenticatedUser(ctx)
}

func mockPatientAuthorizer() mockAuthorizer {
	return mockAuthorizer{
		mockValidateToken: func(ctx context.Context, token string) (*auth.User, error) {
			return mockPatientUser(), nil
		},
		mockGetAuthenticatedUser: func(ctx context.Context) (auth.User, error) {
			return *mockPatientUser(), nil
		},
	}
}

func mockPatientUser() *auth.User {
	return &auth.User{
		ID:    1,
		UUID:  uuid.UUID{},
		Email: "patient@clinic.com",
		Role:  auth.PatientRole,
	}
}

func withFindPatientByUserIDResult(rows *sqlmock.Rows) mock.DBResultOption {
	return func(dbConn mock.Connection) {
		dbConn.SQLMock.ExpectQuery(regexp.QuoteMeta(findPatientByUserIDQuery)).WithArgs(sqlmock.AnyArg()).WillReturnRows(rows)
	}
}

func withFindPatientByUserIDError() mock.DBResultOption {
	return func(dbConn mock.Connection) {
		dbConn.SQLMock.ExpectQuery(regexp.QuoteMeta(findPatientByUserIDQuery)).WithArgs(sqlmock.AnyArg()).WillReturnError(sql.ErrConnDone)
	}
}

func withFindDoctorByUUIDResult(rows *sqlmock.Rows) mock.DBResultOption {
	return func(dbConn mock.Connection) {
		dbConn.SQLMock.ExpectQuery(regexp.QuoteMeta(testFindDoctorByUUIDQuery)).WithArgs(sqlmock.AnyArg()).WillReturnRows(rows)
	}
}

func withFindDoctorByUUIDError() mock.DBResultOption {
	return func(dbConn mock.Connection) {
		dbConn.SQLMock.ExpectQuery(regexp.QuoteMeta(testFindDoctorByUUIDQuery)).WithArgs(sqlmock.AnyArg()).WillReturnError(sql.ErrConnDone)
	}
}

func withListActiveWorkingHoursResult(rows *sqlmock.Rows) mock.DBResultOption {
	return func(dbConn mock.Connection) {
		dbConn.SQLMock.ExpectQuery(regexp.QuoteMeta(testListActiveWorkingHoursQuery)).WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).WillReturnRows(rows)
	}
}

func withFindDayOffResult(rows *sqlmock.Rows) mock.DBResultOption {
	return func(dbConn mock.Connection) {
		dbConn.SQLMock.ExpectQuery(regexp.QuoteMeta(testFindDayOffQuery)).WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).WillReturnRows(rows)
	}
}

func withListBookedStartTimesResult(rows *sqlmock.Rows) mock.DBResultOption {
	return func(dbConn mock.Connection) {
		dbConn.SQLMock.ExpectQuery(regexp.QuoteMeta(listBookedStartTimesQuery)).WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).WillReturnRows(rows)
	}
}

func withInsertAppointmentResult() mock.DBResultOption {
	return func(dbConn mock.Connection) {
		dbConn.SQLMock.ExpectBegin()
		dbConn.SQLMock.ExpectExec(regexp.QuoteMeta(insertAppointmentQuery)).
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		dbConn.SQLMock.ExpectCommit()
	}
}

func withInsertAppointmentConflict() mock.DBResultOption {
	return func(dbConn mock.Connection) {
		dbConn.SQLMock.ExpectBegin()
		dbConn.SQLMock.ExpectExec(regexp.QuoteMeta(insertAppointmentQuery)).
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnError(&pq.Error{Code: "23505"})
		dbConn.SQLMock.ExpectRollback()
	}
}

func patientRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "uuid", "user_id", "name", "email"}).AddRow(1, uuid.UUID{}, 1, "Jane Roe", "patient@clinic.com")
}

func doctorRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "uuid", "user_id", "clinic_id", "name", "email", "specialty"}).AddRow(1, uuid.UUID{}, 2, 0, "John Doe", "doctor@clinic.com", "Cardiology")
}

func workingHourRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "uuid", "doctor_id", "day_of_week", "start_time", "end_time", "active"}).AddRow(1, uuid.UUID{}, 1, 1, "09:00:00", "17:00:00", true)
}

func emptyDayOffRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "uuid", "doctor_id", "date", "reason", "recurring"})
}

func bookedStartTimeRows(startTimes ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"start_time"})
	for _, startTime := range startTimes {
		rows.AddRow(startTime)
	}
	return rows
}

func TestGetAvailableSlots(t *testing.T) {
	config := configs.MustLoad("./../../test/testdata/config_valid.json")
	futureDate := time.Now().AddDate(0, 0, 7)
	type args struct {
		config        configs.Config
		mockAuth      mockAuthorizer
		dbConn        mock.Connection
		dbMockOptions []mock.DBResultOption
		doctorUUID    string
		year          string
		month         string
		day           string
	}
	tests := []struct {
		name string
		args args
		want int
	}{
		{
			name: "should list the available slots",
			args: args{
				config:   config,
				dbConn:   mock.MustCreateConnectionMock(),
				mockAuth: mockPatientAuthorizer(),
				dbMockOptions: []mock.DBResultOption{
					withFindDoctorByUUIDResult(doctorRows()),
					withListActiveWorkingHoursResult(workingHourRows()),
					withFindDayOffResult(emptyDayOffRows()),
					withListBookedStartTimesResult(bookedStartTimeRows()),
				},
				doctorUUID: uuid.UUID{}.String(),
				year:       futureDate.Format("2006"),
				month:      futureDate.Format("01"),
				day:        futureDate.Format("02"),
			},
			want: http.StatusOK,
		},
		{
			name: "should not list the available slots because the given doctor UUID is wrong",
			args: args{
				config:     config,
				dbConn:     mock.MustCreateConnectionMock(),
				mockAuth:   mockPatientAuthorizer(),
				doctorUUID: "AAAA",
				year:       futureDate.Format("2006"),
				month:      futureDate.Format("01"),
				day:        futureDate.Format("02"),
			},
			want: http.StatusBadRequest,
		},
		{
			name: "should not list the available slots because the given date parameters are wrong",
			args: args{
				config:     config,
				dbConn:     mock.MustCreateConnectionMock(),
				mockAuth:   mockPatientAuthorizer(),
				doctorUUID: uuid.UUID{}.String(),
				year:       "AAAA",
				month:      "08",
				day:        "10",
			},
			want: http.StatusBadRequest,
		},
		{
			name: "should not list the available slots because no doctor with given UUID was found",
			args: args{
				config:   config,
				dbConn:   mock.MustCreateConnectionMock(),
				mockAuth: mockPatientAuthorizer(),
				dbMockOptions: []mock.DBResultOption{
					withFindDoctorByUUIDResult(sqlmock.NewRows([]string{"id", "uuid", "user_id", "clinic_id", "name", "email", "specialty"})),
				},
				doctorUUID: uuid.UUID{}.String(),
				year:       futureDate.Format("2006"),
				month:      futureDate.Format("01"),
				day:        futureDate.Format("02"),
			},
			want: http.StatusNotFound,
		},
		{
			name: "should not list the available slots due to a database error while searching for the doctor",
			args: args{
				config:   config,
				dbConn:   mock.MustCreateConnectionMock(),
				mockAuth: mockPatientAuthorizer(),
				dbMockOptions: []mock.DBResultOption{
					withFindDoctorByUUIDError(),
				},
				doctorUUID: uuid.UUID{}.String(),
				year:       futureDate.Format("2006"),
				month:      futureDate.Format("01"),
				day:        futureDate.Format("02"),
			},
			want: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router := chi.NewRouter()
			Setup(router, logger, tt.args.mockAuth, tt.args.config, tt.args.dbConn, catalog.NewCatalog(tt.args.config, tt.args.dbConn), events.NewLogPublisher(logger))

			mock.MockDBResults(tt.args.dbConn, tt.args.dbMockOptions...)

			req, _ := http.NewRequest("GET", fmt.Sprintf("/api/v1/doctors/%s/slots/%s/%s/%s", tt.args.doctorUUID, tt.args.year, tt.args.month, tt.args.day), nil)
			req.Header.Add("Authorization", "Bearer testing")

			recorder := httptest.NewRecorder()
			router.ServeHTTP(recorder, req)
			response := recorder.Result()

			if response.StatusCode != tt.want {
				t.Errorf("response status is incorrect, got %d, want %d", recorder.Code, tt.want)
			}
		})
	}
}

func TestBook(t *testing.T) {
	config := configs.MustLoad("./../../test/testdata/config_valid.json")
	futureDate := time.Now().AddDate(0, 0, 7).Format("2006-01-02")
	pastDate := time.Now().AddDate(0, 0, -7).Format("2006-01-02")
	startTime := catalog.NewTimeOfDay(10, 0)
	type args struct {
		config         configs.Config
		mockAuth       mockAuthorizer
		dbConn         mock.Connection
		dbMockOptions  []mock.DBResultOption
		bookingRequest *BookingRequest
	}
	tests := []struct {
		name string
		args args
		want int
	}{
		{
			name: "should book an appointment",
			args: args{
				config:   config,
				dbConn:   mock.MustCreateConnectionMock(),
				mockAuth: mockPatientAuthorizer(),
				dbMockOptions: []mock.DBResultOption{
					withFindPatientByUserIDResult(patientRows()),
					withFindDoctorByUUIDResult(doctorRows()),
					withListActiveWorkingHoursResult(workingHourRows()),
					withFindDayOffResult(emptyDayOffRows()),
					withListBookedStartTimesResult(bookedStartTimeRows()),
					withInsertAppointmentResult(),
				},
				bookingRequest: &BookingRequest{
					DoctorUUID: uuid.MustParse("b9fa0fae-a9af-4b3e-9a51-4e65e7410e02"),
					Date:       futureDate,
					StartTime:  startTime,
				},
			},
			want: http.StatusCreated,
		},
		{
			name: "should not book an appointment because the doctor UUID is missing",
			args: args{
				config:   config,
				dbConn:   mock.MustCreateConnectionMock(),
				mockAuth: mockPatientAuthorizer(),
				bookingRequest: &BookingRequest{
					Date:      futureDate,
					StartTime: startTime,
				},
			},
			want: http.StatusBadRequest,
		},
		{
			name: "should not book an appointment because no patient associated with the user was found",
			args: args{
				config:   config,
				dbConn:   mock.MustCreateConnectionMock(),
				mockAuth: mockPatientAuthorizer(),
				dbMockOptions: []mock.DBResultOption{
					withFindPatientByUserIDResult(sqlmock.NewRows([]string{"id", "uuid", "user_id", "name", "email"})),
				},
				bookingRequest: &BookingRequest{
					DoctorUUID: uuid.MustParse("b9fa0fae-a9af-4b3e-9a51-4e65e7410e02"),
					Date:       futureDate,
					StartTime:  startTime,
				},
			},
			want: http.StatusForbidden,
		},
		{
			name: "should not book an appointment due to a database error while searching for the patient",
			args: args{
				config:   config,
				dbConn:   mock.MustCreateConnectionMock(),
				mockAuth: mockPatientAuthorizer(),
				dbMockOptions: []mock.DBResultOption{
					withFindPatientByUserIDError(),
				},
				bookingRequest: &BookingRequest{
					DoctorUUID: uuid.MustParse("b9fa0fae-a9af-4b3e-9a51-4e65e7410e02"),
					Date:       futureDate,
					StartTime:  startTime,
				},
			},
			want: http.StatusInternalServerError,
		},
		{
			name: "should not book an appointment because no doctor with given UUID was found",
			args: args{
				config:   config,
				dbConn:   mock.MustCreateConnectionMock(),
				mockAuth: mockPatientAuthorizer(),
				dbMockOptions: []mock.DBResultOption{
					withFindPatientByUserIDResult(patientRows()),
					withFindDoctorByUUIDResult(sqlmock.NewRows([]string{"id", "uuid", "user_id", "clinic_id", "name", "email", "specialty"})),
				},
				bookingRequest: &BookingRequest{
					DoctorUUID: uuid.MustParse("b9fa0fae-a9af-4b3e-9a51-4e65e7410e02"),
					Date:       futureDate,
					StartTime:  startTime,
				},
			},
			want: http.StatusNotFound,
		},
		{
			name: "should not book an appointment because the given date is in the past",
			args: args{
				config:   config,
				dbConn:   mock.MustCreateConnectionMock(),
				mockAuth: mockPatientAuthorizer(),
				dbMockOptions: []mock.DBResultOption{
					withFindPatientByUserIDResult(patientRows()),
					withFindDoctorByUUIDResult(doctorRows()),
					withListActiveWorkingHoursResult(workingHourRows()),
					withFindDayOffResult(emptyDayOffRows()),
					withListBookedStartTimesResult(bookedStartTimeRows()),
				},
				bookingRequest: &BookingRequest{
					DoctorUUID: uuid.MustParse("b9fa0fae-a9af-4b3e-9a51-4e65e7410e02"),
					Date:       pastDate,
					StartTime:  startTime,
				},
			},
			want: http.StatusBadRequest,
		},
		{
			name: "should not book an appointment because the slot is already booked",
			args: args{
				config:   config,
				dbConn:   mock.MustCreateConnectionMock(),
				mockAuth: mockPatientAuthorizer(),
				dbMockOptions: []mock.DBResultOption{
					withFindPatientByUserIDResult(patientRows()),
					withFindDoctorByUUIDResult(doctorRows()),
					withListActiveWorkingHoursResult(workingHourRows()),
					withFindDayOffResult(emptyDayOffRows()),
					withListBookedStartTimesResult(bookedStartTimeRows("10:00:00")),
				},
				bookingRequest: &BookingRequest{
					DoctorUUID: uuid.MustParse("b9fa0fae-a9af-4b3e-9a51-4e65e7410e02"),
					Date:       futureDate,
					StartTime:  startTime,
				},
			},
			want: http.StatusConflict,
		},
		{
			name: "should not book an appointment because another booking won the slot",
			args: args{
				config:   config,
				dbConn:   mock.MustCreateConnectionMock(),
				mockAuth: mockPatientAuthorizer(),
				dbMockOptions: []mock.DBResultOption{
					withFindPatientByUserIDResult(patientRows()),
					withFindDoctorByUUIDResult(doctorRows()),
					withListActiveWorkingHoursResult(workingHourRows()),
					withFindDayOffResult(emptyDayOffRows()),
					withListBookedStartTimesResult(bookedStartTimeRows()),
					withInsertAppointmentConflict(),
				},
				bookingRequest: &BookingRequest{
					DoctorUUID: uuid.MustParse("b9fa0fae-a9af-4b3e-9a51-4e65e7410e02"),
					Date:       futureDate,
					StartTime:  startTime,
				},
			},
			want: http.StatusConflict,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router := chi.NewRouter()
			Setup(router, logger, tt.args.mockAuth, tt.args.config, tt.args.dbConn, catalog.NewCatalog(tt.args.config, tt.args.dbConn), events.NewLogPublisher(logger))

			mock.MockDBResults(tt.args.dbConn, tt.args.dbMockOptions...)

			body, _ := json.Marshal(tt.args.bookingRequest)
			req, _ := http.NewRequest("POST", "/api/v1/appointments", bytes.NewBuffer(body))
			req.Header.Add("Authorization", "Bearer testing")

			recorder := httptest.NewRecorder()
			router.ServeHTTP(recorder, req)
			response := recorder.Result()

			if response.StatusCode != tt.want {
				t.Errorf("response status is incorrect, got %d, want %d", recorder.Code, tt.want)
			}
		})
	}
}
