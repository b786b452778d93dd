package billing

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
	"clinic-booking/internal/configs"
	"clinic-booking/internal/database"
	"clinic-booking/internal/events"
	"clinic-booking/internal/mock"
	"clinic-booking/internal/scheduling"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type emptyWriter struct{}

func (e emptyWriter) Write(p []byte) (n int, err error) {
	return 0, nil
}

var logger = log.New(&emptyWriter{}, "", log.LstdFlags)

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

// mockAppointments is the scheduling surface the tests wire the ledger to.
type mockAppointments struct {
	appointment *scheduling.Appointment
	patient     *scheduling.Patient
}

func (m mockAppointments) FindAppointment(_ context.Context, _ uuid.UUID) (*scheduling.Appointment, error) {
	return m.appointment, nil
}

func (m mockAppointments) FindPatient(_ context.Context, _ auth.User) (*scheduling.Patient, error) {
	return m.patient, nil
}

func (m mockAppointments) SettlePayment(_ context.Context, _ database.Querier, _ int64, _ time.Time) error {
	return nil
}

func mockPatient() *scheduling.Patient {
	return &scheduling.Patient{
		ID:    1,
		UUID:  uuid.UUID{},
		Name:  "Jane Roe",
		Email: "patient@clinic.com",
	}
}

func mockUnpaidAppointment(patientID int64) *scheduling.Appointment {
	return &scheduling.Appointment{
		ID:          1,
		UUID:        uuid.MustParse("b9fa0fae-a9af-4b3e-9a51-4e65e7410e02"),
		PatientID:   patientID,
		DoctorID:    1,
		Status:      scheduling.StatusConfirmed,
		BasePrice:   decimal.NewFromInt(200),
		TotalAmount: decimal.NewFromInt(200),
	}
}

// declineGateway refuses every charge and refund.
type declineGateway struct{}

func (g declineGateway) ProcessPayment(_ context.Context, _ CardDetails, _ decimal.Decimal, _ string) (*GatewayResult, error) {
	return &GatewayResult{Error: "card declined"}, nil
}

func (g declineGateway) ProcessTokenPayment(_ context.Context, _ string, _ decimal.Decimal, _ string) (*GatewayResult, error) {
	return &GatewayResult{Error: "card declined"}, nil
}

func (g declineGateway) ProcessRefund(_ context.Context, _ string, _ decimal.Decimal) (*RefundResult, error) {
	return &RefundResult{Error: "refund rejected"}, nil
}

func (g declineGateway) Tokenize(_ context.Context, _ CardDetails) (string, error) {
	return "tok_testing", nil
}

func withCountSettledPaymentsResult(count int) mock.DBResultOption {
	return func(dbConn mock.Connection) {
		dbConn.SQLMock.ExpectQuery(regexp.QuoteMeta(countSettledPaymentsQuery)).WithArgs(sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(count))
	}
}

func withInsertPaymentResult() mock.DBResultOption {
	return func(dbConn mock.Connection) {
		dbConn.SQLMock.ExpectQuery(regexp.QuoteMeta(insertPaymentQuery)).
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	}
}

func withUpdatePaymentInTransactionResult() mock.DBResultOption {
	return func(dbConn mock.Connection) {
		dbConn.SQLMock.ExpectBegin()
		dbConn.SQLMock.ExpectExec(regexp.QuoteMeta(updatePaymentQuery)).
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		dbConn.SQLMock.ExpectCommit()
	}
}

func withFindPaymentByUUIDResult(rows *sqlmock.Rows) mock.DBResultOption {
	return func(dbConn mock.Connection) {
		dbConn.SQLMock.ExpectQuery(regexp.QuoteMeta(findPaymentByUUIDQuery)).WithArgs(sqlmock.AnyArg()).WillReturnRows(rows)
	}
}

func withListPaymentsResult(rows *sqlmock.Rows) mock.DBResultOption {
	return func(dbConn mock.Connection) {
		dbConn.SQLMock.ExpectQuery(regexp.QuoteMeta(listPaymentsByPatientQuery)).WithArgs(sqlmock.AnyArg()).WillReturnRows(rows)
	}
}

func withListPaymentsError() mock.DBResultOption {
	return func(dbConn mock.Connection) {
		dbConn.SQLMock.ExpectQuery(regexp.QuoteMeta(listPaymentsByPatientQuery)).WithArgs(sqlmock.AnyArg()).WillReturnError(sql.ErrConnDone)
	}
}

func paymentColumnNames() []string {
	return []string{"id", "uuid", "appointment_id", "patient_id", "amount", "base_amount", "cancellation_fee_amount", "late_fee_amount", "method", "status", "card_brand", "card_last_four", "transaction_id", "gateway_response", "is_refunded", "refund_amount", "refund_reason", "refunded_at", "completed_at", "created_at"}
}

// settledPaymentRows mirrors a completed payment as stored: refund_amount
// stays NULL until the payment is refunded.
func settledPaymentRows(patientID int64) *sqlmock.Rows {
	completedAt := time.Now()
	return sqlmock.NewRows(paymentColumnNames()).
		AddRow(1, uuid.UUID{}, 1, patientID, "200", "200", "0", "0", "CARD", "COMPLETED", "visa", "4242", "TXN-5A1B2C3D4E", nil, false, nil, nil, nil, completedAt, completedAt)
}

func mockCardPaymentRequest() *PaymentRequest {
	return &PaymentRequest{
		Card: &CardDetails{
			Number:         "4242424242424242",
			CardholderName: "Jane Roe",
			ExpiryMonth:    12,
			ExpiryYear:     2030,
			CVV:            "123",
		},
	}
}

func TestPay(t *testing.T) {
	config := configs.MustLoad("./../../test/testdata/config_valid.json")
	type args struct {
		config         configs.Config
		mockAuth       mockAuthorizer
		dbConn         mock.Connection
		dbMockOptions  []mock.DBResultOption
		appointments   mockAppointments
		gateway        Gateway
		paymentRequest *PaymentRequest
	}
	tests := []struct {
		name string
		args args
		want int
	}{
		{
			name: "should charge the card and settle the appointment",
			args: args{
				config:       config,
				dbConn:       mock.MustCreateConnectionMock(),
				mockAuth:     mockPatientAuthorizer(),
				appointments: mockAppointments{appointment: mockUnpaidAppointment(1), patient: mockPatient()},
				gateway:      NewMockGateway(),
				dbMockOptions: []mock.DBResultOption{
					withCountSettledPaymentsResult(0),
					withInsertPaymentResult(),
					withUpdatePaymentInTransactionResult(),
				},
				paymentRequest: mockCardPaymentRequest(),
			},
			want: http.StatusCreated,
		},
		{
			name: "should not charge because no patient associated with the user was found",
			args: args{
				config:         config,
				dbConn:         mock.MustCreateConnectionMock(),
				mockAuth:       mockPatientAuthorizer(),
				appointments:   mockAppointments{appointment: mockUnpaidAppointment(1)},
				gateway:        NewMockGateway(),
				paymentRequest: mockCardPaymentRequest(),
			},
			want: http.StatusForbidden,
		},
		{
			name: "should not charge because the appointment belongs to another patient",
			args: args{
				config:         config,
				dbConn:         mock.MustCreateConnectionMock(),
				mockAuth:       mockPatientAuthorizer(),
				appointments:   mockAppointments{appointment: mockUnpaidAppointment(2), patient: mockPatient()},
				gateway:        NewMockGateway(),
				paymentRequest: mockCardPaymentRequest(),
			},
			want: http.StatusForbidden,
		},
		{
			name: "should not charge because the appointment already has a settling payment",
			args: args{
				config:       config,
				dbConn:       mock.MustCreateConnectionMock(),
				mockAuth:     mockPatientAuthorizer(),
				appointments: mockAppointments{appointment: mockUnpaidAppointment(1), patient: mockPatient()},
				gateway:      NewMockGateway(),
				dbMockOptions: []mock.DBResultOption{
					withCountSettledPaymentsResult(1),
				},
				paymentRequest: mockCardPaymentRequest(),
			},
			want: http.StatusConflict,
		},
		{
			name: "should record the failed payment when the gateway declines the charge",
			args: args{
				config:       config,
				dbConn:       mock.MustCreateConnectionMock(),
				mockAuth:     mockPatientAuthorizer(),
				appointments: mockAppointments{appointment: mockUnpaidAppointment(1), patient: mockPatient()},
				gateway:      declineGateway{},
				dbMockOptions: []mock.DBResultOption{
					withCountSettledPaymentsResult(0),
					withInsertPaymentResult(),
					withUpdatePaymentInTransactionResult(),
				},
				paymentRequest: mockCardPaymentRequest(),
			},
			want: http.StatusPaymentRequired,
		},
		{
			name: "should not charge because the request carries no payment instrument",
			args: args{
				config:         config,
				dbConn:         mock.MustCreateConnectionMock(),
				mockAuth:       mockPatientAuthorizer(),
				appointments:   mockAppointments{appointment: mockUnpaidAppointment(1), patient: mockPatient()},
				gateway:        NewMockGateway(),
				paymentRequest: &PaymentRequest{},
			},
			want: http.StatusBadRequest,
		},
		{
			name: "should not charge because the card number is invalid",
			args: args{
				config:       config,
				dbConn:       mock.MustCreateConnectionMock(),
				mockAuth:     mockPatientAuthorizer(),
				appointments: mockAppointments{appointment: mockUnpaidAppointment(1), patient: mockPatient()},
				gateway:      NewMockGateway(),
				dbMockOptions: []mock.DBResultOption{
					withCountSettledPaymentsResult(0),
				},
				paymentRequest: &PaymentRequest{
					Card: &CardDetails{
						Number:         "4242424242424243",
						CardholderName: "Jane Roe",
						ExpiryMonth:    12,
						ExpiryYear:     2030,
						CVV:            "123",
					},
				},
			},
			want: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router := chi.NewRouter()
			Setup(router, logger, tt.args.mockAuth, tt.args.config, tt.args.dbConn, tt.args.appointments, tt.args.gateway, events.NewLogPublisher(logger))

			mock.MockDBResults(tt.args.dbConn, tt.args.dbMockOptions...)

			body, _ := json.Marshal(tt.args.paymentRequest)
			req, _ := http.NewRequest("POST", fmt.Sprintf("/api/v1/appointments/%s/payments", uuid.UUID{}), bytes.NewBuffer(body))
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

func TestGetPayment(t *testing.T) {
	config := configs.MustLoad("./../../test/testdata/config_valid.json")
	type args struct {
		config        configs.Config
		mockAuth      mockAuthorizer
		dbConn        mock.Connection
		dbMockOptions []mock.DBResultOption
		paymentUUID   string
	}
	tests := []struct {
		name string
		args args
		want int
	}{
		{
			name: "should get a payment stored without a refund amount",
			args: args{
				config:   config,
				dbConn:   mock.MustCreateConnectionMock(),
				mockAuth: mockPatientAuthorizer(),
				dbMockOptions: []mock.DBResultOption{
					withFindPaymentByUUIDResult(settledPaymentRows(1)),
				},
				paymentUUID: uuid.UUID{}.String(),
			},
			want: http.StatusOK,
		},
		{
			name: "should not get a payment because none matches the given UUID",
			args: args{
				config:   config,
				dbConn:   mock.MustCreateConnectionMock(),
				mockAuth: mockPatientAuthorizer(),
				dbMockOptions: []mock.DBResultOption{
					withFindPaymentByUUIDResult(sqlmock.NewRows(paymentColumnNames())),
				},
				paymentUUID: uuid.UUID{}.String(),
			},
			want: http.StatusNotFound,
		},
		{
			name: "should not disclose another patient's payment",
			args: args{
				config:   config,
				dbConn:   mock.MustCreateConnectionMock(),
				mockAuth: mockPatientAuthorizer(),
				dbMockOptions: []mock.DBResultOption{
					withFindPaymentByUUIDResult(settledPaymentRows(2)),
				},
				paymentUUID: uuid.UUID{}.String(),
			},
			want: http.StatusNotFound,
		},
		{
			name: "should not get a payment because the given UUID is wrong",
			args: args{
				config:      config,
				dbConn:      mock.MustCreateConnectionMock(),
				mockAuth:    mockPatientAuthorizer(),
				paymentUUID: "AAAA",
			},
			want: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router := chi.NewRouter()
			appointments := mockAppointments{patient: mockPatient()}
			Setup(router, logger, tt.args.mockAuth, tt.args.config, tt.args.dbConn, appointments, NewMockGateway(), events.NewLogPublisher(logger))

			mock.MockDBResults(tt.args.dbConn, tt.args.dbMockOptions...)

			req, _ := http.NewRequest("GET", fmt.Sprintf("/api/v1/payments/%s", tt.args.paymentUUID), nil)
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

func TestListPayments(t *testing.T) {
	config := configs.MustLoad("./../../test/testdata/config_valid.json")
	type args struct {
		config        configs.Config
		mockAuth      mockAuthorizer
		dbConn        mock.Connection
		dbMockOptions []mock.DBResultOption
	}
	tests := []struct {
		name string
		args args
		want int
	}{
		{
			name: "should list the payments including the ones stored without a refund amount",
			args: args{
				config:   config,
				dbConn:   mock.MustCreateConnectionMock(),
				mockAuth: mockPatientAuthorizer(),
				dbMockOptions: []mock.DBResultOption{
					withListPaymentsResult(settledPaymentRows(1)),
				},
			},
			want: http.StatusOK,
		},
		{
			name: "should not list the payments due to a database error",
			args: args{
				config:   config,
				dbConn:   mock.MustCreateConnectionMock(),
				mockAuth: mockPatientAuthorizer(),
				dbMockOptions: []mock.DBResultOption{
					withListPaymentsError(),
				},
			},
			want: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router := chi.NewRouter()
			appointments := mockAppointments{patient: mockPatient()}
			Setup(router, logger, tt.args.mockAuth, tt.args.config, tt.args.dbConn, appointments, NewMockGateway(), events.NewLogPublisher(logger))

			mock.MockDBResults(tt.args.dbConn, tt.args.dbMockOptions...)

			req, _ := http.NewRequest("GET", "/api/v1/payments", nil)
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
