package billing

import (
	"context"
	"regexp"
	"testing"

	"clinic-booking/internal/configs"
	"clinic-booking/internal/events"
	"clinic-booking/internal/mock"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
)

func withFindSettledPaymentResult(rows *sqlmock.Rows) mock.DBResultOption {
	return func(dbConn mock.Connection) {
		dbConn.SQLMock.ExpectQuery(regexp.QuoteMeta(findSettledPaymentQuery)).WithArgs(sqlmock.AnyArg()).WillReturnRows(rows)
	}
}

func withUpdatePaymentResult() mock.DBResultOption {
	return func(dbConn mock.Connection) {
		dbConn.SQLMock.ExpectExec(regexp.QuoteMeta(updatePaymentQuery)).
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
}

func TestRefundCancellation(t *testing.T) {
	config := configs.MustLoad("./../../test/testdata/config_valid.json")
	type args struct {
		config        configs.Config
		dbConn        mock.Connection
		gateway       Gateway
		dbMockOptions []mock.DBResultOption
	}
	tests := []struct {
		name    string
		args    args
		wantErr bool
	}{
		{
			name: "should refund the settling payment stored without a refund amount",
			args: args{
				config:  config,
				dbConn:  mock.MustCreateConnectionMock(),
				gateway: NewMockGateway(),
				dbMockOptions: []mock.DBResultOption{
					withFindSettledPaymentResult(settledPaymentRows(1)),
					withUpdatePaymentResult(),
				},
			},
			wantErr: false,
		},
		{
			name: "should do nothing when the appointment has no settling payment",
			args: args{
				config:  config,
				dbConn:  mock.MustCreateConnectionMock(),
				gateway: NewMockGateway(),
				dbMockOptions: []mock.DBResultOption{
					withFindSettledPaymentResult(sqlmock.NewRows(paymentColumnNames())),
				},
			},
			wantErr: false,
		},
		{
			name: "should fail when the gateway rejects the refund",
			args: args{
				config:  config,
				dbConn:  mock.MustCreateConnectionMock(),
				gateway: declineGateway{},
				dbMockOptions: []mock.DBResultOption{
					withFindSettledPaymentResult(settledPaymentRows(1)),
				},
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			appointments := mockAppointments{patient: mockPatient()}
			service := NewService(tt.args.config, tt.args.dbConn, appointments, tt.args.gateway, events.NewLogPublisher(logger))

			mock.MockDBResults(tt.args.dbConn, tt.args.dbMockOptions...)

			appointment := mockUnpaidAppointment(1)
			appointment.IsPaid = true
			err := service.RefundCancellation(context.Background(), tt.args.dbConn.DB(), *appointment, decimal.NewFromInt(100), "canceled on short notice")

			if (err != nil) != tt.wantErr {
				t.Errorf("refund error is incorrect, got %v, wantErr %v", err, tt.wantErr)
			}
			if err := tt.args.dbConn.SQLMock.ExpectationsWereMet(); err != nil {
				t.Errorf("unmet database expectations: %v", err)
			}
		})
	}
}
