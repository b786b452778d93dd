package billing

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"clinic-booking/internal/apierrors"
	"clinic-booking/internal/auth"
	"clinic-booking/internal/configs"
	"clinic-booking/internal/database"
	"clinic-booking/internal/events"
	"clinic-booking/internal/scheduling"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const defaultCurrency = "USD"

// Appointments is the scheduling surface the payment ledger consumes.
type Appointments interface {

	// FindAppointment finds an appointment by its UUID.
	FindAppointment(ctx context.Context, appointmentUUID uuid.UUID) (*scheduling.Appointment, error)

	// FindPatient finds the patient associated to the given user, if any.
	FindPatient(ctx context.Context, user auth.User) (*scheduling.Patient, error)

	// SettlePayment stamps the appointment as paid through the given querier.
	SettlePayment(ctx context.Context, q database.Querier, appointmentID int64, paidAt time.Time) error
}

// Service is the payment ledger: it records payment attempts against
// appointments, enforces the single settling payment, and handles refunds
// and saved cards.
type Service interface {

	// Pay charges the given instrument for the appointment's current total
	// and, on success, settles the appointment in the same transaction.
	Pay(ctx context.Context, user auth.User, appointmentUUID uuid.UUID, request PaymentRequest) (*Payment, error)

	// ListPayments lists the payments of the patient associated to the given user.
	ListPayments(ctx context.Context, user auth.User) ([]*Payment, error)

	// GetPayment gets one of the patient's payments by its UUID.
	GetPayment(ctx context.Context, user auth.User, paymentUUID uuid.UUID) (*Payment, error)

	// ListCards lists the saved cards of the patient associated to the given user.
	ListCards(ctx context.Context, user auth.User) ([]*PaymentCard, error)

	// SaveCard tokenizes and saves a card for the patient associated to the given user.
	SaveCard(ctx context.Context, user auth.User, request SaveCardRequest) (*PaymentCard, error)

	// RemoveCard soft-deletes a saved card.
	RemoveCard(ctx context.Context, user auth.User, cardUUID uuid.UUID) error

	// MakeDefaultCard promotes a saved card to default, demoting the others.
	MakeDefaultCard(ctx context.Context, user auth.User, cardUUID uuid.UUID) error

	// RefundCancellation refunds the settling payment of a canceled paid
	// appointment. It runs inside the cancellation transaction.
	RefundCancellation(ctx context.Context, q database.Querier, appointment scheduling.Appointment, amount decimal.Decimal, reason string) error
}

type defaultService struct {
	config       configs.Config
	dbConn       database.Connection
	repository   Repository
	appointments Appointments
	gateway      Gateway
	publisher    events.Publisher
}

// NewService creates a new billing service.
func NewService(config configs.Config, dbConn database.Connection, appointments Appointments, gateway Gateway, publisher events.Publisher) Service {
	return &defaultService{
		config:       config,
		dbConn:       dbConn,
		repository:   newRepository(dbConn),
		appointments: appointments,
		gateway:      gateway,
		publisher:    publisher,
	}
}

// patientOf resolves the patient record associated to the given user.
func (d defaultService) patientOf(ctx context.Context, user auth.User) (*scheduling.Patient, error) {
	patient, err := d.appointments.FindPatient(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("an unexpected error occurred: %w", err)
	}
	if patient == nil {
		return nil, apierrors.NewAPIError(apierrors.WithDetail(ErrOnlyPatientCanPay), apierrors.WithHTTPStatusCode(http.StatusForbidden))
	}
	return patient, nil
}

func (d defaultService) Pay(ctx context.Context, user auth.User, appointmentUUID uuid.UUID, request PaymentRequest) (*Payment, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}
	patient, err := d.patientOf(ctx, user)
	if err != nil {
		return nil, err
	}
	appointment, err := d.appointments.FindAppointment(ctx, appointmentUUID)
	if err != nil {
		return nil, err
	}
	if appointment.PatientID != patient.ID {
		return nil, apierrors.NewAPIError(apierrors.WithDetail(ErrNotAppointmentOwner), apierrors.WithHTTPStatusCode(http.StatusForbidden))
	}
	if appointment.IsPaid {
		return nil, apierrors.NewConflictError(ErrAppointmentAlreadySettled)
	}
	settled, err := d.repository.HasSettledPayment(ctx, appointment.ID)
	if err != nil {
		return nil, fmt.Errorf("an unexpected error occurred: %w", err)
	}
	if settled {
		return nil, apierrors.NewConflictError(ErrAppointmentAlreadySettled)
	}
	now := time.Now().In(d.config.Timezone())
	paymentUUID, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("an unexpected error occurred: %w", err)
	}
	payment := &Payment{
		UUID:                  paymentUUID,
		AppointmentID:         appointment.ID,
		PatientID:             patient.ID,
		Amount:                appointment.TotalAmount,
		BaseAmount:            appointment.BasePrice,
		CancellationFeeAmount: appointment.CancellationFee,
		LateFeeAmount:         appointment.LatePaymentFee,
		Method:                MethodCard,
		Status:                PaymentProcessing,
	}

	var charge func(ctx context.Context) (*GatewayResult, error)
	if request.SavedCardUUID != nil {
		card, err := d.repository.FindCardByUUID(ctx, patient.ID, *request.SavedCardUUID)
		if err != nil {
			return nil, fmt.Errorf("an unexpected error occurred: %w", err)
		}
		if card == nil {
			return nil, apierrors.NewAPIError(apierrors.WithDetail(ErrCardNotFound), apierrors.WithHTTPStatusCode(http.StatusNotFound))
		}
		payment.CardBrand = card.Brand
		payment.CardLastFour = card.LastFour
		charge = func(ctx context.Context) (*GatewayResult, error) {
			return d.gateway.ProcessTokenPayment(ctx, card.Token, payment.Amount, defaultCurrency)
		}
	} else {
		if err = request.Card.Validate(now); err != nil {
			return nil, err
		}
		payment.CardBrand = request.Card.Brand()
		payment.CardLastFour = request.Card.LastFour()
		if request.SaveCard {
			if _, err = d.saveCard(ctx, patient.ID, *request.Card, false); err != nil {
				return nil, err
			}
		}
		charge = func(ctx context.Context) (*GatewayResult, error) {
			return d.gateway.ProcessPayment(ctx, *request.Card, payment.Amount, defaultCurrency)
		}
	}

	if err = d.repository.InsertPayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("an unexpected error occurred: %w", err)
	}

	result, err := charge(ctx)
	if err != nil {
		result = &GatewayResult{Error: err.Error()}
	}
	if !result.Success {
		reason := result.Error
		payment.Status = PaymentFailed
		payment.GatewayResponse = &reason
		err = database.WithinTransaction(ctx, d.dbConn, func(q database.Querier) error {
			return d.repository.UpdatePayment(ctx, q, *payment)
		})
		if err != nil {
			return nil, fmt.Errorf("an unexpected error occurred: %w", err)
		}
		d.publisher.Publish(ctx, events.PaymentFailedEvent, events.PaymentFailed{
			PaymentUUID:     payment.UUID,
			AppointmentUUID: appointment.UUID,
			PatientUUID:     patient.UUID,
			Amount:          payment.Amount,
			Reason:          reason,
		})
		return nil, apierrors.NewAPIError(apierrors.WithDetail(ErrPaymentFailed), apierrors.WithHTTPStatusCode(http.StatusPaymentRequired))
	}

	payment.Status = PaymentCompleted
	payment.TransactionID = &result.TransactionID
	payment.CompletedAt = &now
	err = database.WithinTransaction(ctx, d.dbConn, func(q database.Querier) error {
		if err := d.repository.UpdatePayment(ctx, q, *payment); err != nil {
			return err
		}
		return d.appointments.SettlePayment(ctx, q, appointment.ID, now)
	})
	if err != nil {
		return nil, fmt.Errorf("an unexpected error occurred: %w", err)
	}
	d.publisher.Publish(ctx, events.PaymentCompletedEvent, events.PaymentCompleted{
		PaymentUUID:     payment.UUID,
		AppointmentUUID: appointment.UUID,
		PatientUUID:     patient.UUID,
		Amount:          payment.Amount,
		TransactionID:   result.TransactionID,
	})
	return payment, nil
}

func (d defaultService) ListPayments(ctx context.Context, user auth.User) ([]*Payment, error) {
	patient, err := d.patientOf(ctx, user)
	if err != nil {
		return nil, err
	}
	return d.repository.ListPaymentsByPatient(ctx, patient.ID)
}

func (d defaultService) GetPayment(ctx context.Context, user auth.User, paymentUUID uuid.UUID) (*Payment, error) {
	patient, err := d.patientOf(ctx, user)
	if err != nil {
		return nil, err
	}
	payment, err := d.repository.FindPaymentByUUID(ctx, paymentUUID)
	if err != nil {
		return nil, fmt.Errorf("an unexpected error occurred: %w", err)
	}
	// another patient's payment is not disclosed
	if payment == nil || payment.PatientID != patient.ID {
		return nil, apierrors.NewAPIError(apierrors.WithDetail(ErrPaymentNotFound), apierrors.WithHTTPStatusCode(http.StatusNotFound))
	}
	return payment, nil
}

func (d defaultService) ListCards(ctx context.Context, user auth.User) ([]*PaymentCard, error) {
	patient, err := d.patientOf(ctx, user)
	if err != nil {
		return nil, err
	}
	return d.repository.ListCards(ctx, patient.ID)
}

func (d defaultService) SaveCard(ctx context.Context, user auth.User, request SaveCardRequest) (*PaymentCard, error) {
	patient, err := d.patientOf(ctx, user)
	if err != nil {
		return nil, err
	}
	now := time.Now().In(d.config.Timezone())
	if err = request.Card.Validate(now); err != nil {
		return nil, err
	}
	return d.saveCard(ctx, patient.ID, request.Card, request.MakeDefault)
}

// saveCard tokenizes the card and stores it. The first saved card becomes the
// default; promoting a card demotes the others in the same transaction.
func (d defaultService) saveCard(ctx context.Context, patientID int64, details CardDetails, makeDefault bool) (*PaymentCard, error) {
	token, err := d.gateway.Tokenize(ctx, details)
	if err != nil {
		return nil, fmt.Errorf("an unexpected error occurred: %w", err)
	}
	existing, err := d.repository.ListCards(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("an unexpected error occurred: %w", err)
	}
	cardUUID, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("an unexpected error occurred: %w", err)
	}
	card := PaymentCard{
		UUID:           cardUUID,
		PatientID:      patientID,
		Token:          token,
		LastFour:       details.LastFour(),
		Brand:          details.Brand(),
		ExpiryMonth:    int32(details.ExpiryMonth),
		ExpiryYear:     int32(details.ExpiryYear),
		CardholderName: details.CardholderName,
		IsDefault:      makeDefault || len(existing) == 0,
		IsActive:       true,
	}
	err = database.WithinTransaction(ctx, d.dbConn, func(q database.Querier) error {
		if card.IsDefault {
			if err := d.repository.DemoteDefaultCards(ctx, q, patientID); err != nil {
				return err
			}
		}
		return d.repository.InsertCard(ctx, q, card)
	})
	if err != nil {
		return nil, fmt.Errorf("an unexpected error occurred: %w", err)
	}
	return &card, nil
}

func (d defaultService) RemoveCard(ctx context.Context, user auth.User, cardUUID uuid.UUID) error {
	patient, err := d.patientOf(ctx, user)
	if err != nil {
		return err
	}
	if err = d.repository.DeactivateCard(ctx, patient.ID, cardUUID); err != nil {
		if err == Error(ErrCardNotFound) {
			return apierrors.NewAPIError(apierrors.WithDetail(ErrCardNotFound), apierrors.WithHTTPStatusCode(http.StatusNotFound))
		}
		return fmt.Errorf("an unexpected error occurred: %w", err)
	}
	return nil
}

func (d defaultService) MakeDefaultCard(ctx context.Context, user auth.User, cardUUID uuid.UUID) error {
	patient, err := d.patientOf(ctx, user)
	if err != nil {
		return err
	}
	err = database.WithinTransaction(ctx, d.dbConn, func(q database.Querier) error {
		if err := d.repository.DemoteDefaultCards(ctx, q, patient.ID); err != nil {
			return err
		}
		return d.repository.PromoteCard(ctx, q, patient.ID, cardUUID)
	})
	if err != nil {
		if err == Error(ErrCardNotFound) {
			return apierrors.NewAPIError(apierrors.WithDetail(ErrCardNotFound), apierrors.WithHTTPStatusCode(http.StatusNotFound))
		}
		return fmt.Errorf("an unexpected error occurred: %w", err)
	}
	return nil
}

func (d defaultService) RefundCancellation(ctx context.Context, q database.Querier, appointment scheduling.Appointment, amount decimal.Decimal, reason string) error {
	payment, err := d.repository.FindSettledPayment(ctx, appointment.ID)
	if err != nil {
		return fmt.Errorf("an unexpected error occurred: %w", err)
	}
	if payment == nil || payment.TransactionID == nil {
		return nil
	}
	result, err := d.gateway.ProcessRefund(ctx, *payment.TransactionID, amount)
	if err != nil {
		return fmt.Errorf("could not refund the payment: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("could not refund the payment: %s", result.Error)
	}
	now := time.Now().In(d.config.Timezone())
	payment.Status = PaymentRefunded
	payment.IsRefunded = true
	payment.RefundAmount = decimal.NullDecimal{Decimal: amount, Valid: true}
	payment.RefundReason = &reason
	payment.RefundedAt = &now
	return d.repository.UpdatePayment(ctx, q, *payment)
}
