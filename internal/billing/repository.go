package billing

import (
	"context"
	"fmt"

	"clinic-booking/internal/database"

	"github.com/google/uuid"
)

const (
	paymentColumns = "id, uuid, appointment_id, patient_id, amount, base_amount, cancellation_fee_amount, late_fee_amount, method, status, card_brand, card_last_four, transaction_id, gateway_response, is_refunded, refund_amount, refund_reason, refunded_at, completed_at, created_at"
	cardColumns    = "id, uuid, patient_id, token, last_four, brand, expiry_month, expiry_year, cardholder_name, is_default, is_active"

	findPaymentByUUIDQuery      = "SELECT " + paymentColumns + " FROM tb_payment WHERE uuid = $1"
	listPaymentsByPatientQuery  = "SELECT " + paymentColumns + " FROM tb_payment WHERE patient_id = $1 ORDER BY created_at DESC"
	findSettledPaymentQuery     = "SELECT " + paymentColumns + " FROM tb_payment WHERE appointment_id = $1 AND status = 'COMPLETED' AND is_refunded = FALSE"
	countSettledPaymentsQuery   = "SELECT COUNT(id) FROM tb_payment WHERE appointment_id = $1 AND status = 'COMPLETED'"
	insertPaymentQuery          = "INSERT INTO tb_payment (uuid, appointment_id, patient_id, amount, base_amount, cancellation_fee_amount, late_fee_amount, method, status, card_brand, card_last_four) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id"
	updatePaymentQuery          = "UPDATE tb_payment SET status = $2, transaction_id = $3, gateway_response = $4, is_refunded = $5, refund_amount = $6, refund_reason = $7, refunded_at = $8, completed_at = $9 WHERE id = $1"

	findCardByUUIDQuery   = "SELECT " + cardColumns + " FROM tb_payment_card WHERE patient_id = $1 AND uuid = $2 AND is_active = TRUE"
	listCardsQuery        = "SELECT " + cardColumns + " FROM tb_payment_card WHERE patient_id = $1 AND is_active = TRUE ORDER BY is_default DESC, id"
	insertCardQuery       = "INSERT INTO tb_payment_card (uuid, patient_id, token, last_four, brand, expiry_month, expiry_year, cardholder_name, is_default, is_active) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE)"
	demoteDefaultQuery    = "UPDATE tb_payment_card SET is_default = FALSE WHERE patient_id = $1 AND is_default = TRUE"
	promoteCardQuery      = "UPDATE tb_payment_card SET is_default = TRUE WHERE patient_id = $1 AND uuid = $2 AND is_active = TRUE"
	deactivateCardQuery   = "UPDATE tb_payment_card SET is_active = FALSE, is_default = FALSE WHERE patient_id = $1 AND uuid = $2 AND is_active = TRUE"
)

// Repository provides access to payment data.
type Repository interface {

	// FindPaymentByUUID finds a payment by its UUID.
	FindPaymentByUUID(ctx context.Context, uuid uuid.UUID) (*Payment, error)

	// ListPaymentsByPatient lists a patient's payments, most recent first.
	ListPaymentsByPatient(ctx context.Context, patientID int64) ([]*Payment, error)

	// FindSettledPayment finds the non-refunded Completed payment settling the appointment, if any.
	FindSettledPayment(ctx context.Context, appointmentID int64) (*Payment, error)

	// HasSettledPayment checks if the appointment already has a Completed payment.
	HasSettledPayment(ctx context.Context, appointmentID int64) (bool, error)

	// InsertPayment inserts a new payment and fills its ID.
	InsertPayment(ctx context.Context, payment *Payment) error

	// UpdatePayment persists the payment's mutable fields through the given querier.
	UpdatePayment(ctx context.Context, q database.Querier, payment Payment) error

	// FindCardByUUID finds a patient's active saved card.
	FindCardByUUID(ctx context.Context, patientID int64, uuid uuid.UUID) (*PaymentCard, error)

	// ListCards lists a patient's active saved cards, default first.
	ListCards(ctx context.Context, patientID int64) ([]*PaymentCard, error)

	// InsertCard inserts a saved card through the given querier.
	InsertCard(ctx context.Context, q database.Querier, card PaymentCard) error

	// DemoteDefaultCards clears the default flag on all the patient's cards through the given querier.
	DemoteDefaultCards(ctx context.Context, q database.Querier, patientID int64) error

	// PromoteCard sets the default flag on the given card through the given querier.
	PromoteCard(ctx context.Context, q database.Querier, patientID int64, uuid uuid.UUID) error

	// DeactivateCard soft-deletes a patient's saved card.
	DeactivateCard(ctx context.Context, patientID int64, uuid uuid.UUID) error
}

type defaultRepository struct {
	dbConn database.Connection
}

// newRepository creates a new Repository.
func newRepository(dbConn database.Connection) Repository {
	return &defaultRepository{dbConn: dbConn}
}

func (d defaultRepository) FindPaymentByUUID(ctx context.Context, uuid uuid.UUID) (*Payment, error) {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	rows, err := d.dbConn.DB().QueryContext(ctx, findPaymentByUUIDQuery, uuid)
	if err != nil {
		return nil, err
	}
	defer database.CloseRows(rows)
	payment := new(Payment)
	for rows.Next() {
		if err = database.TransformRow(rows, payment); err != nil {
			return nil, err
		}
		if payment.ID > 0 {
			return payment, nil
		}
	}
	return nil, nil
}

func (d defaultRepository) ListPaymentsByPatient(ctx context.Context, patientID int64) ([]*Payment, error) {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	rows, err := d.dbConn.DB().QueryContext(ctx, listPaymentsByPatientQuery, patientID)
	if err != nil {
		return nil, err
	}
	defer database.CloseRows(rows)
	payments := make([]*Payment, 0)
	for rows.Next() {
		payment := new(Payment)
		if err = database.TransformRow(rows, payment); err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, nil
}

func (d defaultRepository) FindSettledPayment(ctx context.Context, appointmentID int64) (*Payment, error) {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	rows, err := d.dbConn.DB().QueryContext(ctx, findSettledPaymentQuery, appointmentID)
	if err != nil {
		return nil, err
	}
	defer database.CloseRows(rows)
	payment := new(Payment)
	for rows.Next() {
		if err = database.TransformRow(rows, payment); err != nil {
			return nil, err
		}
		if payment.ID > 0 {
			return payment, nil
		}
	}
	return nil, nil
}

func (d defaultRepository) HasSettledPayment(ctx context.Context, appointmentID int64) (bool, error) {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	row := d.dbConn.DB().QueryRowContext(ctx, countSettledPaymentsQuery, appointmentID)
	if row.Err() != nil {
		return false, row.Err()
	}
	count := new(int64)
	if err := row.Scan(count); err != nil {
		return false, err
	}
	return *count > 0, nil
}

func (d defaultRepository) InsertPayment(ctx context.Context, payment *Payment) error {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	params := make([]interface{}, 11)
	params[0] = payment.UUID
	params[1] = payment.AppointmentID
	params[2] = payment.PatientID
	params[3] = payment.Amount
	params[4] = payment.BaseAmount
	params[5] = payment.CancellationFeeAmount
	params[6] = payment.LateFeeAmount
	params[7] = payment.Method
	params[8] = payment.Status
	params[9] = payment.CardBrand
	params[10] = payment.CardLastFour
	row := d.dbConn.DB().QueryRowContext(ctx, insertPaymentQuery, params...)
	if row.Err() != nil {
		return row.Err()
	}
	return row.Scan(&payment.ID)
}

func (d defaultRepository) UpdatePayment(ctx context.Context, q database.Querier, payment Payment) error {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	params := make([]interface{}, 9)
	params[0] = payment.ID
	params[1] = payment.Status
	params[2] = payment.TransactionID
	params[3] = payment.GatewayResponse
	params[4] = payment.IsRefunded
	params[5] = payment.RefundAmount
	params[6] = payment.RefundReason
	params[7] = payment.RefundedAt
	params[8] = payment.CompletedAt
	result, err := q.ExecContext(ctx, updatePaymentQuery, params...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return Error(ErrPaymentNotFound)
	}
	return nil
}

func (d defaultRepository) FindCardByUUID(ctx context.Context, patientID int64, uuid uuid.UUID) (*PaymentCard, error) {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	rows, err := d.dbConn.DB().QueryContext(ctx, findCardByUUIDQuery, patientID, uuid)
	if err != nil {
		return nil, err
	}
	defer database.CloseRows(rows)
	card := new(PaymentCard)
	for rows.Next() {
		if err = database.TransformRow(rows, card); err != nil {
			return nil, err
		}
		if card.ID > 0 {
			return card, nil
		}
	}
	return nil, nil
}

func (d defaultRepository) ListCards(ctx context.Context, patientID int64) ([]*PaymentCard, error) {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	rows, err := d.dbConn.DB().QueryContext(ctx, listCardsQuery, patientID)
	if err != nil {
		return nil, err
	}
	defer database.CloseRows(rows)
	cards := make([]*PaymentCard, 0)
	for rows.Next() {
		card := new(PaymentCard)
		if err = database.TransformRow(rows, card); err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, nil
}

func (d defaultRepository) InsertCard(ctx context.Context, q database.Querier, card PaymentCard) error {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	params := make([]interface{}, 9)
	params[0] = card.UUID
	params[1] = card.PatientID
	params[2] = card.Token
	params[3] = card.LastFour
	params[4] = card.Brand
	params[5] = card.ExpiryMonth
	params[6] = card.ExpiryYear
	params[7] = card.CardholderName
	params[8] = card.IsDefault
	result, err := q.ExecContext(ctx, insertCardQuery, params...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("card not inserted")
	}
	return nil
}

func (d defaultRepository) DemoteDefaultCards(ctx context.Context, q database.Querier, patientID int64) error {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	_, err := q.ExecContext(ctx, demoteDefaultQuery, patientID)
	return err
}

func (d defaultRepository) PromoteCard(ctx context.Context, q database.Querier, patientID int64, uuid uuid.UUID) error {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	result, err := q.ExecContext(ctx, promoteCardQuery, patientID, uuid)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return Error(ErrCardNotFound)
	}
	return nil
}

func (d defaultRepository) DeactivateCard(ctx context.Context, patientID int64, uuid uuid.UUID) error {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	result, err := d.dbConn.DB().ExecContext(ctx, deactivateCardQuery, patientID, uuid)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return Error(ErrCardNotFound)
	}
	return nil
}
