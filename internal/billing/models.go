package billing

import (
	"fmt"
	"strings"
	"time"

	"clinic-booking/internal/apierrors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus is the payment lifecycle state. A payment settles its
// appointment only when it reaches Completed.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "PENDING"
	PaymentProcessing PaymentStatus = "PROCESSING"
	PaymentCompleted  PaymentStatus = "COMPLETED"
	PaymentFailed     PaymentStatus = "FAILED"
	PaymentRefunded   PaymentStatus = "REFUNDED"
)

const MethodCard = "CARD"

type Payment struct {
	ID                    int64           `json:"-" dbfield:"id"`
	UUID                  uuid.UUID       `json:"uuid" dbfield:"uuid"`
	AppointmentID         int64           `json:"-" dbfield:"appointment_id"`
	PatientID             int64           `json:"-" dbfield:"patient_id"`
	Amount                decimal.Decimal `json:"amount" dbfield:"amount"`
	BaseAmount            decimal.Decimal `json:"base_amount" dbfield:"base_amount"`
	CancellationFeeAmount decimal.Decimal `json:"cancellation_fee_amount" dbfield:"cancellation_fee_amount"`
	LateFeeAmount         decimal.Decimal `json:"late_fee_amount" dbfield:"late_fee_amount"`
	Method                string          `json:"method" dbfield:"method"`
	Status                PaymentStatus   `json:"status" dbfield:"status"`
	CardBrand             string          `json:"card_brand" dbfield:"card_brand"`
	CardLastFour          string          `json:"card_last_four" dbfield:"card_last_four"`
	TransactionID         *string         `json:"transaction_id" dbfield:"transaction_id"`
	GatewayResponse       *string         `json:"-" dbfield:"gateway_response"`
	IsRefunded            bool            `json:"is_refunded" dbfield:"is_refunded"`
	// RefundAmount is NULL until the payment is refunded.
	RefundAmount decimal.NullDecimal `json:"refund_amount" dbfield:"refund_amount"`
	RefundReason          *string         `json:"refund_reason" dbfield:"refund_reason"`
	RefundedAt            *time.Time      `json:"refunded_at" dbfield:"refunded_at"`
	CompletedAt           *time.Time      `json:"completed_at" dbfield:"completed_at"`
	CreatedAt             time.Time       `json:"created_at" dbfield:"created_at"`
}

// PaymentCard is a saved payment instrument. At most one card per patient is
// the default; saving a new default demotes the others in the same
// transaction. Removal is a soft delete via IsActive.
type PaymentCard struct {
	ID             int64     `json:"-" dbfield:"id"`
	PatientID      int64     `json:"-" dbfield:"patient_id"`
	UUID           uuid.UUID `json:"uuid" dbfield:"uuid"`
	Token          string    `json:"-" dbfield:"token"`
	LastFour       string    `json:"last_four" dbfield:"last_four"`
	Brand          string    `json:"brand" dbfield:"brand"`
	ExpiryMonth    int32     `json:"expiry_month" dbfield:"expiry_month"`
	ExpiryYear     int32     `json:"expiry_year" dbfield:"expiry_year"`
	CardholderName string    `json:"cardholder_name" dbfield:"cardholder_name"`
	IsDefault      bool      `json:"is_default" dbfield:"is_default"`
	IsActive       bool      `json:"-" dbfield:"is_active"`
}

// CardDetails is the payload of a card payment attempt. It never touches
// storage; only the token, brand and last four digits are persisted.
type CardDetails struct {
	Number         string `json:"number"`
	CardholderName string `json:"cardholder_name"`
	ExpiryMonth    int    `json:"expiry_month"`
	ExpiryYear     int    `json:"expiry_year"`
	CVV            string `json:"cvv"`
}

// Validate checks the card details: digits and length, Luhn checksum, expiry
// window and CVV. It has no side effects.
func (c CardDetails) Validate(now time.Time) error {
	number := strings.ReplaceAll(c.Number, " ", "")
	if len(number) < 13 || len(number) > 19 || !isDigits(number) {
		return apierrors.NewValidationError("number", "must be 13 to 19 digits")
	}
	if !luhnValid(number) {
		return apierrors.NewValidationError("number", "invalid card number")
	}
	if c.ExpiryMonth < 1 || c.ExpiryMonth > 12 {
		return apierrors.NewValidationError("expiry_month", "must be between 1 and 12")
	}
	if c.ExpiryYear < now.Year() || (c.ExpiryYear == now.Year() && c.ExpiryMonth < int(now.Month())) {
		return apierrors.NewValidationError("expiry_year", "card is expired")
	}
	if len(c.CVV) < 3 || len(c.CVV) > 4 || !isDigits(c.CVV) {
		return apierrors.NewValidationError("cvv", "must be 3 or 4 digits")
	}
	return nil
}

// Brand detects the card brand from the number prefix.
func (c CardDetails) Brand() string {
	number := strings.ReplaceAll(c.Number, " ", "")
	switch {
	case strings.HasPrefix(number, "4"):
		return "visa"
	case len(number) >= 2 && number[0] == '5' && number[1] >= '1' && number[1] <= '5':
		return "mastercard"
	case strings.HasPrefix(number, "34") || strings.HasPrefix(number, "37"):
		return "amex"
	}
	return "card"
}

// LastFour gets the last four digits of the card number.
func (c CardDetails) LastFour() string {
	number := strings.ReplaceAll(c.Number, " ", "")
	if len(number) < 4 {
		return number
	}
	return number[len(number)-4:]
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(value) > 0
}

// luhnValid checks the number's Luhn checksum.
func luhnValid(number string) bool {
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		digit := int(number[i] - '0')
		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		double = !double
	}
	return sum%10 == 0
}

// PaymentRequest is the payload of a payment attempt: either full card
// details or a saved card reference.
type PaymentRequest struct {
	Card          *CardDetails `json:"card,omitempty"`
	SavedCardUUID *uuid.UUID   `json:"saved_card_uuid,omitempty"`
	SaveCard      bool         `json:"save_card"`
}

// Validate checks if the given request carries a payment instrument.
func (p PaymentRequest) Validate() error {
	if p.Card == nil && p.SavedCardUUID == nil {
		return apierrors.NewValidationError("card", ErrMissingCard)
	}
	return nil
}

// SaveCardRequest is the payload to save a card without paying.
type SaveCardRequest struct {
	Card        CardDetails `json:"card"`
	MakeDefault bool        `json:"make_default"`
}

func (p Payment) String() string {
	return fmt.Sprintf("payment %s (%s)", p.UUID, p.Status)
}
