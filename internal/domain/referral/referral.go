package referral

import (
	"context"
	"time"
)

// Order metadata keys shared with the host platform.
const (
	MetaEndDate      = "_parrainage_date_fin_remise"
	MetaStartDate    = "_parrainage_date_debut"
	MetaMarginDays   = "_parrainage_jours_marge"
	MetaReferralCode = "_billing_parrain_code"
)

const (
	// PeriodMonths is the nominal length of the referral discount.
	PeriodMonths = 12
	// MarginDays is added after the nominal period to absorb billing-cycle
	// drift.
	MarginDays = 2
)

// Date layouts: the stored machine form and the day-month-year display form.
const (
	RawLayout     = "2006-01-02"
	DisplayLayout = "02-01-2006"
)

// Record is the discount window computed once for a referred order.
type Record struct {
	OrderID    string
	StartDate  time.Time
	EndDate    time.Time
	MarginDays int
}

// Info is the read view of a Record.
type Info struct {
	StartDate            string
	EndDate              string
	StartDateFormatted   string
	EndDateFormatted     string
	MarginDays           int
	DiscountPeriodMonths int
}

// InfoOf renders a Record.
func InfoOf(rec *Record) *Info {
	return &Info{
		StartDate:            rec.StartDate.Format(RawLayout),
		EndDate:              rec.EndDate.Format(RawLayout),
		StartDateFormatted:   rec.StartDate.Format(DisplayLayout),
		EndDateFormatted:     rec.EndDate.Format(DisplayLayout),
		MarginDays:           rec.MarginDays,
		DiscountPeriodMonths: PeriodMonths,
	}
}

// Repository persists referral windows.
type Repository interface {
	// Find returns the record of the order, or nil when no end date is stored.
	Find(ctx context.Context, orderID string) (*Record, error)
	// SaveIfAbsent stores rec unless the order already has an end date. It
	// reports whether rec was written. The presence check and the write are a
	// single atomic step.
	SaveIfAbsent(ctx context.Context, rec *Record) (bool, error)
}

// OrderMeta gives access to the referral code captured at checkout.
type OrderMeta interface {
	// ReferralCode returns the order's referral code, empty when absent.
	ReferralCode(ctx context.Context, orderID string) (string, error)
	SetReferralCode(ctx context.Context, orderID, code string) error
}
