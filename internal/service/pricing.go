package service

import (
	"parkly/internal/models"
)

// FeePolicy is a versioned platform fee configuration. Amounts are basis points.
type FeePolicy struct {
	Version           string
	ServiceFeeBps     int64
	HostCommissionBps int64
}

// Subtotal prices minutes at an hourly rate, rounded half up to the minor unit
func Subtotal(hourlyRate, minutes int64) int64 {
	return (hourlyRate*minutes + 30) / 60
}

func applyBps(amount, bps int64) int64 {
	return (amount*bps + 5000) / 10000
}

// Quote prices an interval. The renter pays subtotal plus service fee;
// the host earns subtotal minus commission.
func (p FeePolicy) Quote(hourlyRate int64, iv models.Interval, currency string) models.Quote {
	minutes := iv.Minutes()
	subtotal := Subtotal(hourlyRate, minutes)
	fee := applyBps(subtotal, p.ServiceFeeBps)

	return models.Quote{
		Minutes:      minutes,
		HourlyRate:   hourlyRate,
		Subtotal:     subtotal,
		ServiceFee:   fee,
		Total:        subtotal + fee,
		HostEarnings: subtotal - applyBps(subtotal, p.HostCommissionBps),
		FeeVersion:   p.Version,
		Currency:     currency,
	}
}

// Extension prices added minutes at the booking's rate, with no service fee
func (p FeePolicy) Extension(hourlyRate int64, minutes int) (amount, hostEarnings int64) {
	amount = Subtotal(hourlyRate, int64(minutes))
	return amount, amount - applyBps(amount, p.HostCommissionBps)
}
