package service

import (
	"context"
	"errors"
	"time"

	apperr "parkly/internal/errors"
	"parkly/internal/external"
	"parkly/internal/logger"
	"parkly/internal/metrics"
)

// payments translates lifecycle actions into gateway calls with stable idempotency keys
type payments struct {
	gateway PaymentGateway
}

func observe(operation string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.GatewayRequests.WithLabelValues(operation, result).Inc()
	metrics.GatewayDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (p *payments) authorize(ctx context.Context, key string, amount int64, currency, paymentMethodID, orderID string) (*external.AuthorizeResult, error) {
	const op = "payments.authorize"
	if paymentMethodID == "" {
		return nil, apperr.Payment(op, apperr.ErrPaymentMethodRequired, "add a payment method to continue")
	}

	start := time.Now()
	res, err := p.gateway.Authorize(ctx, key, amount, currency, paymentMethodID, orderID)
	observe("authorize", start, err)
	if err != nil {
		logger.WithContext(ctx).Warn("Payment authorization failed", "order_id", orderID, "error", err)
		return nil, translate(op, err, "authorize")
	}
	return res, nil
}

func (p *payments) capture(ctx context.Context, intentID string) (*external.CaptureResult, error) {
	const op = "payments.capture"
	start := time.Now()
	res, err := p.gateway.Capture(ctx, "capture-"+intentID, intentID)
	observe("capture", start, err)
	if err != nil {
		logger.WithContext(ctx).Warn("Payment capture failed", "intent_id", intentID, "error", err)
		return nil, translate(op, err, "capture")
	}
	if res.AlreadyCaptured {
		logger.WithContext(ctx).Info("Payment intent was already captured", "intent_id", intentID, "charge_id", res.ChargeID)
	}
	return res, nil
}

func (p *payments) void(ctx context.Context, intentID string) error {
	const op = "payments.void"
	start := time.Now()
	err := p.gateway.Void(ctx, "void-"+intentID, intentID)
	observe("void", start, err)
	if err != nil {
		logger.WithContext(ctx).Warn("Payment void failed", "intent_id", intentID, "error", err)
		return translate(op, err, "release")
	}
	return nil
}

func (p *payments) refund(ctx context.Context, chargeID string, amount int64, reason string) (int64, error) {
	const op = "payments.refund"
	if amount <= 0 {
		return 0, nil
	}

	start := time.Now()
	res, err := p.gateway.Refund(ctx, "refund-"+chargeID, chargeID, amount, reason)
	observe("refund", start, err)
	if err != nil {
		logger.WithContext(ctx).Warn("Payment refund failed", "charge_id", chargeID, "amount", amount, "error", err)
		return 0, translate(op, err, "refund")
	}
	return res.Amount, nil
}

// translate maps a gateway failure to an actionable payment error
func translate(op string, err error, verb string) error {
	if external.IsDeclined(err) {
		return apperr.Payment(op, err, "your card was declined; use a different payment method")
	}

	var ge *external.GatewayError
	if errors.As(err, &ge) {
		switch ge.Code {
		case external.CodeIntentNotFound, external.CodeInvalidState:
			return apperr.Payment(op, err, "the payment could not be completed; confirm the payment and try again")
		case external.IntentRequiresAction:
			return apperr.Payment(op, err, "the payment needs to be confirmed by the card holder")
		}
	}
	return apperr.Payment(op, err, "we could not %s the payment right now; please try again", verb)
}
