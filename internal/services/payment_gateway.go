package services

import "context"

// PaymentGateway defines the remote calls the purchase workflow needs from
// a payment provider. PayPalClient is the only implementation wired.
type PaymentGateway interface {
	// CreateOrder creates a pending payment intent and returns the payer
	// approval link
	CreateOrder(ctx context.Context, in CreateOrderInput) (*CreateOrderResult, error)

	// CaptureOrder finalizes payment collection for an approved order
	CaptureOrder(ctx context.Context, orderToken string) (*CaptureResult, error)

	// GetOrder returns the gateway's authoritative view of an order,
	// used to verify webhook claims before recording
	GetOrder(ctx context.Context, orderID string) (*OrderStatusResult, error)
}
