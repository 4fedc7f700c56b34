package billing

import "errors"

var (
	// ErrMissingRequiredField marks a malformed event. The condition is
	// permanent: redelivery of the same payload cannot fix it.
	ErrMissingRequiredField = errors.New("billing: required event field is missing")

	ErrUserNotFound         = errors.New("billing: user not found")
	ErrSubscriptionNotFound = errors.New("billing: subscription not found")
	ErrInvalidEventPayload  = errors.New("billing: invalid event payload")

	ErrMissingReferenceID     = errors.New("billing: reference id is required")
	ErrMissingGatewayCustomer = errors.New("billing: gateway customer id is required")

	ErrDuplicateSubscription = errors.New("billing: subscription already exists for reference")

	ErrGatewayUnavailable = errors.New("billing: gateway request failed")

	ErrMissingAPIKey        = errors.New("billing: gateway API key is required")
	ErrMissingWebhookSecret = errors.New("billing: gateway webhook secret is required")
)
