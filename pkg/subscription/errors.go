package subscription

import "errors"

var (
	ErrRecordNotFound = errors.New("subscription record not found")
	ErrUserNotFound   = errors.New("user not found for billing email")
	ErrIdentityLookup = errors.New("identity lookup failed")

	ErrPlanNotFound     = errors.New("subscription plan not found")
	ErrPlanHasNoPrice   = errors.New("subscription plan has no provider price")
	ErrInvalidCatalog   = errors.New("invalid plan catalog")
	ErrFailedToLoadPlan = errors.New("failed to load plan catalog")

	ErrWebhookVerificationFailed = errors.New("webhook signature verification failed")
	ErrMalformedEvent            = errors.New("malformed billing event")
	ErrProviderError             = errors.New("billing provider error")
	ErrMissingWebhookSecret      = errors.New("billing provider webhook secret is required")
	ErrMissingCustomerID         = errors.New("provider customer id not available")
	ErrNoCheckoutURL             = errors.New("no checkout url returned from provider")
	ErrNoPortalURL               = errors.New("no portal url returned from provider")

	ErrParkFailed     = errors.New("failed to park unresolved billing event")
	ErrParkedNotFound = errors.New("parked event not found")
	ErrStorage        = errors.New("subscription storage failure")
)
