// Package subscription is the billing core of the review funnel.
//
// It has two halves. The first derives an access tier (active, trial or
// inactive) from a subscription Record with AccessPolicy.Evaluate. The
// second reconciles Stripe webhooks into records: StripeProvider verifies
// and normalizes events, and Reconciler applies them through Transition
// inside the Store's atomic mutation.
//
// Reconciliation is idempotent and tolerates out-of-order delivery. Each
// record keeps the timestamp of the newest applied event, and older events
// are skipped. Checkout events carry only an email; when it matches no user
// the event is parked in a ParkedStore and retried by the Redriver with
// exponential backoff.
//
// Tracker is the client-side cache of one user's record, refreshed on an
// interval. RequireAccess gates HTTP handlers on the derived tier.
package subscription
