// Package webhooks notifies HTTP endpoints when a run finishes.
//
// Each configured hook receives either the generic JSON event or a Slack
// incoming-webhook message. Generic deliveries carry an HMAC-SHA256 signature
// of the body in X-Modcheck-Signature when a secret is set:
//
//	X-Modcheck-Event:     run.failed
//	X-Modcheck-Event-ID:  6f1c...
//	X-Modcheck-Signature: sha256=9a0b...
//
// Failed deliveries are retried with exponential backoff. A notification
// failure is logged and never fails the run.
package webhooks
