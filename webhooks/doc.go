// Package webhooks contains the signed webhook round trip used to let a
// project's external system veto writes and observe notifications.
//
// Outbound requests are signed over "<timestampMillis>.<canonical body>" and
// carried in X-Signature/X-Timestamp. Responses are signed over the canonical
// body alone and carried in X-Response-Signature. The two schemes are kept
// distinct; receivers must implement both.
//
// The Dispatcher never returns errors to callers: every failure becomes a
// DispatchResult with Success=false. The Gate builds on it and fails closed
// on misconfiguration.
package webhooks
