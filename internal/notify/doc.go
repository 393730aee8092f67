// Package notify delivers "key changed" notifications after a key
// operation has been persisted.
//
// Notifications are fire-and-forget. Async fans one notification out on
// goroutines and AuditNotifier writes it to the audit trail.
package notify
