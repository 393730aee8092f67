// Package audit keeps the append-only trail of key operations.
//
// The trail lives at <data dir>/keysmith/audit.jsonl, one JSON object per
// line. An edit run writes exactly one record whatever its outcome, and
// the operation log travels with it so `keysmith keys log --details` can
// show what happened step by step. Sync notifications and `config init`
// add records of their own.
//
//	entry := audit.LogWithUser("config-init")
//	entry.Outcome = "success"
//	audit.Log(entry)
//
// Writes are best-effort: a failed append is dropped and never fails the
// operation that caused it. Readers skip lines that do not parse, which
// covers a record cut short by a crash.
package audit
