// Package oplog records what an operation did as an ordered list of
// structured entries.
//
// Each entry has a Kind (a fixed catalogue with a display level and
// message format), a nesting depth, and string params. Logs are append
// only. A sub-operation builds its own Log and the caller merges it:
//
//	log := oplog.New()
//	log.Add(oplog.KindEdit, 0)
//	log.Merge(engineLog, 1)
//
// Merge shifts every sub entry's depth by the given amount and never
// renumbers kinds. Kinds serialize by name, so a Log written to JSON can
// be read back and rendered again later.
package oplog
