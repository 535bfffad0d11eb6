// Package redis wraps go-redis for the handoff store.
//
// TypedStore stores JSON values under a key prefix. SaveIfAbsent gives the
// write-once semantics the handoff needs:
//
//	store := redis.NewTypedStore[Envelope](client, "caseflow:handoff")
//	ok, err := store.SaveIfAbsent(ctx, runID, &env, 24*time.Hour)
package redis
