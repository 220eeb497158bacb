// Package session persists conversation state between engine requests.
//
// Invariants:
// - Exactly one Session exists per session id.
// - Stores hand out copies: a Session mutated in memory is invisible to other
//   requests until Save.
// - Save replaces the stored turn sequence atomically; concurrent saves to the
//   same id are last-writer-wins.
//
// Usage:
//
//	store := session.NewMemoryStore()
//	s := session.New("session:1", "default", "anonymous")
//	s.Append(session.UserTurn("hello"))
//	_ = store.Save(ctx, s)
//	loaded, _ := store.Get(ctx, "session:1")
//	_ = loaded
package session
