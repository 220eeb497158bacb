// Package agent runs the request-scoped orchestration loop between a reasoning
// backend and the tool executor, streaming progress events to the caller.
//
// Invariants:
// - Events of one request are delivered in order on a single unbuffered channel.
// - Every tool_call event is immediately followed by its paired tool_result event.
// - At most one of final or the iteration-budget error is emitted, and it is last.
// - Session state is saved and the trace flushed only after the event channel
//   has been fully drained and closed; Stream.Wait observes that step.
// - A stream abandoned before completion saves nothing; Wait returns ErrStreamAbandoned.
// - Backend errors abort the request without a terminal event; Wait returns them.
//
// Usage:
//
//	engine, _ := agent.NewEngine(agent.Config{...})
//	stream := engine.Handle(ctx, agent.NewEnvelope("/gpu GPU error on node-5"))
//	for ev := range stream.Events() {
//		fmt.Println(ev.Type, ev.Data)
//	}
//	if err := stream.Wait(); err != nil {
//		// backend failure or abandoned stream
//	}
package agent
