// Package flow contains in-process notification primitives.
//
// [Latest] holds exactly one current value: a new subscriber first sees
// the current value, then later updates, possibly coalesced so only the
// freshest survives a slow reader.
//
// [Replay] is a broadcast with a bounded replay buffer: a new subscriber
// first sees up to Replay past values, then every later emission in order.
// What happens when a subscriber falls behind is governed by [Overflow].
//
// Both hand out a [Subscription], which is the consumer's handle: Close it
// to stop delivery and release the source.
package flow
