// Package notify is the gateway's in-process notification bus.
//
// A Bus delivers Events to every subscribed Observer, synchronously and in
// subscription order. Only the component that owns a Bus publishes on it;
// everyone else sees it through the Observable interface and can only
// subscribe or unsubscribe.
//
// Delivery rules:
//
//   - Subscribing the same observer twice has no effect
//   - Unsubscribing an unknown observer has no effect
//   - Publish iterates a snapshot, so (un)subscribing during delivery is safe
//   - An observer that returns an error or panics is logged and counted;
//     the remaining observers still receive the event
//
// Publications are fire-and-forget. Nothing is queued or replayed.
package notify
