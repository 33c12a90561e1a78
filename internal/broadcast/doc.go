// Package broadcast implements the subscription registry that fans state
// updates out to every registered callback.
//
// Delivery is synchronous and ordered. Each update is delivered to a snapshot
// of the subscriber list, so callbacks may subscribe, unsubscribe or publish
// while being notified.
package broadcast
