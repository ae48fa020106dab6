// Package scheduler runs poll cycles over every configured channel on a
// trigger and fans new messages out to subscribers.
//
// A cycle polls channels one after another. Subscribers are called
// synchronously in registration order; a failing or panicking subscriber is
// logged and does not affect the others. Ticks that arrive while a cycle is
// still running are skipped.
package scheduler
