// Package app wires the relay together: seen-set storage, Whop client,
// poller, scheduler and delivery, plus config hot reload and systemd
// readiness.
package app
