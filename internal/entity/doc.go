// Package entity turns catalog descriptors into polled entities.
//
// An entity owns an immutable State snapshot that is swapped atomically on
// every successful poll. Failed or unsupported reads keep the previous
// snapshot, so availability means "a successful read exists".
//
// Entities are built once per handle by Builder, which probes the read
// accessor a single time and drops descriptors the device does not support.
// Vendor faults during polling are classified by Poller into an Outcome and
// a log line.
package entity
