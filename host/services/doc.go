// Package services implements the service providers of the reference host.
//
// A Provider answers one call name. The host looks providers up in a
// Registry when it pumps queued service requests:
//
//	random.next   {"value": "<float in [0,1)>"}
//	clock.now     {"value": "<integer>"}   args: timeUnit (default MILLISECONDS)
//
// Clock time units are NANOSECONDS, MICROSECONDS, MILLISECONDS, SECONDS,
// MINUTES, HOURS, and DAYS, counted from the Unix epoch.
package services
