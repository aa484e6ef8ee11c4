// Package bootstrap sequences a bootstrap-and-verify run.
//
// A run has three mandatory steps executed in a fixed order: install the
// Python dependencies, report the interesting installed packages, and
// verify that the service port is listening. Install and report are
// observational from the run's point of view: their failures are logged
// and the run carries on, so the port check is always reached. Only the
// verify verdict decides the outcome.
//
// An optional fourth step asks Docker which containers publish the port.
// It never changes the outcome.
package bootstrap
