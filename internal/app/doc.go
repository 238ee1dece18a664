// Package app contains the core application logic: configuration, logger
// setup and the lifecycle that runs one CLI command against an opened
// dongle session, decoupled from flag parsing.
package app
