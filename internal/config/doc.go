// Package config loads the optional ~/.hacklet.hcl file: dongle line
// settings, named devices, the sample push endpoint and the monitor
// schedule. A missing file yields defaults; a malformed file is a
// startup error.
package config
