// Package dongle implements the session protocol against the hacklet USB
// dongle: booting it, commissioning new sockets onto the network, flipping
// sockets on and off, and draining their buffered wattage samples.
package dongle
