// Package transport provides the serial link to the hacklet dongle. It
// exposes a buffered Connection over a raw Port, with implementations for
// direct libftdi access and for kernel-bound tty devices.
package transport
