// Package wire implements the binary frame protocol spoken by the hacklet
// USB dongle. Every frame starts with a 0x02 header byte, followed by a
// big-endian command word, a payload length byte, the payload itself, and
// a single XOR checksum covering everything after the header.
package wire
