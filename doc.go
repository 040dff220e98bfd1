// Package omron implements a client for Omron's FINS command protocol over
// TCP and UDP, plus a reactive tag layer that polls a declared set of PLC
// memory addresses and publishes typed value streams to subscribers.
//
// The wire layer (request building, response parsing, the BCD codec, and
// the TCP/UDP channels) lives in this package alongside the PLC session and
// the polling/broadcast engine that sits on top of it. Callers normally only
// touch Client, via New and its Option functions.
package omron
