// Package uuidv7 generates time-ordered UUID version 7 identifiers.
//
// # Layout
//
// An identifier is 16 bytes, big-endian:
//
//	bits   0-47  unix timestamp in milliseconds
//	bits  48-51  version, always 0111
//	bits  52-63  random
//	bits  64-65  variant, always 10
//	bits 66-127  random
//
// Byte-wise comparison therefore follows creation time at millisecond
// granularity. Identifiers minted within the same millisecond are unordered
// relative to each other; there is no intra-millisecond counter.
//
// Usage
//
//	id := uuidv7.New()
//	ms := uuidv7.TimestampMillis(id)
//	s := id.String() // xxxxxxxx-xxxx-7xxx-[89ab]xxx-xxxxxxxxxxxx
package uuidv7
