// Package domain models radio activity reports ("spots") collected from
// public spotting networks and a local push feed.
//
// # Spots
//
// A spot says that an operator (the label, usually a callsign) was heard or
// self-reported on a frequency at a point in time. Labels are the identity:
// two spots with the same label describe the same activation, and only the
// most recently observed one is kept downstream.
//
// # Frequency Units
//
// Every upstream speaks its own unit. Frequencies are normalized to Hz at
// parse time:
//
//	HamQTH DX cluster   kHz   "14074.0"  →  14074000
//	POTA                kHz   "7144"     →  7144000
//	SOTAwatch           MHz   "14.062"   →  14062000
//	WWFF (cqgma)        kHz   "3744.0"   →  3744000
//	TCP push feed       kHz   "14074"    →  14074000
//
// A frequency that does not parse, or parses to a value <= 0, rejects the
// record.
//
// # Time Formats
//
// Upstreams report wall-clock times without an offset:
//
//	"HHMM YYYY-MM-DD"            HamQTH and the push feed, e.g. "1230 2024-01-15"
//	"YYYY-MM-DDTHH:MM:SS[.fff]"  POTA and SOTAwatch
//	DATE=YYYYMMDD TIME=HHMM      WWFF, as packed integers
//
// These are interpreted as wall time in a configured location (the host's
// local zone by default) and converted to UTC by [LocalToUTC]. The conversion
// uses the zone offset in effect at that instant, so DST boundaries resolve the
// same way for every source. ISO timestamps that carry an explicit offset are
// honored as given.
package domain
