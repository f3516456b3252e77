// Package domain models one ingestion run for an SMHI weather station.
//
// # Data Source
//
// Observations come from the SMHI Open Data Meteorological Observations API
// (https://opendata.smhi.se/metobs). Each physical parameter is a separate
// series addressed by a numeric parameter id, so one station reading needs one
// request per parameter:
//
//	GET /api/version/latest/parameter/{parameter}/station/{station}/period/latest-hour/data.json
//
// # SMHI Data Conventions
//
// Parameter ids used by this service:
//
//	1   air temperature, instantaneous, once per hour (°C)
//	3   wind direction, 10 minute mean, once per hour (degrees)
//	4   wind speed, 10 minute mean, once per hour (m/s)
//	21  wind gust, max, once per hour (m/s)
//	6   visibility, once per hour (m)
//
// Sample format:
//
//	{"date": 1717754400000, "value": "14.2", "quality": "G"}
//	date is milliseconds since the Unix epoch (UTC).
//	value is a decimal number encoded as a string.
//	quality is "G" (controlled, approved) or "Y" (suspect or aggregated).
//
// An empty "value" array is a valid response meaning the station has no sample
// for that parameter in the requested period.
//
// # Reading Assembly
//
// Values are copied one-to-one with no unit conversion. The reading timestamp
// is taken from the first parameter, in [Parameters] order, that produced a
// sample. The order is fixed so the timestamp does not depend on which
// concurrent request finished first.
//
// # Ownership
//
// A reading is only committed when the device directory knows the station and
// it has an owner. The owner lookup and the write are two separate requests;
// an owner change in between is not detected.
package domain
