// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-fieldseal.
//
// go-fieldseal is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package codec

import (
	"strconv"
	"time"
)

// Timestamp is a point in time that serializes to JSON as integer
// milliseconds since the Unix epoch. Key metadata (created, lastUsed)
// round-trips through storage in this representation.
type Timestamp time.Time

// Now returns the current time as a Timestamp, truncated to millisecond
// precision so that a save/load cycle is an exact round trip.
func Now() Timestamp {
	return Timestamp(time.Now().Truncate(time.Millisecond))
}

// NewTimestamp converts a time.Time to a Timestamp, truncating to
// millisecond precision.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp(t.Truncate(time.Millisecond))
}

// Time returns the underlying time.Time.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

// IsZero reports whether the timestamp is the zero time.
func (t Timestamp) IsZero() bool {
	return time.Time(t).IsZero()
}

// MarshalJSON encodes the timestamp as integer epoch milliseconds.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	millis := time.Time(t).UnixMilli()
	return []byte(strconv.FormatInt(millis, 10)), nil
}

// UnmarshalJSON decodes integer epoch milliseconds.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	millis, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return err
	}
	*t = Timestamp(time.UnixMilli(millis).UTC())
	return nil
}
