package fat16

import (
	"time"
)

var (
	minTimestamp = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.Local)
	maxTimestamp = time.Date(2107, time.December, 31, 23, 59, 58, 0, time.Local)
)

// DecodeDate splits a FAT date word. Day is bits 0-4, month bits 5-8, and the
// year is bits 9-15 counted from 1980.
func DecodeDate(value uint16) (day, month, year int) {
	day = int(value & 0x1f)
	month = int((value >> 5) & 0x0f)
	year = 1980 + int(value>>9)
	return
}

// DecodeTime splits a FAT time word. Seconds are stored halved in bits 0-4,
// minutes in bits 5-10, and hours in bits 11-15.
func DecodeTime(value uint16) (hour, minute, second int) {
	second = int(value&0x1f) * 2
	minute = int((value >> 5) & 0x3f)
	hour = int(value >> 11)
	return
}

func clampTimestamp(t time.Time) time.Time {
	t = t.In(time.Local)
	if t.Before(minTimestamp) {
		return minTimestamp
	}
	if t.After(maxTimestamp) {
		return maxTimestamp
	}
	return t
}

// EncodeDate packs the local date of `t` into a FAT date word. Dates outside
// 1980-2107 are clamped.
func EncodeDate(t time.Time) uint16 {
	t = clampTimestamp(t)
	return uint16(t.Year()-1980)<<9 | uint16(t.Month())<<5 | uint16(t.Day())
}

// EncodeTime packs the local time of `t` into a FAT time word, truncating to
// two-second resolution.
func EncodeTime(t time.Time) uint16 {
	t = clampTimestamp(t)
	return uint16(t.Hour())<<11 | uint16(t.Minute())<<5 | uint16(t.Second()/2)
}

// EncodeTenths gives the creation time's sub-two-second part in units of 10ms,
// in the range [0, 199].
func EncodeTenths(t time.Time) uint8 {
	t = clampTimestamp(t)
	return uint8((t.Second()%2)*100 + t.Nanosecond()/int(10*time.Millisecond))
}

// TimestampFromParts converts FAT date and time words into a local timestamp.
// A zero or invalid date gives the zero [time.Time].
func TimestampFromParts(date, clock uint16, tenths uint8) time.Time {
	day, month, year := DecodeDate(date)
	if day == 0 || month == 0 || month > 12 {
		return time.Time{}
	}
	hour, minute, second := DecodeTime(clock)
	extra := time.Duration(tenths) * 10 * time.Millisecond
	return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.Local).Add(extra)
}
