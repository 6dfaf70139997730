package core

// Slice is a half-open row range with optional, possibly negative bounds.
// A nil bound means "from the first row" or "through the last row".
type Slice struct {
	Start *int
	Stop  *int
}

// Span returns the slice [start, stop)
func Span(start, stop int) Slice {
	return Slice{Start: &start, Stop: &stop}
}

// From returns the slice [start, end of table)
func From(start int) Slice {
	return Slice{Start: &start}
}

// Until returns the slice [0, stop)
func Until(stop int) Slice {
	return Slice{Stop: &stop}
}

// Full returns the slice covering every row
func Full() Slice {
	return Slice{}
}

// ResolveIndex maps a signed index onto a row offset. Non-negative indexes are
// returned unchanged, even past the end; negative ones count back from
// rowCount and clamp at 0.
func ResolveIndex(i, rowCount int) int {
	if i >= 0 {
		return i
	}
	i += rowCount
	if i < 0 {
		return 0
	}
	return i
}

// ResolveSlice maps a slice onto offsets with 0 <= start <= stop <= rowCount.
// An inverted range collapses to (start, start).
func ResolveSlice(s Slice, rowCount int) (start, stop int) {
	if rowCount < 0 {
		rowCount = 0
	}

	start, stop = 0, rowCount
	if s.Start != nil {
		start = ResolveIndex(*s.Start, rowCount)
	}
	if s.Stop != nil {
		stop = ResolveIndex(*s.Stop, rowCount)
	}

	if start > rowCount {
		start = rowCount
	}
	if stop > rowCount {
		stop = rowCount
	}
	if start > stop {
		stop = start
	}
	return start, stop
}
