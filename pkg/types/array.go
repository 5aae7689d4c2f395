package types

import (
	"math"
	"time"
)

// DataKind classifies the backing storage of an Array.
type DataKind int

const (
	KindInt DataKind = iota
	KindFloat
	KindString
	KindTime
)

// Array is a regular N-dimensional value array with one of four backing
// element kinds. Shape[0] is the record dimension for record-varying data.
// Arrays are treated as immutable once attached to a container variable.
type Array struct {
	kind    DataKind
	ints    []int64
	floats  []float64
	strings []string
	times   []time.Time
	shape   []int
}

// Ints returns a one-dimensional integer array.
func Ints(v ...int64) Array {
	return Array{kind: KindInt, ints: v, shape: []int{len(v)}}
}

// IntsShaped returns an integer array with an explicit shape.
// The product of the shape must equal len(v).
func IntsShaped(shape []int, v []int64) Array {
	return Array{kind: KindInt, ints: v, shape: shape}
}

// Floats returns a one-dimensional floating-point array.
func Floats(v ...float64) Array {
	return Array{kind: KindFloat, floats: v, shape: []int{len(v)}}
}

// FloatsShaped returns a floating-point array with an explicit shape.
func FloatsShaped(shape []int, v []float64) Array {
	return Array{kind: KindFloat, floats: v, shape: shape}
}

// Strings returns a one-dimensional string array.
func Strings(v ...string) Array {
	return Array{kind: KindString, strings: v, shape: []int{len(v)}}
}

// Times returns a one-dimensional timestamp array.
func Times(v ...time.Time) Array {
	return Array{kind: KindTime, times: v, shape: []int{len(v)}}
}

// Kind returns the backing element kind.
func (a Array) Kind() DataKind { return a.kind }

// Shape returns the dimension sizes, outermost first.
func (a Array) Shape() []int { return a.shape }

// NDim returns the number of dimensions.
func (a Array) NDim() int { return len(a.shape) }

// Len returns the size of the record (outermost) dimension.
func (a Array) Len() int {
	if len(a.shape) == 0 {
		return 0
	}
	return a.shape[0]
}

// Size returns the total element count.
func (a Array) Size() int {
	switch a.kind {
	case KindInt:
		return len(a.ints)
	case KindFloat:
		return len(a.floats)
	case KindString:
		return len(a.strings)
	case KindTime:
		return len(a.times)
	}
	return 0
}

// IntSlice returns the backing integers. Valid only for KindInt.
func (a Array) IntSlice() []int64 { return a.ints }

// FloatSlice returns the backing floats. Valid only for KindFloat.
func (a Array) FloatSlice() []float64 { return a.floats }

// StringSlice returns the backing strings. Valid only for KindString.
func (a Array) StringSlice() []string { return a.strings }

// TimeSlice returns the backing timestamps. Valid only for KindTime.
func (a Array) TimeSlice() []time.Time { return a.times }

// IsNumeric reports whether the array holds integer or float elements.
func (a Array) IsNumeric() bool {
	return a.kind == KindInt || a.kind == KindFloat
}

// FloatAt returns element i of a numeric array widened to float64.
func (a Array) FloatAt(i int) float64 {
	if a.kind == KindInt {
		return float64(a.ints[i])
	}
	return a.floats[i]
}

// MinMax returns the smallest and largest element of a numeric array.
// Both are zero for an empty array.
func (a Array) MinMax() (float64, float64) {
	n := a.Size()
	if n == 0 || !a.IsNumeric() {
		return 0, 0
	}
	lo, hi := a.FloatAt(0), a.FloatAt(0)
	for i := 1; i < n; i++ {
		v := a.FloatAt(i)
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// MaxStringLen returns the length of the longest string element.
func (a Array) MaxStringLen() int {
	longest := 0
	for _, s := range a.strings {
		if len(s) > longest {
			longest = len(s)
		}
	}
	return longest
}

// CandidateTypes infers the CDF types able to represent this array, in
// preferred order: the type matching the data's precision first, integer
// before float, smallest first, signed first, specifically-named before
// generically-named.
func (a Array) CandidateTypes() []CDFType {
	switch a.kind {
	case KindString:
		return []CDFType{CDFChar, CDFUChar}
	case KindTime:
		return []CDFType{CDFTimeTT2000, CDFEpoch16, CDFEpoch}
	case KindInt:
		return integerCandidates(a)
	case KindFloat:
		return floatCandidates(a)
	}
	return nil
}

// GuessType returns the preferred CDF type for this array.
func (a Array) GuessType() CDFType {
	candidates := a.CandidateTypes()
	if len(candidates) == 0 {
		return CDFDouble
	}
	return candidates[0]
}

func integerCandidates(a Array) []CDFType {
	lo, hi := a.MinMax()
	var ladder []CDFType
	var cutoffs []float64
	if lo < 0 {
		ladder = []CDFType{
			CDFByte, CDFInt1, CDFInt2, CDFInt4, CDFInt8,
			CDFFloat, CDFReal4, CDFDouble, CDFReal8,
		}
		cutoffs = []float64{
			1 << 7, 1 << 7, 1 << 15, 1 << 31, 1 << 63,
			1.7e38, 1.7e38, 8e307, 8e307,
		}
	} else {
		ladder = []CDFType{
			CDFByte, CDFInt1, CDFUInt1, CDFInt2, CDFUInt2,
			CDFInt4, CDFUInt4, CDFInt8,
			CDFFloat, CDFReal4, CDFDouble, CDFReal8,
		}
		cutoffs = []float64{
			1 << 7, 1 << 7, 1 << 8, 1 << 15, 1 << 16,
			1 << 31, 1 << 32, 1 << 63,
			1.7e38, 1.7e38, 8e307, 8e307,
		}
	}
	var out []CDFType
	for i, t := range ladder {
		if cutoffs[i] > hi && (lo >= 0 || lo >= -cutoffs[i]) {
			out = append(out, t)
		}
	}
	return out
}

func floatCandidates(a Array) []CDFType {
	// Eight bytes are required when any non-zero magnitude falls outside
	// the four-byte IEEE range.
	needDouble := false
	for i := 0; i < a.Size(); i++ {
		v := math.Abs(a.FloatAt(i))
		if v != 0 && (v > 1.7e38 || v < 3e-39) {
			needDouble = true
			break
		}
	}
	if needDouble {
		return []CDFType{CDFDouble, CDFReal8}
	}
	return []CDFType{CDFFloat, CDFReal4, CDFDouble, CDFReal8}
}
