package validation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/swxlab/swxkit/internal/container"
	"github.com/swxlab/swxkit/pkg/types"
)

// ValidRange checks a variable's data against its VALIDMIN and VALIDMAX
// attributes. Elements equal to FILLVAL are exempt. A multi-element bound
// applies per element of the last axis and is only allowed on variables
// with one non-record dimension.
func ValidRange(v *container.Variable) []string {
	var out []string
	out = append(out, checkBound(v, "VALIDMIN", false)...)
	out = append(out, checkBound(v, "VALIDMAX", true)...)
	return out
}

// ValidScale checks SCALEMIN/SCALEMAX: both must lie inside the valid range
// of the variable's data type, and SCALEMIN must not exceed SCALEMAX.
func ValidScale(v *container.Variable) []string {
	smin, minSet := scaleBound(v, "SCALEMIN")
	smax, maxSet := scaleBound(v, "SCALEMAX")

	var out []string
	if minSet {
		out = append(out, checkScaleShape(v, "SCALEMIN", smin)...)
	}
	if maxSet {
		out = append(out, checkScaleShape(v, "SCALEMAX", smax)...)
	}

	guess := v.Data.GuessType()
	lo, hi, err := guess.MinMax()
	if err == nil {
		if minSet {
			out = append(out, checkScaleRange("SCALEMIN", smin, lo, hi, guess)...)
		}
		if maxSet {
			out = append(out, checkScaleRange("SCALEMAX", smax, lo, hi, guess)...)
		}
	}

	if minSet && maxSet && scaleOrderBroken(smin, smax) {
		out = append(out, "SCALEMIN > SCALEMAX.")
	}
	return out
}

// bound is a VALIDMIN/VALIDMAX or SCALEMIN/SCALEMAX attribute widened to a
// comparable form, with per-element display strings matching how the value
// was written.
type bound struct {
	vals  []float64
	strs  []string
	times []time.Time
	str   bool
}

func (b bound) scalar() bool { return len(b.vals) == 1 && len(b.times) == 0 }
func (b bound) isTime() bool { return len(b.times) > 0 }

func checkBound(v *container.Variable, name string, over bool) []string {
	raw, ok := v.Meta.Get(name)
	if !ok || raw == nil {
		return nil
	}
	b, ok := parseBound(raw)
	if !ok {
		return nil
	}

	if b.str || (b.isTime() != (v.Data.Kind() == types.KindTime)) {
		return []string{fmt.Sprintf("%s type %s not comparable to variable type %s.",
			name, boundType(b), v.Data.GuessType())}
	}

	if b.isTime() {
		return checkTimeBound(v, name, b.times[0], over)
	}

	if len(b.vals) > 1 {
		return checkMultiBound(v, name, b, over)
	}
	return checkScalarBound(v, name, b, over)
}

func checkScalarBound(v *container.Variable, name string, b bound, over bool) []string {
	if !v.Data.IsNumeric() {
		return nil
	}
	limit := b.vals[0]
	fill, hasFill := fillNumber(v)

	var out []string
	for i := 0; i < v.Data.Size(); i++ {
		val := v.Data.FloatAt(i)
		if hasFill && nearlyEqual(val, fill) {
			continue
		}
		if breaks(val, limit, over) {
			out = append(out, fmt.Sprintf("Value %s%s %s %s %s.",
				elementString(v.Data, i), indexString(v.Data, i),
				direction(over), name, b.strs[0]))
		}
	}
	return out
}

func checkMultiBound(v *container.Variable, name string, b bound, over bool) []string {
	dims := dataDims(v)
	if len(dims) != 1 {
		return []string{fmt.Sprintf("Multi-element %s only valid with 1D variable.", name)}
	}
	if len(b.vals) != dims[0] {
		return []string{fmt.Sprintf("%s element count %d does not match first data dimension size %d.",
			name, len(b.vals), dims[0])}
	}
	if !v.Data.IsNumeric() {
		return nil
	}

	count := dims[0]
	fill, hasFill := fillNumber(v)
	limits := sliceString(b.strs)

	var out []string
	for i := 0; i < v.Data.Size(); i++ {
		val := v.Data.FloatAt(i)
		if hasFill && nearlyEqual(val, fill) {
			continue
		}
		if breaks(val, b.vals[i%count], over) {
			out = append(out, fmt.Sprintf("Value %s%s %s %s %s.",
				elementString(v.Data, i), indexString(v.Data, i),
				direction(over), name, limits))
		}
	}
	return out
}

func checkTimeBound(v *container.Variable, name string, limit time.Time, over bool) []string {
	fill, hasFill := fillTime(v)
	samples := v.Data.TimeSlice()

	var out []string
	for i, val := range samples {
		if hasFill && val.Equal(fill) {
			continue
		}
		broken := val.Before(limit)
		if over {
			broken = val.After(limit)
		}
		if broken {
			out = append(out, fmt.Sprintf("Value %s at index %d %s %s %s.",
				timeString(val), i, direction(over), name, timeString(limit)))
		}
	}
	return out
}

func checkScaleShape(v *container.Variable, name string, b bound) []string {
	if len(b.vals) <= 1 {
		return nil
	}
	dims := dataDims(v)
	if len(dims) != 1 {
		return []string{fmt.Sprintf("Multi-element %s only valid with 1D variable.", name)}
	}
	if len(b.vals) != dims[0] {
		return []string{fmt.Sprintf("%s element count %d does not match first data dimension size %d.",
			name, len(b.vals), dims[0])}
	}
	return nil
}

func checkScaleRange(name string, b bound, lo, hi float64, guess types.CDFType) []string {
	var out []string
	for i, val := range b.vals {
		if val < lo || val > hi {
			out = append(out, fmt.Sprintf("%s (%s) outside valid data range (%s,%s).",
				name, b.strs[i], rangeString(lo, guess), rangeString(hi, guess)))
		}
	}
	return out
}

func scaleBound(v *container.Variable, name string) (bound, bool) {
	raw, ok := v.Meta.Get(name)
	if !ok || raw == nil {
		return bound{}, false
	}
	b, ok := parseBound(raw)
	if !ok || b.str || b.isTime() {
		return bound{}, false
	}
	return b, true
}

func scaleOrderBroken(smin, smax bound) bool {
	if smin.scalar() && smax.scalar() {
		return smin.vals[0] > smax.vals[0]
	}
	if len(smin.vals) != len(smax.vals) {
		return false
	}
	for i := range smin.vals {
		if smin.vals[i] > smax.vals[i] {
			return true
		}
	}
	return false
}

// dataDims returns the dimensions a bound attribute is matched against:
// the variable's shape without the record dimension.
func dataDims(v *container.Variable) []int {
	shape := v.Data.Shape()
	if v.RecordVarying && len(shape) > 0 {
		return shape[1:]
	}
	return shape
}

func parseBound(raw any) (bound, bool) {
	one := func(val float64, str string) (bound, bool) {
		return bound{vals: []float64{val}, strs: []string{str}}, true
	}
	switch val := raw.(type) {
	case int:
		return one(float64(val), strconv.Itoa(val))
	case int64:
		return one(float64(val), strconv.FormatInt(val, 10))
	case float32:
		return one(float64(val), pyFloat(float64(val)))
	case float64:
		return one(val, pyFloat(val))
	case string:
		return bound{str: true}, true
	case time.Time:
		return bound{times: []time.Time{val}}, true
	case []int64:
		b := bound{}
		for _, e := range val {
			b.vals = append(b.vals, float64(e))
			b.strs = append(b.strs, strconv.FormatInt(e, 10))
		}
		return b, len(b.vals) > 0
	case []int:
		b := bound{}
		for _, e := range val {
			b.vals = append(b.vals, float64(e))
			b.strs = append(b.strs, strconv.Itoa(e))
		}
		return b, len(b.vals) > 0
	case []float64:
		b := bound{}
		for _, e := range val {
			b.vals = append(b.vals, e)
			b.strs = append(b.strs, pyFloat(e))
		}
		return b, len(b.vals) > 0
	}
	return bound{}, false
}

func boundType(b bound) string {
	switch {
	case b.str:
		return types.CDFChar.String()
	case b.isTime():
		return types.CDFTimeTT2000.String()
	}
	return types.CDFDouble.String()
}

func fillNumber(v *container.Variable) (float64, bool) {
	raw, ok := v.Meta.Get("FILLVAL")
	if !ok || raw == nil {
		return 0, false
	}
	return toFloat(raw)
}

func fillTime(v *container.Variable) (time.Time, bool) {
	t, ok := v.Meta.Value("FILLVAL").(time.Time)
	return t, ok
}

func breaks(val, limit float64, over bool) bool {
	if over {
		return val > limit
	}
	return val < limit
}

func direction(over bool) string {
	if over {
		return "over"
	}
	return "under"
}

// nearlyEqual absorbs the precision loss of fill values stored at a
// narrower float width than the data.
func nearlyEqual(a, b float64) bool {
	if a == b {
		return true
	}
	diff := math.Abs(a - b)
	scale := math.Max(math.Abs(a), math.Abs(b))
	return diff <= scale*1e-6
}

func elementString(a types.Array, i int) string {
	if a.Kind() == types.KindInt {
		return strconv.FormatInt(a.IntSlice()[i], 10)
	}
	return pyFloat(a.FloatAt(i))
}

// indexString renders the element position the way an N-dimensional array
// index prints: nothing for scalars, a plain integer for one axis, a
// bracketed tuple otherwise.
func indexString(a types.Array, flat int) string {
	switch a.NDim() {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf(" at index %d", flat)
	}
	idx := make([]string, a.NDim())
	rem := flat
	for d := a.NDim() - 1; d >= 0; d-- {
		idx[d] = strconv.Itoa(rem % a.Shape()[d])
		rem /= a.Shape()[d]
	}
	return " at index " + alignBracket(idx)
}

func sliceString(strs []string) string {
	return alignBracket(strs)
}

// alignBracket joins elements space-separated inside brackets with every
// element right-aligned to the widest, e.g. "[ 1 20]".
func alignBracket(strs []string) string {
	width := 0
	for _, s := range strs {
		if len(s) > width {
			width = len(s)
		}
	}
	padded := make([]string, len(strs))
	for i, s := range strs {
		padded[i] = strings.Repeat(" ", width-len(s)) + s
	}
	return "[" + strings.Join(padded, " ") + "]"
}

func rangeString(v float64, guess types.CDFType) string {
	if guess.IsInteger() {
		return strconv.FormatInt(int64(v), 10)
	}
	return pyFloat(v)
}

// pyFloat formats a float the way dynamic languages print them: shortest
// representation, with a ".0" suffix kept on integral values.
func pyFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") && !math.IsInf(f, 0) && !math.IsNaN(f) {
		s += ".0"
	}
	return s
}

func timeString(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

func toFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	}
	return 0, false
}
