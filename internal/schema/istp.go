package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/swxlab/swxkit/internal/config"
	"github.com/swxlab/swxkit/internal/filename"
	"github.com/swxlab/swxkit/pkg/types"
)

// Library and format version strings recorded in generated files.
const (
	kitVersion      = "1.0.0"
	containerFormat = "swxkit-container-1"
)

// DefaultRegistry returns the derivation registry behind the embedded ISTP
// layers. Mission packages extend it by registering additional functions
// or replacing these under the same names.
func DefaultRegistry(mission config.Mission) *Registry {
	r := NewRegistry()

	r.RegisterGlobal("logical_file_id", deriveLogicalFileID(mission))
	r.RegisterGlobal("logical_source", deriveLogicalSource(mission))
	r.RegisterGlobal("logical_source_description", deriveLogicalSourceDescription(mission))
	r.RegisterGlobal("data_type", deriveDataType)
	r.RegisterGlobal("generation_date", deriveGenerationDate)
	r.RegisterGlobal("start_time", deriveStartTime)
	r.RegisterGlobal("swxkit_version", deriveKitVersion)
	r.RegisterGlobal("cdf_lib_version", deriveContainerVersion)

	r.RegisterVariable("depend_0", deriveDepend0)
	r.RegisterVariable("display_type", deriveDisplayType)
	r.RegisterVariable("fieldnam", deriveFieldnam)
	r.RegisterVariable("fillval", deriveFillval)
	r.RegisterVariable("format", deriveFormat)
	r.RegisterVariable("lablaxis", deriveLablaxis)
	r.RegisterVariable("reference_position", deriveReferencePosition)
	r.RegisterVariable("resolution", deriveResolution)
	r.RegisterVariable("si_conversion", deriveSIConversion)
	r.RegisterVariable("time_base", deriveTimeBase)
	r.RegisterVariable("time_scale", deriveTimeScale)
	r.RegisterVariable("units", deriveUnits)
	r.RegisterVariable("validmin", deriveValidmin)
	r.RegisterVariable("validmax", deriveValidmax)

	r.RegisterVariable("wcs_naxis", deriveWCSNAxis)
	r.RegisterVariable("wcs_timeref", deriveWCSTimeRef)
	r.RegisterVariable("wcs_timeunit", deriveWCSTimeUnit)
	r.RegisterVariable("wcs_timedel", deriveWCSTimeDel)
	r.RegisterVariable("wcs_cname", wcsAxisFunc(func(w *types.WCS, dim int) any { return w.CName[dim] }))
	r.RegisterVariable("wcs_ctype", wcsAxisFunc(func(w *types.WCS, dim int) any { return w.CType[dim] }))
	r.RegisterVariable("wcs_cunit", wcsAxisFunc(func(w *types.WCS, dim int) any { return w.CUnit[dim] }))
	r.RegisterVariable("wcs_crpix", wcsAxisFunc(func(w *types.WCS, dim int) any { return w.CRPix[dim] }))
	r.RegisterVariable("wcs_crval", wcsAxisFunc(func(w *types.WCS, dim int) any { return w.CRVal[dim] }))
	r.RegisterVariable("wcs_cdelt", wcsAxisFunc(func(w *types.WCS, dim int) any { return w.CDelt[dim] }))

	return r
}

// ---------------------------------------------------------------------------
// Global attribute derivations

func deriveLogicalFileID(mission config.Mission) GlobalFunc {
	return func(data GlobalData) (any, error) {
		if existing := stringAttr(data.GlobalMeta(), "Logical_file_id"); existing != "" {
			return existing, nil
		}
		epoch := data.EpochTimes()
		if len(epoch) == 0 {
			return nil, fmt.Errorf("no epoch data to take the start time from")
		}
		name, err := filename.Create(
			mission,
			instrumentID(data.GlobalMeta()),
			epoch[0],
			dataLevel(data.GlobalMeta()),
			dataVersion(data.GlobalMeta()),
			instrumentMode(data.GlobalMeta()),
			"",
			false,
		)
		if err != nil {
			return nil, err
		}
		return strings.TrimSuffix(name, mission.FileExtension), nil
	}
}

func deriveLogicalSource(mission config.Mission) GlobalFunc {
	return func(data GlobalData) (any, error) {
		if existing := stringAttr(data.GlobalMeta(), "Logical_source"); existing != "" {
			return existing, nil
		}
		dataType, err := dataTypeString(data.GlobalMeta())
		if err != nil {
			return nil, err
		}
		short, _, _ := strings.Cut(dataType, ">")
		return fmt.Sprintf("%s_%s_%s",
			spacecraftID(data.GlobalMeta(), mission),
			instrumentID(data.GlobalMeta()),
			short), nil
	}
}

func deriveLogicalSourceDescription(mission config.Mission) GlobalFunc {
	return func(data GlobalData) (any, error) {
		if existing := stringAttr(data.GlobalMeta(), "Logical_source_description"); existing != "" {
			return existing, nil
		}
		dataType, err := dataTypeString(data.GlobalMeta())
		if err != nil {
			return nil, err
		}
		_, long, _ := strings.Cut(dataType, ">")
		return fmt.Sprintf("%s %s %s",
			spacecraftLongName(data.GlobalMeta(), mission),
			instrumentLongName(data.GlobalMeta()),
			long), nil
	}
}

func deriveDataType(data GlobalData) (any, error) {
	return dataTypeString(data.GlobalMeta())
}

func deriveGenerationDate(GlobalData) (any, error) {
	return time.Now().UTC().Format("2006-01-02"), nil
}

func deriveStartTime(data GlobalData) (any, error) {
	epoch := data.EpochTimes()
	if len(epoch) == 0 {
		return nil, fmt.Errorf("no epoch data to take the start time from")
	}
	return epoch[0].UTC().Format("2006-01-02T15:04:05.000"), nil
}

func deriveKitVersion(data GlobalData) (any, error) {
	if existing := stringAttr(data.GlobalMeta(), "SWxKit_version"); existing != "" {
		return existing, nil
	}
	return kitVersion, nil
}

func deriveContainerVersion(data GlobalData) (any, error) {
	if existing := stringAttr(data.GlobalMeta(), "CDF_Lib_version"); existing != "" {
		return existing, nil
	}
	return containerFormat, nil
}

// dataTypeString builds the mode/level/descriptor combination as a
// short>long pair, e.g. "1s_l2_burst>1s Level 2 burst".
func dataTypeString(meta *types.Metadata) (string, error) {
	if existing := stringAttr(meta, "Data_type"); existing != "" {
		return existing, nil
	}

	var short, long []string
	if mode := instrumentMode(meta); mode != "" {
		short = append(short, mode)
		long = append(long, mode)
	}
	levelShort := dataLevel(meta)
	levelLong := dataLevelLongName(meta)
	if levelShort != "" && levelLong != "" {
		short = append(short, levelShort)
		long = append(long, levelLong)
	}
	if descriptor := stringAttr(meta, "Data_product_descriptor"); descriptor != "" {
		short = append(short, descriptor)
		long = append(long, descriptor)
	}
	if len(short) == 0 {
		return "", fmt.Errorf("no mode, level, or descriptor attributes to build Data_type from")
	}
	return strings.Join(short, "_") + ">" + strings.Join(long, " "), nil
}

func spacecraftID(meta *types.Metadata, mission config.Mission) string {
	source := stringAttr(meta, "Source_name")
	if source == "" {
		return mission.Name
	}
	if short, _, found := strings.Cut(source, ">"); found {
		return strings.ToLower(short)
	}
	return source
}

func spacecraftLongName(meta *types.Metadata, mission config.Mission) string {
	source := stringAttr(meta, "Source_name")
	if source == "" {
		return mission.Name
	}
	if _, long, found := strings.Cut(source, ">"); found {
		return long
	}
	return source
}

func instrumentID(meta *types.Metadata) string {
	descriptor := stringAttr(meta, "Descriptor")
	if short, _, found := strings.Cut(descriptor, ">"); found {
		return strings.ToLower(short)
	}
	return descriptor
}

func instrumentLongName(meta *types.Metadata) string {
	descriptor := stringAttr(meta, "Descriptor")
	if _, long, found := strings.Cut(descriptor, ">"); found {
		return long
	}
	return descriptor
}

func dataLevel(meta *types.Metadata) string {
	level := stringAttr(meta, "Data_level")
	if short, _, found := strings.Cut(level, ">"); found {
		return strings.ToLower(short)
	}
	return level
}

func dataLevelLongName(meta *types.Metadata) string {
	level := stringAttr(meta, "Data_level")
	if _, long, found := strings.Cut(level, ">"); found {
		return long
	}
	return level
}

func dataVersion(meta *types.Metadata) string {
	version := strings.ToLower(stringAttr(meta, "Data_version"))
	if _, v, found := strings.Cut(version, "v"); found {
		return v
	}
	return version
}

func instrumentMode(meta *types.Metadata) string {
	return strings.ToLower(stringAttr(meta, "Instrument_mode"))
}

func stringAttr(meta *types.Metadata, name string) string {
	if meta == nil {
		return ""
	}
	if s, ok := meta.Value(name).(string); ok {
		return s
	}
	return ""
}

// ---------------------------------------------------------------------------
// Variable attribute derivations

func deriveDepend0(v Variable, _ types.CDFType, _ int) (any, error) {
	if v.Epoch != "" {
		return v.Epoch, nil
	}
	return "Epoch", nil
}

func deriveDisplayType(Variable, types.CDFType, int) (any, error) {
	return "time_series", nil
}

func deriveFieldnam(v Variable, _ types.CDFType, _ int) (any, error) {
	if v.IsEpoch {
		return "Epoch", nil
	}
	return v.Name, nil
}

func deriveFillval(v Variable, guess types.CDFType, _ int) (any, error) {
	fill := guess.FillValue()
	if fill == nil {
		return nil, fmt.Errorf("no fill value for type %s", guess)
	}
	return fill, nil
}

func deriveLablaxis(v Variable, guess types.CDFType, _ int) (any, error) {
	units, err := deriveUnits(v, guess, -1)
	if err != nil {
		return nil, err
	}
	return fmt.Sprintf("%s [%s]", v.Name, units), nil
}

func deriveReferencePosition(v Variable, guess types.CDFType, _ int) (any, error) {
	if guess == types.CDFTimeTT2000 {
		return "rotating Earth geoid", nil
	}
	return nil, fmt.Errorf("reference position for time type (%s) not found", guess)
}

func deriveResolution(v Variable, _ types.CDFType, _ int) (any, error) {
	samples := v.Data.TimeSlice()
	if len(samples) < 2 {
		return nil, fmt.Errorf("can not derive time resolution, need 2 samples, found %d", len(samples))
	}
	seconds := samples[1].Sub(samples[0]).Seconds()
	return strconv.FormatFloat(seconds, 'f', -1, 64) + "s", nil
}

func deriveSIConversion(v Variable, guess types.CDFType, _ int) (any, error) {
	if v.IsEpoch {
		return fmt.Sprintf("%e>s", 1e-9), nil
	}
	if v.Units != "" {
		return fmt.Sprintf("1.0>%s", v.Units), nil
	}
	return " > ", nil
}

func deriveTimeBase(v Variable, guess types.CDFType, _ int) (any, error) {
	if guess == types.CDFTimeTT2000 {
		return "J2000", nil
	}
	return nil, fmt.Errorf("time base for time type (%s) not found", guess)
}

func deriveTimeScale(v Variable, guess types.CDFType, _ int) (any, error) {
	if guess == types.CDFTimeTT2000 {
		return "Terrestrial Time (TT)", nil
	}
	return nil, fmt.Errorf("time scale for time type (%s) not found", guess)
}

func deriveUnits(v Variable, guess types.CDFType, _ int) (any, error) {
	if v.IsEpoch {
		if guess == types.CDFTimeTT2000 {
			return "ns", nil
		}
		return nil, fmt.Errorf("time units for time type (%s) not found", guess)
	}
	if v.Units != "" {
		return v.Units, nil
	}
	if units := stringAttr(v.Meta, "UNITS"); units != "" {
		return units, nil
	}
	return "", nil
}

func deriveValidmin(v Variable, guess types.CDFType, _ int) (any, error) {
	if guess.IsTime() {
		return types.TimeMin, nil
	}
	lo, _, err := guess.MinMax()
	if err != nil {
		return nil, err
	}
	if guess.IsInteger() {
		return int64(lo), nil
	}
	return lo, nil
}

func deriveValidmax(v Variable, guess types.CDFType, _ int) (any, error) {
	if guess.IsTime() {
		return types.TimeMax, nil
	}
	_, hi, err := guess.MinMax()
	if err != nil {
		return nil, err
	}
	if guess.IsInteger() {
		return int64(hi), nil
	}
	return hi, nil
}

// deriveFormat infers a Fortran-style display format wide enough for any
// valid value of the variable's type, narrowed by VALIDMIN/VALIDMAX when
// the metadata carries them.
func deriveFormat(v Variable, guess types.CDFType, _ int) (any, error) {
	switch {
	case guess.IsInteger():
		return integerFormat(v, guess), nil
	case guess == types.CDFTimeTT2000:
		return fmt.Sprintf("A%d", len("9999-12-31T23:59:59.999999999")), nil
	case guess == types.CDFEpoch16:
		return fmt.Sprintf("A%d", len("31-Dec-9999 23:59:59.999.999.000.000")), nil
	case guess == types.CDFEpoch:
		return fmt.Sprintf("A%d", len("31-Dec-9999 23:59:59.999")), nil
	case guess.IsFloat():
		return floatFormat(v), nil
	case guess.IsString():
		return fmt.Sprintf("A%d", v.Data.MaxStringLen()), nil
	}
	return nil, fmt.Errorf("could not find format for type %s", guess)
}

func integerFormat(v Variable, guess types.CDFType) string {
	typeMin, typeMax, _ := guess.MinMax()
	minval, maxval := typeMin, typeMax
	if raw, ok := metaFloat(v.Meta, "VALIDMIN"); ok {
		minval = raw
	}
	if raw, ok := metaFloat(v.Meta, "VALIDMAX"); ok {
		maxval = raw
	}
	// Truncate and add rather than ceil so powers of 10 get enough digits;
	// a negative minimum needs one more column for the sign.
	if minval < 0 {
		digits := int(math.Log10(math.Max(math.Max(math.Abs(maxval), math.Abs(minval)), 1))) + 2
		return fmt.Sprintf("I%d", digits)
	}
	digits := 1
	if maxval != 0 {
		digits = int(math.Log10(maxval))
	}
	return fmt.Sprintf("I%d", digits+1)
}

func floatFormat(v Variable) string {
	minval, haveMin := metaFloat(v.Meta, "VALIDMIN")
	maxval, haveMax := metaFloat(v.Meta, "VALIDMAX")
	if !haveMin || !haveMax {
		return "G10.8E3"
	}
	span := maxval - minval
	if span < 0 {
		return "G10.8E3"
	}
	intDigits := len(strconv.Itoa(int(maxval)))
	if n := len(strconv.Itoa(int(minval))); n > intDigits {
		intDigits = n
	}
	switch {
	case span <= 11:
		return fmt.Sprintf("F%d.3", intDigits+4)
	case span <= 101:
		return fmt.Sprintf("F%d.2", intDigits+3)
	case span <= 1000:
		return fmt.Sprintf("F%d.1", intDigits+2)
	}
	return "G10.8E3"
}

// ---------------------------------------------------------------------------
// Spectra attribute derivations

func deriveWCSNAxis(v Variable, _ types.CDFType, _ int) (any, error) {
	if raw, ok := metaFloat(v.Meta, "WCSAXES"); ok && raw > 0 {
		return int(raw), nil
	}
	if v.WCS == nil {
		return nil, fmt.Errorf("variable %s carries no world coordinates", v.Name)
	}
	return v.WCS.NAxis(), nil
}

func deriveWCSTimeRef(v Variable, _ types.CDFType, _ int) (any, error) {
	if raw, ok := v.Meta.Get("MJDREF"); ok && raw != nil {
		return raw, nil
	}
	if v.WCS == nil {
		return nil, fmt.Errorf("variable %s carries no world coordinates", v.Name)
	}
	return v.WCS.MJDRef, nil
}

func deriveWCSTimeUnit(v Variable, _ types.CDFType, _ int) (any, error) {
	if raw, ok := v.Meta.Get("TIMEUNIT"); ok && raw != nil {
		return raw, nil
	}
	if v.WCS == nil {
		return nil, fmt.Errorf("variable %s carries no world coordinates", v.Name)
	}
	return v.WCS.TimeUnit, nil
}

func deriveWCSTimeDel(v Variable, _ types.CDFType, _ int) (any, error) {
	if raw, ok := v.Meta.Get("TIMEDEL"); ok && raw != nil {
		return raw, nil
	}
	if v.WCS == nil {
		return nil, fmt.Errorf("variable %s carries no world coordinates", v.Name)
	}
	return v.WCS.TimeDel, nil
}

func wcsAxisFunc(pick func(w *types.WCS, dim int) any) VariableFunc {
	return func(v Variable, _ types.CDFType, dim int) (any, error) {
		if v.WCS == nil {
			return nil, fmt.Errorf("variable %s carries no world coordinates", v.Name)
		}
		if dim < 0 || dim >= v.WCS.NAxis() {
			return nil, fmt.Errorf("axis %d out of range for variable %s", dim, v.Name)
		}
		return pick(v.WCS, dim), nil
	}
}

// metaFloat reads a numeric metadata value, widening integer kinds.
func metaFloat(meta *types.Metadata, name string) (float64, bool) {
	if meta == nil {
		return 0, false
	}
	raw, ok := meta.Get(name)
	if !ok || raw == nil {
		return 0, false
	}
	return toFloat(raw)
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
