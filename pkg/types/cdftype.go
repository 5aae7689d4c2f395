// Package types provides the shared leaf types of the swxkit system:
// CDF data type codes, typed measurement arrays, ordered metadata maps,
// and variable roles.
package types

import (
	"fmt"
	"math"
	"time"
)

// CDFType is a CDF data type code. The numeric values match the CDF
// library constants so persisted files stay interoperable.
type CDFType int

const (
	CDFInt1       CDFType = 1
	CDFInt2       CDFType = 2
	CDFInt4       CDFType = 4
	CDFInt8       CDFType = 8
	CDFUInt1      CDFType = 11
	CDFUInt2      CDFType = 12
	CDFUInt4      CDFType = 14
	CDFReal4      CDFType = 21
	CDFReal8      CDFType = 22
	CDFEpoch      CDFType = 31
	CDFEpoch16    CDFType = 32
	CDFTimeTT2000 CDFType = 33
	CDFByte       CDFType = 41
	CDFFloat      CDFType = 44
	CDFDouble     CDFType = 45
	CDFChar       CDFType = 51
	CDFUChar      CDFType = 52
)

var cdfTypeNames = map[CDFType]string{
	CDFInt1:       "CDF_INT1",
	CDFInt2:       "CDF_INT2",
	CDFInt4:       "CDF_INT4",
	CDFInt8:       "CDF_INT8",
	CDFUInt1:      "CDF_UINT1",
	CDFUInt2:      "CDF_UINT2",
	CDFUInt4:      "CDF_UINT4",
	CDFReal4:      "CDF_REAL4",
	CDFReal8:      "CDF_REAL8",
	CDFEpoch:      "CDF_EPOCH",
	CDFEpoch16:    "CDF_EPOCH16",
	CDFTimeTT2000: "CDF_TIME_TT2000",
	CDFByte:       "CDF_BYTE",
	CDFFloat:      "CDF_FLOAT",
	CDFDouble:     "CDF_DOUBLE",
	CDFChar:       "CDF_CHAR",
	CDFUChar:      "CDF_UCHAR",
}

// String returns the canonical CDF type name, e.g. "CDF_TIME_TT2000".
func (t CDFType) String() string {
	if name, ok := cdfTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("CDF_UNKNOWN(%d)", int(t))
}

// IsTime reports whether the type is one of the CDF epoch types.
func (t CDFType) IsTime() bool {
	return t == CDFEpoch || t == CDFEpoch16 || t == CDFTimeTT2000
}

// IsString reports whether the type is a CDF character type.
func (t CDFType) IsString() bool {
	return t == CDFChar || t == CDFUChar
}

// IsInteger reports whether the type is a signed or unsigned integer type.
func (t CDFType) IsInteger() bool {
	switch t {
	case CDFByte, CDFInt1, CDFInt2, CDFInt4, CDFInt8, CDFUInt1, CDFUInt2, CDFUInt4:
		return true
	}
	return false
}

// IsFloat reports whether the type is a floating-point type.
func (t CDFType) IsFloat() bool {
	switch t {
	case CDFFloat, CDFReal4, CDFDouble, CDFReal8, CDFEpoch:
		return true
	}
	return false
}

// Time bounds supported by the epoch types.
var (
	TimeMin = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	TimeMax = time.Date(2250, 1, 1, 0, 0, 0, 0, time.UTC)
)

// TimeFill is the fill timestamp used for TT2000 epoch variables.
var TimeFill = time.Date(9999, 12, 31, 23, 59, 59, 999999000, time.UTC)

// MinMax returns the minimum and maximum value representable by a numeric
// CDF type. Time types have no numeric range; use TimeMin/TimeMax instead.
func (t CDFType) MinMax() (float64, float64, error) {
	switch t {
	case CDFByte, CDFInt1:
		return math.MinInt8, math.MaxInt8, nil
	case CDFInt2:
		return math.MinInt16, math.MaxInt16, nil
	case CDFInt4:
		return math.MinInt32, math.MaxInt32, nil
	case CDFInt8, CDFTimeTT2000:
		return math.MinInt64, math.MaxInt64, nil
	case CDFUInt1:
		return 0, math.MaxUint8, nil
	case CDFUInt2:
		return 0, math.MaxUint16, nil
	case CDFUInt4:
		return 0, math.MaxUint32, nil
	case CDFFloat, CDFReal4:
		return -math.MaxFloat32, math.MaxFloat32, nil
	case CDFDouble, CDFReal8, CDFEpoch:
		return -math.MaxFloat64, math.MaxFloat64, nil
	}
	return 0, 0, fmt.Errorf("no numeric range for type %s", t)
}

// FillValue returns the conventional fill value for a CDF type: the most
// negative integer for signed types, the all-ones value for unsigned types,
// -1e31 for reals, a single space for character types, and the 9999-12-31
// sentinel for TT2000.
func (t CDFType) FillValue() any {
	switch t {
	case CDFByte, CDFInt1:
		return int64(math.MinInt8)
	case CDFInt2:
		return int64(math.MinInt16)
	case CDFInt4:
		return int64(math.MinInt32)
	case CDFInt8:
		return int64(math.MinInt64)
	case CDFUInt1:
		return int64(math.MaxUint8)
	case CDFUInt2:
		return int64(math.MaxUint16)
	case CDFUInt4:
		return int64(math.MaxUint32)
	case CDFFloat, CDFReal4, CDFDouble, CDFReal8, CDFEpoch:
		return -1e31
	case CDFChar, CDFUChar:
		return " "
	case CDFTimeTT2000:
		return TimeFill
	}
	return nil
}
