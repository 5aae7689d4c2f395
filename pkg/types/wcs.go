package types

// WCS carries world-coordinate-system information for a spectra variable:
// one entry per axis for each keyword, plus the shared time reference.
type WCS struct {
	CName []string
	CType []string
	CUnit []string
	CRPix []float64
	CRVal []float64
	CDelt []float64

	MJDRef   float64
	TimeUnit string
	TimeDel  float64
}

// Axis keyword defaults.
const (
	DefaultCName = "NoName"
	DefaultCType = "TEST"
	DefaultCUnit = ""
	DefaultCRPix = 0
	DefaultCRVal = 1
	DefaultCDelt = 1
)

// NewWCS returns a WCS with naxis axes filled with the keyword defaults.
func NewWCS(naxis int) *WCS {
	w := &WCS{
		CName: make([]string, naxis),
		CType: make([]string, naxis),
		CUnit: make([]string, naxis),
		CRPix: make([]float64, naxis),
		CRVal: make([]float64, naxis),
		CDelt: make([]float64, naxis),
	}
	for i := 0; i < naxis; i++ {
		w.CName[i] = DefaultCName
		w.CType[i] = DefaultCType
		w.CUnit[i] = DefaultCUnit
		w.CRPix[i] = DefaultCRPix
		w.CRVal[i] = DefaultCRVal
		w.CDelt[i] = DefaultCDelt
	}
	return w
}

// NAxis returns the number of axes.
func (w *WCS) NAxis() int {
	if w == nil {
		return 0
	}
	return len(w.CType)
}
