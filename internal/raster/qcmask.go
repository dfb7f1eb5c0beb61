package raster

// QCBitfield selects a packed field inside an integer quality value and the
// highest field value still accepted. MaxAccepted of -1 rejects everything.
type QCBitfield struct {
	Mask        uint64
	Shift       uint
	MaxAccepted int
}

// MandatoryQA is the MODIS LST mandatory QA field (bits 0-1) accepting
// good (0) and average (1) quality.
var MandatoryQA = QCBitfield{Mask: 0b11, Shift: 0, MaxAccepted: 1}

// Field extracts the bitfield value from a packed quality integer.
func (b QCBitfield) Field(qc uint64) uint64 {
	return (qc >> b.Shift) & b.Mask
}

// Accepts reports whether the packed quality value passes the threshold.
func (b QCBitfield) Accepts(qc uint64) bool {
	if b.MaxAccepted < 0 {
		return false
	}
	return b.Field(qc) <= uint64(b.MaxAccepted)
}

// QualityMask decodes a quality raster into a validity mask.
// Pixels with no quality value are invalid.
func QualityMask(qc *Raster, b QCBitfield) Mask {
	m := NewMask(qc.Grid, false)
	for i, v := range qc.Data {
		if !qc.Valid[i] || v < 0 {
			continue
		}
		m.Valid[i] = b.Accepts(uint64(v))
	}
	return m
}

// CloudBits lists bit positions in a QA integer that each flag a pixel as unusable.
type CloudBits []uint

// Flagged reports whether any listed bit is set in qa.
func (c CloudBits) Flagged(qa uint64) bool {
	for _, bit := range c {
		if qa&(1<<bit) != 0 {
			return true
		}
	}
	return false
}

// CloudMask decodes a QA raster into a validity mask: a pixel is valid
// when none of the listed bits is set. Pixels with no QA value are invalid.
func CloudMask(qa *Raster, bits CloudBits) Mask {
	m := NewMask(qa.Grid, false)
	for i, v := range qa.Data {
		if !qa.Valid[i] || v < 0 {
			continue
		}
		m.Valid[i] = !bits.Flagged(uint64(v))
	}
	return m
}
