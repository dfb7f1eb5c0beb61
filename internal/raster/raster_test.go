package raster

import (
	"math"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGrid(t *testing.T, w, h int) Grid {
	t.Helper()
	g, err := NewGrid(CRSModisSinusoidal, 0, 0, 1000, w, h)
	require.NoError(t, err)
	return g
}

func mustValues(t *testing.T, g Grid, data ...float64) *Raster {
	t.Helper()
	r, err := FromValues(g, data)
	require.NoError(t, err)
	return r
}

func TestNewGrid_Invalid(t *testing.T) {
	_, err := NewGrid(CRSGeographic, 0, 0, 1, 0, 3)
	require.ErrorIs(t, err, ErrShape)

	_, err = NewGrid(CRSGeographic, 0, 0, 0, 3, 3)
	require.Error(t, err)

	_, err = NewGrid("EPSG:32633", 0, 0, 30, 3, 3)
	require.ErrorIs(t, err, ErrUnsupportedCRS)
}

func TestFromValues_NonFiniteInvalid(t *testing.T) {
	g := testGrid(t, 3, 1)
	r := mustValues(t, g, 1, math.NaN(), math.Inf(1))
	assert.Equal(t, []bool{true, false, false}, r.Valid)

	_, err := FromValues(g, []float64{1})
	require.ErrorIs(t, err, ErrShape)
}

func TestQualityMask(t *testing.T) {
	g := testGrid(t, 4, 1)
	qc := mustValues(t, g, 0b00, 0b01, 0b10, 0b11|0b1100)

	t.Run("reference policy", func(t *testing.T) {
		m := QualityMask(qc, MandatoryQA)
		assert.Equal(t, []bool{true, true, false, false}, m.Valid)
	})

	t.Run("accept all", func(t *testing.T) {
		m := QualityMask(qc, QCBitfield{Mask: 0b11, MaxAccepted: 3})
		assert.Equal(t, 4, m.Count())
	})

	t.Run("accept none", func(t *testing.T) {
		m := QualityMask(qc, QCBitfield{Mask: 0b11, MaxAccepted: -1})
		assert.Equal(t, 0, m.Count())
	})

	t.Run("missing QC is invalid", func(t *testing.T) {
		missing := qc.Clone()
		missing.Valid[0] = false
		m := QualityMask(missing, QCBitfield{Mask: 0b11, MaxAccepted: 3})
		assert.False(t, m.Valid[0])
	})

	t.Run("shifted field", func(t *testing.T) {
		m := QualityMask(qc, QCBitfield{Mask: 0b11, Shift: 2, MaxAccepted: 0})
		assert.Equal(t, []bool{true, true, true, false}, m.Valid)
	})
}

func TestCloudMask(t *testing.T) {
	g := testGrid(t, 4, 1)
	qa := mustValues(t, g, 0, 1<<1, 1<<3, 1<<6)
	m := CloudMask(qa, CloudBits{1, 3, 4})
	assert.Equal(t, []bool{true, false, false, true}, m.Valid)
}

func TestMaskCombine(t *testing.T) {
	g := testGrid(t, 3, 1)
	a := Mask{Grid: g, Valid: []bool{true, true, false}}
	b := Mask{Grid: g, Valid: []bool{true, false, false}}

	and, err := And(a, b)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, false}, and.Valid)

	or, err := Or(a, b)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true, false}, or.Valid)

	assert.Equal(t, []bool{false, false, true}, Not(a).Valid)

	_, err = And(a, NewMask(testGrid(t, 2, 1), true))
	require.ErrorIs(t, err, ErrGridMismatch)
}

func TestScaleOffset(t *testing.T) {
	g := testGrid(t, 2, 1)
	raw := mustValues(t, g, 15000, 14000)
	raw.Valid[1] = false

	c := ScaleOffset(raw, 0.02, -273.15)
	assert.InDelta(t, 26.85, c.Data[0], 1e-9)
	assert.False(t, c.Valid[1])
}

func TestNormalizedDifference(t *testing.T) {
	g := testGrid(t, 4, 1)

	t.Run("identical bands are zero", func(t *testing.T) {
		a := mustValues(t, g, 0.1, 0.2, 0.3, 0.4)
		nd, err := NormalizedDifference(a, a)
		require.NoError(t, err)
		for i := range nd.Data {
			assert.True(t, nd.Valid[i])
			assert.Zero(t, nd.Data[i])
		}
	})

	t.Run("zero denominator is no data", func(t *testing.T) {
		nir := mustValues(t, g, 0.5, 0.1, 0, 0.3)
		red := mustValues(t, g, 0.1, -0.1, 0, 0.3)
		nd, err := NormalizedDifference(nir, red)
		require.NoError(t, err)
		assert.Equal(t, []bool{true, false, false, true}, nd.Valid)
		assert.InDelta(t, 0.4/0.6, nd.Data[0], 1e-12)
	})

	t.Run("mask propagates", func(t *testing.T) {
		nir := mustValues(t, g, 0.5, 0.5, 0.5, 0.5)
		red := mustValues(t, g, 0.1, 0.1, 0.1, 0.1)
		red.Valid[2] = false
		nd, err := NormalizedDifference(nir, red)
		require.NoError(t, err)
		assert.False(t, nd.Valid[2])
		assert.Equal(t, 3, nd.ValidCount())
	})
}

func TestDivide(t *testing.T) {
	g := testGrid(t, 3, 1)
	a := mustValues(t, g, 1, 2, 3)
	b := mustValues(t, g, 2, 0, 3)

	q, err := Divide(a, b)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true}, q.Valid)
	assert.Equal(t, 0.5, q.Data[0])

	assert.Zero(t, DivideScalar(a, 0).ValidCount())

	_, err = Subtract(a, mustValues(t, testGrid(t, 1, 3), 1, 2, 3))
	require.ErrorIs(t, err, ErrGridMismatch)
}

func TestApplyMask(t *testing.T) {
	g := testGrid(t, 3, 1)
	r := mustValues(t, g, 1, 2, 3)
	out, err := ApplyMask(r, Mask{Grid: g, Valid: []bool{false, true, true}})
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true, true}, out.Valid)
	assert.True(t, r.Valid[0], "input must not be mutated")
}

func TestTimeSeries_Between(t *testing.T) {
	g := testGrid(t, 1, 1)
	day := func(m time.Month, d int) time.Time { return time.Date(2020, m, d, 0, 0, 0, 0, time.UTC) }
	ts, err := NewTimeSeries(g, []Observation{
		{Time: day(6, 1), Raster: Full(g, 3)},
		{Time: day(3, 1), Raster: Full(g, 1)},
		{Time: day(5, 31), Raster: Full(g, 2)},
	})
	require.NoError(t, err)

	w := ts.Between(day(3, 1), day(6, 1))
	require.Equal(t, 2, w.Len())
	assert.Equal(t, day(3, 1), w.Observations()[0].Time)
	assert.Equal(t, day(5, 31), w.Observations()[1].Time)

	_, err = NewTimeSeries(g, []Observation{{Time: day(1, 1), Raster: Full(testGrid(t, 2, 1), 1)}})
	require.ErrorIs(t, err, ErrGridMismatch)
}

func TestComposite(t *testing.T) {
	g := testGrid(t, 3, 3)
	start := time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("empty window is all invalid with grid shape", func(t *testing.T) {
		ts, err := NewTimeSeries(g, []Observation{{Time: end.AddDate(0, 1, 0), Raster: Full(g, 30)}})
		require.NoError(t, err)
		out, err := Composite(ts, start, end, nil)
		require.NoError(t, err)
		assert.True(t, out.Grid.Equal(g))
		assert.Len(t, out.Data, 9)
		assert.Zero(t, out.ValidCount())
	})

	t.Run("single observation is identity", func(t *testing.T) {
		obs := mustValues(t, g, 1, 2, 3, 4, 5, 6, 7, 8, 9)
		obs.Valid[4] = false
		ts, err := NewTimeSeries(g, []Observation{{Time: start, Raster: obs}})
		require.NoError(t, err)
		out, err := Composite(ts, start, end, nil)
		require.NoError(t, err)
		assert.Equal(t, obs.Valid, out.Valid)
		for i := range obs.Data {
			if obs.Valid[i] {
				assert.Equal(t, obs.Data[i], out.Data[i])
			}
		}
	})

	t.Run("qc-masked observation is ignored", func(t *testing.T) {
		lst1 := Full(g, 30)
		lst2 := Full(g, 40)
		qc1 := Full(g, 0)
		qc2 := Full(g, 0)
		qc2.Data[4] = 2

		m1, err := ApplyMask(lst1, QualityMask(qc1, MandatoryQA))
		require.NoError(t, err)
		m2, err := ApplyMask(lst2, QualityMask(qc2, MandatoryQA))
		require.NoError(t, err)

		ts, err := NewTimeSeries(g, []Observation{
			{Time: start.AddDate(0, 0, 8), Raster: m1},
			{Time: start.AddDate(0, 0, 16), Raster: m2},
		})
		require.NoError(t, err)

		out, err := Composite(ts, start, end, nil)
		require.NoError(t, err)
		for i := range out.Data {
			require.True(t, out.Valid[i])
			if i == 4 {
				assert.Equal(t, 30.0, out.Data[i])
				continue
			}
			assert.Equal(t, 35.0, out.Data[i])
		}
	})

	t.Run("median", func(t *testing.T) {
		one := testGrid(t, 1, 1)
		ts, err := NewTimeSeries(one, []Observation{
			{Time: start, Raster: Full(one, 1)},
			{Time: start.AddDate(0, 0, 1), Raster: Full(one, 10)},
			{Time: start.AddDate(0, 0, 2), Raster: Full(one, 3)},
			{Time: start.AddDate(0, 0, 3), Raster: Empty(one)},
		})
		require.NoError(t, err)
		out, err := CompositeWith(ts, start, end, nil, Median)
		require.NoError(t, err)
		assert.Equal(t, 3.0, out.Data[0])
	})
}

func TestProjectionRoundTrip(t *testing.T) {
	for _, crs := range []string{CRSGeographic, CRSWebMercator, CRSModisSinusoidal} {
		x, y, err := FromLonLat(crs, -0.2, 51.5)
		require.NoError(t, err)
		lon, lat, err := ToLonLat(crs, x, y)
		require.NoError(t, err)
		assert.InDelta(t, -0.2, lon, 1e-9, crs)
		assert.InDelta(t, 51.5, lat, 1e-9, crs)
	}

	_, _, err := Transform(CRSGeographic, "EPSG:32633", 0, 0)
	require.ErrorIs(t, err, ErrUnsupportedCRS)
}

func TestRegionClip(t *testing.T) {
	g, err := NewGrid(CRSGeographic, 0, 3, 1, 3, 3)
	require.NoError(t, err)
	region, err := NewRegion(orb.Polygon{{{0, 0}, {2, 0}, {2, 3}, {0, 3}, {0, 0}}})
	require.NoError(t, err)

	r := Full(g, 5)
	clipped, err := Clip(r, region)
	require.NoError(t, err)
	assert.Equal(t, []bool{
		true, true, false,
		true, true, false,
		true, true, false,
	}, clipped.Valid)
	assert.Equal(t, 5.0, clipped.Data[2], "values outside the region are not altered")

	again, err := Clip(r, region)
	require.NoError(t, err)
	assert.Equal(t, clipped.Valid, again.Valid)

	_, err = NewRegion(orb.LineString{{0, 0}, {1, 1}})
	require.Error(t, err)
}

func TestAlign_AreaWeightedMean(t *testing.T) {
	fine, err := NewGrid(CRSModisSinusoidal, 0, 400, 100, 4, 4)
	require.NoError(t, err)
	coarse, err := NewGrid(CRSModisSinusoidal, 0, 400, 200, 2, 2)
	require.NoError(t, err)

	src := mustValues(t, fine,
		1, 2, 10, 10,
		3, 4, 10, 10,
		5, 5, 0, 0,
		5, 5, 0, 0,
	)
	src.Valid[1] = false // drop "2" from the top-left block
	for _, i := range []int{10, 11, 14, 15} {
		src.Valid[i] = false
	}

	out, err := NewAligner(0).Align(src, coarse)
	require.NoError(t, err)

	assert.True(t, out.Valid[0])
	assert.InDelta(t, (1.0+3+4)/3, out.Data[0], 1e-12)
	assert.InDelta(t, 10.0, out.Data[1], 1e-12)
	assert.InDelta(t, 5.0, out.Data[2], 1e-12)
	assert.False(t, out.Valid[3], "no valid contributors")
}

func TestAlign_PartialOverlapWeights(t *testing.T) {
	fine, err := NewGrid(CRSModisSinusoidal, 0, 100, 100, 3, 1)
	require.NoError(t, err)
	coarse, err := NewGrid(CRSModisSinusoidal, 0, 100, 150, 2, 1)
	require.NoError(t, err)

	out, err := NewAligner(0).Align(mustValues(t, fine, 0, 3, 6), coarse)
	require.NoError(t, err)
	// cell 0 covers all of pixel 0 and half of pixel 1.
	assert.InDelta(t, (0*1.0+3*0.5)/1.5, out.Data[0], 1e-9)
	assert.InDelta(t, (3*0.5+6*1.0)/1.5, out.Data[1], 1e-9)
}

func TestAlign_MaxPixelsCap(t *testing.T) {
	fine, err := NewGrid(CRSModisSinusoidal, 0, 400, 100, 4, 4)
	require.NoError(t, err)
	coarse, err := NewGrid(CRSModisSinusoidal, 0, 400, 400, 1, 1)
	require.NoError(t, err)

	src := Full(fine, 1)
	out, err := Aligner{MaxPixels: 15}.Align(src, coarse)
	require.NoError(t, err)
	assert.False(t, out.Valid[0])

	out, err = Aligner{MaxPixels: 16}.Align(src, coarse)
	require.NoError(t, err)
	assert.True(t, out.Valid[0])
}

// shearedTarget is a 3x3 grid of 1 km sinusoidal cells at 77E 28.7N, where cells are
// strongly sheared relative to Web Mercator.
func shearedTarget(t *testing.T) Grid {
	t.Helper()
	x, y, err := FromLonLat(CRSModisSinusoidal, 77, 28.7)
	require.NoError(t, err)
	g, err := NewGrid(CRSModisSinusoidal, math.Floor(x/1000)*1000, math.Ceil(y/1000)*1000, 1000, 3, 3)
	require.NoError(t, err)
	return g
}

// centerCellStep builds a Web Mercator raster at scale over target whose pixels are 0
// when their center lies in target cell (1, 1) and 100 elsewhere. It also returns how
// many pixels are centered in that cell.
func centerCellStep(t *testing.T, target Grid, scale float64) (*Raster, int) {
	t.Helper()
	g, err := coveringGrid(target, CRSWebMercator, scale)
	require.NoError(t, err)

	data := make([]float64, g.Len())
	inside := 0
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			mx, my := g.PixelCenter(col, row)
			sx, sy, err := Transform(CRSWebMercator, CRSModisSinusoidal, mx, my)
			require.NoError(t, err)
			tc, tr := target.ToPixel(sx, sy)
			v := 100.0
			if int(math.Floor(tc)) == 1 && int(math.Floor(tr)) == 1 {
				v = 0
				inside++
			}
			data[g.Index(col, row)] = v
		}
	}
	return mustValues(t, g, data...), inside
}

func TestAlign_CrossCRSWeightsTrueOverlap(t *testing.T) {
	target := shearedTarget(t)
	src, inside := centerCellStep(t, target, 100)
	require.Greater(t, inside, 100)

	out, err := NewAligner(0).Align(src, target)
	require.NoError(t, err)

	v, ok := out.At(1, 1)
	require.True(t, ok)
	// Only slivers of the pixels straddling the cell edge carry the outside value.
	assert.InDelta(t, 0, v, 8)

	corner, ok := out.At(0, 0)
	require.True(t, ok)
	assert.Greater(t, corner, 80.0)
}

func TestAlign_CrossCRSUniformFieldIsPreserved(t *testing.T) {
	target := shearedTarget(t)
	g, err := coveringGrid(target, CRSWebMercator, 100)
	require.NoError(t, err)

	out, err := NewAligner(0).Align(Full(g, 7), target)
	require.NoError(t, err)
	v, ok := out.At(1, 1)
	require.True(t, ok)
	assert.InDelta(t, 7, v, 1e-9)
}

func TestAlign_CrossCRSCapCountsOverlappingPixels(t *testing.T) {
	target := shearedTarget(t)
	src, inside := centerCellStep(t, target, 40)
	require.Less(t, inside, DefaultMaxPixels)

	out, err := NewAligner(DefaultMaxPixels).Align(src, target)
	require.NoError(t, err)
	v, ok := out.At(1, 1)
	require.True(t, ok, "%d pixels centered in the cell fit under the cap", inside)
	assert.InDelta(t, 0, v, 8)

	out, err = Aligner{MaxPixels: inside - 1}.Align(src, target)
	require.NoError(t, err)
	assert.False(t, out.Valid[target.Index(1, 1)])
}

func TestAlignTo_CoversExtent(t *testing.T) {
	fine, err := NewGrid(CRSModisSinusoidal, 30, 990, 30, 10, 10)
	require.NoError(t, err)

	out, err := NewAligner(0).AlignTo(Full(fine, 2), CRSModisSinusoidal, 300)
	require.NoError(t, err)
	assert.Equal(t, 0.0, out.Grid.OriginX)
	assert.Equal(t, 1200.0, out.Grid.OriginY)
	assert.Equal(t, 2, out.Grid.Width)
	assert.Equal(t, 2, out.Grid.Height)
	lo, hi, ok := out.Range()
	require.True(t, ok)
	assert.InDelta(t, 2.0, lo, 1e-12)
	assert.InDelta(t, 2.0, hi, 1e-12)
}
