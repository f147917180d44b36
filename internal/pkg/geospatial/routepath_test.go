package geospatial_test

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/mapme/internal/core/domain"
	"github.com/samirrijal/mapme/internal/pkg/geospatial"
)

func equatorPath() *geospatial.RoutePath {
	return geospatial.NewRoutePath([]domain.GeoPoint{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 0.01},
		{Lat: 0, Lon: 0.02},
	})
}

func TestDistance_EquatorSegment(t *testing.T) {
	d := geospatial.Distance(domain.GeoPoint{Lat: 0, Lon: 0}, domain.GeoPoint{Lat: 0, Lon: 0.01})
	want := 0.01 * math.Pi / 180 * geospatial.EarthRadiusMeters
	assert.InDelta(t, want, d, 1e-6)
	assert.InDelta(t, 1113.19, d, 0.01)
}

func TestDistance_SymmetricAndZero(t *testing.T) {
	a := domain.GeoPoint{Lat: 51.5074, Lon: -0.1278}
	b := domain.GeoPoint{Lat: 48.8566, Lon: 2.3522}

	assert.Equal(t, 0.0, geospatial.Distance(a, a))
	assert.InDelta(t, geospatial.Distance(a, b), geospatial.Distance(b, a), 1e-9)

	// London to Paris is roughly 344 km.
	assert.InDelta(t, 344000, geospatial.Distance(a, b), 1500)
}

func TestRoutePath_TotalLength(t *testing.T) {
	p := equatorPath()
	seg := geospatial.Distance(domain.GeoPoint{Lat: 0, Lon: 0}, domain.GeoPoint{Lat: 0, Lon: 0.01})

	assert.Equal(t, 3, p.Len())
	assert.InDelta(t, 2*seg, p.TotalLength(), 1e-6)
	assert.Equal(t, 0.0, p.DistanceAt(0))
	assert.InDelta(t, seg, p.DistanceAt(1), 1e-9)
}

func TestRoutePath_PointMatchesIndex(t *testing.T) {
	p := equatorPath()

	idx, ok := p.IndexAtDistance(1500)
	require.True(t, ok)
	assert.Equal(t, domain.GeoPoint{Lat: 0, Lon: 0.02}, p.Point(idx))
	assert.Equal(t, p.Points()[1], p.Point(1))
	assert.Panics(t, func() { p.Point(p.Len()) })
	assert.Panics(t, func() { p.DistanceAt(-1) })
}

func TestPointAtDistance_Zero(t *testing.T) {
	pt, ok := equatorPath().PointAtDistance(0)
	require.True(t, ok)
	assert.Equal(t, domain.GeoPoint{Lat: 0, Lon: 0}, pt)
}

func TestPointAtDistance_TotalLength(t *testing.T) {
	p := equatorPath()
	pt, ok := p.PointAtDistance(p.TotalLength())
	require.True(t, ok)
	assert.InDelta(t, 0.0, pt.Lat, 1e-12)
	assert.InDelta(t, 0.02, pt.Lon, 1e-12)
}

func TestPointAtDistance_BeyondEnd(t *testing.T) {
	p := equatorPath()
	_, ok := p.PointAtDistance(p.TotalLength() + 1)
	assert.False(t, ok)

	_, err := p.Locate(p.TotalLength() + 1)
	assert.ErrorIs(t, err, geospatial.ErrOutOfRange)
}

func TestPointAtDistance_HalfFirstSegment(t *testing.T) {
	p := equatorPath()
	pt, ok := p.PointAtDistance(p.DistanceAt(1) / 2)
	require.True(t, ok)
	assert.Equal(t, 0.0, pt.Lat)
	assert.InDelta(t, 0.005, pt.Lon, 1e-9)
}

func TestPointAtDistance_SecondSegment(t *testing.T) {
	p := equatorPath()
	pt, ok := p.PointAtDistance(p.DistanceAt(1) * 1.25)
	require.True(t, ok)
	assert.InDelta(t, 0.0125, pt.Lon, 1e-9)
}

func TestPointAtDistance_Negative(t *testing.T) {
	p := equatorPath()
	_, ok := p.PointAtDistance(-1)
	assert.False(t, ok)

	_, err := p.Locate(-0.0001)
	assert.ErrorIs(t, err, geospatial.ErrInvalidDistance)

	_, err = p.Locate(math.NaN())
	assert.ErrorIs(t, err, geospatial.ErrInvalidDistance)
}

func TestPointAtDistance_SingleVertex(t *testing.T) {
	v := domain.GeoPoint{Lat: 43.26, Lon: -2.93}
	p := geospatial.NewRoutePath([]domain.GeoPoint{v})

	_, ok := p.PointAtDistance(5)
	assert.False(t, ok)
	_, err := p.Locate(5)
	assert.ErrorIs(t, err, geospatial.ErrDegeneratePath)

	pt, ok := p.PointAtDistance(0)
	require.True(t, ok)
	assert.Equal(t, v, pt)
}

func TestPointAtDistance_EmptyPath(t *testing.T) {
	p := geospatial.NewRoutePath(nil)
	_, ok := p.PointAtDistance(0)
	assert.False(t, ok)
	assert.Equal(t, 0.0, p.TotalLength())
}

func TestPointAtDistance_ZeroLengthSegment(t *testing.T) {
	p := geospatial.NewRoutePath([]domain.GeoPoint{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 0.01},
		{Lat: 0, Lon: 0.01},
		{Lat: 0, Lon: 0.02},
	})

	boundary := p.DistanceAt(1)
	assert.Equal(t, boundary, p.DistanceAt(2))

	for _, d := range []float64{boundary, math.Nextafter(boundary, 0), math.Nextafter(boundary, math.Inf(1))} {
		pt, ok := p.PointAtDistance(d)
		require.True(t, ok, "distance %v", d)
		assert.False(t, math.IsNaN(pt.Lat), "lat NaN at %v", d)
		assert.False(t, math.IsNaN(pt.Lon), "lon NaN at %v", d)
		assert.InDelta(t, 0.01, pt.Lon, 1e-9)
	}
}

func TestPointAtDistance_LeadingDuplicate(t *testing.T) {
	p := geospatial.NewRoutePath([]domain.GeoPoint{
		{Lat: 1, Lon: 1},
		{Lat: 1, Lon: 1},
	})
	assert.Equal(t, 0.0, p.TotalLength())

	pt, ok := p.PointAtDistance(0)
	require.True(t, ok)
	assert.Equal(t, domain.GeoPoint{Lat: 1, Lon: 1}, pt)

	_, ok = p.PointAtDistance(0.5)
	assert.False(t, ok)
}

func TestPointAtDistance_ConvexCombination(t *testing.T) {
	p := geospatial.NewRoutePath([]domain.GeoPoint{
		{Lat: 43.2630, Lon: -2.9350},
		{Lat: 43.2641, Lon: -2.9320},
		{Lat: 43.2610, Lon: -2.9290},
		{Lat: 43.2590, Lon: -2.9301},
		{Lat: 43.2600, Lon: -2.9250},
	})
	pts := p.Points()

	total := p.TotalLength()
	for i := 0; i <= 100; i++ {
		d := total * float64(i) / 100
		if i == 100 {
			d = total
		}
		pt, ok := p.PointAtDistance(d)
		require.True(t, ok, "distance %v", d)

		idx, ok := p.IndexAtDistance(d)
		require.True(t, ok)
		if idx == 0 {
			assert.Equal(t, pts[0], pt)
			continue
		}
		from, to := pts[idx-1], pts[idx]
		assert.GreaterOrEqual(t, pt.Lat, math.Min(from.Lat, to.Lat)-1e-12)
		assert.LessOrEqual(t, pt.Lat, math.Max(from.Lat, to.Lat)+1e-12)
		assert.GreaterOrEqual(t, pt.Lon, math.Min(from.Lon, to.Lon)-1e-12)
		assert.LessOrEqual(t, pt.Lon, math.Max(from.Lon, to.Lon)+1e-12)
	}
}

func TestIndexAtDistance(t *testing.T) {
	p := equatorPath()
	seg := p.DistanceAt(1)

	tests := []struct {
		name   string
		meters float64
		want   int
		ok     bool
	}{
		{"zero", 0, 0, true},
		{"inside first segment", seg / 2, 1, true},
		{"exactly first vertex", seg, 1, true},
		{"inside second segment", seg * 1.5, 2, true},
		{"total length", p.TotalLength(), 2, true},
		{"beyond end", p.TotalLength() + 1, 0, false},
		{"negative", -5, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := p.IndexAtDistance(tt.meters)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestIndexAtDistance_ShortPaths(t *testing.T) {
	empty := geospatial.NewRoutePath(nil)
	_, err := empty.LocateIndex(0)
	assert.ErrorIs(t, err, geospatial.ErrDegeneratePath)

	single := geospatial.NewRoutePath([]domain.GeoPoint{{Lat: 10, Lon: 10}})
	idx, ok := single.IndexAtDistance(0)
	require.True(t, ok)
	assert.Equal(t, 0, idx)

	_, err = single.LocateIndex(5)
	assert.ErrorIs(t, err, geospatial.ErrOutOfRange)
}

func TestIndexAtDistance_Monotonic(t *testing.T) {
	p := geospatial.NewRoutePath([]domain.GeoPoint{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 0.003},
		{Lat: 0, Lon: 0.003},
		{Lat: 0.002, Lon: 0.004},
		{Lat: 0.004, Lon: 0.010},
	})

	prev := 0
	total := p.TotalLength()
	for i := 0; i <= 500; i++ {
		d := total * float64(i) / 500
		if i == 500 {
			d = total
		}
		idx, ok := p.IndexAtDistance(d)
		require.True(t, ok)
		assert.GreaterOrEqual(t, idx, prev)
		prev = idx
	}
	assert.Equal(t, p.Len()-1, prev)
}

func TestRoutePath_Idempotent(t *testing.T) {
	p := equatorPath()
	d := p.TotalLength() * 0.37

	first, _ := p.PointAtDistance(d)
	firstIdx, _ := p.IndexAtDistance(d)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pt, _ := p.PointAtDistance(d)
			idx, _ := p.IndexAtDistance(d)
			assert.Equal(t, first, pt)
			assert.Equal(t, firstIdx, idx)
		}()
	}
	wg.Wait()
}

func TestBuild_FlattensLegsAndSteps(t *testing.T) {
	legs := []domain.Leg{
		{
			StartLocation: domain.GeoPoint{Lat: 1, Lon: 1},
			StartAddress:  "Manchester, UK",
			EndLocation:   domain.GeoPoint{Lat: 2, Lon: 2},
			EndAddress:    "Leeds, UK",
			Steps: []domain.Step{
				{Points: []domain.GeoPoint{{Lat: 1, Lon: 1}, {Lat: 1.5, Lon: 1.5}}},
				{Points: []domain.GeoPoint{{Lat: 1.5, Lon: 1.5}, {Lat: 2, Lon: 2}}},
			},
		},
		{
			StartLocation: domain.GeoPoint{Lat: 2, Lon: 2},
			StartAddress:  "Leeds, UK",
			EndLocation:   domain.GeoPoint{Lat: 3, Lon: 3},
			EndAddress:    "York, UK",
			Steps: []domain.Step{
				{Points: []domain.GeoPoint{{Lat: 2, Lon: 2}, {Lat: 3, Lon: 3}}},
			},
		},
	}

	p := geospatial.Build(legs)

	// Step boundaries repeat their shared vertex; nothing is deduplicated.
	assert.Equal(t, []domain.GeoPoint{
		{Lat: 1, Lon: 1}, {Lat: 1.5, Lon: 1.5},
		{Lat: 1.5, Lon: 1.5}, {Lat: 2, Lon: 2},
		{Lat: 2, Lon: 2}, {Lat: 3, Lon: 3},
	}, p.Points())

	assert.Equal(t, domain.RouteEndpoint{Location: domain.GeoPoint{Lat: 1, Lon: 1}, Address: "Manchester, UK"}, p.Start())
	assert.Equal(t, domain.RouteEndpoint{Location: domain.GeoPoint{Lat: 3, Lon: 3}, Address: "York, UK"}, p.End())
	assert.Equal(t, domain.Bounds{MinLat: 1, MinLon: 1, MaxLat: 3, MaxLon: 3}, p.Bounds())
}

func TestBuildFromDirections_NoRoutes(t *testing.T) {
	_, err := geospatial.BuildFromDirections(&domain.Directions{})
	assert.ErrorIs(t, err, geospatial.ErrDegeneratePath)
}

func TestRoutePath_SliceClamps(t *testing.T) {
	p := equatorPath()
	assert.Len(t, p.Slice(2), 2)
	assert.Len(t, p.Slice(10), 3)
	assert.Empty(t, p.Slice(-1))
}
