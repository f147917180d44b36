package geospatial

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/tkrajina/gpxgo/gpx"

	"github.com/samirrijal/mapme/internal/core/domain"
)

// Track is a named sub-path drawn on top of the route, e.g. one athlete's
// progress so far.
type Track struct {
	Name     string
	Points   []domain.GeoPoint
	Position domain.GeoPoint
	Props    map[string]interface{}
}

func lineString(points []domain.GeoPoint) orb.LineString {
	ls := make(orb.LineString, len(points))
	for i, p := range points {
		ls[i] = orb.Point{p.Lon, p.Lat}
	}
	return ls
}

// ToGeoJSON renders the route, its endpoints and any tracks as a
// FeatureCollection.
func ToGeoJSON(name string, path *RoutePath, tracks []Track) ([]byte, error) {
	fc := geojson.NewFeatureCollection()

	route := geojson.NewFeature(lineString(path.points))
	route.Properties["kind"] = "route"
	route.Properties["name"] = name
	route.Properties["length_m"] = path.TotalLength()
	fc.Append(route)

	if path.Len() > 0 {
		start := geojson.NewFeature(orb.Point{path.start.Location.Lon, path.start.Location.Lat})
		start.Properties["kind"] = "start"
		start.Properties["address"] = path.start.Address
		fc.Append(start)

		end := geojson.NewFeature(orb.Point{path.end.Location.Lon, path.end.Location.Lat})
		end.Properties["kind"] = "end"
		end.Properties["address"] = path.end.Address
		fc.Append(end)
	}

	for _, t := range tracks {
		if len(t.Points) > 1 {
			line := geojson.NewFeature(lineString(t.Points))
			line.Properties["kind"] = "progress"
			line.Properties["name"] = t.Name
			fc.Append(line)
		}

		marker := geojson.NewFeature(orb.Point{t.Position.Lon, t.Position.Lat})
		marker.Properties["kind"] = "athlete"
		marker.Properties["name"] = t.Name
		for k, v := range t.Props {
			marker.Properties[k] = v
		}
		fc.Append(marker)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal geojson: %w", err)
	}
	return data, nil
}

// ToGPX renders the route as a single-track GPX 1.1 document.
func ToGPX(name string, path *RoutePath) ([]byte, error) {
	seg := gpx.GPXTrackSegment{Points: make([]gpx.GPXPoint, 0, path.Len())}
	for _, p := range path.points {
		seg.Points = append(seg.Points, gpx.GPXPoint{
			Point: gpx.Point{Latitude: p.Lat, Longitude: p.Lon},
		})
	}

	doc := &gpx.GPX{
		Name:    name,
		Creator: "mapme",
		Tracks: []gpx.GPXTrack{{
			Name:     name,
			Segments: []gpx.GPXTrackSegment{seg},
		}},
	}

	data, err := doc.ToXml(gpx.ToXmlParams{Version: "1.1", Indent: true})
	if err != nil {
		return nil, fmt.Errorf("marshal gpx: %w", err)
	}
	return data, nil
}
