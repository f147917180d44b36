package http

import (
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/mapme/internal/core/domain"
	"github.com/samirrijal/mapme/internal/pkg/geospatial"
)

var timeNow = time.Now

// RouteSummary describes a map's loaded route.
type RouteSummary struct {
	Map           string               `json:"map"`
	Start         domain.RouteEndpoint `json:"start"`
	End           domain.RouteEndpoint `json:"end"`
	TotalLengthM  float64              `json:"total_length_m"`
	TotalLengthKm float64              `json:"total_length_km"`
	Vertices      int                  `json:"vertices"`
	Bounds        domain.Bounds        `json:"bounds"`
	Polyline      string               `json:"polyline"`
	LoadedAt      time.Time            `json:"loaded_at"`
}

// PointResponse is the position at a distance along a route.
type PointResponse struct {
	Distance float64         `json:"distance"`
	Point    domain.GeoPoint `json:"point"`
}

// IndexResponse is the first vertex at or beyond a distance along a route.
type IndexResponse struct {
	Distance float64         `json:"distance"`
	Index    int             `json:"index"`
	Vertex   domain.GeoPoint `json:"vertex"`
	// VertexDistance is the route distance of the vertex from the start.
	VertexDistance float64 `json:"vertex_distance"`
}

// ProgressResponse is a map leaderboard placed on its route.
type ProgressResponse struct {
	Map           *domain.Map       `json:"map"`
	Year          int               `json:"year"`
	TotalLengthKm float64           `json:"total_length_km"`
	Athletes      []domain.Progress `json:"athletes"`
}

func km(m float64) float64 {
	return math.Round(m/10) / 100
}

// queryDistance parses the distance query parameter in meters.
func queryDistance(c *fiber.Ctx) (float64, bool) {
	raw := c.Query("distance")
	if raw == "" {
		return 0, false
	}
	d, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return d, true
}

// RouteSummaryHandler returns a map's route endpoints, length and geometry.
func RouteSummaryHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		v, err := deps.Routes.View(c.UserContext(), c.Params("code"))
		if err != nil {
			return errRoute(c, err)
		}

		total := v.Path.TotalLength()
		c.Set("Cache-Control", "public, max-age=3600")
		return c.JSON(RouteSummary{
			Map:           v.Map.Code,
			Start:         v.Path.Start(),
			End:           v.Path.End(),
			TotalLengthM:  total,
			TotalLengthKm: km(total),
			Vertices:      v.Path.Len(),
			Bounds:        v.Path.Bounds(),
			Polyline:      geospatial.EncodePolyline(v.Path.Points()),
			LoadedAt:      v.LoadedAt,
		})
	}
}

// RoutePointHandler returns the position at ?distance= meters along a route.
func RoutePointHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		d, ok := queryDistance(c)
		if !ok {
			return errBadRequest(c, "distance query parameter must be a number of meters")
		}
		v, err := deps.Routes.View(c.UserContext(), c.Params("code"))
		if err != nil {
			return errRoute(c, err)
		}

		p, err := v.Path.Locate(d)
		if err != nil {
			return errDistance(c, err)
		}
		return c.JSON(PointResponse{Distance: d, Point: p})
	}
}

// RouteIndexHandler returns the first vertex at or beyond ?distance= meters.
func RouteIndexHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		d, ok := queryDistance(c)
		if !ok {
			return errBadRequest(c, "distance query parameter must be a number of meters")
		}
		v, err := deps.Routes.View(c.UserContext(), c.Params("code"))
		if err != nil {
			return errRoute(c, err)
		}

		i, err := v.Path.LocateIndex(d)
		if err != nil {
			return errDistance(c, err)
		}
		return c.JSON(IndexResponse{
			Distance:       d,
			Index:          i,
			Vertex:         v.Path.Point(i),
			VertexDistance: v.Path.DistanceAt(i),
		})
	}
}

// ReloadRouteHandler rebuilds a map's route from the directions provider.
func ReloadRouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := sessionAthleteID(c, deps); !ok {
			return errUnauthorized(c, "sign in with Strava first")
		}
		v, err := deps.Routes.Reload(c.UserContext(), c.Params("code"))
		if err != nil {
			return errRoute(c, err)
		}
		LoggerFromCtx(c.UserContext()).Info("route reloaded", "map", v.Map.Code, "vertices", v.Path.Len())
		return c.JSON(fiber.Map{
			"map":            v.Map.Code,
			"vertices":       v.Path.Len(),
			"total_length_m": v.Path.TotalLength(),
			"loaded_at":      v.LoadedAt,
		})
	}
}

// ProgressHandler places every athlete on a map's route.
func ProgressHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		v, progress, err := deps.Routes.Progress(c.UserContext(), c.Params("code"))
		if err != nil {
			return errRoute(c, err)
		}
		if progress == nil {
			progress = []domain.Progress{}
		}
		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(ProgressResponse{
			Map:           v.Map,
			Year:          v.Map.StatsYear(timeNow()),
			TotalLengthKm: km(v.Path.TotalLength()),
			Athletes:      progress,
		})
	}
}

// RouteGeoJSONHandler exports the route and athlete progress as GeoJSON.
func RouteGeoJSONHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		v, progress, err := deps.Routes.Progress(c.UserContext(), c.Params("code"))
		if err != nil {
			return errRoute(c, err)
		}

		tracks := make([]geospatial.Track, 0, len(progress))
		for _, p := range progress {
			tracks = append(tracks, geospatial.Track{
				Name:     p.Athlete.Username,
				Points:   v.ProgressLine(p.Distance),
				Position: p.Position,
				Props: map[string]interface{}{
					"athlete_id": p.Athlete.ID,
					"distance":   p.Distance,
					"percent":    p.Percent,
					"finished":   p.Finished,
				},
			})
		}

		data, err := geospatial.ToGeoJSON(v.Map.Name, v.Path, tracks)
		if err != nil {
			return errInternal(c, err.Error())
		}
		c.Set("Content-Type", "application/geo+json")
		return c.Send(data)
	}
}

// RouteGPXHandler exports the route as a GPX track.
func RouteGPXHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		v, err := deps.Routes.View(c.UserContext(), c.Params("code"))
		if err != nil {
			return errRoute(c, err)
		}

		data, err := geospatial.ToGPX(v.Map.Name, v.Path)
		if err != nil {
			return errInternal(c, err.Error())
		}
		c.Set("Content-Type", "application/gpx+xml")
		c.Set("Content-Disposition", `attachment; filename="`+v.Map.Code+`.gpx"`)
		c.Set("Cache-Control", "public, max-age=3600")
		return c.Send(data)
	}
}
