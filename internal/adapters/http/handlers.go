package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/mapme/internal/core/domain"
	"github.com/samirrijal/mapme/internal/core/usecases"
)

// ListMapsHandler returns the public active maps.
func ListMapsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		maps, err := deps.Maps.ListPublic(c.UserContext())
		if err != nil {
			return errInternal(c, err.Error())
		}
		if maps == nil {
			maps = []domain.Map{}
		}

		// Apply offset/limit pagination on the full list
		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 100)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 200 {
			limit = 100
		}

		total := len(maps)
		if offset >= total {
			maps = []domain.Map{}
		} else {
			end := offset + limit
			if end > total {
				end = total
			}
			maps = maps[offset:end]
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: maps, Pagination: pg})
	}
}

// LegacyListMapsHandler serves /get-maps: the full public list as a bare
// array, the shape old frontends iterate over.
func LegacyListMapsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		maps, err := deps.Maps.ListPublic(c.UserContext())
		if err != nil {
			return errInternal(c, err.Error())
		}
		if maps == nil {
			maps = []domain.Map{}
		}
		return c.JSON(maps)
	}
}

// GetMapHandler returns a single map by code.
func GetMapHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		code := c.Params("code")
		if code == "" {
			return errBadRequest(c, "map code is required")
		}
		m, err := deps.Maps.Get(c.UserContext(), code)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return errNotFound(c, "map not found")
			}
			return errInternal(c, err.Error())
		}
		return c.JSON(m)
	}
}

// MapAthletesHandler returns the athletes on a map, largest year total first.
func MapAthletesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		code := c.Params("code")
		m, err := deps.Maps.Get(c.UserContext(), code)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return errNotFound(c, "map not found")
			}
			return errInternal(c, err.Error())
		}

		year := c.QueryInt("year", m.StatsYear(timeNow()))
		athletes, err := deps.Athletes.ListByMap(c.UserContext(), code, year)
		if err != nil {
			return errInternal(c, err.Error())
		}
		if athletes == nil {
			athletes = []domain.Athlete{}
		}

		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(athletes)
	}
}

type joinMapRequest struct {
	Passcode string `json:"passcode"`
}

// JoinMapHandler adds the signed-in athlete to a map.
func JoinMapHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		athleteID, ok := sessionAthleteID(c, deps)
		if !ok {
			return errUnauthorized(c, "sign in with Strava first")
		}

		var req joinMapRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return errBadRequest(c, "invalid request body")
			}
		}

		code := c.Params("code")
		err := deps.Maps.AddAthlete(c.UserContext(), code, athleteID, req.Passcode)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrNotFound):
			return errNotFound(c, "map or athlete not found")
		case errors.Is(err, usecases.ErrWrongPasscode):
			return errForbidden(c, "wrong passcode")
		case errors.Is(err, usecases.ErrMapClosed):
			return errConflict(c, "map is no longer active")
		default:
			return errInternal(c, err.Error())
		}

		LoggerFromCtx(c.UserContext()).Info("athlete joined map", "athlete_id", athleteID, "map", code)
		return c.Status(fiber.StatusNoContent).Send(nil)
	}
}
