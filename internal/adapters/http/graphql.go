package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	endpointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RouteEndpoint",
		Fields: graphql.Fields{
			"location": &graphql.Field{Type: geoPointType},
			"address":  &graphql.Field{Type: graphql.String},
		},
	})

	mapType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Map",
		Fields: graphql.Fields{
			"code":          &graphql.Field{Type: graphql.String},
			"name":          &graphql.Field{Type: graphql.String},
			"start_city":    &graphql.Field{Type: graphql.String},
			"start_country": &graphql.Field{Type: graphql.String},
			"end_city":      &graphql.Field{Type: graphql.String},
			"end_country":   &graphql.Field{Type: graphql.String},
			"map_centre":    &graphql.Field{Type: geoPointType},
			"year":          &graphql.Field{Type: graphql.Int},
			"private":       &graphql.Field{Type: graphql.Boolean},
			"active":        &graphql.Field{Type: graphql.Boolean},
		},
	})

	athleteType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Athlete",
		Fields: graphql.Fields{
			"id":              &graphql.Field{Type: graphql.String},
			"username":        &graphql.Field{Type: graphql.String},
			"given_name":      &graphql.Field{Type: graphql.String},
			"family_name":     &graphql.Field{Type: graphql.String},
			"profile_picture": &graphql.Field{Type: graphql.String},
		},
	})

	localityType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Locality",
		Fields: graphql.Fields{
			"name":    &graphql.Field{Type: graphql.String},
			"country": &graphql.Field{Type: graphql.String},
		},
	})

	progressType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Progress",
		Fields: graphql.Fields{
			"athlete":      &graphql.Field{Type: athleteType},
			"distance":     &graphql.Field{Type: graphql.Float},
			"position":     &graphql.Field{Type: geoPointType},
			"index":        &graphql.Field{Type: graphql.Int},
			"percent":      &graphql.Field{Type: graphql.Float},
			"remaining_km": &graphql.Field{Type: graphql.Float},
			"finished":     &graphql.Field{Type: graphql.Boolean},
			"nearest":      &graphql.Field{Type: localityType},
		},
	})

	routeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Route",
		Fields: graphql.Fields{
			"map":             &graphql.Field{Type: graphql.String},
			"start":           &graphql.Field{Type: endpointType},
			"end":             &graphql.Field{Type: endpointType},
			"total_length_m":  &graphql.Field{Type: graphql.Float},
			"total_length_km": &graphql.Field{Type: graphql.Float},
			"vertices":        &graphql.Field{Type: graphql.Int},
			"polyline":        &graphql.Field{Type: graphql.String},
		},
	})

	codeArg := &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)}
	distanceArg := &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"maps": &graphql.Field{
				Type:        graphql.NewList(mapType),
				Description: "List public active maps",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Maps.ListPublic(p.Context)
				},
			},
			"map": &graphql.Field{
				Type:        mapType,
				Description: "Get a map by code",
				Args:        graphql.FieldConfigArgument{"code": codeArg},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Maps.Get(p.Context, p.Args["code"].(string))
				},
			},
			"athletes": &graphql.Field{
				Type:        graphql.NewList(athleteType),
				Description: "Athletes on a map, largest year total first",
				Args: graphql.FieldConfigArgument{
					"code": codeArg,
					"year": &graphql.ArgumentConfig{Type: graphql.Int},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					code := p.Args["code"].(string)
					m, err := deps.Maps.Get(p.Context, code)
					if err != nil {
						return nil, err
					}
					year := m.StatsYear(timeNow())
					if y, ok := p.Args["year"].(int); ok {
						year = y
					}
					return deps.Athletes.ListByMap(p.Context, code, year)
				},
			},
			"route": &graphql.Field{
				Type:        routeType,
				Description: "A map's route summary",
				Args:        graphql.FieldConfigArgument{"code": codeArg},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					v, err := deps.Routes.View(p.Context, p.Args["code"].(string))
					if err != nil {
						return nil, err
					}
					total := v.Path.TotalLength()
					return RouteSummary{
						Map:           v.Map.Code,
						Start:         v.Path.Start(),
						End:           v.Path.End(),
						TotalLengthM:  total,
						TotalLengthKm: km(total),
						Vertices:      v.Path.Len(),
					}, nil
				},
			},
			"progress": &graphql.Field{
				Type:        graphql.NewList(progressType),
				Description: "Every athlete on a map placed on its route",
				Args:        graphql.FieldConfigArgument{"code": codeArg},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					_, progress, err := deps.Routes.Progress(p.Context, p.Args["code"].(string))
					return progress, err
				},
			},
			"pointAtDistance": &graphql.Field{
				Type:        geoPointType,
				Description: "Position a distance in meters along a map's route",
				Args:        graphql.FieldConfigArgument{"code": codeArg, "distance": distanceArg},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					v, err := deps.Routes.View(p.Context, p.Args["code"].(string))
					if err != nil {
						return nil, err
					}
					return v.Path.Locate(p.Args["distance"].(float64))
				},
			},
			"indexAtDistance": &graphql.Field{
				Type:        graphql.Int,
				Description: "First route vertex at or beyond a distance in meters",
				Args:        graphql.FieldConfigArgument{"code": codeArg, "distance": distanceArg},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					v, err := deps.Routes.View(p.Context, p.Args["code"].(string))
					if err != nil {
						return nil, err
					}
					return v.Path.LocateIndex(p.Args["distance"].(float64))
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
