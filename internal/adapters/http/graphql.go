package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/safemap/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to the map and health services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lng": &graphql.Field{Type: graphql.Float},
		},
	})

	styleType := graphql.NewObject(graphql.ObjectConfig{
		Name: "MarkerStyle",
		Fields: graphql.Fields{
			"icon":       &graphql.Field{Type: graphql.String},
			"color":      &graphql.Field{Type: graphql.String},
			"background": &graphql.Field{Type: graphql.String},
		},
	})

	entityType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoEntity",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"location":    &graphql.Field{Type: geoPointType},
			"kind":        &graphql.Field{Type: graphql.String},
			"title":       &graphql.Field{Type: graphql.String},
			"description": &graphql.Field{Type: graphql.String},
			"status":      &graphql.Field{Type: graphql.String},
		},
	})

	markerType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Marker",
		Fields: graphql.Fields{
			"entity": &graphql.Field{Type: entityType},
			"point": &graphql.Field{Type: graphql.NewObject(graphql.ObjectConfig{
				Name: "ProjectedPoint",
				Fields: graphql.Fields{
					"x": &graphql.Field{Type: graphql.Float},
					"y": &graphql.Field{Type: graphql.Float},
				},
			})},
			"style":    &graphql.Field{Type: styleType},
			"pulse":    &graphql.Field{Type: graphql.Boolean},
			"selected": &graphql.Field{Type: graphql.Boolean},
		},
	})

	detailType := graphql.NewObject(graphql.ObjectConfig{
		Name: "EntityDetail",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"title":       &graphql.Field{Type: graphql.String},
			"description": &graphql.Field{Type: graphql.String},
			"coordinates": &graphql.Field{Type: graphql.String},
			"badge": &graphql.Field{Type: graphql.NewObject(graphql.ObjectConfig{
				Name: "StatusBadge",
				Fields: graphql.Fields{
					"text":    &graphql.Field{Type: graphql.String},
					"variant": &graphql.Field{Type: graphql.String},
				},
			})},
		},
	})

	mapViewType := graphql.NewObject(graphql.ObjectConfig{
		Name: "MapView",
		Fields: graphql.Fields{
			"session_id": &graphql.Field{Type: graphql.String},
			"viewport": &graphql.Field{Type: graphql.NewObject(graphql.ObjectConfig{
				Name: "Viewport",
				Fields: graphql.Fields{
					"center":             &graphql.Field{Type: geoPointType},
					"zoom":               &graphql.Field{Type: graphql.Int},
					"selected_entity_id": &graphql.Field{Type: graphql.String},
					"layer":              &graphql.Field{Type: graphql.String},
				},
			})},
			"show_controls": &graphql.Field{Type: graphql.Boolean},
			"markers":       &graphql.Field{Type: graphql.NewList(markerType)},
			"culled":        &graphql.Field{Type: graphql.Int},
			"selected":      &graphql.Field{Type: detailType},
			"legend": &graphql.Field{Type: graphql.NewList(graphql.NewObject(graphql.ObjectConfig{
				Name: "LegendEntry",
				Fields: graphql.Fields{
					"label": &graphql.Field{Type: graphql.String},
					"style": &graphql.Field{Type: styleType},
				},
			}))},
		},
	})

	snapshotType := graphql.NewObject(graphql.ObjectConfig{
		Name: "MetricsSnapshot",
		Fields: graphql.Fields{
			"api": &graphql.Field{Type: graphql.NewObject(graphql.ObjectConfig{
				Name: "APIMetrics",
				Fields: graphql.Fields{
					"status":           &graphql.Field{Type: graphql.String},
					"response_time_ms": &graphql.Field{Type: graphql.Int},
					"uptime":           &graphql.Field{Type: graphql.String},
					"requests":         &graphql.Field{Type: graphql.Float},
					"errors":           &graphql.Field{Type: graphql.Float},
				},
			})},
			"database": &graphql.Field{Type: graphql.NewObject(graphql.ObjectConfig{
				Name: "DatabaseMetrics",
				Fields: graphql.Fields{
					"status":          &graphql.Field{Type: graphql.String},
					"connections":     &graphql.Field{Type: graphql.Int},
					"max_connections": &graphql.Field{Type: graphql.Int},
					"query_time_ms":   &graphql.Field{Type: graphql.Float},
					"storage_pct":     &graphql.Field{Type: graphql.Int},
				},
			})},
			"websocket": &graphql.Field{Type: graphql.NewObject(graphql.ObjectConfig{
				Name: "WebSocketMetrics",
				Fields: graphql.Fields{
					"status":            &graphql.Field{Type: graphql.String},
					"connections":       &graphql.Field{Type: graphql.Int},
					"max_connections":   &graphql.Field{Type: graphql.Int},
					"messages_sent":     &graphql.Field{Type: graphql.Float},
					"messages_received": &graphql.Field{Type: graphql.Float},
				},
			})},
			"server": &graphql.Field{Type: graphql.NewObject(graphql.ObjectConfig{
				Name: "ServerMetrics",
				Fields: graphql.Fields{
					"cpu":     &graphql.Field{Type: graphql.Int},
					"memory":  &graphql.Field{Type: graphql.Int},
					"disk":    &graphql.Field{Type: graphql.Int},
					"network": &graphql.Field{Type: graphql.Int},
				},
			})},
			"updated_at": &graphql.Field{Type: graphql.DateTime},
		},
	})

	eventType := graphql.NewObject(graphql.ObjectConfig{
		Name: "SystemEvent",
		Fields: graphql.Fields{
			"id":      &graphql.Field{Type: graphql.String},
			"time":    &graphql.Field{Type: graphql.DateTime},
			"message": &graphql.Field{Type: graphql.String},
			"type":    &graphql.Field{Type: graphql.String},
		},
	})

	healthType := graphql.NewObject(graphql.ObjectConfig{
		Name: "HealthView",
		Fields: graphql.Fields{
			"snapshot":     &graphql.Field{Type: snapshotType},
			"overall":      &graphql.Field{Type: graphql.String},
			"last_updated": &graphql.Field{Type: graphql.DateTime},
			"refreshing":   &graphql.Field{Type: graphql.Boolean},
			"events":       &graphql.Field{Type: graphql.NewList(eventType)},
		},
	})

	sessionArg := graphql.FieldConfigArgument{
		"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
	}

	// gesture builds a mutation that applies a body-less gesture to a session.
	gesture := func(desc string, apply func(id string) (*domain.MapView, error)) *graphql.Field {
		return &graphql.Field{
			Type:        mapViewType,
			Description: desc,
			Args:        sessionArg,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return apply(p.Args["id"].(string))
			},
		}
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"map": &graphql.Field{
				Type:        mapViewType,
				Description: "Current frame of a map session",
				Args:        sessionArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Maps.View(p.Args["id"].(string))
				},
			},
			"systemHealth": &graphql.Field{
				Type:        healthType,
				Description: "Latest health snapshot and recent events",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Health.View(p.Context)
				},
			},
			"systemEvents": &graphql.Field{
				Type:        graphql.NewList(eventType),
				Description: "Recent system events, newest first",
				Args: graphql.FieldConfigArgument{
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 10},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Health.RecentEvents(p.Context, p.Args["limit"].(int))
				},
			},
			"entities": &graphql.Field{
				Type:        graphql.NewList(entityType),
				Description: "Stored entities, optionally limited to the window around a center or to radius_m meters of it",
				Args: graphql.FieldConfigArgument{
					"center_lat": &graphql.ArgumentConfig{Type: graphql.Float},
					"center_lng": &graphql.ArgumentConfig{Type: graphql.Float},
					"radius_m":   &graphql.ArgumentConfig{Type: graphql.Float},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.Entities == nil {
						return nil, errors.New("entity store not configured")
					}
					lat, hasLat := p.Args["center_lat"].(float64)
					lng, hasLng := p.Args["center_lng"].(float64)
					if hasLat && hasLng {
						center := domain.GeoPoint{Lat: lat, Lng: lng}
						if r, ok := p.Args["radius_m"].(float64); ok && r > 0 {
							return deps.Entities.Nearby(p.Context, center, r)
						}
						return deps.Entities.InWindow(p.Context, center)
					}
					return deps.Entities.List(p.Context)
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"openMap": &graphql.Field{
				Type:        mapViewType,
				Description: "Open a map session; omitted arguments use server defaults",
				Args: graphql.FieldConfigArgument{
					"center_lat":    &graphql.ArgumentConfig{Type: graphql.Float},
					"center_lng":    &graphql.ArgumentConfig{Type: graphql.Float},
					"zoom":          &graphql.ArgumentConfig{Type: graphql.Int},
					"show_controls": &graphql.ArgumentConfig{Type: graphql.Boolean},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					var cfg domain.MapConfig
					lat, hasLat := p.Args["center_lat"].(float64)
					lng, hasLng := p.Args["center_lng"].(float64)
					if hasLat != hasLng {
						return nil, errors.New("center_lat and center_lng must be given together")
					}
					if hasLat {
						cfg.Center = &domain.GeoPoint{Lat: lat, Lng: lng}
					}
					if z, ok := p.Args["zoom"].(int); ok {
						cfg.Zoom = &z
					}
					if s, ok := p.Args["show_controls"].(bool); ok {
						cfg.ShowControls = &s
					}
					return deps.Maps.Open(p.Context, cfg)
				},
			},
			"closeMap": &graphql.Field{
				Type: graphql.Boolean,
				Args: sessionArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if err := deps.Maps.Close(p.Args["id"].(string)); err != nil {
						return false, err
					}
					return true, nil
				},
			},
			"zoomIn":    gesture("Zoom in one level", deps.Maps.ZoomIn),
			"zoomOut":   gesture("Zoom out one level", deps.Maps.ZoomOut),
			"resetView": gesture("Restore the configured center and zoom", deps.Maps.ResetView),
			"deselect":  gesture("Close the detail popup", deps.Maps.Deselect),
			"pan": &graphql.Field{
				Type: mapViewType,
				Args: graphql.FieldConfigArgument{
					"id":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"d_lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"d_lng": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Maps.Pan(p.Args["id"].(string), p.Args["d_lat"].(float64), p.Args["d_lng"].(float64))
				},
			},
			"setLayer": &graphql.Field{
				Type: mapViewType,
				Args: graphql.FieldConfigArgument{
					"id":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"layer": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Maps.SetLayer(p.Args["id"].(string), domain.Layer(p.Args["layer"].(string)))
				},
			},
			"selectEntity": &graphql.Field{
				Type: mapViewType,
				Args: graphql.FieldConfigArgument{
					"id":        &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"entity_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Maps.Select(p.Args["id"].(string), p.Args["entity_id"].(string))
				},
			},
			"refreshHealth": &graphql.Field{
				Type:        graphql.Boolean,
				Description: "Start a manual health refresh",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if err := deps.Health.TriggerRefresh(p.Context); err != nil {
						return false, err
					}
					return true, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
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
