package http

import (
	"encoding/json"
	"math"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/safemap/internal/core/domain"
)

type panRequest struct {
	DLat float64 `json:"d_lat"`
	DLng float64 `json:"d_lng"`
}

type layerRequest struct {
	Layer string `json:"layer"`
}

type selectionRequest struct {
	EntityID string `json:"entity_id"`
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// OpenMapHandler opens a map session. The body is an optional map
// configuration; missing fields use the server defaults.
func OpenMapHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var cfg domain.MapConfig
		if len(c.Body()) > 0 {
			if err := json.Unmarshal(c.Body(), &cfg); err != nil {
				return errBadRequest(c, "invalid map configuration")
			}
		}
		if cfg.Center != nil {
			if !finite(cfg.Center.Lat, cfg.Center.Lng) || math.Abs(cfg.Center.Lat) > 90 || math.Abs(cfg.Center.Lng) > 180 {
				return errBadRequest(c, "center must be a valid lat/lng")
			}
		}

		view, err := deps.Maps.Open(c.UserContext(), cfg)
		if err != nil {
			return errFromService(c, err)
		}
		c.Location("/v1/maps/" + view.SessionID)
		return c.Status(fiber.StatusCreated).JSON(view)
	}
}

// GetMapHandler renders the current frame of a session.
func GetMapHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		view, err := deps.Maps.View(c.Params("id"))
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(view)
	}
}

// CloseMapHandler tears a session down.
func CloseMapHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Maps.Close(c.Params("id")); err != nil {
			return errFromService(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// gestureHandler adapts a body-less gesture to a handler.
func gestureHandler(apply func(id string) (*domain.MapView, error)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		view, err := apply(c.Params("id"))
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(view)
	}
}

// ZoomInHandler raises the zoom by one level.
func ZoomInHandler(deps *Dependencies) fiber.Handler {
	return gestureHandler(deps.Maps.ZoomIn)
}

// ZoomOutHandler lowers the zoom by one level.
func ZoomOutHandler(deps *Dependencies) fiber.Handler {
	return gestureHandler(deps.Maps.ZoomOut)
}

// ResetViewHandler restores the configured center and zoom.
func ResetViewHandler(deps *Dependencies) fiber.Handler {
	return gestureHandler(deps.Maps.ResetView)
}

// DeselectHandler closes the detail popup.
func DeselectHandler(deps *Dependencies) fiber.Handler {
	return gestureHandler(deps.Maps.Deselect)
}

// PanHandler moves the center by {d_lat, d_lng} degrees.
func PanHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req panRequest
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return errBadRequest(c, "body must be {\"d_lat\": number, \"d_lng\": number}")
		}
		if !finite(req.DLat, req.DLng) {
			return errBadRequest(c, "pan offsets must be finite")
		}
		view, err := deps.Maps.Pan(c.Params("id"), req.DLat, req.DLng)
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(view)
	}
}

// SetLayerHandler switches the base layer.
func SetLayerHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req layerRequest
		if err := json.Unmarshal(c.Body(), &req); err != nil || req.Layer == "" {
			return errBadRequest(c, "layer is required")
		}
		view, err := deps.Maps.SetLayer(c.Params("id"), domain.Layer(req.Layer))
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(view)
	}
}

// SelectHandler selects an entity.
func SelectHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req selectionRequest
		if err := json.Unmarshal(c.Body(), &req); err != nil || req.EntityID == "" {
			return errBadRequest(c, "entity_id is required")
		}
		view, err := deps.Maps.Select(c.Params("id"), req.EntityID)
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(view)
	}
}

// MapGeoJSONHandler exports the visible markers as GeoJSON.
func MapGeoJSONHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fc, err := deps.Maps.GeoJSON(c.Params("id"))
		if err != nil {
			return errFromService(c, err)
		}
		data, err := fc.MarshalJSON()
		if err != nil {
			return errInternal(c, err.Error())
		}
		c.Set(fiber.HeaderContentType, "application/geo+json")
		return c.Send(data)
	}
}

// ListEntitiesHandler lists stored entities. With center_lat and center_lng
// it returns only those inside that map window, or with radius_m those
// within that distance, nearest first.
func ListEntitiesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Entities == nil {
			return errServiceUnavailable(c, "entity store not configured")
		}

		var (
			entities []domain.GeoEntity
			err      error
		)
		if c.Query("center_lat") != "" || c.Query("center_lng") != "" {
			center := domain.GeoPoint{Lat: c.QueryFloat("center_lat", math.NaN()), Lng: c.QueryFloat("center_lng", math.NaN())}
			if !finite(center.Lat, center.Lng) {
				return errBadRequest(c, "center_lat and center_lng must both be numbers")
			}
			if radius := c.QueryFloat("radius_m", 0); radius > 0 {
				entities, err = deps.Entities.Nearby(c.UserContext(), center, radius)
			} else {
				entities, err = deps.Entities.InWindow(c.UserContext(), center)
			}
		} else {
			entities, err = deps.Entities.List(c.UserContext())
		}
		if err != nil {
			return errFromService(c, err)
		}

		resp := paginate(entities, parsePage(c))
		SetLinkHeaders(c, resp.Pagination)
		return c.JSON(resp)
	}
}

// SystemHealthHandler returns the health panel read model.
func SystemHealthHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		view, err := deps.Health.View(c.UserContext())
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(view)
	}
}

// RefreshHealthHandler starts a manual refresh. It answers 202 immediately
// and 409 while a refresh is already pending.
func RefreshHealthHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Health.TriggerRefresh(c.UserContext()); err != nil {
			return errFromService(c, err)
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "refreshing"})
	}
}

// SystemEventsHandler lists recent system events, newest first.
func SystemEventsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		events, err := deps.Health.RecentEvents(c.UserContext(), c.QueryInt("limit", 0))
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(events)
	}
}
