package handler

import (
	"net/http"

	"github.com/notifyhub/pushsched/internal/tzcatalog"
)

// TimezoneHandler serves the canonical timezone list backing the admin
// dashboard's timezone picker.
type TimezoneHandler struct {
	catalog *tzcatalog.Catalog
}

func NewTimezoneHandler(c *tzcatalog.Catalog) *TimezoneHandler {
	return &TimezoneHandler{catalog: c}
}

// List handles GET /api/v1/timezones
//
// @Summary  List every canonical IANA timezone name
// @Tags     timezones
// @Produce  json
// @Success  200  {object}  envelope
// @Router   /api/v1/timezones [get]
func (h *TimezoneHandler) List(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, map[string]any{"timezones": h.catalog.ListKnown()})
}
