package stats

import (
	"net/http"

	"photobooth/core"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// HandleStats reports catalog and usage totals for the admin dashboard.
func HandleStats(store core.StatsStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := store.Stats(r.Context())
		if err != nil {
			logrus.WithError(err).Error("Failed to compute stats")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to compute stats"})
			return
		}
		render.JSON(w, r, stats)
	}
}
