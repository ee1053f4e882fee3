package routes

import (
	"net/http"

	"github.com/zatekoja/labbook/internal/api/handlers"
	"github.com/zatekoja/labbook/internal/api/middleware"
	"github.com/zatekoja/labbook/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	labHandler      *handlers.LabHandler
	locationHandler *handlers.LocationHandler
	nearbyHandler   *handlers.NearbyHandler
	searchHandler   *handlers.SearchHandler
	bookingHandler  *handlers.BookingHandler

	cacheMiddleware *middleware.CacheMiddleware
	allowedOrigins  []string
	metrics         *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	labHandler *handlers.LabHandler,
	locationHandler *handlers.LocationHandler,
	nearbyHandler *handlers.NearbyHandler,
	searchHandler *handlers.SearchHandler,
	bookingHandler *handlers.BookingHandler,
	cacheMiddleware *middleware.CacheMiddleware,
	allowedOrigins []string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:             http.NewServeMux(),
		labHandler:      labHandler,
		locationHandler: locationHandler,
		nearbyHandler:   nearbyHandler,
		searchHandler:   searchHandler,
		bookingHandler:  bookingHandler,
		cacheMiddleware: cacheMiddleware,
		allowedOrigins:  allowedOrigins,
		metrics:         metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Location
	r.mux.HandleFunc("GET /api/location", r.locationHandler.GetLocation)
	r.mux.HandleFunc("POST /api/location/retry", r.locationHandler.RetryLocation)
	r.mux.HandleFunc("GET /api/activity", r.locationHandler.GetActivity)

	// Lab directory
	r.mux.HandleFunc("GET /api/labs", r.labHandler.ListLabs)
	r.mux.HandleFunc("POST /api/labs/refresh", r.labHandler.RefreshLabs)
	r.mux.HandleFunc("GET /api/labs/{id}", r.labHandler.GetLab)

	// Nearby facilities
	r.mux.HandleFunc("GET /api/nearby", r.nearbyHandler.SearchNearby)

	// Search
	r.mux.HandleFunc("GET /api/search/suggest", r.searchHandler.Suggest)
	r.mux.HandleFunc("GET /api/search/history", r.searchHandler.ListHistory)
	r.mux.HandleFunc("POST /api/search/history", r.searchHandler.RecordSearch)
	r.mux.HandleFunc("DELETE /api/search/history", r.searchHandler.ClearHistory)
	r.mux.HandleFunc("DELETE /api/search/history/{query}", r.searchHandler.RemoveSearch)

	// Booking wizard
	r.mux.HandleFunc("POST /api/bookings/sessions", r.bookingHandler.CreateSession)
	r.mux.HandleFunc("GET /api/bookings/sessions/{id}", r.bookingHandler.GetSession)
	r.mux.HandleFunc("DELETE /api/bookings/sessions/{id}", r.bookingHandler.DeleteSession)
	r.mux.HandleFunc("POST /api/bookings/sessions/{id}/lab", r.bookingHandler.SelectLab)
	r.mux.HandleFunc("POST /api/bookings/sessions/{id}/tests", r.bookingHandler.AddTest)
	r.mux.HandleFunc("DELETE /api/bookings/sessions/{id}/tests/{itemId}", r.bookingHandler.RemoveTest)
	r.mux.HandleFunc("POST /api/bookings/sessions/{id}/packages", r.bookingHandler.AddPackage)
	r.mux.HandleFunc("DELETE /api/bookings/sessions/{id}/packages/{itemId}", r.bookingHandler.RemovePackage)
	r.mux.HandleFunc("PUT /api/bookings/sessions/{id}/schedule", r.bookingHandler.SetSchedule)
	r.mux.HandleFunc("PUT /api/bookings/sessions/{id}/payment", r.bookingHandler.SetPayment)
	r.mux.HandleFunc("POST /api/bookings/sessions/{id}/advance", r.bookingHandler.Advance)
	r.mux.HandleFunc("POST /api/bookings/sessions/{id}/back", r.bookingHandler.Back)
	r.mux.HandleFunc("POST /api/bookings/sessions/{id}/goto", r.bookingHandler.GoTo)
	r.mux.HandleFunc("POST /api/bookings/sessions/{id}/catalog/reload", r.bookingHandler.ReloadCatalog)
	r.mux.HandleFunc("POST /api/bookings/sessions/{id}/search", r.bookingHandler.TypeSearch)
	r.mux.HandleFunc("GET /api/bookings/sessions/{id}/search", r.bookingHandler.LatestSearch)
	r.mux.HandleFunc("POST /api/bookings/sessions/{id}/submit", r.bookingHandler.Submit)
	r.mux.HandleFunc("POST /api/bookings/sessions/{id}/payment/retry", r.bookingHandler.RetryPayment)
	r.mux.HandleFunc("GET /api/checkout/{bookingId}", r.bookingHandler.Checkout)

	// Cache and observability sit directly on the mux so the matched pattern
	// is visible to the metrics. CORS wraps everything.
	var handler http.Handler = r.mux
	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
