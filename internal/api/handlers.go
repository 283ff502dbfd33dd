/**
 * @description
 * This file contains the HTTP handlers for the proximity-service's API endpoints.
 * Handlers parse requests, resolve the Clerk user to the internal user id, call the
 * application service and write JSON responses.
 *
 * @dependencies
 * - encoding/json, log, net/http, strconv: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: service logic, models and errors.
 */

package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/transfa/proximity-service/internal/app"
	"github.com/transfa/proximity-service/internal/domain"
	"github.com/transfa/proximity-service/internal/store"
)

// ProximityService is the application surface the handlers depend on.
type ProximityService interface {
	ResolveInternalUserID(ctx context.Context, clerkUserID string) (string, error)
	UpdateLocation(ctx context.Context, userID string, update domain.LocationUpdate) domain.ProximityResult
	Subscribe(ctx context.Context, userID string, req domain.SubscribeRequest) error
	Disconnect(ctx context.Context, userID string) error
	FindExactMatch(ctx context.Context, lat, lon float64, name string, radiusMeters float64) *domain.LocationMatch
	FindNearbyMatches(ctx context.Context, lat, lon float64, radiusMeters float64, limit int) []domain.LocationMatch
}

// ProximityHandlers holds the application service that handlers will use.
type ProximityHandlers struct {
	service ProximityService
}

// NewProximityHandlers creates a new instance of ProximityHandlers.
func NewProximityHandlers(service ProximityService) *ProximityHandlers {
	return &ProximityHandlers{service: service}
}

type exactMatchResponse struct {
	Found bool                  `json:"found"`
	Match *domain.LocationMatch `json:"match"`
}

type nearbyMatchesResponse struct {
	Matches []domain.LocationMatch `json:"matches"`
}

type subscriptionResponse struct {
	Status string `json:"status"`
}

// UpdateLocationHandler records a live position and returns the proximity result.
func (h *ProximityHandlers) UpdateLocationHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUser(w, r, "update_location")
	if !ok {
		return
	}

	var update domain.LocationUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result := h.service.UpdateLocation(r.Context(), userID, update)
	h.writeJSON(w, http.StatusOK, result)
}

// SubscribeHandler turns live proximity tracking on or off.
func (h *ProximityHandlers) SubscribeHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUser(w, r, "subscribe")
	if !ok {
		return
	}

	var req domain.SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.Subscribe(r.Context(), userID, req); err != nil {
		if errors.Is(err, app.ErrInvalidSubscription) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("level=error component=api endpoint=subscribe user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to update location subscription")
		return
	}

	status := "subscribed"
	if !req.Enabled {
		status = "unsubscribed"
	}
	h.writeJSON(w, http.StatusOK, subscriptionResponse{Status: status})
}

// UnsubscribeHandler stops live tracking for the caller.
func (h *ProximityHandlers) UnsubscribeHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUser(w, r, "unsubscribe")
	if !ok {
		return
	}

	if err := h.service.Disconnect(r.Context(), userID); err != nil {
		log.Printf("level=error component=api endpoint=unsubscribe user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to update location subscription")
		return
	}
	h.writeJSON(w, http.StatusOK, subscriptionResponse{Status: "unsubscribed"})
}

// FindExactHandler answers GET /exact?lat=&lon=&name=&radius=.
func (h *ProximityHandlers) FindExactHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, lon, ok := h.parseCoordinates(w, q.Get("lat"), q.Get("lon"))
	if !ok {
		return
	}
	radius, err := parseOptionalFloat(q.Get("radius"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "radius must be a number")
		return
	}

	match := h.service.FindExactMatch(r.Context(), lat, lon, strings.TrimSpace(q.Get("name")), radius)
	h.writeJSON(w, http.StatusOK, exactMatchResponse{Found: match != nil, Match: match})
}

// FindNearbyHandler answers GET /nearby?lat=&lon=&radius=&limit=.
func (h *ProximityHandlers) FindNearbyHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, lon, ok := h.parseCoordinates(w, q.Get("lat"), q.Get("lon"))
	if !ok {
		return
	}
	radius, err := parseOptionalFloat(q.Get("radius"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "radius must be a number")
		return
	}
	limit := 0
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
	}

	matches := h.service.FindNearbyMatches(r.Context(), lat, lon, radius, limit)
	if matches == nil {
		matches = []domain.LocationMatch{}
	}
	h.writeJSON(w, http.StatusOK, nearbyMatchesResponse{Matches: matches})
}

func (h *ProximityHandlers) resolveUser(w http.ResponseWriter, r *http.Request, endpoint string) (string, bool) {
	clerkUserID, ok := GetClerkUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Could not get user ID from context")
		return "", false
	}

	userID, err := h.service.ResolveInternalUserID(r.Context(), clerkUserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			log.Printf("level=warn component=api endpoint=%s outcome=reject reason=user_not_found clerk_user_id=%s", endpoint, clerkUserID)
			h.writeError(w, http.StatusBadRequest, "User not found")
			return "", false
		}
		log.Printf("level=error component=api endpoint=%s outcome=error reason=user_resolution_failed clerk_user_id=%s err=%v", endpoint, clerkUserID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to resolve user")
		return "", false
	}
	return userID, true
}

// parseCoordinates rejects missing or unparsable values. Out-of-range numbers pass
// through and produce an empty result downstream.
func (h *ProximityHandlers) parseCoordinates(w http.ResponseWriter, rawLat, rawLon string) (float64, float64, bool) {
	lat, latErr := strconv.ParseFloat(strings.TrimSpace(rawLat), 64)
	lon, lonErr := strconv.ParseFloat(strings.TrimSpace(rawLon), 64)
	if latErr != nil || lonErr != nil {
		h.writeError(w, http.StatusBadRequest, "lat and lon query parameters are required numbers")
		return 0, 0, false
	}
	return lat, lon, true
}

func parseOptionalFloat(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, strconv.ErrSyntax
	}
	return v, nil
}

// writeJSON is a helper for writing JSON responses.
func (h *ProximityHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *ProximityHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
