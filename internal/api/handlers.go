package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/driftwatch/console/internal/incident"
	"github.com/driftwatch/console/internal/metrics"
	"github.com/driftwatch/console/internal/poller"
	"github.com/driftwatch/console/internal/scoring"
	"github.com/driftwatch/console/internal/telemetry"
)

// handleOverview returns the full aggregate state from the most recent
// committed poll cycle.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.poller.View(time.Now()))
}

// handleChart returns a single chart's merged records.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	chartID := poller.ChartID(chi.URLParam(r, "chart"))

	valid := false
	for _, id := range poller.AllChartIDs() {
		if id == chartID {
			valid = true
			break
		}
	}
	if !valid {
		writeError(w, http.StatusNotFound, "unknown chart: "+string(chartID))
		return
	}

	view := s.poller.View(time.Now())
	state := view.Charts[chartID]
	if state.Records == nil {
		state.Records = []telemetry.MergedRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"chart":       chartID,
		"records":     state.Records,
		"error":       state.Err,
		"lastUpdated": view.LastUpdated,
	})
}

// handleListEvents returns the incident timeline, newest first. An optional
// ?type= query narrows to a single severity class.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	eventType := incident.EventType(r.URL.Query().Get("type"))
	if eventType != "" && !validEventType(eventType) {
		writeError(w, http.StatusBadRequest, "unknown event type: "+string(eventType))
		return
	}

	events := s.poller.Events().Filter(eventType)
	if events == nil {
		events = []incident.Event{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

// handleEventBuckets returns the timeline partitioned into recency buckets.
func (s *Server) handleEventBuckets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.poller.Events().GroupByRecency(time.Now()))
}

// handleExportEvents renders the timeline as plain text for copy-out during
// an incident review.
func (s *Server) handleExportEvents(w http.ResponseWriter, r *http.Request) {
	text := incident.ExportText(s.poller.Events().All())

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=incident-log.txt")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(text))
}

type addEventRequest struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Note    string `json:"note"`
}

// handleAddEvent records an operator-annotated event on the timeline.
func (s *Server) handleAddEvent(w http.ResponseWriter, r *http.Request) {
	var req addEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	eventType := incident.EventType(req.Type)
	if eventType == "" {
		eventType = incident.EventInfo
	}
	if !validEventType(eventType) {
		writeError(w, http.StatusBadRequest, "unknown event type: "+req.Type)
		return
	}
	// Baseline entries are the only system events; operator entries may not
	// pose as them
	if eventType == incident.EventSystem {
		writeError(w, http.StatusBadRequest, "event type system is reserved for console entries")
		return
	}

	event := incident.NewEvent(eventType, req.Message, strings.TrimSpace(req.Note), time.Now())
	s.poller.Events().Add(event)
	metrics.RecordEventEmitted(string(eventType))

	s.logger.Info("Operator event recorded",
		zap.String("type", string(eventType)),
		zap.String("message", req.Message))

	writeJSON(w, http.StatusCreated, event)
}

// handleClearEvents resets the timeline to its baseline entries. Edge
// detection state is untouched, so cleared conditions do not re-fire.
func (s *Server) handleClearEvents(w http.ResponseWriter, r *http.Request) {
	s.poller.Events().Clear(time.Now())
	s.logger.Info("Incident timeline cleared")

	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// handleRetrain proxies a manual retrain request to the scoring service,
// applying a local rate limit before the upstream's own throttle.
func (s *Server) handleRetrain(w http.ResponseWriter, r *http.Request) {
	if !s.retrainLimiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "retrain rate limit exceeded, try again shortly")
		return
	}

	ack, err := s.scoringClient.TriggerRetrain(r.Context())
	if err != nil {
		if errors.Is(err, scoring.ErrRetrainThrottled) {
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}
		s.logger.Error("Retrain request failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "retrain request failed: "+err.Error())
		return
	}

	s.poller.Events().Add(incident.NewEvent(incident.EventInfo,
		"Manual retrain requested", "queued as "+ack.ModelVersion, time.Now()))
	metrics.RecordEventEmitted(string(incident.EventInfo))

	writeJSON(w, http.StatusAccepted, ack)
}

func validEventType(t incident.EventType) bool {
	switch t {
	case incident.EventError, incident.EventWarn, incident.EventOK, incident.EventInfo, incident.EventSystem:
		return true
	}
	return false
}
