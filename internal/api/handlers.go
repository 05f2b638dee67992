package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kzalewski/attune/internal/insight"
	"github.com/kzalewski/attune/internal/learning"
	"github.com/kzalewski/attune/internal/personalize"
	"github.com/kzalewski/attune/internal/profile"
	"github.com/kzalewski/attune/internal/storage"
	"github.com/kzalewski/attune/internal/trigger"
)

const maxRequestBodySize = 1 << 20 // 1MB

// AppDeps holds the collaborators the HTTP handlers need.
type AppDeps struct {
	Store     *storage.Store
	Profile   *profile.Manager
	Adapter   *personalize.Adapter
	Evaluator *trigger.Evaluator
	Cooldown  *trigger.CooldownTracker
	Token     string
}

// NewAppHandler returns the service's HTTP surface: check-ins, insights,
// feedback, profile, and trigger history. Everything except /health sits
// behind bearer auth.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/checkins", handleCreateCheckIn(deps))
		r.Get("/checkins", handleListCheckIns(deps))
		r.Post("/insights", handleCreateInsight(deps))
		r.Get("/insights", handleListInsights(deps))
		r.Post("/insights/{id}/feedback", handleInsightFeedback(deps))
		r.Get("/profile", handleGetProfile(deps))
		r.Patch("/profile", handlePatchProfile(deps))
		r.Get("/triggers", handleListTriggers(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// --- Check-ins ---

type checkInRequest struct {
	CheckOutTime string `json:"check_out_time"`
	StressRating *int   `json:"stress_rating"`
	Note         string `json:"note"`
}

type firedTrigger struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Message  string `json:"message"`
	Priority int    `json:"priority"`
}

type checkInResponse struct {
	ID       string         `json:"id"`
	Triggers []firedTrigger `json:"triggers"`
}

func handleCreateCheckIn(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req checkInRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		var checkOut *time.Time
		if req.CheckOutTime != "" {
			t, err := time.Parse(time.RFC3339, req.CheckOutTime)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "check_out_time must be RFC3339: %v", err)
				return
			}
			checkOut = &t
		}
		if req.StressRating != nil && (*req.StressRating < 1 || *req.StressRating > 5) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "stress_rating must be between 1 and 5")
			return
		}

		c := storage.CheckIn{
			ID:           uuid.New().String(),
			CreatedAt:    time.Now().UTC(),
			CheckOutTime: checkOut,
			StressRating: req.StressRating,
			Note:         req.Note,
		}
		if err := deps.Store.SaveCheckIn(c); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "saving check-in: %v", err)
			return
		}

		fired := deps.Evaluator.Evaluate(trigger.CheckIn{
			CheckOutTime: checkOut,
			StressRating: req.StressRating,
		})

		resp := checkInResponse{ID: c.ID, Triggers: []firedTrigger{}}
		for _, t := range fired {
			deps.Cooldown.MarkUsed(t)
			event := storage.TriggerEvent{
				ID:       uuid.New().String(),
				Name:     t.Name,
				Type:     string(t.Type),
				Message:  t.Message,
				Priority: t.Priority,
				FiredAt:  time.Now().UTC(),
			}
			if err := deps.Store.SaveTriggerEvent(event); err != nil {
				slog.Error("recording trigger event", "trigger", t.Name, "error", err)
			}
			resp.Triggers = append(resp.Triggers, firedTrigger{
				Name:     t.Name,
				Type:     string(t.Type),
				Message:  t.Message,
				Priority: t.Priority,
			})
		}

		slog.Info("check-in recorded", "id", c.ID, "triggers_fired", len(fired))
		writeJSON(w, http.StatusCreated, resp)
	}
}

type checkInView struct {
	ID           string `json:"id"`
	CreatedAt    string `json:"created_at"`
	CheckOutTime string `json:"check_out_time,omitempty"`
	StressRating *int   `json:"stress_rating,omitempty"`
	Note         string `json:"note,omitempty"`
}

func handleListCheckIns(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := queryLimit(r, 20, 100)
		checkIns, err := deps.Store.ListCheckIns(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing check-ins: %v", err)
			return
		}

		views := make([]checkInView, len(checkIns))
		for i, c := range checkIns {
			v := checkInView{
				ID:           c.ID,
				CreatedAt:    c.CreatedAt.Format(time.RFC3339),
				StressRating: c.StressRating,
				Note:         c.Note,
			}
			if c.CheckOutTime != nil {
				v.CheckOutTime = c.CheckOutTime.Format(time.RFC3339)
			}
			views[i] = v
		}
		writeJSON(w, http.StatusOK, views)
	}
}

// --- Insights ---

type insightRequest struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Priority int    `json:"priority"`
}

func handleCreateInsight(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req insightRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Type == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "type is required")
			return
		}
		if req.Message == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
			return
		}
		if req.Priority < 1 {
			req.Priority = 1
		}

		rec := storage.InsightRecord{
			ID:        uuid.New().String(),
			Type:      req.Type,
			Message:   req.Message,
			Priority:  req.Priority,
			CreatedAt: time.Now().UTC(),
		}
		if err := deps.Store.SaveInsight(rec); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "saving insight: %v", err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]string{"id": rec.ID})
	}
}

type insightView struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	Priority  int    `json:"priority"`
	Timestamp string `json:"timestamp"`
}

// handleListInsights returns stored insights after complexity filtering and
// adaptation for the current profile. Raw records are never modified.
func handleListInsights(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := queryLimit(r, 20, 100)
		records, err := deps.Store.ListInsights(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing insights: %v", err)
			return
		}

		p, err := deps.Profile.GetProfile()
		if err != nil {
			slog.Warn("profile unavailable, filtering with defaults", "error", err)
			p = profile.Default()
		}

		insights := make([]insight.Insight, 0, len(records))
		for _, rec := range records {
			id, err := uuid.Parse(rec.ID)
			if err != nil {
				slog.Warn("skipping insight with malformed id", "id", rec.ID)
				continue
			}
			insights = append(insights, insight.Insight{
				ID:        id,
				Type:      insight.Type(rec.Type),
				Message:   rec.Message,
				Priority:  rec.Priority,
				Timestamp: rec.CreatedAt,
			})
		}

		visible := personalize.FilterByComplexity(insights, p.Complexity)

		views := make([]insightView, len(visible))
		for i, ins := range visible {
			adapted := deps.Adapter.Adapt(ins)
			views[i] = insightView{
				ID:        adapted.ID.String(),
				Type:      string(adapted.Type),
				Message:   adapted.Message,
				Priority:  adapted.Priority,
				Timestamp: adapted.Timestamp.Format(time.RFC3339),
			}
		}
		writeJSON(w, http.StatusOK, views)
	}
}

type feedbackRequest struct {
	Action string `json:"action"`
}

func handleInsightFeedback(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req feedbackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		action, ok := insight.ParseFeedbackAction(req.Action)
		if !ok {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "action must be shown, engaged, or dismissed")
			return
		}

		rec, err := deps.Store.GetInsight(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "insight not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading insight: %v", err)
			return
		}

		if err := deps.Store.RecordFeedback(rec.Type, string(action)); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "recording feedback: %v", err)
			return
		}

		job, err := learning.NewRecomputeJob(insight.Type(rec.Type))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "building recompute job: %v", err)
			return
		}
		if err := deps.Store.EnqueueJob(job); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "queueing recompute: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// --- Profile ---

type profileView struct {
	Role       string `json:"role"`
	Industry   string `json:"industry"`
	Complexity string `json:"complexity"`
}

func handleGetProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Profile.GetProfile()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading profile: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, profileView{
			Role:       string(p.Role),
			Industry:   string(p.Industry),
			Complexity: string(p.Complexity),
		})
	}
}

func handlePatchProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var fields map[string]string
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if len(fields) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "at least one field is required")
			return
		}

		for field, value := range fields {
			if err := deps.Profile.SetField(field, value); err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// --- Trigger history ---

type triggerEventView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Message  string `json:"message"`
	Priority int    `json:"priority"`
	FiredAt  string `json:"fired_at"`
}

func handleListTriggers(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := queryLimit(r, 20, 100)
		events, err := deps.Store.ListTriggerEvents(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing trigger events: %v", err)
			return
		}

		views := make([]triggerEventView, len(events))
		for i, e := range events {
			views[i] = triggerEventView{
				ID:       e.ID,
				Name:     e.Name,
				Type:     e.Type,
				Message:  e.Message,
				Priority: e.Priority,
				FiredAt:  e.FiredAt.Format(time.RFC3339),
			}
		}
		writeJSON(w, http.StatusOK, views)
	}
}
