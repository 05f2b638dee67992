package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kzalewski/attune/internal/insight"
	"github.com/kzalewski/attune/internal/learning"
	"github.com/kzalewski/attune/internal/personalize"
	"github.com/kzalewski/attune/internal/profile"
	"github.com/kzalewski/attune/internal/storage"
	"github.com/kzalewski/attune/internal/trigger"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store     *storage.Store
	Profile   *profile.Manager
	Adapter   *personalize.Adapter
	Evaluator *trigger.Evaluator
	Cooldown  *trigger.CooldownTracker
}

// NewMCPServer creates an MCP server exposing the personalization engine as
// tools and resources, so assistant clients can record check-ins and fetch
// profile-adapted insights.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"attune",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("attune — local wellness insight personalization: check-ins, contextual triggers, and profile-adapted insights."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("record_checkin",
			mcp.WithDescription("Record a workplace check-in and return any contextual triggers it fires."),
			mcp.WithString("check_out_time", mcp.Description("Checkout time as RFC3339 (optional)")),
			mcp.WithNumber("stress_rating", mcp.Description("Stress rating on a 1-5 scale (optional)")),
			mcp.WithString("note", mcp.Description("Free-form note (optional)")),
		),
		mcpRecordCheckIn(deps),
	)

	s.AddTool(
		mcp.NewTool("adapt_insight",
			mcp.WithDescription("Adapt a generated insight for the current user profile (phrasing and priority)."),
			mcp.WithString("type", mcp.Description("Insight type (e.g. stress_trend, suggestion)"), mcp.Required()),
			mcp.WithString("message", mcp.Description("The insight message"), mcp.Required()),
			mcp.WithNumber("priority", mcp.Description("Original priority (default 1)")),
		),
		mcpAdaptInsight(deps),
	)

	s.AddTool(
		mcp.NewTool("set_profile_field",
			mcp.WithDescription("Set a profile field: role, industry, or complexity."),
			mcp.WithString("field", mcp.Description("Field name (role, industry, complexity)"), mcp.Required()),
			mcp.WithString("value", mcp.Description("Value to set"), mcp.Required()),
		),
		mcpSetProfileField(deps),
	)

	s.AddTool(
		mcp.NewTool("insight_feedback",
			mcp.WithDescription("Record how the user responded to a shown insight (shown, engaged, dismissed)."),
			mcp.WithString("insight_id", mcp.Description("ID of the stored insight"), mcp.Required()),
			mcp.WithString("action", mcp.Description("One of shown, engaged, dismissed"), mcp.Required()),
		),
		mcpInsightFeedback(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"user://profile",
			"User Profile",
			mcp.WithResourceDescription("Current user profile as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProfile(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"wellness://triggers",
			"Recent Triggers",
			mcp.WithResourceDescription("Last 10 fired contextual triggers"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceTriggers(deps),
	)

	return s
}

func mcpRecordCheckIn(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var checkOut *time.Time
		if raw := req.GetString("check_out_time", ""); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return mcpError(fmt.Sprintf("check_out_time must be RFC3339: %v", err)), nil
			}
			checkOut = &t
		}

		var stress *int
		if v := req.GetInt("stress_rating", 0); v != 0 {
			if v < 1 || v > 5 {
				return mcpError("stress_rating must be between 1 and 5"), nil
			}
			stress = &v
		}

		c := storage.CheckIn{
			ID:           uuid.New().String(),
			CreatedAt:    time.Now().UTC(),
			CheckOutTime: checkOut,
			StressRating: stress,
			Note:         req.GetString("note", ""),
		}
		if err := deps.Store.SaveCheckIn(c); err != nil {
			return mcpError(fmt.Sprintf("failed to save check-in: %v", err)), nil
		}

		fired := deps.Evaluator.Evaluate(trigger.CheckIn{CheckOutTime: checkOut, StressRating: stress})

		type firedView struct {
			Name     string `json:"name"`
			Type     string `json:"type"`
			Message  string `json:"message"`
			Priority int    `json:"priority"`
		}
		views := make([]firedView, len(fired))
		for i, t := range fired {
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
				return mcpError(fmt.Sprintf("check-in saved but failed to record trigger: %v", err)), nil
			}
			views[i] = firedView{Name: t.Name, Type: string(t.Type), Message: t.Message, Priority: t.Priority}
		}

		b, err := json.Marshal(map[string]any{"id": c.ID, "triggers": views})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAdaptInsight(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		insType, err := req.RequireString("type")
		if err != nil {
			return mcpError("type is required"), nil
		}
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}
		priority := req.GetInt("priority", 1)
		if priority < 1 {
			priority = 1
		}

		ins := insight.Insight{
			ID:        uuid.New(),
			Type:      insight.Type(insType),
			Message:   message,
			Priority:  priority,
			Timestamp: time.Now().UTC(),
		}

		p, perr := deps.Profile.GetProfile()
		if perr != nil {
			p = profile.Default()
		}
		visible := personalize.MinComplexityFor(ins.Type).Tier() <= p.Complexity.Tier()

		adapted := deps.Adapter.Adapt(ins)
		b, err := json.Marshal(map[string]any{
			"type":     string(adapted.Type),
			"message":  adapted.Message,
			"priority": adapted.Priority,
			"visible":  visible,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSetProfileField(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		field, err := req.RequireString("field")
		if err != nil {
			return mcpError("field is required"), nil
		}
		value, err := req.RequireString("value")
		if err != nil {
			return mcpError("value is required"), nil
		}

		if err := deps.Profile.SetField(field, value); err != nil {
			return mcpError(fmt.Sprintf("failed to set profile field: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Set %s = %s", field, value)), nil
	}
}

func mcpInsightFeedback(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("insight_id")
		if err != nil {
			return mcpError("insight_id is required"), nil
		}
		rawAction, err := req.RequireString("action")
		if err != nil {
			return mcpError("action is required"), nil
		}
		action, ok := insight.ParseFeedbackAction(rawAction)
		if !ok {
			return mcpError("action must be shown, engaged, or dismissed"), nil
		}

		rec, err := deps.Store.GetInsight(id)
		if errors.Is(err, storage.ErrNotFound) {
			return mcpError("insight not found"), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load insight: %v", err)), nil
		}

		if err := deps.Store.RecordFeedback(rec.Type, string(action)); err != nil {
			return mcpError(fmt.Sprintf("failed to record feedback: %v", err)), nil
		}

		job, err := learning.NewRecomputeJob(insight.Type(rec.Type))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to build recompute job: %v", err)), nil
		}
		if err := deps.Store.EnqueueJob(job); err != nil {
			return mcpError(fmt.Sprintf("feedback recorded but failed to queue recompute: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Recorded %s for insight type %s", action, rec.Type)), nil
	}
}

func mcpResourceProfile(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		p, err := deps.Profile.GetProfile()
		if err != nil {
			return nil, fmt.Errorf("failed to get profile: %w", err)
		}

		b, err := json.Marshal(map[string]string{
			"role":       string(p.Role),
			"industry":   string(p.Industry),
			"complexity": string(p.Complexity),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal profile: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpResourceTriggers(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		events, err := deps.Store.ListTriggerEvents(10)
		if err != nil {
			return nil, fmt.Errorf("failed to list trigger events: %w", err)
		}

		type eventView struct {
			Name    string `json:"name"`
			Type    string `json:"type"`
			Message string `json:"message"`
			FiredAt string `json:"fired_at"`
		}
		views := make([]eventView, len(events))
		for i, e := range events {
			views[i] = eventView{
				Name:    e.Name,
				Type:    e.Type,
				Message: e.Message,
				FiredAt: e.FiredAt.Format(time.RFC3339),
			}
		}

		b, err := json.Marshal(views)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal trigger events: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
