package api

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kzalewski/attune/internal/learning"
	"github.com/kzalewski/attune/internal/storage"
)

// --- helpers ---

func newTestMCPDeps(t *testing.T) (MCPDeps, *storage.Store) {
	t.Helper()
	app := newTestDeps(t)
	return MCPDeps{
		Store:     app.Store,
		Profile:   app.Profile,
		Adapter:   app.Adapter,
		Evaluator: app.Evaluator,
		Cooldown:  app.Cooldown,
	}, app.Store
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

// --- tests ---

func TestMCPTool_RecordCheckIn(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	handler := mcpRecordCheckIn(deps)

	req := makeCallToolRequest("record_checkin", map[string]interface{}{
		"check_out_time": "2026-08-23T22:00:00Z",
		"stress_rating":  5,
	})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	var resp struct {
		ID       string            `json:"id"`
		Triggers []json.RawMessage `json:"triggers"`
	}
	if err := json.Unmarshal([]byte(toolText(t, result)), &resp); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	if resp.ID == "" {
		t.Error("missing check-in id")
	}
	if len(resp.Triggers) != 2 {
		t.Errorf("expected 2 triggers, got %d", len(resp.Triggers))
	}

	checkIns, err := store.ListCheckIns(10)
	if err != nil {
		t.Fatalf("ListCheckIns: %v", err)
	}
	if len(checkIns) != 1 {
		t.Errorf("expected 1 saved check-in, got %d", len(checkIns))
	}
}

func TestMCPTool_RecordCheckIn_BadTimestamp(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpRecordCheckIn(deps)

	req := makeCallToolRequest("record_checkin", map[string]interface{}{
		"check_out_time": "late evening",
	})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for malformed timestamp")
	}
}

func TestMCPTool_AdaptInsight(t *testing.T) {
	deps, _ := newTestMCPDeps(t)

	if err := deps.Profile.SetField("role", "manager"); err != nil {
		t.Fatalf("SetField: %v", err)
	}

	handler := mcpAdaptInsight(deps)
	req := makeCallToolRequest("adapt_insight", map[string]interface{}{
		"type":     "suggestion",
		"message":  "you are working late often",
		"priority": 2,
	})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	var resp struct {
		Message  string `json:"message"`
		Priority int    `json:"priority"`
		Visible  bool   `json:"visible"`
	}
	if err := json.Unmarshal([]byte(toolText(t, result)), &resp); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	if resp.Message != "your team is working late often" {
		t.Errorf("manager rewrite missing: %q", resp.Message)
	}
	if resp.Priority != 2 {
		t.Errorf("priority changed without preference: %d", resp.Priority)
	}
	if !resp.Visible {
		t.Error("suggestion should be visible at any tier")
	}
}

func TestMCPTool_AdaptInsight_VisibilityReflectsProfile(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpAdaptInsight(deps)

	req := makeCallToolRequest("adapt_insight", map[string]interface{}{
		"type":    "anomaly_detection",
		"message": "unusual pattern detected",
	})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var resp struct {
		Visible bool `json:"visible"`
	}
	if err := json.Unmarshal([]byte(toolText(t, result)), &resp); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	if resp.Visible {
		t.Error("anomaly_detection should be hidden for the default basic profile")
	}
}

func TestMCPTool_AdaptInsight_MissingArgs(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpAdaptInsight(deps)

	req := makeCallToolRequest("adapt_insight", map[string]interface{}{
		"type": "suggestion",
	})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error for missing message")
	}
}

func TestMCPTool_SetProfileField(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpSetProfileField(deps)

	req := makeCallToolRequest("set_profile_field", map[string]interface{}{
		"field": "complexity",
		"value": "advanced",
	})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	p, err := deps.Profile.GetProfile()
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if string(p.Complexity) != "advanced" {
		t.Errorf("expected advanced, got %q", p.Complexity)
	}
}

func TestMCPTool_InsightFeedback(t *testing.T) {
	deps, store := newTestMCPDeps(t)

	rec := storage.InsightRecord{
		ID:        "in-mcp-1",
		Type:      "stress_trend",
		Message:   "stress rising",
		Priority:  2,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.SaveInsight(rec); err != nil {
		t.Fatalf("SaveInsight: %v", err)
	}

	handler := mcpInsightFeedback(deps)
	req := makeCallToolRequest("insight_feedback", map[string]interface{}{
		"insight_id": "in-mcp-1",
		"action":     "dismissed",
	})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	counts, err := store.GetFeedbackCounts("stress_trend")
	if err != nil {
		t.Fatalf("GetFeedbackCounts: %v", err)
	}
	if counts.Dismissed != 1 {
		t.Errorf("dismissed count = %d, want 1", counts.Dismissed)
	}

	job, err := store.ClaimNextJob([]string{learning.JobTypeRecompute})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if job == nil {
		t.Fatal("expected a queued recompute job")
	}
}

func TestMCPTool_InsightFeedback_NotFound(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpInsightFeedback(deps)

	req := makeCallToolRequest("insight_feedback", map[string]interface{}{
		"insight_id": "missing",
		"action":     "shown",
	})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error for missing insight")
	}
}

func TestMCPResource_Profile(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	deps.Profile.SetField("role", "executive")

	handler := mcpResourceProfile(deps)
	contents, err := handler(context.Background(), makeReadResourceRequest("user://profile"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}

	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}

	var p map[string]string
	if err := json.Unmarshal([]byte(tc.Text), &p); err != nil {
		t.Fatalf("parsing profile JSON: %v", err)
	}
	if p["role"] != "executive" {
		t.Errorf("expected role executive, got %q", p["role"])
	}
}

func TestMCPResource_Triggers(t *testing.T) {
	deps, store := newTestMCPDeps(t)

	event := storage.TriggerEvent{
		ID:       "ev-1",
		Name:     "high_stress",
		Type:     "high_stress",
		Message:  "m",
		Priority: 4,
		FiredAt:  time.Now().UTC(),
	}
	if err := store.SaveTriggerEvent(event); err != nil {
		t.Fatalf("SaveTriggerEvent: %v", err)
	}

	handler := mcpResourceTriggers(deps)
	contents, err := handler(context.Background(), makeReadResourceRequest("wellness://triggers"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}

	var events []json.RawMessage
	if err := json.Unmarshal([]byte(tc.Text), &events); err != nil {
		t.Fatalf("parsing events: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("expected 1 event, got %d", len(events))
	}
}
