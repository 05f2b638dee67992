package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kzalewski/attune/internal/config"
)

// --- checkin ---

var checkinCmd = &cobra.Command{
	Use:   "checkin",
	Short: "Record a daily check-in",
	Long: `Record a daily check-in.

Examples:
  attune checkin --stress 4
  attune checkin --checkout 21:30 --stress 2
  attune checkin --checkout 2026-08-23T21:30:00Z --note "long release day"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		checkout, _ := cmd.Flags().GetString("checkout")
		note, _ := cmd.Flags().GetString("note")

		req := map[string]any{}
		if note != "" {
			req["note"] = note
		}
		if checkout != "" {
			t, err := parseCheckoutTime(checkout, time.Now())
			if err != nil {
				return err
			}
			req["check_out_time"] = t.Format(time.RFC3339)
		}
		if cmd.Flags().Changed("stress") {
			stress, _ := cmd.Flags().GetInt("stress")
			req["stress_rating"] = stress
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/checkins", req)
		if err != nil {
			return err
		}

		var result struct {
			ID       string `json:"id"`
			Triggers []struct {
				Name     string `json:"name"`
				Message  string `json:"message"`
				Priority int    `json:"priority"`
			} `json:"triggers"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Check-in recorded (%s)", result.ID[:8])
		for _, t := range result.Triggers {
			fmt.Printf("  %s %s\n", colorize(colorYellow, "["+t.Name+"]"), t.Message)
		}
		return nil
	},
}

// parseCheckoutTime accepts either a bare HH:MM (interpreted as today, local
// time) or a full RFC3339 timestamp.
func parseCheckoutTime(s string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	clock, err := time.Parse("15:04", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid checkout time %q: use HH:MM or RFC3339", s)
	}
	return time.Date(now.Year(), now.Month(), now.Day(),
		clock.Hour(), clock.Minute(), 0, 0, now.Location()), nil
}

func init() {
	checkinCmd.Flags().String("checkout", "", "checkout time (HH:MM or RFC3339)")
	checkinCmd.Flags().Int("stress", 0, "stress rating (1-5)")
	checkinCmd.Flags().String("note", "", "free-form note")
}

// --- insights ---

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Manage wellness insights",
}

var insightsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List insights, personalized for the current profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/insights?limit=%d", limit))
		if err != nil {
			return err
		}

		var insights []struct {
			ID       string `json:"id"`
			Type     string `json:"type"`
			Message  string `json:"message"`
			Priority int    `json:"priority"`
		}
		if err := decodeJSON(resp, &insights); err != nil {
			return err
		}

		if len(insights) == 0 {
			fmt.Println("No insights found.")
			return nil
		}

		for _, ins := range insights {
			fmt.Printf("%s  %s  [P%d]  %s\n",
				colorize(colorCyan, ins.ID[:8]),
				ins.Type,
				ins.Priority,
				ins.Message,
			)
		}
		return nil
	},
}

var insightsAddCmd = &cobra.Command{
	Use:   "add <type> <message>",
	Short: "Store a new insight",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		priority, _ := cmd.Flags().GetInt("priority")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{
			"type":     args[0],
			"message":  strings.Join(args[1:], " "),
			"priority": priority,
		}
		resp, err := client.post(cmd.Context(), "/insights", req)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Stored insight %s", result["id"])
		return nil
	},
}

func init() {
	insightsListCmd.Flags().Int("limit", 20, "maximum number of insights to list")
	insightsAddCmd.Flags().Int("priority", 1, "insight priority (1 or higher)")
	insightsCmd.AddCommand(insightsListCmd)
	insightsCmd.AddCommand(insightsAddCmd)
}

// --- feedback ---

var feedbackCmd = &cobra.Command{
	Use:   "feedback <insight-id> <action>",
	Short: "Record feedback on an insight (shown, engaged, or dismissed)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, action := args[0], args[1]

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/insights/"+id+"/feedback", map[string]string{"action": action})
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Recorded %s for insight %s", action, id)
		return nil
	},
}

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage user profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current profile as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/profile")
		if err != nil {
			return err
		}

		var profile any
		if err := decodeJSON(resp, &profile); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(profile)
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set <field> <value>",
	Short: "Set a profile field (role, industry, or complexity)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		field, value := args[0], args[1]

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.patch(cmd.Context(), "/profile", map[string]any{field: value})
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Set %s = %s", field, value)
		return nil
	},
}

func init() {
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSetCmd)
}

// --- triggers ---

var triggersCmd = &cobra.Command{
	Use:   "triggers",
	Short: "List recently fired contextual triggers",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/triggers?limit=%d", limit))
		if err != nil {
			return err
		}

		var events []struct {
			Name    string `json:"name"`
			Message string `json:"message"`
			FiredAt string `json:"fired_at"`
		}
		if err := decodeJSON(resp, &events); err != nil {
			return err
		}

		if len(events) == 0 {
			fmt.Println("No triggers fired yet.")
			return nil
		}

		for _, e := range events {
			fmt.Printf("%s  %s  %s\n",
				colorize(colorCyan, e.FiredAt),
				e.Name,
				e.Message,
			)
		}
		return nil
	},
}

func init() {
	triggersCmd.Flags().Int("limit", 20, "maximum number of trigger events to list")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
