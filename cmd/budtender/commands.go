package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/leafwise/budtender/internal/config"
	"github.com/leafwise/budtender/internal/inventory"
	"github.com/leafwise/budtender/internal/storage"
)

// guidanceView mirrors the response JSON the server renders.
type guidanceView struct {
	Query          string        `json:"query"`
	AIText         string        `json:"ai_text"`
	Benefits       []string      `json:"benefits"`
	Products       []productView `json:"products"`
	PartialFailure bool          `json:"partial_failure"`
}

type productView struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Strain   string `json:"strain"`
	Reason   string `json:"reason"`
}

type statusEventView struct {
	State    string        `json:"state"`
	Response *guidanceView `json:"response"`
	Error    string        `json:"error"`
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a guidance question",
	Long: `Ask a guidance question and print the assembled answer.

Examples:
  budtender ask "something to help me sleep"
  budtender ask --level experienced "strongest legal edible you carry"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		level, _ := cmd.Flags().GetString("level")
		sessionID, _ := cmd.Flags().GetString("session")
		if sessionID == "" {
			sessionID = uuid.New().String()
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		client.sessionID = sessionID

		body := map[string]any{"query": query}
		if level != "" {
			body["experience_level"] = level
		}
		resp, err := client.post(cmd.Context(), "/api/guidance", body)
		if err != nil {
			return err
		}
		var ticket struct {
			SessionID string `json:"session_id"`
		}
		if err := decodeJSON(resp, &ticket); err != nil {
			return err
		}

		printStep("Thinking...")
		final, err := waitForAnswer(cmd.Context(), client.baseURL, ticket.SessionID)
		if err != nil {
			return err
		}

		renderGuidance(final)
		return nil
	},
}

// waitForAnswer follows the session's status event stream until a terminal
// event arrives. The streaming client carries no timeout: a cold backend
// can take minutes and the server closes the stream itself.
func waitForAnswer(ctx context.Context, baseURL, sessionID string) (*guidanceView, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		baseURL+"/api/guidance/"+sessionID+"/events", nil)
	if err != nil {
		return nil, err
	}

	streamClient := &http.Client{Timeout: 0}
	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("subscribing to status events: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("event stream returned %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev statusEventView
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			return nil, fmt.Errorf("decoding status event: %w", err)
		}
		switch ev.State {
		case "pending":
			continue
		case "error":
			if ev.Response != nil {
				// Total connectivity failure still yields a renderable
				// degraded answer; show it alongside the error.
				printWarning("guidance degraded: %s", ev.Error)
				return ev.Response, nil
			}
			return nil, fmt.Errorf("guidance failed: %s", ev.Error)
		default:
			if ev.Response == nil {
				return nil, fmt.Errorf("terminal event %q carried no response", ev.State)
			}
			return ev.Response, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading status events: %w", err)
	}
	return nil, fmt.Errorf("event stream ended without a terminal event")
}

func renderGuidance(g *guidanceView) {
	if g.PartialFailure {
		printWarning("some parts of this answer are canned fallbacks")
	}

	fmt.Println()
	fmt.Println(g.AIText)

	if len(g.Benefits) > 0 {
		fmt.Printf("\n%s\n", colorize(colorBold, "Things people use hemp products for:"))
		for _, b := range g.Benefits {
			fmt.Printf("  • %s\n", b)
		}
	}

	if len(g.Products) > 0 {
		fmt.Printf("\n%s\n", colorize(colorBold, "Suggested products:"))
		for _, p := range g.Products {
			line := p.Name
			if p.Category != "" {
				line += " (" + p.Category + ")"
			}
			fmt.Printf("  %s\n", colorize(colorCyan, line))
			if p.Reason != "" {
				fmt.Printf("    %s\n", p.Reason)
			}
		}
	}
}

func init() {
	askCmd.Flags().String("level", "", "experience level: new, casual, or experienced")
	askCmd.Flags().String("session", "", "session id (default: fresh session)")
}

// --- products ---

var productsCmd = &cobra.Command{
	Use:   "products <query>",
	Short: "Search the product catalog directly",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		level, _ := cmd.Flags().GetString("level")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := "/api/products/search?q=" + url.QueryEscape(query)
		if level != "" {
			path += "&level=" + url.QueryEscape(level)
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var result struct {
			Products []productView `json:"products"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Products) == 0 {
			fmt.Println("No products found.")
			return nil
		}
		for _, p := range result.Products {
			line := p.Name
			if p.Category != "" {
				line += " (" + p.Category + ")"
			}
			fmt.Printf("%s\n", colorize(colorCyan, line))
			if p.Reason != "" {
				fmt.Printf("  %s\n", p.Reason)
			}
		}
		return nil
	},
}

func init() {
	productsCmd.Flags().String("level", "", "experience level: new, casual, or experienced")
}

// --- catalog ---

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the embedded product catalog",
}

var catalogImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a JSON catalog file into the embedded store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		replace, _ := cmd.Flags().GetBool("replace")

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		importer := inventory.NewImporter(store)
		var n int
		if replace {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading catalog file: %w", err)
			}
			items, err := inventory.ParseCatalog(data)
			if err != nil {
				return err
			}
			n, err = importer.Replace(cmd.Context(), items)
			if err != nil {
				return err
			}
		} else {
			n, err = importer.ImportFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
		}

		printSuccess("Imported %d catalog items", n)
		return nil
	},
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored catalog items",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		items, err := store.ListItems(limit, 0)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("Catalog is empty.")
			return nil
		}
		for _, item := range items {
			fmt.Printf("%s  %s  %s\n",
				colorize(colorCyan, item.ID),
				item.Category,
				item.Name,
			)
		}
		return nil
	},
}

var catalogCOACmd = &cobra.Command{
	Use:   "coa <item-id> <pdf>",
	Short: "Attach a certificate of analysis to a catalog item",
	Long: `Extract the regulated-compound percentage from a lab certificate
of analysis PDF and record it on the stored catalog item.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		importer := inventory.NewImporter(store)
		pct, err := importer.AttachCOA(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}

		printSuccess("Recorded %.2f%% on item %s", pct, args[0])
		return nil
	},
}

func openStore() (*storage.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	return store, nil
}

func init() {
	catalogImportCmd.Flags().Bool("replace", false, "replace the whole catalog instead of upserting")
	catalogListCmd.Flags().Int("limit", 50, "maximum number of items to list")
	catalogCmd.AddCommand(catalogImportCmd)
	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogCOACmd)
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

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Show a single configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			if k.Key == args[0] {
				fmt.Println(k.Value)
				return nil
			}
		}
		return fmt.Errorf("unknown config key: %q", args[0])
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show where persisted configuration lives",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.BackendLocation())
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

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Reset a configuration value to its default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}

		printSuccess("Unset %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
	configCmd.AddCommand(configPathCmd)
}
