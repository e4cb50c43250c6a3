// Package cli provides the ctl commands that drive a running relaunch
// instance through its control API.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// APIClient is a client for the control API.
type APIClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
	Out     io.Writer
}

// NewAPIClient creates a new API client.
func NewAPIClient(baseURL, token string) *APIClient {
	return &APIClient{
		BaseURL: baseURL,
		Token:   token,
		Client:  &http.Client{Timeout: 10 * time.Second},
		Out:     os.Stdout,
	}
}

// NewCommands creates the ctl commands. defaultURL seeds the --api flag.
func NewCommands(defaultURL string) *cobra.Command {
	var apiURL string
	var apiToken string

	root := &cobra.Command{
		Use:   "ctl",
		Short: "Control a running relaunch instance",
	}

	root.PersistentFlags().StringVar(&apiURL, "api", defaultURL, "API server URL")
	root.PersistentFlags().StringVar(&apiToken, "token", os.Getenv("RELAUNCH_API_TOKEN"), "API authentication token")

	newClient := func(cmd *cobra.Command) *APIClient {
		c := NewAPIClient(apiURL, apiToken)
		c.Out = cmd.OutOrStdout()
		return c
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show update status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient(cmd).ShowStatus()
		},
	}

	var logCount int
	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the update log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient(cmd).ShowLogs(logCount)
		},
	}
	logsCmd.Flags().IntVarP(&logCount, "count", "n", 0, "Number of entries to show (0 for all)")

	var force bool
	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Start an update check",
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient(cmd).TriggerCheck(force)
		},
	}
	checkCmd.Flags().BoolVar(&force, "force", false, "Download and apply even when no update is available")

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Check API health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient(cmd).CheckHealth()
		},
	}

	root.AddCommand(statusCmd, logsCmd, checkCmd, healthCmd)
	return root
}

func (c *APIClient) doRequest(method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequest(method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}

	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.Client.Do(req)
}

func (c *APIClient) getJSON(path string, v interface{}) error {
	resp, err := c.doRequest("GET", path, nil)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error: %s - %s", resp.Status, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(v)
}

// statusResponse mirrors GET /api/v1/status.
type statusResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Time    string `json:"time"`
	Session struct {
		Updating        bool   `json:"updating"`
		LastCheck       int64  `json:"last_check"`
		AppState        string `json:"app_state"`
		LogEntries      int    `json:"log_entries"`
		StartupDone     bool   `json:"startup_done"`
		StartupAttempts int    `json:"startup_attempts"`
		StartupError    string `json:"startup_error"`
	} `json:"session"`
}

// ShowStatus displays the update status.
func (c *APIClient) ShowStatus() error {
	var status statusResponse
	if err := c.getJSON("/api/v1/status", &status); err != nil {
		return err
	}

	lastCheck := "never"
	if status.Session.LastCheck > 0 {
		lastCheck = time.Unix(status.Session.LastCheck, 0).Format(time.RFC3339)
	}

	w := tabwriter.NewWriter(c.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Status:\t%s\n", status.Status)
	fmt.Fprintf(w, "Version:\t%s\n", status.Version)
	fmt.Fprintf(w, "App state:\t%s\n", status.Session.AppState)
	fmt.Fprintf(w, "Updating:\t%t\n", status.Session.Updating)
	fmt.Fprintf(w, "Last check:\t%s\n", lastCheck)
	fmt.Fprintf(w, "Startup:\tdone=%t attempts=%d\n", status.Session.StartupDone, status.Session.StartupAttempts)
	if status.Session.StartupError != "" {
		fmt.Fprintf(w, "Startup error:\t%s\n", status.Session.StartupError)
	}
	fmt.Fprintf(w, "Log entries:\t%d\n", status.Session.LogEntries)
	return w.Flush()
}

// ShowLogs prints the update log, limited to the last count entries when count > 0.
func (c *APIClient) ShowLogs(count int) error {
	path := "/api/v1/logs"
	if count > 0 {
		path += "?last=" + strconv.Itoa(count)
	}

	var entries []string
	if err := c.getJSON(path, &entries); err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Fprintln(c.Out, "No update log entries")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintln(c.Out, e)
	}
	return nil
}

// TriggerCheck starts an update check on the running instance.
func (c *APIClient) TriggerCheck(force bool) error {
	resp, err := c.doRequest("POST", "/api/v1/check?force="+strconv.FormatBool(force), nil)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusAccepted:
		fmt.Fprintln(c.Out, "Update check started; follow progress with 'ctl logs'")
		return nil
	case http.StatusConflict:
		return fmt.Errorf("an update is already in progress")
	default:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error: %s - %s", resp.Status, string(body))
	}
}

// CheckHealth checks API health.
func (c *APIClient) CheckHealth() error {
	var health map[string]interface{}
	if err := c.getJSON("/api/v1/health", &health); err != nil {
		return err
	}

	fmt.Fprintf(c.Out, "Health: %v\n", health["status"])
	return nil
}
