package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/zulandar/masquerade/internal/config"
	"github.com/zulandar/masquerade/internal/persona"
)

func newStatusCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show status of a running Masquerade bot",
		Long:  "Queries the local status endpoint of a running bot and prints service health and the active persona count.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "masquerade.yaml", "path to Masquerade config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "status endpoint port (default: from config)")
	return cmd
}

func runStatus(cmd *cobra.Command, configPath string, port int) error {
	if port == 0 {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		port = cfg.Dashboard.Port
	}

	st, err := fetchStatus(fmt.Sprintf("http://localhost:%d/status", port))
	if err != nil {
		return fmt.Errorf("is the bot running? %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Uptime:           %s\n", st.Uptime)
	fmt.Fprintf(out, "AI service:       %s\n", availabilityLabel(st.AIAvailable))
	fmt.Fprintf(out, "Database:         %s\n", availabilityLabel(st.DBAvailable))
	fmt.Fprintf(out, "Active personas:  %d\n", st.ActiveSessions)
	return nil
}

func fetchStatus(url string) (*persona.Status, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status endpoint returned %d", resp.StatusCode)
	}

	var st persona.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &st, nil
}

func availabilityLabel(up bool) string {
	if up {
		return "online"
	}
	return "offline"
}
