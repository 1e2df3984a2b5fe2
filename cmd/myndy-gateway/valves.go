package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// buildValvesCmd wires a thin CLI convenience around the admin HTTP
// surface a running gateway already exposes. It is not a second code
// path into valve state, only an http.Client pointed at --addr.
func buildValvesCmd() *cobra.Command {
	var addr string
	var pipelineID string

	cmd := &cobra.Command{
		Use:   "valves",
		Short: "Inspect or reset valve configuration on a running gateway",
	}
	cmd.PersistentFlags().StringVar(&addr, "addr", "http://localhost:8080", "Base URL of a running gateway")
	cmd.PersistentFlags().StringVar(&pipelineID, "pipeline-id", "myndy-gateway", "Pipeline ID path segment the gateway was started with")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "spec",
			Short: "Print the valve catalogue",
			RunE: func(cmd *cobra.Command, args []string) error {
				return printValvesJSON(addr, pipelineID, "/valves/spec")
			},
		},
		&cobra.Command{
			Use:   "current",
			Short: "Print current valve values",
			RunE: func(cmd *cobra.Command, args []string) error {
				return printValvesJSON(addr, pipelineID, "/valves")
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Reset all valves to their defaults",
			RunE: func(cmd *cobra.Command, args []string) error {
				return postValves(addr, pipelineID, "/valves/reset")
			},
		},
	)
	return cmd
}

func printValvesJSON(addr, pipelineID, path string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(addr + "/" + pipelineID + path)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway returned %s: %s", resp.Status, body)
	}
	var pretty any
	if err := json.Unmarshal(body, &pretty); err != nil {
		fmt.Println(string(body))
		return nil
	}
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func postValves(addr, pipelineID, path string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(addr+"/"+pipelineID+path, "application/json", nil)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway returned %s: %s", resp.Status, body)
	}
	fmt.Println(string(body))
	return nil
}
