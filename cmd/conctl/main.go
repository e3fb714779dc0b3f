package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// conctl is a thin client for a running conclave gateway's HTTP API.

type client struct {
	baseURL  string
	password string
	http     *http.Client
}

func newClient(baseURL, password string) *client {
	return &client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		password: password,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *client) do(method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.password != "" {
		req.SetBasicAuth("conclave", c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("%s: %s", path, resp.Status)
	}
	if out != nil {
		return json.Unmarshal(data, out)
	}
	return nil
}

func parseArgs(args []string) map[string]string {
	result := make(map[string]string)
	for i := 0; i < len(args); i++ {
		if len(args[i]) > 2 && args[i][:2] == "--" && i+1 < len(args) {
			result[args[i][2:]] = args[i+1]
			i++
		}
	}
	return result
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  conctl presets")
	fmt.Fprintln(os.Stderr, `  conctl run --preset <name> [--mode quick|standard|deep] [--task "..."]`)
	fmt.Fprintln(os.Stderr, "  conctl runs")
	fmt.Fprintln(os.Stderr, `  conctl report --id "..."`)
	fmt.Fprintln(os.Stderr, `  conctl schedule create --name "..." --preset <name> --schedule "..." [--task "..."]`)
	fmt.Fprintln(os.Stderr, "  conctl schedule list")
	fmt.Fprintln(os.Stderr, `  conctl schedule delete --id "..."`)
	fmt.Fprintln(os.Stderr, "\nEnvironment:\n  CONCLAVE_URL       Gateway base URL (default http://localhost:8080)\n  CONCLAVE_PASSWORD  API password, if the gateway has auth enabled")
	os.Exit(1)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	baseURL := os.Getenv("CONCLAVE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	c := newClient(baseURL, os.Getenv("CONCLAVE_PASSWORD"))

	if len(os.Args) < 2 {
		usage()
	}

	command := os.Args[1]
	rest := os.Args[2:]

	switch command {
	case "presets":
		var presets []struct {
			Name     string   `json:"name"`
			Strategy string   `json:"strategy"`
			Roles    []string `json:"roles"`
		}
		if err := c.do("GET", "/api/presets", nil, &presets); err != nil {
			fatal("%v", err)
		}
		for _, p := range presets {
			fmt.Printf("  %s  [%s]  %s\n", p.Name, p.Strategy, strings.Join(p.Roles, ", "))
		}

	case "run":
		args := parseArgs(rest)
		if args["preset"] == "" {
			fatal("--preset is required")
		}
		var resp struct {
			ID string `json:"id"`
		}
		err := c.do("POST", "/api/runs", map[string]string{
			"preset": args["preset"],
			"mode":   args["mode"],
			"task":   args["task"],
		}, &resp)
		if err != nil {
			fatal("%v", err)
		}
		fmt.Printf("Run started: %s\n", resp.ID)

	case "runs":
		var runs []struct {
			ID     string `json:"id"`
			Preset string `json:"preset"`
			Mode   string `json:"mode"`
			Status string `json:"status"`
		}
		if err := c.do("GET", "/api/runs", nil, &runs); err != nil {
			fatal("%v", err)
		}
		if len(runs) == 0 {
			fmt.Println("No runs found.")
			return
		}
		for _, r := range runs {
			fmt.Printf("  %s  %s  %s/%s\n", r.ID, r.Status, r.Preset, r.Mode)
		}

	case "report":
		args := parseArgs(rest)
		if args["id"] == "" {
			fatal("--id is required")
		}
		req, err := http.NewRequest("GET", c.baseURL+"/api/runs/"+args["id"]+"/report", nil)
		if err != nil {
			fatal("%v", err)
		}
		if c.password != "" {
			req.SetBasicAuth("conclave", c.password)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			fatal("%v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			fatal("report: %s", resp.Status)
		}
		_, _ = io.Copy(os.Stdout, resp.Body)

	case "schedule":
		if len(rest) == 0 {
			usage()
		}
		runScheduleCommand(c, rest[0], rest[1:])

	default:
		fatal("unknown command: %s", command)
	}
}

func runScheduleCommand(c *client, sub string, rest []string) {
	switch sub {
	case "create":
		args := parseArgs(rest)
		if args["name"] == "" || args["preset"] == "" || args["schedule"] == "" {
			fatal("--name, --preset and --schedule are required")
		}
		var resp struct {
			ID string `json:"id"`
		}
		err := c.do("POST", "/api/schedules", map[string]string{
			"name":     args["name"],
			"preset":   args["preset"],
			"mode":     args["mode"],
			"task":     args["task"],
			"schedule": args["schedule"],
		}, &resp)
		if err != nil {
			fatal("%v", err)
		}
		fmt.Printf("Schedule created: %s\n", resp.ID)

	case "list":
		var schedules []struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Preset   string `json:"preset"`
			Status   string `json:"status"`
			Describe string `json:"describe"`
		}
		if err := c.do("GET", "/api/schedules", nil, &schedules); err != nil {
			fatal("%v", err)
		}
		if len(schedules) == 0 {
			fmt.Println("No schedules found.")
			return
		}
		for _, s := range schedules {
			fmt.Printf("  %s  %s  %s  %s  [%s]\n", s.ID, s.Status, s.Name, s.Preset, s.Describe)
		}

	case "delete":
		args := parseArgs(rest)
		if args["id"] == "" {
			fatal("--id is required")
		}
		if err := c.do("DELETE", "/api/schedules/"+args["id"], nil, nil); err != nil {
			fatal("%v", err)
		}
		fmt.Println("Schedule deleted.")

	default:
		usage()
	}
}
