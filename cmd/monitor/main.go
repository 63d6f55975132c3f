package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"outbreak/internal/display"
	"outbreak/internal/domain"
	"outbreak/internal/journal"
)

type client struct {
	baseURL string
	http    *http.Client
}

func main() {
	addr := flag.String("addr", "http://localhost:8092", "outbreak read API base URL")
	interval := flag.Duration("interval", 500*time.Millisecond, "refresh interval")
	text := flag.Bool("text", false, "render plain text to stdout instead of the terminal UI")
	events := flag.Int("events", 0, "print the first N recorded events of the run and exit")
	follow := flag.Bool("follow", false, "print live events until the game ends")
	flag.Parse()

	c := &client{
		baseURL: strings.TrimRight(*addr, "/"),
		http: &http.Client{
			Timeout: 5 * time.Second,
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID, err := waitHealth(ctx, c, 30*time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "outbreak health check failed: %v\n", err)
		os.Exit(1)
	}

	if *events > 0 {
		items, err := c.listRunEvents(runID, *events)
		if err != nil {
			fmt.Fprintf(os.Stderr, "list run events: %v\n", err)
			os.Exit(1)
		}
		for _, ev := range items {
			fmt.Println(journal.FormatLine(ev))
		}
		return
	}

	if *follow {
		err := followEvents(ctx, streamURL(c.baseURL), func(ev domain.Event) {
			fmt.Println(journal.FormatLine(ev))
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "follow events: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *text {
		if err := display.Loop(ctx, c.frame, os.Stdout, *interval); err != nil {
			fmt.Fprintf(os.Stderr, "monitor failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	tui := display.NewTUI(fmt.Sprintf("Outbreak %s @ %s", runID, c.baseURL))
	go func() {
		err := followEvents(ctx, streamURL(c.baseURL), func(ev domain.Event) {
			tui.AppendEvent(journal.FormatLine(ev))
		})
		if err != nil {
			tui.AppendEvent(fmt.Sprintf("event stream: %v", err))
		}
	}()
	if err := tui.Run(ctx, c.frame, *interval); err != nil {
		fmt.Fprintf(os.Stderr, "monitor failed: %v\n", err)
		os.Exit(1)
	}
}

func waitHealth(ctx context.Context, c *client, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		var health struct {
			Status string `json:"status"`
			RunID  string `json:"run_id"`
		}
		if err := c.getJSON("/healthz", &health); err == nil && health.Status == "ok" {
			return health.RunID, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(400 * time.Millisecond):
		}
	}
	return "", fmt.Errorf("timeout waiting for /healthz")
}

func (c *client) frame() (display.Frame, error) {
	var f display.Frame
	if err := c.getJSON("/snapshot", &f.Snapshot); err != nil {
		return display.Frame{}, err
	}
	if err := c.getJSON("/stats", &f.Stats); err != nil {
		return display.Frame{}, err
	}
	return f, nil
}

func (c *client) listRunEvents(runID string, limit int) ([]domain.Event, error) {
	var events []domain.Event
	err := c.getJSON(fmt.Sprintf("/runs/%s/events?limit=%d", runID, limit), &events)
	return events, err
}

func (c *client) getJSON(path string, out any) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("GET %s: %s %s", path, resp.Status, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
