// Package gate evaluates external quality-gate verdicts for pipeline runs.
package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/conveyor-ci/conveyor/pipeline"
)

// Config holds the connection settings for the analysis server.
type Config struct {
	// HostURL is the base URL of the analysis server, e.g. http://sonar:9000.
	HostURL string
	// Token authenticates the gate query; sent as a bearer token when set.
	Token string
	// PollInterval is the delay between verdict queries. Defaults to 10s.
	PollInterval time.Duration
}

// Evaluator polls an analysis server's project-status endpoint until the
// quality gate reports a terminal verdict or the timeout elapses. It is the
// only blocking component of the orchestration core.
type Evaluator struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

// New creates an Evaluator. logger may be nil.
func New(cfg Config, logger *slog.Logger) (*Evaluator, error) {
	if cfg.HostURL == "" {
		return nil, fmt.Errorf("gate evaluator: host URL is required")
	}
	if _, err := url.Parse(cfg.HostURL); err != nil {
		return nil, fmt.Errorf("gate evaluator: invalid host URL %q: %w", cfg.HostURL, err)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}, nil
}

// projectStatus is the shape of the server's gate verdict response.
type projectStatus struct {
	ProjectStatus struct {
		Status     string `json:"status"` // OK, ERROR, or NONE while pending
		Conditions []struct {
			MetricKey string `json:"metricKey"`
			Status    string `json:"status"`
		} `json:"conditions"`
	} `json:"projectStatus"`
}

// Evaluate blocks until the server reports a verdict for the project key or
// the timeout elapses. On timeout it returns {Pass: false, Reason:
// "timeout"} with a nil error; the engine applies the stage's on_timeout
// policy. A transport or decode failure is returned as an error.
func (e *Evaluator) Evaluate(ctx context.Context, signal string, timeout time.Duration) (pipeline.GateVerdict, error) {
	deadline := time.Now().Add(timeout)

	for {
		status, err := e.query(ctx, signal)
		if err != nil {
			return pipeline.GateVerdict{}, err
		}

		switch status.ProjectStatus.Status {
		case "OK":
			return pipeline.GateVerdict{Pass: true, Reason: "quality gate passed"}, nil
		case "ERROR":
			return pipeline.GateVerdict{Pass: false, Reason: failedConditions(status)}, nil
		}

		e.logger.Debug("gate verdict pending", "project", signal, "status", status.ProjectStatus.Status)

		// The wait never overshoots the deadline: the sleep is capped at
		// the remaining time, so a timeout shorter than the poll interval
		// still returns at the deadline.
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return pipeline.GateVerdict{Pass: false, Reason: pipeline.GateReasonTimeout}, nil
		}
		wait := e.cfg.PollInterval
		if wait > remaining {
			wait = remaining
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return pipeline.GateVerdict{}, fmt.Errorf("gate evaluation canceled: %w", ctx.Err())
		case <-timer.C:
		}
		if !time.Now().Before(deadline) {
			return pipeline.GateVerdict{Pass: false, Reason: pipeline.GateReasonTimeout}, nil
		}
	}
}

func (e *Evaluator) query(ctx context.Context, projectKey string) (*projectStatus, error) {
	u := fmt.Sprintf("%s/api/qualitygates/project_status?projectKey=%s",
		strings.TrimSuffix(e.cfg.HostURL, "/"), url.QueryEscape(projectKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building gate query: %w", err)
	}
	if e.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.Token)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying gate status for %s: %w", projectKey, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("gate status query for %s returned %d: %s",
			projectKey, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var status projectStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decoding gate status for %s: %w", projectKey, err)
	}
	return &status, nil
}

// failedConditions summarizes the failing metrics into a verdict reason.
func failedConditions(status *projectStatus) string {
	var failing []string
	for _, c := range status.ProjectStatus.Conditions {
		if c.Status == "ERROR" {
			failing = append(failing, c.MetricKey)
		}
	}
	if len(failing) == 0 {
		return "quality gate failed"
	}
	return "quality gate failed: " + strings.Join(failing, ", ")
}
