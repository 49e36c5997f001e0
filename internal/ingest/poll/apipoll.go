package poll

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/models"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/parser"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/vault"
)

const maxPollBodyBytes = 1 << 20 // 1 MiB

// pollAPI probes each configured HTTP endpoint on the target. A failed
// probe with alert_on_failure set raises a synthetic alert; a later
// success auto-resolves it. The first unreachable endpoint stops the
// sweep since the device is presumed down.
func (s *Scheduler) pollAPI(ctx context.Context, target *models.Target, addon *models.Addon) error {
	spec := addon.Manifest.APIPoll
	if spec == nil {
		return fmt.Errorf("addon %s has no api_poll block", addon.ID)
	}

	creds := s.vault.Resolve(ctx, target, addon, vault.TypeHTTP)
	base := expandURLTemplate(spec.BaseURLTemplate, target)

	var firstErr error
	for _, endpoint := range spec.Endpoints {
		body, err := s.fetchEndpoint(ctx, base, endpoint, spec.AuthType, creds)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			if endpoint.AlertOnFailure != "" {
				s.raiseFailure(ctx, target, addon, endpoint, base, err)
			}
			// Device unreachable; the remaining endpoints would only
			// time out one by one.
			break
		}

		if endpoint.AlertOnFailure != "" {
			s.clearFailure(ctx, target, addon, endpoint)
		}
		s.processBody(ctx, target, addon, body)
	}
	return firstErr
}

// fetchEndpoint performs one HTTP probe and returns the response body.
// Non-2xx statuses count as failures.
func (s *Scheduler) fetchEndpoint(ctx context.Context, base string, endpoint models.APIPollEndpoint, authType string, creds vault.Credentials) ([]byte, error) {
	timeout := 10 * time.Second
	if endpoint.TimeoutSeconds > 0 {
		timeout = time.Duration(endpoint.TimeoutSeconds) * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := endpoint.Method
	if method == "" {
		method = http.MethodGet
	}
	url := base + endpoint.Path

	req, err := http.NewRequestWithContext(reqCtx, method, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	switch authType {
	case "basic":
		if creds.Username != "" {
			req.SetBasicAuth(creds.Username, creds.Password)
		}
	case "bearer":
		if creds.Token != "" {
			req.Header.Set("Authorization", "Bearer "+creds.Token)
		}
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPollBodyBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s %s: status %d", method, url, resp.StatusCode)
	}
	return body, nil
}

// raiseFailure synthesizes an alert for an unreachable endpoint. The
// parsed event bypasses the parser since there is no payload to parse.
func (s *Scheduler) raiseFailure(ctx context.Context, target *models.Target, addon *models.Addon, endpoint models.APIPollEndpoint, base string, cause error) {
	parsed := &models.ParsedAlert{
		AddonID:    addon.ID,
		AlertType:  endpoint.AlertOnFailure,
		DeviceIP:   target.IPAddress,
		DeviceName: target.Name,
		Message:    fmt.Sprintf("Failed to reach %s%s: %v", base, endpoint.Path, cause),
		RawData: map[string]any{
			"url":   base + endpoint.Path,
			"error": cause.Error(),
		},
	}
	if _, err := s.engine.Process(ctx, parsed, addon); err != nil {
		log.Error().Err(err).Str("target", target.IPAddress).Str("addon", addon.ID).
			Msg("Failed to raise poll failure alert")
	}
}

// clearFailure resolves the failure alert for an endpoint that is
// reachable again.
func (s *Scheduler) clearFailure(ctx context.Context, target *models.Target, addon *models.Addon, endpoint models.APIPollEndpoint) {
	resolved, err := s.engine.AutoResolve(ctx, addon.ID, endpoint.AlertOnFailure, target.IPAddress)
	if err != nil {
		log.Error().Err(err).Str("target", target.IPAddress).Str("addon", addon.ID).
			Msg("Failed to auto-resolve poll failure alert")
		return
	}
	if resolved {
		log.Info().Str("target", target.IPAddress).Str("alertType", endpoint.AlertOnFailure).
			Msg("Endpoint reachable again, alert auto-resolved")
	}
}

// processBody runs a successful response through the addon parser. Health
// endpoints often return bodies with nothing alert-shaped in them, so an
// unparseable body is not an error here.
func (s *Scheduler) processBody(ctx context.Context, target *models.Target, addon *models.Addon, body []byte) {
	if len(body) == 0 {
		return
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return
	}
	payload[parser.FieldSourceIP] = target.IPAddress

	parsed, err := parser.Parse(payload, addon)
	if err != nil {
		return
	}
	if parsed.DeviceName == "" {
		parsed.DeviceName = target.Name
	}
	if _, err := s.engine.Process(ctx, parsed, addon); err != nil {
		log.Error().Err(err).Str("target", target.IPAddress).Str("addon", addon.ID).
			Msg("Failed to process polled payload")
	}
}

// expandURLTemplate substitutes target fields into the base URL template.
func expandURLTemplate(template string, target *models.Target) string {
	replacer := strings.NewReplacer(
		"{ip}", target.IPAddress,
		"{ip_address}", target.IPAddress,
		"{name}", target.Name,
	)
	return strings.TrimSuffix(replacer.Replace(template), "/")
}
