package poll

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/rs/zerolog/log"

	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/models"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/vault"
)

// snmpFetchFunc gets a batch of OIDs from one device. Pluggable for tests.
type snmpFetchFunc func(ctx context.Context, host string, creds vault.Credentials, oids []string) (map[string]string, error)

// pollSNMP fetches each poll group and evaluates its alert conditions
// against the returned values.
func (s *Scheduler) pollSNMP(ctx context.Context, target *models.Target, addon *models.Addon) error {
	spec := addon.Manifest.SNMPPoll
	if spec == nil {
		return fmt.Errorf("addon %s has no snmp_poll block", addon.ID)
	}

	creds := s.vault.Resolve(ctx, target, addon, vault.TypeSNMP)

	var firstErr error
	for _, group := range spec.PollGroups {
		values, err := s.snmpFetch(ctx, target.IPAddress, creds, group.OIDs)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for _, cond := range group.AlertConditions {
			s.evaluateCondition(ctx, target, addon, cond, values)
		}
	}
	return firstErr
}

// evaluateCondition raises an alert when the condition matches and
// auto-resolves the matching open alert when it stops matching.
func (s *Scheduler) evaluateCondition(ctx context.Context, target *models.Target, addon *models.Addon, cond models.AlertCondition, values map[string]string) {
	observed, ok := values[trimOID(cond.Field)]
	if !ok {
		return
	}

	if !conditionMatches(cond, observed) {
		resolved, err := s.engine.AutoResolve(ctx, addon.ID, cond.AlertType, target.IPAddress)
		if err != nil {
			log.Error().Err(err).Str("target", target.IPAddress).Str("alertType", cond.AlertType).
				Msg("Failed to auto-resolve condition alert")
		} else if resolved {
			log.Info().Str("target", target.IPAddress).Str("alertType", cond.AlertType).
				Msg("Polled value back in range, alert auto-resolved")
		}
		return
	}

	parsed := &models.ParsedAlert{
		AddonID:    addon.ID,
		AlertType:  cond.AlertType,
		DeviceIP:   target.IPAddress,
		DeviceName: target.Name,
		Message:    fmt.Sprintf("%s %s %v (observed %s)", cond.Field, cond.Operator, cond.Value, observed),
		RawData: map[string]any{
			"oid":      cond.Field,
			"observed": observed,
			"expected": cond.Value,
			"operator": cond.Operator,
		},
	}
	if _, err := s.engine.Process(ctx, parsed, addon); err != nil {
		log.Error().Err(err).Str("target", target.IPAddress).Str("addon", addon.ID).
			Msg("Failed to process condition alert")
	}
}

// conditionMatches compares numerically when both sides parse as numbers,
// falling back to string comparison.
func conditionMatches(cond models.AlertCondition, observed string) bool {
	expected := fmt.Sprintf("%v", cond.Value)

	obsNum, obsErr := strconv.ParseFloat(strings.TrimSpace(observed), 64)
	expNum, expErr := strconv.ParseFloat(strings.TrimSpace(expected), 64)
	numeric := obsErr == nil && expErr == nil

	switch cond.Operator {
	case "equals":
		if numeric {
			return obsNum == expNum
		}
		return observed == expected
	case "not_equals":
		if numeric {
			return obsNum != expNum
		}
		return observed != expected
	case "greater_than":
		return numeric && obsNum > expNum
	case "less_than":
		return numeric && obsNum < expNum
	case "contains":
		return strings.Contains(observed, expected)
	}
	return false
}

// snmpGet is the production fetcher: a single Get over SNMPv2c.
func snmpGet(ctx context.Context, host string, creds vault.Credentials, oids []string) (map[string]string, error) {
	community := creds.Community
	if community == "" {
		community = "public"
	}
	port := uint16(161)
	if creds.Port > 0 {
		port = uint16(creds.Port)
	}

	client := &gosnmp.GoSNMP{
		Target:    host,
		Port:      port,
		Community: community,
		Version:   gosnmp.Version2c,
		Timeout:   5 * time.Second,
		Retries:   0,
		Context:   ctx,
	}
	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("snmp connect %s: %w", host, err)
	}
	defer client.Conn.Close()

	result, err := client.Get(oids)
	if err != nil {
		return nil, fmt.Errorf("snmp get %s: %w", host, err)
	}

	values := make(map[string]string, len(result.Variables))
	for _, vb := range result.Variables {
		if vb.Type == gosnmp.NoSuchObject || vb.Type == gosnmp.NoSuchInstance {
			continue
		}
		values[trimOID(vb.Name)] = pduString(vb)
	}
	return values, nil
}

func pduString(vb gosnmp.SnmpPDU) string {
	switch vb.Type {
	case gosnmp.OctetString:
		if b, ok := vb.Value.([]byte); ok {
			return string(b)
		}
	case gosnmp.ObjectIdentifier, gosnmp.IPAddress:
		if s, ok := vb.Value.(string); ok {
			return trimOID(s)
		}
	case gosnmp.Integer, gosnmp.Counter32, gosnmp.Gauge32, gosnmp.TimeTicks, gosnmp.Counter64, gosnmp.Uinteger32:
		return gosnmp.ToBigInt(vb.Value).String()
	}
	return fmt.Sprintf("%v", vb.Value)
}

func trimOID(oid string) string {
	if len(oid) > 0 && oid[0] == '.' {
		return oid[1:]
	}
	return oid
}
