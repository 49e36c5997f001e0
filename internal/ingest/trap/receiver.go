// Package trap receives SNMPv1/v2c traps over UDP and feeds them through
// the parser and engine. Malformed or unroutable datagrams are counted and
// dropped; nothing on this path is allowed to crash the listener.
package trap

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/rs/zerolog/log"

	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/engine"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/metrics"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/models"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/parser"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/registry"
)

// snmpTrapOID is the v2c varbind carrying the trap identity.
const snmpTrapOID = "1.3.6.1.6.3.1.1.4.1.0"

const processTimeout = 10 * time.Second

// Receiver listens for traps and dispatches them to the owning addon.
type Receiver struct {
	addr      string
	community string // optional filter; empty accepts any community
	registry  *registry.Registry
	engine    *engine.Engine
	listener  *gosnmp.TrapListener
}

// New builds a receiver bound to addr ("host:port").
func New(addr, community string, reg *registry.Registry, eng *engine.Engine) *Receiver {
	return &Receiver{
		addr:      addr,
		community: community,
		registry:  reg,
		engine:    eng,
	}
}

// Start binds the UDP socket and begins processing in the background. It
// returns once the listener is actually listening, or with the bind error.
func (r *Receiver) Start() error {
	listener := gosnmp.NewTrapListener()
	listener.Params = gosnmp.Default
	listener.OnNewTrap = r.handle

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", r.addr).Msg("Trap receiver listening")
		if err := listener.Listen(r.addr); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-listener.Listening():
	case err := <-errCh:
		return fmt.Errorf("trap listener on %s: %w", r.addr, err)
	}

	r.listener = listener
	return nil
}

// Stop closes the UDP socket.
func (r *Receiver) Stop() {
	if r.listener != nil {
		log.Info().Str("addr", r.addr).Msg("Trap receiver stopping")
		r.listener.Close()
	}
}

// handle processes one decoded trap packet. gosnmp already rejected
// undecodable datagrams before this point.
func (r *Receiver) handle(packet *gosnmp.SnmpPacket, addr *net.UDPAddr) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.TrapErrors.Inc()
			log.Error().Interface("panic", rec).Str("source", addr.String()).
				Msg("Panic while handling trap")
		}
	}()

	metrics.TrapsReceived.Inc()

	if r.community != "" && packet.Community != r.community {
		metrics.TrapsDropped.Inc()
		log.Debug().Str("source", addr.IP.String()).Msg("Trap community mismatch, dropping")
		return
	}

	trapOID, enterpriseOID := trapIdentity(packet)
	if trapOID == "" {
		metrics.TrapsDropped.Inc()
		log.Debug().Str("source", addr.IP.String()).Msg("Trap without identity, dropping")
		return
	}

	addon := r.registry.FindByOID(enterpriseOID)
	if addon == nil {
		addon = r.registry.FindByOID(trapOID)
	}
	if addon == nil {
		metrics.TrapsDropped.Inc()
		log.Debug().Str("trapOid", trapOID).Str("enterpriseOid", enterpriseOID).
			Msg("No addon for trap, dropping")
		return
	}

	src := &parser.TrapSource{
		SourceIP:      addr.IP.String(),
		TrapOID:       trapOID,
		EnterpriseOID: enterpriseOID,
		Varbinds:      collectVarbinds(packet),
		IsClear:       isClearTrap(addon, trapOID),
	}

	parsed, err := parser.Parse(src, addon)
	if err != nil {
		metrics.TrapsDropped.Inc()
		log.Debug().Err(err).Str("addon", addon.ID).Str("trapOid", trapOID).
			Msg("Trap parse failed, dropping")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	alert, err := r.engine.Process(ctx, parsed, addon)
	if err != nil {
		metrics.TrapErrors.Inc()
		log.Error().Err(err).Str("addon", addon.ID).Msg("Failed to process trap alert")
		return
	}
	if alert == nil {
		metrics.TrapsDropped.Inc()
		return
	}
	metrics.TrapsProcessed.Inc()
}

// trapIdentity derives (trap OID, enterprise OID) for both SNMP versions.
// For v1, generic trap 6 yields enterprise.0.specific; standard generics map
// into 1.3.6.1.6.3.1.1.5. For v2c the identity rides in snmpTrapOID.0 and
// the enterprise is the trap OID with its last two components stripped.
func trapIdentity(packet *gosnmp.SnmpPacket) (trapOID, enterpriseOID string) {
	if packet.Version == gosnmp.Version1 {
		enterpriseOID = trimOID(packet.SnmpTrap.Enterprise)
		if packet.SnmpTrap.GenericTrap == 6 {
			trapOID = fmt.Sprintf("%s.0.%d", enterpriseOID, packet.SnmpTrap.SpecificTrap)
		} else {
			trapOID = fmt.Sprintf("1.3.6.1.6.3.1.1.5.%d", packet.SnmpTrap.GenericTrap+1)
		}
		return trapOID, enterpriseOID
	}

	for _, vb := range packet.Variables {
		if trimOID(vb.Name) == snmpTrapOID {
			if oid, ok := vb.Value.(string); ok {
				trapOID = trimOID(oid)
			}
			break
		}
	}
	return trapOID, stripComponents(trapOID, 2)
}

// isClearTrap reports whether any trap definition names this OID as its
// clear counterpart.
func isClearTrap(addon *models.Addon, trapOID string) bool {
	if addon.Manifest == nil || addon.Manifest.SNMPTrap == nil {
		return false
	}
	for _, def := range addon.Manifest.SNMPTrap.TrapDefinitions {
		if def.ClearOID != "" && trimOID(def.ClearOID) == trapOID {
			return true
		}
	}
	return false
}

// collectVarbinds renders every varbind value as a string keyed by OID.
func collectVarbinds(packet *gosnmp.SnmpPacket) map[string]string {
	varbinds := make(map[string]string, len(packet.Variables))
	for _, vb := range packet.Variables {
		varbinds[trimOID(vb.Name)] = varbindString(vb)
	}
	return varbinds
}

func varbindString(vb gosnmp.SnmpPDU) string {
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

// stripComponents removes the last n dotted components from an OID.
func stripComponents(oid string, n int) string {
	for i := len(oid) - 1; i >= 0 && n > 0; i-- {
		if oid[i] == '.' {
			n--
			if n == 0 {
				return oid[:i]
			}
		}
	}
	return oid
}
