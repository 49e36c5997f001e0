package poll

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"

	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/models"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/parser"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/vault"
)

// sshRunFunc executes one command on a remote host. Pluggable for tests.
type sshRunFunc func(ctx context.Context, host string, creds vault.Credentials, command string) (string, error)

// pollSSH runs each configured command on the target and feeds its output
// through the addon parser. Output that does not parse is normal for
// healthy devices and is skipped quietly.
func (s *Scheduler) pollSSH(ctx context.Context, target *models.Target, addon *models.Addon) error {
	spec := addon.Manifest.SSH
	if spec == nil {
		return fmt.Errorf("addon %s has no ssh block", addon.ID)
	}

	creds := s.vault.Resolve(ctx, target, addon, vault.TypeSSH)
	if creds.Username == "" {
		return fmt.Errorf("no ssh username for target %s", target.IPAddress)
	}

	var firstErr error
	for _, cmd := range spec.Commands {
		output, err := s.sshRun(ctx, target.IPAddress, creds, cmd.Command)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			// Session dead or device unreachable; stop the sweep.
			break
		}

		parsed, err := parser.Parse(output, addon)
		if err != nil {
			continue
		}
		if parsed.DeviceIP == "" {
			parsed.DeviceIP = target.IPAddress
		}
		if parsed.DeviceName == "" {
			parsed.DeviceName = target.Name
		}
		if _, err := s.engine.Process(ctx, parsed, addon); err != nil {
			log.Error().Err(err).Str("target", target.IPAddress).Str("addon", addon.ID).
				Msg("Failed to process ssh command output")
		}
	}
	return firstErr
}

// sshExecute is the production runner: one session per command over a
// fresh connection.
func sshExecute(ctx context.Context, host string, creds vault.Credentials, command string) (string, error) {
	port := 22
	if creds.Port > 0 {
		port = creds.Port
	}
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))

	config := &ssh.ClientConfig{
		User: creds.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(creds.Password),
		},
		// Polled devices are registered by operators; host keys are not
		// tracked here.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         10 * time.Second,
	}

	dialer := net.Dialer{Timeout: config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", fmt.Errorf("ssh dial %s: %w", addr, err)
	}

	clientConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return "", fmt.Errorf("ssh handshake %s: %w", addr, err)
	}
	client := ssh.NewClient(clientConn, chans, reqs)
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("ssh session %s: %w", addr, err)
	}
	defer session.Close()

	output, err := session.CombinedOutput(command)
	if err != nil {
		return "", fmt.Errorf("ssh exec %q on %s: %w", command, addr, err)
	}
	return string(output), nil
}
