package usecase

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/secmon-lab/ipasync/pkg/utils/logging"
	"github.com/secmon-lab/ipasync/pkg/utils/safe"
)

// DefaultProbeTimeout bounds each reachability probe
const DefaultProbeTimeout = time.Second

// DialFunc opens a connection, as net.Dialer.DialContext does
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// ServerTarget is one endpoint the tool depends on
type ServerTarget struct {
	Name string
	Host string
	Port int
}

// Address returns host:port
func (t ServerTarget) Address() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// ServerStatus is the probe result of one target
type ServerStatus struct {
	ServerTarget
	Reachable bool
}

// AllReachable reports whether every probe succeeded
func AllReachable(statuses []ServerStatus) bool {
	for _, s := range statuses {
		if !s.Reachable {
			return false
		}
	}
	return true
}

// ServerUseCase probes the directory, identity and mail servers
type ServerUseCase struct {
	targets []ServerTarget
	dial    DialFunc
	timeout time.Duration
}

func NewServerUseCase(targets []ServerTarget, dial DialFunc) *ServerUseCase {
	if dial == nil {
		dial = (&net.Dialer{}).DialContext
	}
	return &ServerUseCase{
		targets: targets,
		dial:    dial,
		timeout: DefaultProbeTimeout,
	}
}

// CheckServers opens and closes a TCP connection to every target in turn
func (uc *ServerUseCase) CheckServers(ctx context.Context) []ServerStatus {
	logger := logging.From(ctx)
	logger.Info("testing server connectivity")

	statuses := make([]ServerStatus, 0, len(uc.targets))
	for _, target := range uc.targets {
		status := ServerStatus{ServerTarget: target, Reachable: uc.probe(ctx, target)}
		if !status.Reachable {
			logger.Warn("could not connect to server", "server", target.Name, "address", target.Address())
		}
		statuses = append(statuses, status)
	}

	if AllReachable(statuses) {
		logger.Info("connectivity verified to all servers")
	}
	return statuses
}

func (uc *ServerUseCase) probe(ctx context.Context, target ServerTarget) bool {
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	conn, err := uc.dial(ctx, "tcp", target.Address())
	if err != nil {
		logging.From(ctx).Debug("probe failed", "address", target.Address(), "error", err)
		return false
	}
	safe.Close(ctx, conn)
	return true
}
