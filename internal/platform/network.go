package platform

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	nmService   = "org.freedesktop.NetworkManager"
	nmPath      = "/org/freedesktop/NetworkManager"
	nmIfc       = "org.freedesktop.NetworkManager"
	nmActiveIfc = "org.freedesktop.NetworkManager.Connection.Active"
)

// NetworkProbe classifies connection quality via NetworkManager.
type NetworkProbe struct {
	conn   *dbus.Conn
	logger *slog.Logger
}

// NewNetworkProbe connects to the system bus.
func NewNetworkProbe(logger *slog.Logger) (*NetworkProbe, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect system bus: %w", err)
	}
	return &NetworkProbe{conn: conn, logger: logger}, nil
}

// Classify maps the primary connection's type to a quality class.
// Anything unprobeable is NetUnknown, never an error to act on.
func (n *NetworkProbe) Classify() NetworkClass {
	nm := n.conn.Object(nmService, dbus.ObjectPath(nmPath))

	primaryVar, err := nm.GetProperty(nmIfc + ".PrimaryConnection")
	if err != nil {
		n.logger.Debug("read primary connection failed", "error", err)
		return NetUnknown
	}
	primary, ok := primaryVar.Value().(dbus.ObjectPath)
	if !ok || primary == "/" {
		return NetUnknown
	}

	active := n.conn.Object(nmService, primary)
	typeVar, err := active.GetProperty(nmActiveIfc + ".Type")
	if err != nil {
		n.logger.Debug("read connection type failed", "error", err)
		return NetUnknown
	}
	connType, _ := typeVar.Value().(string)

	return classifyConnectionType(connType)
}

// classifyConnectionType maps a NetworkManager connection type string
// to the engine's quality buckets.
func classifyConnectionType(connType string) NetworkClass {
	switch {
	case strings.Contains(connType, "wireless"), strings.Contains(connType, "ethernet"):
		return NetWifi
	case connType == "gsm":
		// Cellular without modem detail: assume mid-tier.
		return Net3G
	case connType == "cdma":
		return Net2G
	case connType == "":
		return NetUnknown
	default:
		return Net4G
	}
}

// Watch subscribes to NetworkManager PropertiesChanged signals and
// reclassifies on every change.
func (n *NetworkProbe) Watch(onChange func(NetworkClass)) error {
	if err := n.conn.AddMatchSignal(
		dbus.WithMatchInterface(propsIfc),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchObjectPath(dbus.ObjectPath(nmPath)),
	); err != nil {
		return fmt.Errorf("subscribe to network changes: %w", err)
	}

	ch := make(chan *dbus.Signal, 16)
	n.conn.Signal(ch)

	go func() {
		for range ch {
			onChange(n.Classify())
		}
	}()
	return nil
}

// Close drops the bus connection.
func (n *NetworkProbe) Close() error {
	return n.conn.Close()
}
