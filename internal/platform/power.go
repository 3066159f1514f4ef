package platform

import (
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"
)

const (
	upowerService   = "org.freedesktop.UPower"
	upowerDevice    = "/org/freedesktop/UPower/devices/DisplayDevice"
	upowerDeviceIfc = "org.freedesktop.UPower.Device"
	propsIfc        = "org.freedesktop.DBus.Properties"
)

// UPower battery states we care about.
const (
	upowerStateCharging     uint32 = 1
	upowerStateFullyCharged uint32 = 4
)

// PowerProbe reads battery level and charging state from UPower over
// the system bus, and streams change events.
type PowerProbe struct {
	conn   *dbus.Conn
	logger *slog.Logger
}

// NewPowerProbe connects to the system bus.
func NewPowerProbe(logger *slog.Logger) (*PowerProbe, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect system bus: %w", err)
	}
	return &PowerProbe{conn: conn, logger: logger}, nil
}

// Read returns the current battery state. Best-effort: probe failures
// return an unknown state and an error to log, never to act on.
func (p *PowerProbe) Read() (BatteryState, error) {
	obj := p.conn.Object(upowerService, dbus.ObjectPath(upowerDevice))

	pctVar, err := obj.GetProperty(upowerDeviceIfc + ".Percentage")
	if err != nil {
		return BatteryState{}, fmt.Errorf("read battery percentage: %w", err)
	}
	stateVar, err := obj.GetProperty(upowerDeviceIfc + ".State")
	if err != nil {
		return BatteryState{}, fmt.Errorf("read battery state: %w", err)
	}

	pct, _ := pctVar.Value().(float64)
	state, _ := stateVar.Value().(uint32)

	return BatteryState{
		Percent:  pct,
		Charging: state == upowerStateCharging || state == upowerStateFullyCharged,
		Known:    true,
	}, nil
}

// Watch subscribes to battery PropertiesChanged signals and delivers a
// fresh reading per change until the signal channel closes.
func (p *PowerProbe) Watch(onChange func(BatteryState)) error {
	if err := p.conn.AddMatchSignal(
		dbus.WithMatchInterface(propsIfc),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchObjectPath(dbus.ObjectPath(upowerDevice)),
	); err != nil {
		return fmt.Errorf("subscribe to power changes: %w", err)
	}

	ch := make(chan *dbus.Signal, 16)
	p.conn.Signal(ch)

	go func() {
		for range ch {
			state, err := p.Read()
			if err != nil {
				p.logger.Debug("battery re-read failed", "error", err)
				continue
			}
			onChange(state)
		}
	}()
	return nil
}

// Close drops the bus connection.
func (p *PowerProbe) Close() error {
	return p.conn.Close()
}
