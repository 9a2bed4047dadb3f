package midi

import (
	"fmt"
	"strings"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// FindOut returns the first MIDI output port whose name contains name
// (case-insensitive), or the first port when name is empty.
func FindOut(name string) (drivers.Out, error) {
	ports := gomidi.GetOutPorts()
	if len(ports) == 0 {
		return nil, fmt.Errorf("no MIDI output ports available")
	}
	if name == "" {
		return ports[0], nil
	}
	for _, p := range ports {
		if strings.Contains(strings.ToLower(p.String()), strings.ToLower(name)) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no MIDI output port matching %q", name)
}

// FindIn returns the first MIDI input port whose name contains name
// (case-insensitive), or the first port when name is empty.
func FindIn(name string) (drivers.In, error) {
	ports := gomidi.GetInPorts()
	if len(ports) == 0 {
		return nil, fmt.Errorf("no MIDI input ports available")
	}
	if name == "" {
		return ports[0], nil
	}
	for _, p := range ports {
		if strings.Contains(strings.ToLower(p.String()), strings.ToLower(name)) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no MIDI input port matching %q", name)
}

// Sender opens out and returns a function sending protocol events to it
func Sender(out drivers.Out) (func(Event) error, error) {
	send, err := gomidi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("open output %s: %w", out.String(), err)
	}
	return func(ev Event) error {
		return send(gomidi.Message(ev.Bytes()))
	}, nil
}

// Listen subscribes to single-byte realtime messages on in. fn receives
// the message byte and the driver's millisecond timestamp. The returned
// function stops listening.
func Listen(in drivers.In, fn func(msg byte, ms int32)) (func(), error) {
	stop, err := gomidi.ListenTo(in, func(msg gomidi.Message, ms int32) {
		if len(msg) == 1 {
			fn(msg[0], ms)
		}
	}, gomidi.UseTimeCode(), gomidi.UseActiveSense())
	if err != nil {
		return nil, fmt.Errorf("open input %s: %w", in.String(), err)
	}
	return stop, nil
}
