// Package config parses the broadcast.config file and its typed
// command-line equivalent: the G/E/E_thr/R/R_thr/D/D_thr sample sizes and
// thresholds, the node's own address/port, and the size of the roster it
// expects to run against. Grounded in the teacher's own plain key=value
// config style (core/config.go's TOML loading, simplified here to match
// the wire-mandated "key=value" line format named in the spec rather than
// TOML, since that format is an external contract this module must honor
// verbatim).
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config bundles everything broadcast.config carries: the node's own
// listen address, the roster size it expects, and the seven sample/
// threshold parameters named in the spec (G, E, E_thr, R, R_thr, D, D_thr).
type Config struct {
	Addr string
	Port int
	N    int

	Gossip            int
	Echo              int
	EchoThreshold     int
	Ready             int
	ReadyThreshold    int
	Delivery          int
	DeliveryThreshold int
}

// keys are the recognized broadcast.config lines, in the order the typed
// 9-positional-integer CLI form expects them (Addr is passed separately in
// that form, see ParseArgs).
var keys = []string{"addr", "port", "N", "G", "E", "E_thr", "R", "R_thr", "D", "D_thr"}

// ParseFile reads a broadcast.config file of "key=value" lines. Unknown
// keys are warned (to warnings) and ignored, matching the spec's stated
// tolerance for config drift between node versions.
func ParseFile(path string, warnings func(string)) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("config: malformed line %q", line)
		}
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !known(k) {
			if warnings != nil {
				warnings(fmt.Sprintf("config: ignoring unknown key %q", k))
			}
			continue
		}
		values[k] = v
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: scan %q: %w", path, err)
	}
	return fromValues(values)
}

func known(k string) bool {
	for _, want := range keys {
		if k == want {
			return true
		}
	}
	return false
}

func fromValues(values map[string]string) (*Config, error) {
	c := &Config{Addr: values["addr"]}
	ints := map[string]*int{
		"port":  &c.Port,
		"N":     &c.N,
		"G":     &c.Gossip,
		"E":     &c.Echo,
		"E_thr": &c.EchoThreshold,
		"R":     &c.Ready,
		"R_thr": &c.ReadyThreshold,
		"D":     &c.Delivery,
		"D_thr": &c.DeliveryThreshold,
	}
	for k, dst := range ints {
		v, ok := values[k]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("config: key %q: %w", k, err)
		}
		*dst = n
	}
	return c, nil
}

// ParseArgs builds a Config from the typed 9-positional-integer CLI form
// named in the spec's CLI/config surface: port, N, G, E, E_thr, R, R_thr,
// D, D_thr (addr is supplied separately since it is a string, not an int).
func ParseArgs(addr string, args []int) (*Config, error) {
	if len(args) != 9 {
		return nil, fmt.Errorf("config: expected 9 positional integers (port N G E E_thr R R_thr D D_thr), got %d", len(args))
	}
	return &Config{
		Addr:              addr,
		Port:              args[0],
		N:                 args[1],
		Gossip:            args[2],
		Echo:              args[3],
		EchoThreshold:     args[4],
		Ready:             args[5],
		ReadyThreshold:    args[6],
		Delivery:          args[7],
		DeliveryThreshold: args[8],
	}, nil
}
