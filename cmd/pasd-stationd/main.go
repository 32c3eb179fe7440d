// Command pasd-stationd runs one antenna station's control-building
// supervisor: it opens the Modbus-RTU bus to the FNDH and its SMARTboxes,
// runs startup/PDoC discovery, then drives the steady-state poll/reconcile
// loop until interrupted. Flag parsing follows
// rolfl-modbus/mbcli/mbcli.go's flags.NewParser pattern; the transport
// access-string grammar (tcp:host:port / rtu:device:baud:parity:stop)
// is grounded on rolfl-modbus/mbcli/client.go's client().
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/jessevdk/go-flags"

	modbus "github.com/andreww5au/pasd-station"
	"github.com/andreww5au/pasd-station/port"
	"github.com/andreww5au/pasd-station/station"
)

// Options are the daemon's command-line flags.
type Options struct {
	Verbose bool   `long:"verbose" description:"Log every poll and reconcile step"`
	Access  string `long:"bus" required:"true" description:"Modbus transport: tcp:host:port or rtu:device:baud:parity:stop"`
	Station string `long:"station" required:"true" description:"Station ID, used as the metrics path and store key"`
	FNDH    int    `long:"fndh-address" default:"31" description:"FNDH's Modbus address"`
	Listen  int    `long:"listen-address" default:"1" description:"Modbus address the station answers slave-mode requests on"`
}

var bauds = map[string]int{
	"1200": 1200, "2400": 2400, "4800": 4800, "9600": 9600,
	"19200": 19200, "38400": 38400, "57600": 57600, "115200": 115200,
}

var parities = map[string]byte{
	"N": modbus.ParityNone,
	"E": modbus.ParityEven,
	"O": modbus.ParityOdd,
}

// openLink parses an access string and opens the underlying transport,
// following rolfl-modbus/mbcli/client.go's tcp:/rtu: grammar.
func openLink(access string) (*modbus.Link, error) {
	parts := strings.Split(access, ":")
	switch parts[0] {
	case "tcp":
		if len(parts) != 3 {
			return nil, fmt.Errorf("expect tcp:host:port - not %q", access)
		}
		return modbus.NewTCP(parts[1] + ":" + parts[2])
	case "rtu":
		if len(parts) != 5 {
			return nil, fmt.Errorf("expect rtu:device:baud:parity:stop - not %q", access)
		}
		baud, ok := bauds[parts[2]]
		if !ok {
			return nil, fmt.Errorf("illegal baud %v", parts[2])
		}
		parity, ok := parities[parts[3]]
		if !ok {
			return nil, fmt.Errorf("illegal parity %v", parts[3])
		}
		stop, err := strconv.Atoi(parts[4])
		if err != nil {
			return nil, fmt.Errorf("illegal stop bits %v", parts[4])
		}
		return modbus.NewRTU(parts[1], baud, parity, stop)
	default:
		return nil, fmt.Errorf("unknown transport %q (expect tcp or rtu)", parts[0])
	}
}

func main() {
	opts := Options{}
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.Parse(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	link, err := openLink(opts.Access)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pasd-stationd: %v\n", err)
		os.Exit(1)
	}
	defer link.Close()

	logger := func(string, ...interface{}) {}
	if opts.Verbose {
		logger = func(format string, args ...interface{}) { fmt.Printf(format+"\n", args...) }
	}

	st := station.New(link, opts.Station, byte(opts.FNDH), nil, nil, station.Logger(logger))
	st.ListenAddress = byte(opts.Listen)

	allOff := make(map[int]port.WriteIntent, station.NumPDoCPorts)
	for p := 1; p <= station.NumPDoCPorts; p++ {
		allOff[p] = port.WriteIntent{DesireOnline: port.True, DesireOffline: port.False}
	}
	if err := st.Startup(allOff); err != nil {
		fmt.Fprintf(os.Stderr, "pasd-stationd: startup failed: %v\n", err)
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		<-sig
		close(done)
	}()

	st.Run(func() station.DesiredPorts {
		return station.DesiredPorts{FNDH: allOff}
	}, done)
}
