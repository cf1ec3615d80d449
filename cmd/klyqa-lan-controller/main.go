// klyqa-lan-controller drives Klyqa smart lamps and vacuums on the
// local network without the vendor cloud.
//
// Usage:
//
//	klyqa-lan-controller [options]
//
// Options:
//
//	-config      YAML config file
//	-data-dir    Cache directory for keys and device configs (default: ~/.klyqa)
//	-unit        Target unit id (omit with -discover)
//	-key         16-byte AES key in hex for the target (or for "all")
//	-ttl         Message time-to-live (default: 5s)
//	-timeout     Overall wait bound (default: 15s)
//	-discover    Broadcast-ping and list the devices that answered
//	-ping        Send a ping
//	-request     Request a full status report
//	-color       Set color as "r,g,b" (0-255 each)
//	-brightness  Set brightness percentage (0-100)
//	-power       Switch "on" or "off"
//	-transition  Transition time in milliseconds for color/brightness
//	-force       Send even when the value check fails
//	-verbose     Trace-level logging
//
// Example:
//
//	klyqa-lan-controller -unit 00ac629de9ad2f4409dc -key e901f0... -color 2,22,222 -transition 4000
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/pion/logging"

	"github.com/backkem/klyqa-lan/pkg/command"
	"github.com/backkem/klyqa-lan/pkg/controller"
	"github.com/backkem/klyqa-lan/pkg/keystore"
	"github.com/backkem/klyqa-lan/pkg/message"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML config file")
		dataDir    = flag.String("data-dir", "", "cache directory (default ~/.klyqa)")
		unit       = flag.String("unit", "", "target unit id")
		key        = flag.String("key", "", "AES key in hex")
		ttl        = flag.Duration("ttl", 5*time.Second, "message time-to-live")
		timeout    = flag.Duration("timeout", 15*time.Second, "overall wait bound")
		discover   = flag.Bool("discover", false, "broadcast-ping and list devices")
		ping       = flag.Bool("ping", false, "send a ping")
		request    = flag.Bool("request", false, "request a status report")
		color      = flag.String("color", "", `set color as "r,g,b"`)
		brightness = flag.Int("brightness", -1, "set brightness percentage")
		power      = flag.String("power", "", `switch "on" or "off"`)
		transition = flag.Int("transition", 0, "transition time in ms")
		force      = flag.Bool("force", false, "skip value checks")
		verbose    = flag.Bool("verbose", false, "trace-level logging")
	)
	flag.Parse()

	cfg := &controller.Config{}
	if *configPath != "" {
		var err error
		cfg, err = controller.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if cfg.DataDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.DataDir = home + "/.klyqa"
		}
	}

	loggerFactory := logging.NewDefaultLoggerFactory()
	if *verbose {
		loggerFactory.DefaultLogLevel = logging.LogLevelTrace
	} else {
		loggerFactory.DefaultLogLevel = logging.LogLevelWarn
	}
	cfg.LoggerFactory = loggerFactory

	if *key != "" {
		target := *unit
		if target == "" {
			target = keystore.WildcardID
		}
		if cfg.Keys == nil {
			cfg.Keys = make(map[string]string)
		}
		cfg.Keys[target] = *key
	}

	ctrl, err := controller.New(*cfg)
	if err != nil {
		log.Fatalf("Failed to create controller: %v", err)
	}
	if err := ctrl.Start(); err != nil {
		log.Fatalf("Failed to start controller: %v", err)
	}
	defer ctrl.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *discover {
		if _, err := ctrl.Discover(ctx, *ttl); err != nil {
			log.Fatalf("Discovery failed: %v", err)
		}
		// Give slower devices a moment to check in.
		time.Sleep(*ttl)
		for _, d := range ctrl.Registry().Devices() {
			fmt.Printf("%s\t%s\t%s\n", d.UnitID(), d.ProductID(), d.FirmwareVersion())
		}
		return
	}

	if *unit == "" {
		log.Fatal("Need -unit (or -discover)")
	}

	commands, err := buildCommands(*ping, *request, *color, *brightness, *power, *transition, *force)
	if err != nil {
		log.Fatal(err)
	}
	if len(commands) == 0 {
		log.Fatal("Nothing to send: pass -ping, -request, -color, -brightness or -power")
	}

	msg, err := ctrl.SendMessage(ctx, commands, *unit, *ttl)
	if err != nil {
		log.Fatalf("Send failed: %v", err)
	}
	if msg.State() != message.StateAnswered {
		log.Fatalf("No answer within %v (state %s)", *ttl, msg.State())
	}
	fmt.Println(string(msg.Answer()))
}

func buildCommands(ping, request bool, color string, brightness int, power string, transition int, force bool) ([]command.Command, error) {
	var out []command.Command

	if ping {
		c := command.Ping{}
		c.Force = force
		out = append(out, c)
	}
	if request {
		c := command.Request{}
		c.Force = force
		out = append(out, c)
	}
	if color != "" {
		var r, g, b int
		if _, err := fmt.Sscanf(color, "%d,%d,%d", &r, &g, &b); err != nil {
			return nil, fmt.Errorf(`bad -color %q, want "r,g,b"`, color)
		}
		c := command.Color{Red: r, Green: g, Blue: b}
		c.TransitionTime = transition
		c.Force = force
		out = append(out, c)
	}
	if brightness >= 0 {
		c := command.Brightness{Percentage: brightness}
		c.TransitionTime = transition
		c.Force = force
		out = append(out, c)
	}
	if power != "" {
		c := command.Power{Status: power}
		c.Force = force
		out = append(out, c)
	}
	return out, nil
}
