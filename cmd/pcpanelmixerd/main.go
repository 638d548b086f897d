// Command pcpanelmixerd wires a Plugin Host and a Routing Manager together
// and runs until interrupted, the way the teacher's routing_demo wired an
// audio engine and a player for a scripted demonstration.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pcpanel/mixer/devices"
	"github.com/pcpanel/mixer/loopback"
	"github.com/pcpanel/mixer/mixer"
	"github.com/pcpanel/mixer/routing"
)

func main() {
	configPath := flag.String("config", "pcpanel-mixer.json", "path to the routing configuration file")
	flag.Parse()

	host := loopback.Entry(loopback.PluginTypeUUID)
	if host == nil {
		log.Fatal("pcpanelmixerd: plugin host did not initialize")
	}

	directory := devices.NewStaticDirectory(devices.Devices{
		{ID: "default", Name: "System Output", IsOnline: true, HasOutputStream: true},
	}, "default")

	cfg, err := routing.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("pcpanelmixerd: loading config: %v", err)
	}

	manager := routing.NewManager(cfg, *configPath, host, directory,
		mixer.NewLoggingErrorHandler(nil, func(err error) { log.Println(err) }))
	if err := manager.Initialize(); err != nil {
		log.Fatalf("pcpanelmixerd: initializing routing manager: %v", err)
	}
	defer manager.Shutdown()

	log.Printf("pcpanelmixerd: running with instance id %s", manager.ID())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("pcpanelmixerd: shutting down")
}
