package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"

	"github.com/dverbeek/mqttwire/internal/config"
	"github.com/dverbeek/mqttwire/trace"

	"github.com/kardianos/service"
	log "github.com/sirupsen/logrus"
)

type program struct {
	configFlag string
	execDir    string
	cancel     context.CancelFunc
}

func (p *program) Start(s service.Service) error {
	cfg := config.Default()
	if p.configFlag != "" {
		c, err := config.New(p.configFlag)
		if err != nil {
			return err
		}
		cfg = c
		log.Infoln("Using config file:", p.configFlag)
	} else {
		toTry := filepath.Join(p.execDir, "config.json")
		if fileExists(toTry) {
			c, err := config.New(toTry)
			if err != nil {
				return err
			}
			cfg = c
			log.Infoln("Using config file:", toTry)
		} else {
			log.Infoln("No config file specified or found. Using defaults.")
		}
	}

	srv, err := trace.NewServer(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	go func() {
		if err := srv.Run(ctx); err != nil && err != context.Canceled {
			log.Fatal(err)
		}
	}()
	return nil
}

func (p *program) Stop(s service.Service) error {
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}

func main() {
	svcFlag := flag.String("service", "", "Control the system service.")
	cnfFlag := flag.String("c", "", "Path of config file.")
	flag.Parse()

	ePath, err := os.Executable()
	if err != nil {
		log.Fatal(err)
	}
	eDir, _ := filepath.Split(ePath)

	// Set defaults before config override.
	if service.Interactive() {
		log.SetLevel(log.DebugLevel)
	} else {
		f, err := os.OpenFile(filepath.Join(eDir, "mqttdump.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Fatal(err)
		}
		log.SetOutput(f)
	}

	prg := program{configFlag: *cnfFlag, execDir: eDir}
	svcConfig := service.Config{
		Name:        "mqttdump",
		DisplayName: "mqttdump MQTT header inspector",
		Description: "Logs and records the fixed header of every MQTT control packet received.",
	}

	s, err := service.New(&prg, &svcConfig)
	if err != nil {
		log.Fatal(err)
	}

	if len(*svcFlag) != 0 {
		err := service.Control(s, *svcFlag)
		if err != nil {
			log.Printf("Valid actions: %q\n", service.ControlAction)
			log.Fatal(err)
		}
		return
	}

	err = s.Run()
	if err != nil {
		log.Fatal(err)
	}
}

func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return !info.IsDir()
}
