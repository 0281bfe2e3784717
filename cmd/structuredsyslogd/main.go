/*************************************************************************
 * Copyright 2018 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Command structuredsyslogd ingests structured syslog, enriches and
// summarizes it, and writes it to a wide-column store, per spec.md.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	log "github.com/gravwell/structuredsyslogd/internal/applog"
	"github.com/gravwell/structuredsyslogd/internal/admission"
	"github.com/gravwell/structuredsyslogd/internal/decorator"
	"github.com/gravwell/structuredsyslogd/internal/forwarder"
	"github.com/gravwell/structuredsyslogd/internal/framing"
	"github.com/gravwell/structuredsyslogd/internal/initializer"
	"github.com/gravwell/structuredsyslogd/internal/procutil"
	"github.com/gravwell/structuredsyslogd/internal/store"
	"github.com/gravwell/structuredsyslogd/internal/uve"
	"github.com/gravwell/structuredsyslogd/internal/version"
	"github.com/gravwell/structuredsyslogd/internal/writer"
)

const defaultBindPort = "3514"

var (
	configPath  = flag.String("config-file", "/opt/structuredsyslogd/structuredsyslogd.conf", "path to the base config file")
	overlayPath = flag.String("config-overlay", "/opt/structuredsyslogd/structuredsyslogd.conf.d", "path to a directory of config overlays")
	showVersion = flag.Bool("version", false, "print the version and exit")
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := getConfig(*configPath, *overlayPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	lg, err := buildLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	lg.Info("starting structuredsyslogd", log.KV("version", version.String()))

	connectTimeout, _ := cfg.Global.ConnectTimeout()
	cqlStore, err := store.Dial(store.CQLConfig{
		Hosts:          cfg.Global.Cassandra_Servers,
		User:           cfg.Global.Cassandra_User,
		Password:       cfg.Global.Cassandra_Password,
		UseSSL:         cfg.Global.Cassandra_Use_SSL,
		SSLCACert:      cfg.Global.Cassandra_SSL_CA_Cert,
		ConnectTimeout: connectTimeout,
	})
	if err != nil {
		lg.Critical("failed to connect to store", log.KVErr(err))
		os.Exit(1)
	}
	defer cqlStore.Close()

	if err := cqlStore.SetKeyspace(context.Background(), cfg.Global.Keyspace(), 1); err != nil {
		lg.Critical("failed to set keyspace", log.KVErr(err))
		os.Exit(1)
	}

	initr := initializer.New(&cfg.Global, cqlStore, lg)
	retryInterval, _ := cfg.Global.RetryInterval()
	for {
		err := initr.Run(context.Background())
		if err == nil {
			break
		}
		lg.Error("initialization failed, retrying", log.KV("retry-interval", retryInterval.String()), log.KVErr(err))
		time.Sleep(retryInterval)
	}
	lg.Info("initialization complete", log.KV("state", initr.State().String()))

	ctx, cancel := procutil.WaitForQuit(context.Background())
	defer cancel()

	types := cfg.messageTypeTable()

	p := &pipeline{
		ctx:        ctx,
		types:      types,
		decorator:  decorator.New(nil),
		admission: admission.New(
			cfg.Global.Queue_Depth_Watermark,
			cfg.Global.Disk_Usage_Watermark,
			cfg.Global.Compaction_Watermark,
			nil,
		),
		aggregator: uve.New(4096),
		writer: writer.New(cqlStore, cfg.Global.TTL,
			cfg.Global.Disable_All_DB_Writes,
			cfg.Global.Disable_DB_Stats_Writes,
			cfg.Global.Disable_DB_Messages_Writes,
		),
		log: lg,
	}

	for name, fd := range cfg.ForwardDestination {
		fwd, err := forwarder.New(forwarder.Config{
			Target:            fd.Target,
			Protocol:          fd.Protocol,
			Tag:               fd.Tag,
			MessageBusBrokers: fd.Message_Bus_Brokers,
			MessageBusTopic:   fd.Message_Bus_Topic,
			Non_Blocking:      fd.Non_Blocking,
		})
		if err != nil {
			lg.Critical("failed to start forward destination", log.KV("name", name), log.KVErr(err))
			os.Exit(1)
		}
		p.forwarders = append(p.forwarders, fwd)
	}

	parser := framing.NewParser(types)

	errCh := make(chan error, len(cfg.Listener)*2)
	for name, l := range cfg.Listener {
		addr := l.Bind_String
		if addr == `` {
			addr = ":" + defaultBindPort
		}
		switch l.Transport {
		case "udp":
			dl := &framing.DatagramListener{Addr: addr, Parser: parser, Sink: p, Logger: lg}
			go func(name string) { errCh <- dl.Serve(ctx) }(name)
		default:
			sl := &framing.StreamListener{Addr: addr, Parser: parser, Sink: p, Logger: lg}
			go func(name string) { errCh <- sl.Serve(ctx) }(name)
		}
	}

	select {
	case err := <-errCh:
		if err != nil {
			lg.Error("listener exited with error", log.KVErr(err))
		}
	case <-ctx.Done():
	}

	<-ctx.Done()
	for _, f := range p.forwarders {
		f.Close()
	}
	lg.Info("structuredsyslogd shutting down")
}

func buildLogger(cfg *cfgType) (*log.Logger, error) {
	if cfg.Global.Log_File == `` {
		return log.NewStderrLogger(``)
	}
	return log.NewFile(cfg.Global.Log_File)
}
