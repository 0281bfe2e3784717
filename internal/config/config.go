/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package config provides the base configuration types for the structured
// syslog collector: store endpoints, TTL classes, compaction strategies,
// watermark triples, and the global write-disable switches. A collector
// binary extends CollectorConfig with its own listener stanzas, e.g.:
//
//	type cfgType struct {
//		Global   config.CollectorConfig
//		Listener map[string]*listener
//	}
//
//	func GetConfig(path, overlayPath string) (*cfgType, error) {
//		var c cfgType
//		if err := config.LoadConfigFile(&c, path); err != nil {
//			return nil, err
//		} else if err := config.LoadConfigOverlays(&c, overlayPath); err != nil {
//			return nil, err
//		}
//		return &c, c.Global.Verify()
//	}
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultLogLevel = `ERROR`

	envIngestSecret string = `COLLECTOR_CASSANDRA_PASSWORD`
	envLogLevel     string = `COLLECTOR_LOG_LEVEL`
	envCassandra    string = `COLLECTOR_CASSANDRA_SERVERS`

	// DefaultCassandraPort is the native CQL transport port.
	DefaultCassandraPort uint16 = 9042
	// DefaultZookeeperPort is the client port used for the initializer's distributed lock.
	DefaultZookeeperPort uint16 = 2181

	// KeyspaceBase is the un-suffixed keyspace name; a non-empty Cluster_Id
	// is appended as "_<cluster_id>" per spec.md §6.
	KeyspaceBase string = `COLLECTOR_KEYSPACE_CQL`

	// TTL classes named in spec.md §3.1/§4.4.
	TTLClassFlowdata    string = `FLOWDATA`
	TTLClassStatsdata   string = `STATSDATA`
	TTLClassConfigAudit string = `CONFIGAUDIT`
	TTLClassGlobal      string = `GLOBAL`
)

var (
	ErrNoCassandraServers    = errors.New("no Cassandra servers specified")
	ErrInvalidLogLevel       = errors.New("invalid log level")
	ErrInvalidWatermark      = errors.New("watermark triples must be strictly increasing")
	ErrMissingLockPath       = errors.New("lock coordination enabled but Zookeeper servers not specified")
	ErrInvalidConnectTimeout = errors.New("invalid connection timeout")
)

// TTLConfig carries the TTL, in hours, applied to rows written under each
// TTL class (spec.md §4.4, §6).
type TTLConfig struct {
	Flow_Ttl         uint64 `json:",omitempty"` // hours
	Stats_Ttl        uint64 `json:",omitempty"`
	Config_Audit_Ttl uint64 `json:",omitempty"`
	Global_Ttl       uint64 `json:",omitempty"`
}

func (t TTLConfig) loadDefaults() TTLConfig {
	if t.Flow_Ttl == 0 {
		t.Flow_Ttl = 48
	}
	if t.Stats_Ttl == 0 {
		t.Stats_Ttl = 96
	}
	if t.Config_Audit_Ttl == 0 {
		t.Config_Audit_Ttl = 2160 // 90 days
	}
	if t.Global_Ttl == 0 {
		t.Global_Ttl = 48
	}
	return t
}

// WatermarkTriple is three ascending (threshold, severity) pairs for one
// direction (rising or falling) of one observable signal, per spec.md §4.5.
type WatermarkTriple struct {
	SL0_Threshold uint64
	SL1_Threshold uint64
	SL2_Threshold uint64
}

func (w WatermarkTriple) Validate() error {
	if !(w.SL0_Threshold < w.SL1_Threshold && w.SL1_Threshold < w.SL2_Threshold) {
		return ErrInvalidWatermark
	}
	return nil
}

// WatermarkConfig holds the rising (high) and falling (low) triples for one
// admission-control signal; hysteresis is the gap between High and Low.
type WatermarkConfig struct {
	High WatermarkTriple
	Low  WatermarkTriple
}

func (w WatermarkConfig) Validate() error {
	if err := w.High.Validate(); err != nil {
		return fmt.Errorf("high watermark: %w", err)
	}
	if err := w.Low.Validate(); err != nil {
		return fmt.Errorf("low watermark: %w", err)
	}
	return nil
}

// CollectorConfig is the [global] stanza shared by every structured syslog
// collector binary: store connectivity, keyspace naming, TTL classes,
// compaction strategy, admission-control watermarks, write-disable
// switches, and the initializer's lock coordination parameters.
type CollectorConfig struct {
	Cassandra_Servers          []string `json:",omitempty"`
	Cassandra_User             string   `json:",omitempty"`
	Cassandra_Password         string   `json:"-"`
	Cassandra_Use_SSL          bool     `json:",omitempty"`
	Cassandra_SSL_CA_Cert      string   `json:",omitempty"`
	Cassandra_Connect_Timeout  string   `json:",omitempty"`
	Cluster_Id                 string   `json:",omitempty"`
	Compaction_Strategy        string   `json:",omitempty"`
	Flow_Table_Compaction      string   `json:",omitempty"`
	TTL                        TTLConfig
	Disable_All_DB_Writes      bool `json:",omitempty"`
	Disable_DB_Stats_Writes    bool `json:",omitempty"`
	Disable_DB_Messages_Writes bool `json:",omitempty"`

	Zookeeper_Servers []string `json:",omitempty"`
	Coordinate_Init   bool     `json:",omitempty"` // LOCK_ACQUIRING across peers
	Lock_Node_Path    string   `json:",omitempty"`
	Retry_Interval    string   `json:",omitempty"` // initializer retry timer

	Queue_Depth_Watermark  WatermarkConfig
	Disk_Usage_Watermark   WatermarkConfig
	Compaction_Watermark   WatermarkConfig

	UDC_Config_Topic string `json:",omitempty"` // defaults to "udc", spec.md §6

	Log_Level    string `json:",omitempty"`
	Log_File     string `json:",omitempty"`
	Ingester_UUID string `json:",omitempty"`
}

func (c *CollectorConfig) loadDefaults() error {
	if err := LoadEnvVar(&c.Cassandra_Password, envIngestSecret, ``); err != nil {
		return err
	}
	if err := LoadEnvVar(&c.Log_Level, envLogLevel, defaultLogLevel); err != nil {
		return err
	}
	if err := LoadEnvVar(&c.Cassandra_Servers, envCassandra, nil); err != nil {
		return err
	}
	if c.UDC_Config_Topic == `` {
		c.UDC_Config_Topic = `udc`
	}
	if c.Retry_Interval == `` {
		c.Retry_Interval = `5s`
	}
	if c.Lock_Node_Path == `` {
		c.Lock_Node_Path = `/collector/init-lock`
	}
	c.TTL = c.TTL.loadDefaults()
	return nil
}

// Verify checks the configuration, normalizes the log level, fills in
// defaults, and validates the watermark triples are strictly ordered.
func (c *CollectorConfig) Verify() error {
	if err := c.loadDefaults(); err != nil {
		return err
	}
	if len(c.Cassandra_Servers) == 0 {
		return ErrNoCassandraServers
	}
	for _, s := range c.Cassandra_Servers {
		host, _, err := net.SplitHostPort(s)
		if err != nil {
			host = s
		}
		if host == `` {
			return fmt.Errorf("invalid Cassandra server address %q", s)
		}
	}
	c.Log_Level = strings.ToUpper(strings.TrimSpace(c.Log_Level))
	if err := c.checkLogLevel(); err != nil {
		return err
	}
	if c.Ingester_UUID != `` {
		if _, err := uuid.Parse(c.Ingester_UUID); err != nil {
			return fmt.Errorf("malformed ingester UUID %v: %v", c.Ingester_UUID, err)
		}
	}
	if c.Coordinate_Init && len(c.Zookeeper_Servers) == 0 {
		return ErrMissingLockPath
	}
	if _, err := c.ConnectTimeout(); err != nil {
		return ErrInvalidConnectTimeout
	}
	if _, err := c.RetryInterval(); err != nil {
		return fmt.Errorf("invalid Retry_Interval: %w", err)
	}
	if err := c.Queue_Depth_Watermark.Validate(); err != nil {
		return fmt.Errorf("queue depth watermark: %w", err)
	}
	if err := c.Disk_Usage_Watermark.Validate(); err != nil {
		return fmt.Errorf("disk usage watermark: %w", err)
	}
	if err := c.Compaction_Watermark.Validate(); err != nil {
		return fmt.Errorf("compaction watermark: %w", err)
	}
	if c.Log_File != `` {
		logdir := filepath.Dir(c.Log_File)
		if fi, err := os.Stat(logdir); err != nil {
			if os.IsNotExist(err) {
				if err := os.MkdirAll(logdir, 0700); err != nil {
					return err
				}
			} else {
				return err
			}
		} else if !fi.IsDir() {
			return errors.New("log location is not a directory")
		}
	}
	return nil
}

func (c *CollectorConfig) checkLogLevel() error {
	if c.Log_Level == `` {
		c.Log_Level = defaultLogLevel
		return nil
	}
	switch c.Log_Level {
	case `OFF`, `DEBUG`, `INFO`, `WARN`, `ERROR`, `CRITICAL`, `FATAL`:
		return nil
	}
	return ErrInvalidLogLevel
}

// ConnectTimeout returns the timeout for the initial store connection.
func (c *CollectorConfig) ConnectTimeout() (time.Duration, error) {
	if strings.TrimSpace(c.Cassandra_Connect_Timeout) == `` {
		return 10 * time.Second, nil
	}
	return time.ParseDuration(c.Cassandra_Connect_Timeout)
}

// RetryInterval returns the initializer's constant retry timer interval.
func (c *CollectorConfig) RetryInterval() (time.Duration, error) {
	return time.ParseDuration(c.Retry_Interval)
}

// Keyspace returns the keyspace name, optionally suffixed with the cluster ID
// per spec.md §6.
func (c *CollectorConfig) Keyspace() string {
	if c.Cluster_Id == `` {
		return KeyspaceBase
	}
	return KeyspaceBase + "_" + c.Cluster_Id
}

// IngesterUUID returns the parsed ingester UUID if one is set.
func (c *CollectorConfig) IngesterUUID() (id uuid.UUID, ok bool) {
	if c.Ingester_UUID == `` {
		return
	}
	var err error
	if id, err = uuid.Parse(c.Ingester_UUID); err == nil {
		ok = true
	}
	return
}
