/*************************************************************************
 * Copyright 2018 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package forwarder mirrors decorated records to downstream stream
// destinations and/or a partitioned message bus (spec.md §4.7, §6). It
// keeps the teacher's channel-based, reconnect-on-failure routine() shape
// but drops the generic multi-destination Tagger negotiation in favor of a
// fixed local tag allow-list, since this pipeline has no dynamic tag space.
package forwarder

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/gravwell/structuredsyslogd/internal/model"
)

const (
	protoTCP  string = `tcp`
	protoUDP  string = `udp`
	protoTLS  string = `tls`
	protoUnix string = `unix`

	defaultBuffer uint = 256

	redialInterval = time.Second
)

var (
	ErrNoUnixOnWindows = errors.New("unix transport not available on windows")
	ErrUnknownProtocol = errors.New("unknown forwarding protocol")
	ErrClosed          = errors.New("forwarder closed")
	ErrNoDestination   = errors.New("forwarder configured with neither a stream target nor message-bus brokers")
)

// Config describes one forwarding destination pair: an optional
// byte-accurate stream mirror, and/or an optional partitioned message-bus
// publish. At least one must be configured.
type Config struct {
	Target                   string // stream destination, host:port or unix path; empty disables
	Protocol                 string // tcp, udp, tls, unix
	Tag                      []string
	RawMatch                 []string // regex against the raw frame bytes
	Timeout                  uint     // seconds
	Buffer                   uint
	Non_Blocking             bool
	Insecure_Skip_TLS_Verify bool

	MessageBusBrokers []string // sarama brokers; empty disables the bus destination
	MessageBusTopic   string
}

func (c *Config) Validate() (err error) {
	if c.Buffer == 0 {
		c.Buffer = defaultBuffer
	}
	if c.Target == `` && len(c.MessageBusBrokers) == 0 {
		return ErrNoDestination
	}
	if c.Target != `` {
		if c.Protocol == `` {
			c.Protocol = protoTCP
		}
		c.Protocol = strings.ToLower(c.Protocol)
		switch c.Protocol {
		case protoUnix:
			if runtime.GOOS == `windows` {
				return ErrNoUnixOnWindows
			}
			fi, serr := os.Stat(c.Target)
			if serr != nil {
				return serr
			}
			if (fi.Mode() & os.ModeType) != os.ModeSocket {
				return fmt.Errorf("path %s is not a unix socket", c.Target)
			}
		case protoTCP, protoUDP, protoTLS:
			if _, _, serr := net.SplitHostPort(c.Target); serr != nil {
				return serr
			}
		default:
			return ErrUnknownProtocol
		}
	}
	if len(c.MessageBusBrokers) > 0 && c.MessageBusTopic == `` {
		return errors.New("message bus brokers configured without a topic")
	}
	if _, err = parseRegex(c.RawMatch); err != nil {
		return err
	}
	return nil
}

type item struct {
	rec *model.SyslogRecord
	raw []byte
}

// Forwarder implements framing.Sink: decorated records reach it via
// Accept, are filtered, and are mirrored to whichever destinations are
// configured.
type Forwarder struct {
	Config
	sync.Mutex
	wg           sync.WaitGroup
	ctx          context.Context
	cf           context.CancelFunc
	ch           chan item
	abrt         chan struct{}
	conn         net.Conn
	producer     sarama.SyncProducer
	err          error
	closed       bool
	tagFilters   map[string]struct{}
	rawFilters   []*regexp.Regexp
}

func New(cfg Config) (f *Forwarder, err error) {
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	f = &Forwarder{
		Config:     cfg,
		ch:         make(chan item, cfg.Buffer),
		abrt:       make(chan struct{}),
		tagFilters: map[string]struct{}{},
	}
	for _, t := range cfg.Tag {
		f.tagFilters[t] = struct{}{}
	}
	if f.rawFilters, err = parseRegex(cfg.RawMatch); err != nil {
		return nil, err
	}
	f.ctx, f.cf = context.WithCancel(context.Background())

	if cfg.Target != `` && !cfg.Non_Blocking {
		if f.conn, err = f.newConnection(false); err != nil {
			return nil, err
		}
	}
	if len(cfg.MessageBusBrokers) > 0 {
		if f.producer, err = newSyncProducer(cfg.MessageBusBrokers); err != nil {
			return nil, err
		}
	}

	f.wg.Add(1)
	go f.routine()
	return f, nil
}

// Accept implements framing.Sink.
func (f *Forwarder) Accept(rec *model.SyslogRecord, raw []byte) {
	f.Lock()
	defer f.Unlock()
	if f.closed || f.filter(rec, raw) {
		return
	}
	it := item{rec: rec, raw: append([]byte(nil), raw...)}
	if f.Non_Blocking {
		select {
		case f.ch <- it:
		default:
		}
		return
	}
	select {
	case <-f.abrt:
	case f.ch <- it:
	}
}

// filter returns true when the record should be dropped before forwarding.
func (f *Forwarder) filter(rec *model.SyslogRecord, raw []byte) bool {
	if len(f.tagFilters) > 0 {
		if _, ok := f.tagFilters[rec.Tag()]; !ok {
			return true
		}
	}
	if len(f.rawFilters) > 0 {
		var matched bool
		for _, rx := range f.rawFilters {
			if rx.Match(raw) {
				matched = true
				break
			}
		}
		if !matched {
			return true
		}
	}
	return false
}

func (f *Forwarder) Close() error {
	f.Lock()
	if f.closed {
		f.Unlock()
		return ErrClosed
	}
	close(f.abrt)
	f.closed = true
	close(f.ch)
	f.Unlock()

	f.wait(f.Timeout)
	if f.producer != nil {
		f.producer.Close()
	}
	return f.err
}

func (f *Forwarder) wait(tosec uint) {
	if tosec == 0 {
		tosec = 1
	}
	to := time.Duration(tosec) * time.Second

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	select {
	case <-time.After(to):
		f.cf()
		if f.conn != nil {
			f.conn.Close()
		}
		<-done
	case <-done:
	}
}

func (f *Forwarder) routine() {
	defer f.wg.Done()

	if f.Target != `` && f.conn == nil {
		var err error
		if f.conn, err = f.newConnection(true); err != nil {
			f.err = err
			return
		}
	}

	for it, ok := f.getItem(); ok; it, ok = f.getItem() {
		if err := f.sendItem(it); err != nil {
			f.err = err
			return
		}
	}
}

func (f *Forwarder) getItem() (it item, ok bool) {
	select {
	case it, ok = <-f.ch:
	case <-f.ctx.Done():
	}
	return
}

func (f *Forwarder) sendItem(it item) (err error) {
	if f.Target != `` {
		if err = f.sendStream(it.raw); err != nil {
			return err
		}
	}
	if f.producer != nil {
		if err = f.sendBus(it.rec); err != nil {
			return err
		}
	}
	return nil
}

func (f *Forwarder) sendStream(raw []byte) (err error) {
	for {
		if f.conn == nil {
			if f.conn, err = f.newConnection(true); err != nil {
				return err
			}
		}
		if _, err = f.conn.Write(raw); err == nil {
			return nil
		}
		f.conn.Close()
		f.conn = nil
	}
}

// sendBus publishes the record as JSON to the partitioned message bus,
// keyed by hostname so that all traffic from one device lands on the same
// partition (spec.md §6).
func (f *Forwarder) sendBus(rec *model.SyslogRecord) error {
	payload, err := recordJSON(rec)
	if err != nil {
		return err
	}
	_, _, err = f.producer.SendMessage(&sarama.ProducerMessage{
		Topic: f.MessageBusTopic,
		Key:   sarama.StringEncoder(rec.GetString("hostname")),
		Value: sarama.ByteEncoder(payload),
	})
	return err
}

func recordJSON(rec *model.SyslogRecord) ([]byte, error) {
	m := make(map[string]interface{}, rec.Len())
	for _, k := range rec.Keys() {
		v, _ := rec.Get(k)
		switch v.Kind {
		case model.KindInt64:
			m[k] = v.Int
		case model.KindFloat64:
			m[k] = v.Flt
		default:
			m[k] = v.Str
		}
	}
	return json.Marshal(m)
}

func newSyncProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	return sarama.NewSyncProducer(brokers, cfg)
}

func (f *Forwarder) newConnection(retry bool) (conn net.Conn, err error) {
	var d net.Dialer
	for {
		switch f.Protocol {
		case protoTCP:
			conn, err = d.DialContext(f.ctx, `tcp`, f.Target)
		case protoUDP:
			conn, err = d.DialContext(f.ctx, `udp`, f.Target)
		case protoUnix:
			conn, err = d.DialContext(f.ctx, `unix`, f.Target)
		case protoTLS:
			tcfg := tls.Config{InsecureSkipVerify: f.Insecure_Skip_TLS_Verify}
			conn, err = tls.DialWithDialer(&d, `tcp`, f.Target, &tcfg)
		}
		if err == nil || err == context.Canceled || !retry {
			return
		}
		if f.sleep(redialInterval) {
			err = context.Canceled
			return
		}
	}
}

func (f *Forwarder) sleep(d time.Duration) (cancelled bool) {
	select {
	case <-f.ctx.Done():
		cancelled = true
	case <-time.After(d):
	}
	return
}

func parseRegex(specs []string) (r []*regexp.Regexp, err error) {
	for _, s := range specs {
		rx, rerr := regexp.Compile(s)
		if rerr != nil {
			return nil, rerr
		}
		r = append(r, rx)
	}
	return r, nil
}
