/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package framing

import (
	"context"
	"net"
	"sync"

	log "github.com/gravwell/structuredsyslogd/internal/applog"
	"github.com/gravwell/structuredsyslogd/internal/model"
)

const readBufferSize = 16 * 1024

// Sink receives every record this package successfully parses, along with
// the exact bytes of the frame it came from (needed by the forwarder's
// byte-accurate mirror, spec.md §4.7).
type Sink interface {
	Accept(rec *model.SyslogRecord, raw []byte)
}

// StreamListener accepts connection-oriented (TCP) syslog traffic on one
// bind address. Each accepted connection owns its own Reassembler, matching
// the "one logical worker per connection" scheduling model of spec.md §5.
type StreamListener struct {
	Addr   string
	Parser *Parser
	Sink   Sink
	Logger *log.Logger

	wg sync.WaitGroup
}

// Serve accepts connections until ctx is cancelled or the listener is
// closed. On cancellation it waits for all connection handlers to exit
// before returning nil; any other accept error is returned at once.
func (s *StreamListener) Serve(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.Addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.wg.Wait()
				return nil
			default:
				return err
			}
		}
		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			s.handleConn(ctx, c)
		}(conn)
	}
}

func (s *StreamListener) handleConn(ctx context.Context, c net.Conn) {
	defer c.Close()
	remote := c.RemoteAddr().String()

	var ra Reassembler
	buf := make([]byte, readBufferSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, err := c.Read(buf)
		if n > 0 {
			frames, ferr := ra.Feed(buf[:n])
			for _, frame := range frames {
				s.dispatch(remote, frame)
			}
			if ferr != nil && s.Logger != nil {
				s.Logger.Warn("carry-over overflow, resetting connection state",
					log.KV("remote", remote), log.KVErr(ferr))
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *StreamListener) dispatch(remote string, frame []byte) {
	rec, err := s.Parser.Parse(frame)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("dropping malformed frame", log.KV("remote", remote), log.KVErr(err))
		}
		return
	}
	s.Sink.Accept(rec, frame)
}
