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

	log "github.com/gravwell/structuredsyslogd/internal/applog"
)

const maxDatagramSize = 64 * 1024

// DatagramListener accepts connectionless (UDP) syslog traffic on one bind
// address. Per spec.md §4.1/§6, datagram transport carries no state across
// packets: each packet is framed independently, and a frame left incomplete
// at the end of a packet is dropped rather than carried forward.
type DatagramListener struct {
	Addr   string
	Parser *Parser
	Sink   Sink
	Logger *log.Logger
}

func (d *DatagramListener) Serve(ctx context.Context) error {
	lc := net.ListenConfig{}
	pconn, err := lc.ListenPacket(ctx, "udp", d.Addr)
	if err != nil {
		return err
	}
	conn := pconn.(*net.UDPConn)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, maxDatagramSize)
	for {
		n, raddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		if n == 0 {
			continue
		}
		d.handlePacket(raddr.String(), buf[:n])
	}
}

func (d *DatagramListener) handlePacket(remote string, packet []byte) {
	var ra Reassembler
	frames, err := ra.Feed(packet)
	if err != nil && d.Logger != nil {
		d.Logger.Warn("dropping oversized datagram fragment", log.KV("remote", remote), log.KVErr(err))
	}
	for _, frame := range frames {
		rec, perr := d.Parser.Parse(frame)
		if perr != nil {
			if d.Logger != nil {
				d.Logger.Warn("dropping malformed frame", log.KV("remote", remote), log.KVErr(perr))
			}
			continue
		}
		d.Sink.Accept(rec, frame)
	}
}
