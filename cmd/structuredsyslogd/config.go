/*************************************************************************
 * Copyright 2018 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package main

import (
	"fmt"

	"github.com/gravwell/structuredsyslogd/internal/config"
	"github.com/gravwell/structuredsyslogd/internal/model"
)

// listener is one bind stanza: a bind address and a transport (tcp, udp,
// or both via separate stanzas). Tag_Name is required by getConfig and
// Drop_Priority is parsed, but the listeners read neither: frames are not
// retagged and no leading priority is stripped.
type listener struct {
	Bind_String   string
	Transport     string // "tcp", "udp"; defaults to "tcp"
	Tag_Name      string
	Drop_Priority bool
}

// messageType mirrors model.MessageTypeConfig as a config stanza; the
// gcfg-loaded struct is translated into the runtime model.MessageTypeTable
// in (*cfgType).messageTypeTable.
type messageType struct {
	Process_And_Store          bool
	Forward                    bool
	Process_And_Summarize      bool
	Process_And_Summarize_User bool
	Process_Before_Forward     bool
	Int_Fields                 []string
}

// forwardDestination is one forwarder.Config stanza.
type forwardDestination struct {
	Target              string
	Protocol            string
	Tag                 []string
	Message_Bus_Brokers []string
	Message_Bus_Topic   string
	Non_Blocking        bool
}

type cfgType struct {
	Global             config.CollectorConfig
	Listener           map[string]*listener
	MessageType        map[string]*messageType
	ForwardDestination map[string]*forwardDestination
}

func getConfig(path, overlayPath string) (*cfgType, error) {
	var c cfgType
	if err := config.LoadConfigFile(&c, path); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	if overlayPath != `` {
		if err := config.LoadConfigOverlays(&c, overlayPath); err != nil {
			return nil, fmt.Errorf("loading config overlays %s: %w", overlayPath, err)
		}
	}
	if err := c.Global.Verify(); err != nil {
		return nil, err
	}
	if len(c.Listener) == 0 {
		return nil, fmt.Errorf("at least one [Listener] stanza is required")
	}
	for name, l := range c.Listener {
		if l.Bind_String == `` {
			return nil, fmt.Errorf("listener %q missing Bind-String", name)
		}
		if l.Transport == `` {
			l.Transport = "tcp"
		}
		if l.Tag_Name == `` {
			return nil, fmt.Errorf("listener %q missing Tag-Name", name)
		}
	}
	return &c, nil
}

func (c *cfgType) messageTypeTable() model.MessageTypeTable {
	out := make(model.MessageTypeTable, len(c.MessageType))
	for name, mt := range c.MessageType {
		intFields := make(map[string]struct{}, len(mt.Int_Fields))
		for _, f := range mt.Int_Fields {
			intFields[f] = struct{}{}
		}
		out[name] = model.MessageTypeConfig{
			Name:                    name,
			ProcessAndStore:         mt.Process_And_Store,
			Forward:                 mt.Forward,
			ProcessAndSummarize:     mt.Process_And_Summarize,
			ProcessAndSummarizeUser: mt.Process_And_Summarize_User,
			ProcessBeforeForward:    mt.Process_Before_Forward,
			IntFields:               intFields,
		}
	}
	return out
}
