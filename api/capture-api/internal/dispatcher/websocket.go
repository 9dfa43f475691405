// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_dispatcher

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
)

// websocketSender serializes writes to one gorilla connection. gorilla
// permits a single concurrent writer, and batches and control replies
// come from different goroutines.
type websocketSender struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWebsocketSender wraps a connection as a concurrency-safe Sender.
func NewWebsocketSender(conn *websocket.Conn) Sender {
	return &websocketSender{conn: conn}
}

func (s *websocketSender) Send(msg Outbound) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Serve runs the dispatch loop for one websocket connection until the
// peer disconnects or ctx is cancelled. An in-flight session is stopped
// and finalized on the way out.
func (d *Dispatcher) Serve(ctx context.Context, conn *websocket.Conn) {
	defer d.Shutdown(context.WithoutCancel(ctx))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				d.logger.Warnf("connection read failed: %v", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			if serr := d.sendError(ErrorCodeBadMessage, "malformed envelope"); serr != nil {
				return
			}
			continue
		}
		if err := d.Handle(ctx, env); err != nil {
			d.logger.Errorf("dispatch failed for %s: %v", env.Type, err)
			return
		}
	}
}
