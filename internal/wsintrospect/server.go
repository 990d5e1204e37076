/*************************************************************************
 * Copyright 2024 Varbridge, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package wsintrospect

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/varbridge/varbridge/internal/log"
	"github.com/varbridge/varbridge/internal/observer"
	"github.com/varbridge/varbridge/internal/store"
)

// pushInterval is how often a connected introspection client is sent a
// fresh snapshot.
const pushInterval = 2 * time.Second

// snapshot is the one message type this feed ever sends: a point-in-time
// view of live sessions and watchers. There is nothing to negotiate and
// nothing to receive, unlike the bidirectional subprotocol scheme this
// package is adapted from.
type snapshot struct {
	Sessions []sessionView `json:"sessions"`
	Watchers []watcherView `json:"watchers"`
}

type sessionView struct {
	ID            string            `json:"id"`
	VariableCount int               `json:"variable_count"`
	TTLSeconds    int64             `json:"ttl_seconds"`
	Tags          map[string]string `json:"tags,omitempty"`
}

type watcherView struct {
	Handle    string   `json:"handle"`
	SessionID string   `json:"session_id"`
	VarIDs    []string `json:"variable_ids"`
}

// Server hosts the read-only introspection feed.
type Server struct {
	watchers *observer.Manager
	store    *store.Store
	log      *log.Logger
	upgrader websocket.Upgrader
}

// NewServer builds a Server reading the given store/observer manager.
func NewServer(watchers *observer.Manager, st *store.Store, logger *log.Logger) *Server {
	return &Server{
		watchers: watchers,
		store:    st,
		log:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ListenAndServe runs the feed's HTTP/websocket listener until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/introspect", s.handleIntrospect)
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) handleIntrospect(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.log != nil {
			s.log.Errorf("introspection upgrade failed: %v", err)
		}
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(pushInterval)
	defer ticker.Stop()

	// Drain and discard anything the client sends; this feed is read-only
	// but an idle connection with no reader will eventually back up the
	// peer's TCP window, so we keep consuming until it closes.
	go drainReads(conn)

	for range ticker.C {
		if err := writeDeadLine(conn, writeDeadline, s.buildSnapshot()); err != nil {
			return
		}
	}
}

func drainReads(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) buildSnapshot() snapshot {
	var out snapshot
	for _, id := range s.store.SessionIDs() {
		info, err := s.store.PeekSessionInfo(id)
		if err != nil {
			continue
		}
		out.Sessions = append(out.Sessions, sessionView{
			ID:            info.ID,
			VariableCount: info.VariableCount,
			TTLSeconds:    int64(info.TTL.Seconds()),
			Tags:          info.Tags,
		})
	}
	for _, w := range s.watchers.ListWatchers("") {
		out.Watchers = append(out.Watchers, watcherView{
			Handle:    w.Handle,
			SessionID: w.SessionID,
			VarIDs:    w.VarIDs,
		})
	}
	return out
}
