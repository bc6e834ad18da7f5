package websocket

import (
	"context"
	"errors"
	"sync"

	"github.com/jovywahba/jovnumbergames/internal/domain"
	"github.com/jovywahba/jovnumbergames/internal/session"
	"github.com/rs/zerolog/log"
)

type Hub struct {
	deps       session.Deps
	opts       session.Options
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	joinRoom   chan *JoinRoomRequest
	stop       chan struct{}
	done       chan struct{} // closed when Run() exits
	stopped    bool
	ctx        context.Context
	cancel     context.CancelFunc
	sessions   sync.WaitGroup
	mu         sync.RWMutex
}

type JoinRoomRequest struct {
	Client *Client
	RoomID string
}

func NewHub(deps session.Deps, opts session.Options) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		deps:       deps,
		opts:       opts,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		joinRoom:   make(chan *JoinRoomRequest),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (h *Hub) Run() {
	defer close(h.done) // Signal that Run() has exited

	for {
		select {
		case <-h.stop:
			h.mu.Lock()
			h.stopped = true
			h.mu.Unlock()

			// Stop every session and wait for them to exit
			h.cancel()
			h.sessions.Wait()

			h.mu.Lock()
			for client := range h.clients {
				client.Close()
			}
			h.clients = make(map[*Client]bool)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if !h.stopped {
				h.clients[client] = true
			}
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			h.mu.Unlock()

		case req := <-h.joinRoom:
			h.handleJoinRoom(req)
		}
	}
}

// Stop gracefully shuts down the hub and every session it hosts.
// It blocks until all sessions have exited and the hub has fully shut down.
func (h *Hub) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	close(h.stop)
	<-h.done // Wait for Run() to finish
}

// handleJoinRoom replaces the client's session with one for the requested
// room.
func (h *Hub) handleJoinRoom(req *JoinRoomRequest) {
	h.mu.RLock()
	_, registered := h.clients[req.Client]
	h.mu.RUnlock()
	if !registered {
		return
	}

	ctx, cancel := context.WithCancel(h.ctx)
	s := session.New(h.deps, req.Client.who, req.Client, h.opts)
	if !req.Client.attach(s, cancel) {
		cancel()
		return
	}

	h.sessions.Add(1)
	go func() {
		defer h.sessions.Done()
		defer cancel()
		defer req.Client.detach(s)

		err := s.Run(ctx, req.RoomID)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, domain.ErrRoomClosed) {
			log.Debug().Err(err).Str("room", req.RoomID).Str("user", req.Client.who.ID.String()).Msg("Session ended with error")
			req.Client.sendError(session.ErrorCode(err), err.Error())
		}
	}()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

// JoinRoom asks the hub to start a session for client in roomID.
func (h *Hub) JoinRoom(client *Client, roomID string) {
	select {
	case h.joinRoom <- &JoinRoomRequest{Client: client, RoomID: roomID}:
	case <-h.done:
	}
}

// Unregister safely unregisters a client, handling the case where the hub may be stopped.
func (h *Hub) Unregister(client *Client) {
	h.mu.RLock()
	stopped := h.stopped
	h.mu.RUnlock()

	if stopped {
		// Hub is stopped, just close the connection directly
		return
	}

	select {
	case h.unregister <- client:
	case <-h.done:
	}
}
