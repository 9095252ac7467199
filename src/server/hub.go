package server

import (
	"encoding/json"
	"net/http"

	"price-oracle/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop. It alone touches s.clients.
func (s *APIServer) handleWebsockets() {
	for {
		select {
		case <-s.done:
			for client := range s.clients {
				delete(s.clients, client)
				close(client.send)
			}
			s.connections.Store(0)
			return

		case client := <-s.register:
			s.clients[client] = struct{}{}
			s.connections.Store(int64(len(s.clients)))
			// Send initial state on connect
			client.trySend(s.snapshotFor(client))

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
				s.connections.Store(int64(len(s.clients)))
			}

		case message := <-s.broadcast:
			s.mergeState(message)

			for client := range s.clients {
				filtered := filterPrices(message.Prices, client.subscription())
				if len(filtered) == 0 {
					continue
				}
				out := &models.MPriceUpdate{
					Type:      models.UpdateTypeUpdate,
					Producer:  message.Producer,
					Prices:    filtered,
					Timestamp: message.Timestamp,
				}
				if !client.trySend(out) {
					// Client too slow, disconnect to keep the hub moving
					delete(s.clients, client)
					close(client.send)
					s.connections.Store(int64(len(s.clients)))
				}
			}
		}
	}
}

// -----------------------------------------------------------------------------
// Data Exchange Interface Implementation
// -----------------------------------------------------------------------------

// UpdateAllDatas replaces the snapshot served to new subscribers.
func (s *APIServer) UpdateAllDatas(prices []models.MPublishedPrice) {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()

	s.latestState = make(map[string]models.MPublishedPrice, len(prices))
	for _, p := range prices {
		s.latestState[p.Pair] = p.Clone()
		if ts := p.LastUpdate.Unix(); ts > s.latestTs {
			s.latestTs = ts
		}
	}
}

// -----------------------------------------------------------------------------

// Broadcast queues an update for every subscriber. It never blocks: when the
// queue is full the update is dropped from the feed but still merged into the
// snapshot.
func (s *APIServer) Broadcast(update *models.MPriceUpdate) {
	if update == nil || len(update.Prices) == 0 {
		return
	}

	select {
	case <-s.done:
		return
	default:
	}

	select {
	case s.broadcast <- update:
	default:
		s.Logger.Warning("Broadcast queue full, dropping update from %s", update.Producer)
		s.mergeState(update)
	}
}

// -----------------------------------------------------------------------------
// Helper Methods
// -----------------------------------------------------------------------------

func (s *APIServer) mergeState(update *models.MPriceUpdate) {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()

	for pair, p := range update.Prices {
		s.latestState[pair] = p.Clone()
	}
	if update.Timestamp > s.latestTs {
		s.latestTs = update.Timestamp
	}
}

// snapshotFor builds the INITIAL message for a client's current subscription.
func (s *APIServer) snapshotFor(client *Client) *models.MPriceUpdate {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()

	return &models.MPriceUpdate{
		Type:      models.UpdateTypeInitial,
		Prices:    filterPrices(s.latestState, client.subscription()),
		Timestamp: s.latestTs,
	}
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *APIServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		hub:  s,
		conn: conn,
		// Buffered channel to prevent blocking the Hub loop
		send: make(chan *models.MPriceUpdate, 256),
	}

	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}

	// Start goroutines for reading/writing
	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

// HandleClientMessage applies a subscribe command and answers with the
// matching snapshot. An empty pair list subscribes to every pair.
func (s *APIServer) HandleClientMessage(client *Client, message []byte) {
	var cmd models.MSubscribeCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.Logger.Info("Failed to parse client command: %v, disconnecting client", err)
		client.conn.Close()
		return
	}

	if cmd.Command != "subscribe" {
		return
	}

	client.subscribe(cmd.Pairs)
	client.trySend(s.snapshotFor(client))
}
