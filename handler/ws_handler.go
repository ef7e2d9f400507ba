package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	services "github.com/phamduchanh/docvec-be/service"
)

// WsHandler streams task progress events over a websocket so clients can
// watch ingestion without polling.
type WsHandler struct {
	taskService *services.TaskService
	upgrader    websocket.Upgrader
}

func NewWsHandler(taskService *services.TaskService) *WsHandler {
	return &WsHandler{
		taskService: taskService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (h *WsHandler) TaskEventsHandler(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("Upgrade error:", err)
		return
	}
	defer conn.Close()

	events, unsubscribe := h.taskService.Subscribe()
	defer unsubscribe()

	// Drain reads so close frames and pings are processed; the client is
	// not expected to send anything else.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case event := <-events:
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}
}
