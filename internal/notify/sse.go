package notify

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
)

const heartbeatInterval = 15 * time.Second

// StreamHandler serves GET /api/eventos?grupo=cocina|caja|todos as Server-Sent Events.
func StreamHandler(hub *Hub) fiber.Handler {
	return func(c *fiber.Ctx) error {
		group := Group(c.Query("grupo", string(GroupAll)))
		if !group.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "Grupo inválido; use cocina, caja o todos")
		}

		c.Set(fiber.HeaderContentType, "text/event-stream")
		c.Set(fiber.HeaderCacheControl, "no-cache")
		c.Set(fiber.HeaderConnection, "keep-alive")
		c.Set("X-Accel-Buffering", "no")

		sub, backlog := hub.Subscribe(group)
		c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			defer sub.Close()

			if _, err := io.WriteString(w, "retry: 2000\n\n"); err != nil {
				return
			}
			for _, ev := range backlog {
				if err := writeEvent(w, ev); err != nil {
					return
				}
			}
			if err := w.Flush(); err != nil {
				return
			}

			heartbeat := time.NewTicker(heartbeatInterval)
			defer heartbeat.Stop()
			for {
				select {
				case ev, ok := <-sub.Events():
					if !ok {
						return
					}
					if err := writeEvent(w, ev); err != nil {
						return
					}
				case <-heartbeat.C:
					if _, err := io.WriteString(w, ": heartbeat\n\n"); err != nil {
						return
					}
				}
				// A failed flush means the client went away.
				if err := w.Flush(); err != nil {
					return
				}
			}
		})
		return nil
	}
}

func writeEvent(w io.Writer, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID, ev.Type, data)
	return err
}
