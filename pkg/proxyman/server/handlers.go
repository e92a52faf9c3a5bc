package server

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const maxRequestSize = 16 << 20

// HTTPHandler serves JSON-RPC over plain net/http
func HTTPHandler(r *Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(io.LimitReader(req.Body, maxRequestSize))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		out := r.ServeJSON(req.Context(), body)
		if out == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(out)
	})
}

// EchoHandler serves JSON-RPC from an Echo route
func EchoHandler(r *Registry) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxRequestSize))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}

		out := r.ServeJSON(c.Request().Context(), body)
		if out == nil {
			return c.NoContent(http.StatusNoContent)
		}
		return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, out)
	}
}

// GinHandler serves JSON-RPC from a Gin route
func GinHandler(r *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRequestSize))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		out := r.ServeJSON(c.Request.Context(), body)
		if out == nil {
			c.Status(http.StatusNoContent)
			return
		}
		c.Data(http.StatusOK, "application/json", out)
	}
}

// FiberHandler serves JSON-RPC from a Fiber route
func FiberHandler(r *Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		out := r.ServeJSON(c.UserContext(), c.Body())
		if out == nil {
			return c.SendStatus(fiber.StatusNoContent)
		}
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Status(fiber.StatusOK).Send(out)
	}
}

// WebSocketHandler upgrades connections and serves JSON-RPC messages on
// them. Requests on one connection are handled concurrently.
func WebSocketHandler(r *Registry, upgrader *websocket.Upgrader) http.Handler {
	if upgrader == nil {
		upgrader = &websocket.Upgrader{}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			r.logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(req.Context())
		defer cancel()

		var (
			writeMu sync.Mutex
			wg      sync.WaitGroup
		)
		defer wg.Wait()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					r.logger.Debug("websocket read failed", zap.Error(err))
				}
				return
			}

			wg.Add(1)
			go func(msg []byte) {
				defer wg.Done()
				out := r.ServeJSON(ctx, msg)
				if out == nil {
					return
				}
				writeMu.Lock()
				defer writeMu.Unlock()
				if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
					r.logger.Debug("websocket write failed", zap.Error(err))
				}
			}(msg)
		}
	})
}
