package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"learn-quiz-service/internal/app"
	"learn-quiz-service/internal/domain"
)

// WSHandler runs the take-quiz flow over a websocket: the server pushes the
// current step, the client answers, and the server replies with feedback and
// either the next step or the final result.
type WSHandler struct {
	service  *app.QuizService
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, log *zap.Logger) *WSHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type feedbackPayload struct {
	Correct  bool             `json:"correct"`
	Feedback *domain.Feedback `json:"feedback,omitempty"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error(), Status: statusFor(err)}}
}

// Serve upgrades the request and drives one quiz attempt for the caller.
func (h *WSHandler) Serve(c *gin.Context) {
	slug := c.Query("quiz")
	if slug == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing quiz"})
		return
	}
	visitor := visitorFrom(c)

	// Carry a freshly issued session cookie through the handshake response.
	var header http.Header
	if cookies := c.Writer.Header().Values("Set-Cookie"); len(cookies) > 0 {
		header = http.Header{"Set-Cookie": cookies}
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, header)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	step, err := h.service.Take(ctx, visitor, slug)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}

	out := startOutbox(conn.WriteJSON, h.log)
	defer out.close()

	if !out.push(outboundMessage[any]{Type: "step", Payload: step}) {
		return
	}
	if step.Result != nil {
		out.push(outboundMessage[any]{Type: "result", Payload: step.Result})
		return
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		replies, finished := h.handle(ctx, visitor, slug, inbound)
		for _, msg := range replies {
			if !out.push(msg) {
				return
			}
		}
		if finished {
			return
		}
	}
}

// handle answers one inbound message. finished reports that the attempt has
// produced its result.
func (h *WSHandler) handle(ctx context.Context, visitor domain.Visitor, slug string, inbound inboundMessage) (replies []outboundMessage[any], finished bool) {
	if inbound.Type != "answer" {
		return []outboundMessage[any]{{Type: "error", Payload: errorPayload{Message: "unsupported message type", Status: http.StatusBadRequest}}}, false
	}
	var submission domain.AnswerSubmission
	if err := json.Unmarshal(inbound.Payload, &submission); err != nil {
		return []outboundMessage[any]{{Type: "error", Payload: errorPayload{Message: "invalid answer payload", Status: http.StatusBadRequest}}}, false
	}
	outcome, err := h.service.Answer(ctx, visitor, slug, submission)
	if err != nil {
		return []outboundMessage[any]{errorMessage(err)}, false
	}
	replies = append(replies, outboundMessage[any]{Type: "feedback", Payload: feedbackPayload{Correct: outcome.Correct, Feedback: outcome.Feedback}})
	if outcome.Result != nil {
		return append(replies, outboundMessage[any]{Type: "result", Payload: outcome.Result}), true
	}
	return append(replies, outboundMessage[any]{Type: "step", Payload: outcome.Next}), false
}

// outbox serialises writes onto one goroutine; gorilla connections allow a
// single concurrent writer. Once a write fails the writer stops and every
// later push reports false.
type outbox struct {
	send chan outboundMessage[any]
	done chan struct{}
}

func startOutbox(write func(v interface{}) error, log *zap.Logger) *outbox {
	o := &outbox{
		send: make(chan outboundMessage[any], 16),
		done: make(chan struct{}),
	}
	go func() {
		defer close(o.done)
		for msg := range o.send {
			if err := write(msg); err != nil {
				log.Debug("ws write error", zap.Error(err))
				return
			}
		}
	}()
	return o
}

func (o *outbox) push(msg outboundMessage[any]) bool {
	select {
	case <-o.done:
		return false
	default:
	}
	select {
	case o.send <- msg:
		return true
	case <-o.done:
		return false
	}
}

// close flushes queued messages and waits for the writer to stop.
func (o *outbox) close() {
	close(o.send)
	<-o.done
}
