package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"quiz-proctor/internal/app"
	"quiz-proctor/internal/domain"
)

// closeGrace is how long a client gets to hang up after the session ended.
const closeGrace = 5 * time.Second

type WSHandler struct {
	service  *app.ProctorService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.ProctorService) *WSHandler {
	return &WSHandler{
		service: service,
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

type answerPayload struct {
	QuestionID int64 `json:"questionId"`
	OptionID   int64 `json:"optionId"`
}

type keyPayload struct {
	Key   string `json:"key"`
	Ctrl  bool   `json:"ctrl"`
	Shift bool   `json:"shift"`
	Alt   bool   `json:"alt"`
	Meta  bool   `json:"meta"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type closePayload struct {
	Reason string `json:"reason"`
}

// wsHost stands in for the mini-app shell on the other end of the socket.
// Close only queues the request; the connection goroutine delivers it.
type wsHost struct {
	embedded bool
	closes   chan string
}

func newWSHost(embedded bool) *wsHost {
	return &wsHost{embedded: embedded, closes: make(chan string, 1)}
}

func (h *wsHost) Close(reason string) bool {
	if !h.embedded {
		return false
	}
	select {
	case h.closes <- reason:
	default:
	}
	return true
}

// ServeWS upgrades HTTP requests to websockets and wires them into a proctored session.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "missing sessionId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	session, err := h.service.Get(sessionID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	host := newWSHost(r.URL.Query().Get("host") == "telegram")
	session.AttachHost(host)
	updates, cancel := session.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
			if msg.Type == "close" {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session over"),
					time.Now().Add(time.Second))
				_ = conn.SetReadDeadline(time.Now().Add(closeGrace))
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case ev, ok := <-updates:
				if !ok {
					// session over: a host close request always precedes termination
					reason := string(session.View().State)
					select {
					case reason = <-host.closes:
					default:
					}
					select {
					case send <- outboundMessage[any]{Type: "close", Payload: closePayload{Reason: reason}}:
					case <-closeSignals:
					}
					return
				}
				select {
				case send <- outboundMessage[any]{Type: string(ev.Type), Payload: ev}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if err := h.dispatch(r.Context(), session, inbound); err != nil {
			select {
			case send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}:
			case <-writerDone:
			}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

var errUnsupported = errors.New("unsupported message type")

func (h *WSHandler) dispatch(ctx context.Context, session *app.Session, in inboundMessage) error {
	switch in.Type {
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(in.Payload, &payload); err != nil {
			return errors.New("invalid answer payload")
		}
		return session.SelectAnswer(payload.QuestionID, payload.OptionID)
	case "next":
		return session.GoNext()
	case "previous":
		return session.GoPrevious()
	case "blur", "focus", "beforeunload":
		session.HandleIntegrity(ctx, app.IntegrityEvent{Kind: app.EventKind(in.Type)})
		return nil
	case "keydown":
		var payload keyPayload
		if err := json.Unmarshal(in.Payload, &payload); err != nil {
			return errors.New("invalid keydown payload")
		}
		session.HandleIntegrity(ctx, app.IntegrityEvent{
			Kind:  app.EventKeyDown,
			Key:   payload.Key,
			Ctrl:  payload.Ctrl,
			Shift: payload.Shift,
			Alt:   payload.Alt,
			Meta:  payload.Meta,
		})
		return nil
	case "confirmLeave":
		session.ConfirmLeave()
		return nil
	case "cancelLeave":
		session.CancelLeave()
		return nil
	case "submit":
		// grading must outlive a dropped socket; the outcome arrives as an event
		go func() {
			if _, err := session.Submit(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, domain.ErrSubmitInFlight) {
				log.Printf("session %s: submit: %v", session.ID(), err)
			}
		}()
		return nil
	default:
		return errUnsupported
	}
}
