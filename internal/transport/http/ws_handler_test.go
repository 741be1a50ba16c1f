package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"learn-quiz-service/internal/app"
	"learn-quiz-service/internal/domain"
	"learn-quiz-service/internal/infra/memory"
)

func TestWebSocketAnonymousTakeFlow(t *testing.T) {
	server, _ := newTestServer(t)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?quiz=quiz-1"
	conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if len(resp.Cookies()) == 0 {
		t.Fatalf("expected session cookie on handshake")
	}

	// Expect the first step before anything else.
	_, payload := readNext(conn, t, "step")
	if id := questionID(t, payload); id != 1 {
		t.Fatalf("expected question 1 first, got %v", id)
	}

	if err := conn.WriteJSON(map[string]any{
		"type":    "answer",
		"payload": map[string]any{"questionId": 1, "guess": "2"},
	}); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	_, payload = readNext(conn, t, "feedback")
	if payload["correct"] != true {
		t.Fatalf("expected correct feedback, got %+v", payload)
	}
	_, payload = readNext(conn, t, "step")
	if id := questionID(t, payload); id != 2 {
		t.Fatalf("expected question 2 next, got %v", id)
	}

	if err := conn.WriteJSON(map[string]any{
		"type":    "answer",
		"payload": map[string]any{"guess": "False"},
	}); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	_, payload = readNext(conn, t, "feedback")
	if payload["correct"] != false {
		t.Fatalf("expected incorrect feedback, got %+v", payload)
	}
	_, payload = readNext(conn, t, "result")
	if payload["score"] != float64(1) || payload["percent"] != float64(50) || payload["passed"] != true {
		t.Fatalf("unexpected result %+v", payload)
	}
	if payload["sessionPossible"] != float64(2) {
		t.Fatalf("expected session tally of 2 answers, got %+v", payload)
	}
}

func TestWebSocketRejectsUnknownMessage(t *testing.T) {
	server, _ := newTestServer(t)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?quiz=quiz-1"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	readNext(conn, t, "step")
	if err := conn.WriteJSON(map[string]any{"type": "cheat"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, payload := readNext(conn, t, "error")
	if payload["message"] != "unsupported message type" {
		t.Fatalf("unexpected error payload %+v", payload)
	}
}

func TestWebSocketSingleAttemptRefusedForAnonymous(t *testing.T) {
	server, _ := newTestServer(t)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?quiz=final"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_, payload := readNext(conn, t, "error")
	if payload["status"] != float64(http.StatusForbidden) {
		t.Fatalf("expected forbidden, got %+v", payload)
	}
}

func TestWebSocketEmptyQuizSendsResult(t *testing.T) {
	server, _ := newTestServer(t)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?quiz=warmup"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_, payload := readNext(conn, t, "step")
	if _, ok := payload["question"]; ok {
		t.Fatalf("expected no question, got %+v", payload)
	}
	_, payload = readNext(conn, t, "result")
	if payload["maxScore"] != float64(0) || payload["retained"] != false {
		t.Fatalf("unexpected result %+v", payload)
	}
}

func TestOutboxRefusesPushAfterWriterStops(t *testing.T) {
	out := startOutbox(func(interface{}) error { return errors.New("broken pipe") }, zap.NewNop())
	if !out.push(outboundMessage[any]{Type: "step"}) {
		t.Fatalf("expected first push to be queued")
	}
	select {
	case <-out.done:
	case <-time.After(5 * time.Second):
		t.Fatalf("writer did not stop after a failed write")
	}

	pushed := make(chan int, 1)
	go func() {
		accepted := 0
		for i := 0; i < 64; i++ {
			if out.push(outboundMessage[any]{Type: "feedback"}) {
				accepted++
			}
		}
		pushed <- accepted
	}()
	select {
	case accepted := <-pushed:
		if accepted != 0 {
			t.Fatalf("expected pushes to be refused, %d accepted", accepted)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("push blocked after the writer stopped")
	}
	out.close()
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s (%+v)", expect, msg.Type, msg.Payload)
	}
	return msg.Type, msg.Payload
}

func questionID(t *testing.T, step map[string]any) float64 {
	t.Helper()
	question, ok := step["question"].(map[string]any)
	if !ok {
		t.Fatalf("step has no question: %+v", step)
	}
	id, _ := question["id"].(float64)
	return id
}

func newTestServer(t *testing.T) (*httptest.Server, *Identity) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	quizRepo := memory.NewQuizRepository(memory.NewStaticQuizLoader(sampleQuizzes()), time.Minute)
	sittings := memory.NewSittingStore()
	progress := memory.NewProgressStore()
	anon := memory.NewSessionStore(72 * time.Hour)

	quizzes := app.NewQuizService(quizRepo, sittings, progress, anon)
	marking := app.NewMarkingService(quizRepo, sittings, nil)
	reports := app.NewProgressService(quizRepo, progress, sittings)

	identity := NewIdentity("test-secret", "quiz_session", 72*time.Hour)
	router := NewRouter(NewHandler(quizzes, marking, reports, nil), NewWSHandler(quizzes, nil), identity)
	return httptest.NewServer(router), identity
}

func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			Slug:     "quiz-1",
			Title:    "Sums",
			Course:   "math",
			PassMark: 50,
			Questions: []domain.Question{
				{
					ID:      1,
					Content: "What is 2 + 2?",
					Course:  "math",
					Variant: domain.MultipleChoice{Options: []domain.Answer{
						{ID: 1, Content: "3"},
						{ID: 2, Content: "4", Correct: true},
						{ID: 3, Content: "5"},
					}},
				},
				{
					ID:      2,
					Content: "Is 7 prime?",
					Course:  "math",
					Variant: domain.TrueFalse{Correct: true},
				},
			},
		},
		"warmup": {
			Slug:   "warmup",
			Title:  "Warm-up",
			Course: "math",
		},
		"final": {
			Slug:          "final",
			Title:         "Physics Final",
			Course:        "physics",
			SingleAttempt: true,
			ExamPaper:     true,
			Questions: []domain.Question{
				{
					ID:      10,
					Content: "Unit of force?",
					Course:  "physics",
					Variant: domain.MultipleChoice{Options: []domain.Answer{
						{ID: 1, Content: "Newton", Correct: true},
						{ID: 2, Content: "Joule"},
					}},
				},
			},
		},
	}
}
