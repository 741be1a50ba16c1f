package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"learn-quiz-service/internal/app"
	"learn-quiz-service/internal/domain"
	"learn-quiz-service/internal/metrics"
)

// Handler serves the REST surface of the quiz service.
type Handler struct {
	quizzes  *app.QuizService
	marking  *app.MarkingService
	progress *app.ProgressService
	log      *zap.Logger
}

func NewHandler(quizzes *app.QuizService, marking *app.MarkingService, progress *app.ProgressService, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{quizzes: quizzes, marking: marking, progress: progress, log: log}
}

// NewRouter wires every route behind the identity middleware.
func NewRouter(h *Handler, ws *WSHandler, identity *Identity) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestMetrics())

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/", identity.Middleware())
	api.GET("/courses", h.listCourses)
	api.GET("/quizzes", h.listQuizzes)
	api.GET("/quizzes/:slug", h.getQuiz)
	api.GET("/quizzes/:slug/take", h.take)
	api.POST("/quizzes/:slug/take", h.answer)
	api.GET("/ws", ws.Serve)
	api.GET("/session", h.sessionTally)
	api.GET("/progress", h.progressReport)
	api.GET("/progress/:course", h.courseScore)
	api.GET("/marking", h.listMarking)
	api.GET("/marking/:id", h.markingDetail)
	api.POST("/marking/:id/toggle", h.toggle)
	return r
}

func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

type quizSummary struct {
	Slug          string `json:"slug"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	Course        string `json:"course,omitempty"`
	QuestionCount int    `json:"questionCount"`
	PassMark      int    `json:"passMark"`
	SingleAttempt bool   `json:"singleAttempt"`
	ExamPaper     bool   `json:"examPaper"`
}

type quizDetail struct {
	quizSummary
	Questions []domain.QuestionView `json:"questions"`
}

func summarize(q domain.Quiz) quizSummary {
	return quizSummary{
		Slug:          q.Slug,
		Title:         q.Title,
		Description:   q.Description,
		Course:        q.Course,
		QuestionCount: len(q.Questions),
		PassMark:      q.PassMark,
		SingleAttempt: q.SingleAttempt,
		ExamPaper:     q.ExamPaper,
	}
}

func (h *Handler) listCourses(c *gin.Context) {
	courses, err := h.quizzes.Courses(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"courses": courses})
}

func (h *Handler) listQuizzes(c *gin.Context) {
	quizzes, err := h.quizzes.ListQuizzes(c.Request.Context(), c.Query("course"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quizzes": lo.Map(quizzes, func(q domain.Quiz, _ int) quizSummary { return summarize(q) })})
}

func (h *Handler) getQuiz(c *gin.Context) {
	quiz, err := h.quizzes.Quiz(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, quizDetail{
		quizSummary: summarize(quiz),
		Questions:   lo.Map(quiz.Questions, func(q domain.Question, _ int) domain.QuestionView { return domain.NewQuestionView(q) }),
	})
}

func (h *Handler) take(c *gin.Context) {
	step, err := h.quizzes.Take(c.Request.Context(), visitorFrom(c), c.Param("slug"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, step)
}

func (h *Handler) answer(c *gin.Context) {
	var submission domain.AnswerSubmission
	if err := c.ShouldBindJSON(&submission); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid answer payload"})
		return
	}
	outcome, err := h.quizzes.Answer(c.Request.Context(), visitorFrom(c), c.Param("slug"), submission)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func (h *Handler) sessionTally(c *gin.Context) {
	tally, err := h.quizzes.SessionTally(c.Request.Context(), visitorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"score":    tally.Score,
		"possible": tally.Possible,
		"percent":  domain.Percent(tally.Score, tally.Possible),
	})
}

func (h *Handler) progressReport(c *gin.Context) {
	report, err := h.progress.Report(c.Request.Context(), visitorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) courseScore(c *gin.Context) {
	report, err := h.progress.CourseScore(c.Request.Context(), visitorFrom(c), c.Param("course"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) listMarking(c *gin.Context) {
	filter := domain.SittingFilter{
		QuizTitle: c.Query("quiz_filter"),
		Username:  c.Query("user_filter"),
	}
	sittings, err := h.marking.List(c.Request.Context(), visitorFrom(c), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sittings": sittings})
}

func (h *Handler) markingDetail(c *gin.Context) {
	id, ok := int64Param(c, c.Param("id"), "sitting id")
	if !ok {
		return
	}
	marked, err := h.marking.Detail(c.Request.Context(), visitorFrom(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, marked)
}

func (h *Handler) toggle(c *gin.Context) {
	id, ok := int64Param(c, c.Param("id"), "sitting id")
	if !ok {
		return
	}
	questionID, ok := int64Param(c, c.Query("question"), "question id")
	if !ok {
		return
	}
	marked, err := h.marking.Toggle(c.Request.Context(), visitorFrom(c), id, questionID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, marked)
}

func int64Param(c *gin.Context, raw, name string) (int64, bool) {
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return v, true
}
