package web

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/conorfennell/leitner/internal/deck"
	"github.com/conorfennell/leitner/internal/domain"
	"github.com/conorfennell/leitner/internal/session"
	"github.com/conorfennell/leitner/internal/stats"
	"github.com/conorfennell/leitner/internal/storage"
)

// maxDeckSize caps an uploaded CSV body. Larger uploads get 413.
const maxDeckSize = "10M"

// Server exposes the review engine as a JSON API. Requests are serialized so
// the process holds at most one active session.
type Server struct {
	mu       sync.Mutex
	engine   *session.Engine
	sources  *storage.Sources
	defaults domain.SourceConfig
	router   *echo.Echo
	log      *zap.Logger
}

// NewServer creates and configures a new server.
func NewServer(engine *session.Engine, sources *storage.Sources, defaults domain.SourceConfig, log *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		engine:   engine,
		sources:  sources,
		defaults: defaults,
		router:   e,
		log:      log,
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.log.Info("listening", zap.String("addr", addr))
	if err := s.router.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.router.Shutdown(ctx)
}

func (s *Server) routes() {
	s.router.Use(middleware.Recover())
	s.router.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.log.Debug("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
			)
			return nil
		},
	}))

	api := s.router.Group("/api")

	api.POST("/deck", s.handleLoadDeck, middleware.BodyLimit(maxDeckSize))
	api.GET("/deck", s.handleGetDeck)
	api.POST("/deck/reset", s.handleResetDeck)
	api.GET("/boxes", s.handleGetBoxes)
	api.GET("/cards/:id", s.handleGetCard)
	api.PATCH("/cards/:id", s.handleEditCard)

	api.POST("/review/box/:box", s.handleStartBox)
	api.POST("/review/card/:id", s.handleStartFromCard)
	api.GET("/review", s.handleGetReview)
	api.POST("/review/answer", s.handlePostAnswer)
	api.DELETE("/review/card", s.handleDeleteCard)

	api.GET("/sessions", s.handleGetSessions)
	api.POST("/sessions/:id/resume", s.handleResume)
	api.DELETE("/sessions/:id", s.handleDeleteSession)
	api.DELETE("/sessions", s.handleClearAll)

	api.GET("/source", s.handleGetSource)
	api.PUT("/source", s.handlePutSource)
}

type errorResponse struct {
	Error string `json:"error"`
	Deck  string `json:"deck,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrDeckNotLoaded),
		errors.Is(err, session.ErrSessionCompleted),
		errors.Is(err, session.ErrNoCurrentCard):
		return http.StatusConflict
	case errors.Is(err, session.ErrNoDeck),
		errors.Is(err, session.ErrNoActiveSession),
		errors.Is(err, session.ErrCardNotFound),
		errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrEmptySelection):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrInvalidDifficulty),
		errors.Is(err, storage.ErrInvalidSource):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// fail writes err as a JSON error body with a status derived from its kind.
func (s *Server) fail(c echo.Context, err error) error {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("uri", c.Request().RequestURI), zap.Error(err))
		return c.JSON(status, errorResponse{Error: "internal server error"})
	}

	resp := errorResponse{Error: err.Error()}
	var required *session.DeckRequiredError
	if errors.As(err, &required) {
		resp.Deck = required.DeckName
	}
	return c.JSON(status, resp)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}

func intParam(c echo.Context, name string) (int, bool) {
	n, err := strconv.Atoi(c.Param(name))
	return n, err == nil
}

// handleLoadDeck loads the CSV request body as the deck named by ?name=.
func (s *Server) handleLoadDeck(c echo.Context) error {
	name := c.QueryParam("name")
	if name == "" {
		return badRequest(c, "missing deck name")
	}
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code == http.StatusRequestEntityTooLarge {
			return c.JSON(he.Code, errorResponse{Error: "deck too large"})
		}
		return badRequest(c, "failed to read deck")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.engine.LoadDeck(c.Request().Context(), name, string(body))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

type deckView struct {
	Filename     string                 `json:"filename"`
	Domain       string                 `json:"domain"`
	Groups       []deck.Group           `json:"groups"`
	Difficulties stats.DifficultyCounts `json:"difficulties"`
}

func (s *Server) handleGetDeck(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.engine.State().Deck
	if d == nil {
		return s.fail(c, session.ErrNoDeck)
	}
	return c.JSON(http.StatusOK, deckView{
		Filename:     d.Filename,
		Domain:       deck.Domain(d.Filename),
		Groups:       deck.Overview(d.Cards),
		Difficulties: stats.Difficulties(d.Cards),
	})
}

func (s *Server) handleResetDeck(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.engine.ResetDeck(c.Request().Context()); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleGetBoxes(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	boxes, err := s.engine.Boxes()
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, boxes)
}

type cardView struct {
	domain.Card
	QImageURL string `json:"qImageUrl,omitempty"`
	AImageURL string `json:"aImageUrl,omitempty"`
}

// handleGetCard returns one card with its image references resolved. With
// ?local=true images are addressed relative to the deck folder.
func (s *Server) handleGetCard(c echo.Context) error {
	id, ok := intParam(c, "id")
	if !ok {
		return badRequest(c, "invalid card id")
	}
	local := c.QueryParam("local") == "true"

	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.engine.State().Deck
	if d == nil {
		return s.fail(c, session.ErrNoDeck)
	}
	card, found := d.Find(id)
	if !found {
		return s.fail(c, errors.Wrapf(session.ErrCardNotFound, "card %d", id))
	}
	src, err := s.sources.Load(c.Request().Context(), s.defaults)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, cardView{
		Card:      *card,
		QImageURL: deck.ImageURL(card.QImage, deck.QuestionImage, src, local),
		AImageURL: deck.ImageURL(card.AImage, deck.AnswerImage, src, local),
	})
}

func (s *Server) handleEditCard(c echo.Context) error {
	id, ok := intParam(c, "id")
	if !ok {
		return badRequest(c, "invalid card id")
	}
	var edit session.CardEdit
	if err := c.Bind(&edit); err != nil {
		return badRequest(c, "invalid card edit")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	card, err := s.engine.EditCard(c.Request().Context(), id, edit)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, card)
}

// startAndAdvance opens a session with start and returns its first step.
func (s *Server) startAndAdvance(c echo.Context, start func(ctx context.Context) (domain.Session, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx := c.Request().Context()
	if _, err := start(ctx); err != nil {
		return s.fail(c, err)
	}
	step, err := s.engine.Advance(ctx)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, step)
}

func (s *Server) handleStartBox(c echo.Context) error {
	box, ok := intParam(c, "box")
	if !ok || box < domain.MinBox || box > domain.MaxBox {
		return badRequest(c, "invalid box")
	}
	return s.startAndAdvance(c, func(ctx context.Context) (domain.Session, error) {
		return s.engine.StartBox(ctx, box)
	})
}

func (s *Server) handleStartFromCard(c echo.Context) error {
	id, ok := intParam(c, "id")
	if !ok {
		return badRequest(c, "invalid card id")
	}
	return s.startAndAdvance(c, func(ctx context.Context) (domain.Session, error) {
		return s.engine.StartFromCard(ctx, id)
	})
}

func (s *Server) handleGetReview(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	step, err := s.engine.Advance(c.Request().Context())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, step)
}

type answerRequest struct {
	Correct    *bool             `json:"correct"`
	Difficulty domain.Difficulty `json:"difficulty"`
}

func (s *Server) handlePostAnswer(c echo.Context) error {
	var req answerRequest
	if err := c.Bind(&req); err != nil || req.Correct == nil {
		return badRequest(c, "answer needs a boolean \"correct\"")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.engine.RecordAnswer(c.Request().Context(), *req.Correct, req.Difficulty)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleDeleteCard(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	step, err := s.engine.DeleteCard(c.Request().Context())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, step)
}

func (s *Server) handleGetSessions(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	report, err := s.engine.History(c.Request().Context())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

// handleResume continues a stored session. When its deck is not loaded the
// response is 409 naming the deck; loading it continues the session.
func (s *Server) handleResume(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	step, err := s.engine.Resume(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, step)
}

func (s *Server) handleDeleteSession(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.engine.DeleteSession(c.Request().Context(), c.Param("id")); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleClearAll(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.engine.ClearAll(c.Request().Context()); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleGetSource(c echo.Context) error {
	src, err := s.sources.Load(c.Request().Context(), s.defaults)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, src)
}

func (s *Server) handlePutSource(c echo.Context) error {
	var src domain.SourceConfig
	if err := c.Bind(&src); err != nil {
		return badRequest(c, "invalid source config")
	}
	saved, err := s.sources.Save(c.Request().Context(), src)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, saved)
}
