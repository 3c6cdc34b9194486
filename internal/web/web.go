package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Joseda-hg/lazydash/internal/api"
	"github.com/Joseda-hg/lazydash/internal/screens"
	"github.com/Joseda-hg/lazydash/internal/view"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	pageTemplate   = template.Must(template.ParseFS(templateFS, "templates/layout.tmpl", "templates/page.tmpl"))
	recordTemplate = template.Must(template.ParseFS(templateFS, "templates/layout.tmpl", "templates/record.tmpl"))
)

const (
	defaultBuildTimeout = 30 * time.Second
	defaultRateLimit    = 120
)

var errNotFound = errors.New("page not found")

type Options struct {
	Client        *api.Client
	Logger        *zap.Logger
	QuietInterval time.Duration
	PollInterval  time.Duration
	DefaultDays   int
	Now           func() time.Time
	// BuildTimeout bounds one page build; panels still loading by then are
	// rendered as loading.
	BuildTimeout time.Duration
	// RateLimit is the number of requests per minute allowed per client IP.
	RateLimit int
}

// Server renders the dashboard screens as HTML. Every request mounts a
// fresh page on its own loop, reading the filters from the request URL.
type Server struct {
	opts   Options
	logger *zap.Logger
	builds singleflight.Group
}

func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.BuildTimeout <= 0 {
		opts.BuildTimeout = defaultBuildTimeout
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRateLimit
	}
	return &Server{opts: opts, logger: opts.Logger.Named("web")}
}

func (s *Server) Handler() http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'; style-src 'self' 'unsafe-inline'",
	})

	r := chi.NewRouter()
	r.Use(
		middleware.RealIP,
		middleware.RequestID,
		middleware.Recoverer,
		s.logRequests,
		secureMiddleware.Handler,
		httprate.Limit(s.opts.RateLimit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
	)

	r.Get(screens.PathDashboard, s.pageHandler)
	r.Get(screens.PathKnowledgeBases, s.pageHandler)
	r.Get(screens.PathKnowledgeBases+"/{id}", s.pageHandler)
	r.Get(screens.PathQueries, s.pageHandler)
	r.Get(screens.PathEvaluation, s.pageHandler)
	r.Get("/rag-records/{id}", s.recordHandler)
	r.Post("/actions/{action}", s.actionHandler)
	r.Get("/healthz", s.healthHandler)
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.RequestURI()),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) pageHandler(w http.ResponseWriter, r *http.Request) {
	address := r.URL.RequestURI()
	data, err := s.shared(r.Context(), "page "+address, func(ctx context.Context) (any, error) {
		return s.buildPage(ctx, address, nil)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.render(w, r, pageTemplate, data)
}

func (s *Server) recordHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, r, errNotFound)
		return
	}
	data, err := s.shared(r.Context(), fmt.Sprintf("record %d", id), func(ctx context.Context) (any, error) {
		return s.buildRecord(ctx, id)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.render(w, r, recordTemplate, data)
}

// actionHandler runs a sync or an evaluation from the page given in the
// form's address and renders that page once every panel was refetched.
func (s *Server) actionHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	address := r.PostFormValue("address")
	if address == "" || !strings.HasPrefix(address, "/") {
		address = screens.PathDashboard
	}

	var trigger func(screens.Screen) error
	switch action := chi.URLParam(r, "action"); action {
	case "sync":
		syncType := r.PostFormValue("type")
		trigger = func(screen screens.Screen) error {
			dashboard, ok := screen.(*screens.Dashboard)
			if !ok {
				return fmt.Errorf("sync runs from the dashboard")
			}
			if !dashboard.TriggerSync(syncType) {
				return fmt.Errorf("an action is already running")
			}
			return nil
		}
	case "evaluate":
		force := r.PostFormValue("force") == "true"
		trigger = func(screen screens.Screen) error {
			evaluator, ok := screen.(interface{ Evaluate(force bool) bool })
			if !ok {
				return fmt.Errorf("evaluation is not available on this page")
			}
			if !evaluator.Evaluate(force) {
				return fmt.Errorf("an action is already running")
			}
			return nil
		}
	default:
		s.writeError(w, r, errNotFound)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.BuildTimeout+s.opts.PollInterval*60)
	defer cancel()
	data, err := s.buildPage(ctx, address, trigger)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.render(w, r, pageTemplate, data)
}

// shared lets identical concurrent requests share one build. The build is
// detached from any single caller, so one client going away does not fail
// the others.
func (s *Server) shared(ctx context.Context, key string, build func(context.Context) (any, error)) (any, error) {
	result := s.builds.DoChan(key, func() (any, error) {
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.BuildTimeout)
		defer cancel()
		return build(buildCtx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-result:
		if res.Shared {
			s.logger.Debug("shared page build", zap.String("key", key))
		}
		return res.Val, res.Err
	}
}

func (s *Server) deps(loop *view.Loop, location *view.Location) screens.Deps {
	return screens.Deps{
		Client: s.opts.Client,
		Env: view.Env{
			Dispatcher:    loop,
			Logger:        s.logger,
			Location:      location,
			QuietInterval: s.opts.QuietInterval,
		},
		Now:          s.opts.Now,
		DefaultDays:  s.opts.DefaultDays,
		PollInterval: s.opts.PollInterval,
	}
}

// buildPage mounts the screen for address, optionally runs an action on it,
// and drives its loop until nothing is loading any more.
func (s *Server) buildPage(ctx context.Context, address string, trigger func(screens.Screen) error) (pageData, error) {
	location, err := view.ParseLocation(address)
	if err != nil {
		return pageData{}, errNotFound
	}
	loop := view.NewLoop()
	defer loop.Close()

	screen, ok := screens.ForPath(s.deps(loop, location), location.Path())
	if !ok {
		return pageData{}, errNotFound
	}
	page := screen.Page()
	page.Mount(ctx)
	defer func() {
		page.Unmount()
		page.Wait()
	}()

	var actionErr error
	if trigger != nil {
		actionErr = trigger(screen)
	}
	if err := loop.RunUntil(ctx, func() bool { return !page.Loading() && !page.Busy() }); err != nil {
		s.logger.Warn("page build cut short", zap.String("address", address), zap.Error(err))
	}

	data := describe(screen, location, s.now())
	if actionErr != nil {
		data.Status, data.StatusErr = actionErr.Error(), true
	}
	return data, nil
}

func (s *Server) buildRecord(ctx context.Context, id int64) (recordData, error) {
	loop := view.NewLoop()
	defer loop.Close()

	record := screens.NewRecord(s.deps(loop, nil))
	record.Show(ctx, id)
	defer func() {
		record.Close()
		record.Wait()
	}()

	if err := loop.RunUntil(ctx, func() bool { return !record.Loading() }); err != nil {
		s.logger.Warn("record build cut short", zap.Int64("id", id), zap.Error(err))
	}
	return describeRecord(record), nil
}

func (s *Server) now() time.Time {
	if s.opts.Now == nil {
		return time.Now()
	}
	return s.opts.Now()
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, tmpl *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		s.logger.Error("render page", zap.String("path", r.URL.Path), zap.Error(err))
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	backend := ""
	if s.opts.Client != nil {
		backend = s.opts.Client.BaseURL()
	}
	writeJSON(w, map[string]string{"status": "ok", "backend": backend})
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errNotFound):
		status = http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	http.Error(w, err.Error(), status)
}
