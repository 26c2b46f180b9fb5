package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/tabshell/core"
	"pkt.systems/tabshell/desktopsync"
	"pkt.systems/tabshell/internal/logx"
	"pkt.systems/tabshell/schema"
)

// Synchronizer enriches topology for clients and accepts surface navigation.
type Synchronizer interface {
	Enrich(topo schema.Topology) schema.Topology
	Snapshot() []desktopsync.Message
	ApplySurfaceMeta(ctx context.Context, meta desktopsync.SurfaceMeta) (schema.ActionResponse, error)
}

// Server serves the action protocol, the message channels and the shell page.
type Server struct {
	cfg      Config
	service  core.Service
	sync     Synchronizer
	hub      *Hub
	basePath string
	baseHref string
	pages    *pageSet
	metrics  http.Handler
	observe  requestObserver
}

// NewServer constructs an HTTP server.
func NewServer(cfg Config, service core.Service, sync Synchronizer, hub *Hub) *Server {
	baseHref := buildBaseHref(cfg.BaseURL, cfg.BasePath)
	if baseHref == "" {
		// Content pages live at arbitrary depths.
		baseHref = "/"
	}
	pages, err := loadPages(assetsRoot(), baseHref)
	if err != nil {
		pslog.Ctx(context.Background()).Error("http pages unavailable", "err", err)
		pages = &pageSet{files: assetsRoot(), rendered: map[string][]byte{}}
	}
	return &Server{
		cfg:      cfg,
		service:  service,
		sync:     sync,
		hub:      hub,
		basePath: normalizeBasePath(cfg.BasePath),
		baseHref: baseHref,
		pages:    pages,
	}
}

// SetMetrics exposes handler on /metrics and reports finished requests to observe.
func (s *Server) SetMetrics(handler http.Handler, observe func(method string, status int, elapsed time.Duration)) {
	if s == nil {
		return
	}
	s.metrics = handler
	s.observe = observe
}

// Handler returns an http.Handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.Handle("/assets/", s.pages.static())

	mux.HandleFunc("/api/topology", s.handleTopology)
	mux.HandleFunc("/api/channels", s.handleChannels)
	mux.HandleFunc("/api/actions/", s.handleAction)
	mux.HandleFunc("/api/cookies", s.handleCookies)
	mux.HandleFunc("/api/stream", s.handleStream)
	mux.HandleFunc("/api/surface", s.handleSurface)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}

	return mountBasePath(s.basePath, withRequestLogging(mux, s.observe))
}

// handleIndex serves the chrome page on /shell/ and the content page on
// every other path.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if strings.HasPrefix(r.URL.Path, "/api/") {
		http.NotFound(w, r)
		return
	}
	page := contentPage
	if r.URL.Path == "/shell/" {
		page = shellPage
	}
	s.pages.serve(w, r, page)
}

func (s *Server) handleTopology(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	topo, err := s.service.GetTopology(r.Context())
	if err != nil {
		logx.Ctx(r.Context()).Warn("http topology failed", "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, s.sync.Enrich(topo))
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"namespace": desktopsync.Namespace,
		"channels":  desktopsync.Channels(),
	})
}

// actionPayload is the union of all action request bodies.
type actionPayload struct {
	TabID      schema.TabID              `json:"tab_id"`
	ViewIndex  int                       `json:"view_index"`
	ShouldPin  bool                      `json:"should_pin"`
	Template   *schema.WorkbenchTemplate `json:"template"`
	Patch      *schema.WorkbenchPatch    `json:"patch"`
	Rect       *schema.Rect              `json:"rect"`
	Item       schema.MenuItemID         `json:"item"`
	Maximized  *bool                     `json:"maximized"`
	FullScreen *bool                     `json:"full_screen"`
}

type actionFunc func(ctx context.Context, svc core.Service, p actionPayload) (any, error)

var actions = map[string]actionFunc{
	"add-tab": func(ctx context.Context, svc core.Service, p actionPayload) (any, error) {
		return svc.AddTab(ctx, schema.AddTabRequest{Template: p.Template})
	},
	"close-tab": func(ctx context.Context, svc core.Service, p actionPayload) (any, error) {
		return svc.CloseTab(ctx, schema.CloseTabRequest{TabID: p.TabID})
	},
	"close-other-tabs": func(ctx context.Context, svc core.Service, p actionPayload) (any, error) {
		return svc.CloseOtherTabs(ctx, schema.CloseOtherTabsRequest{TabID: p.TabID})
	},
	"duplicate-tab": func(ctx context.Context, svc core.Service, p actionPayload) (any, error) {
		return svc.DuplicateTab(ctx, schema.DuplicateTabRequest{TabID: p.TabID})
	},
	"pin-tab": func(ctx context.Context, svc core.Service, p actionPayload) (any, error) {
		return svc.PinTab(ctx, schema.PinTabRequest{TabID: p.TabID, ShouldPin: p.ShouldPin})
	},
	"show-tab": func(ctx context.Context, svc core.Service, p actionPayload) (any, error) {
		return svc.ShowTab(ctx, schema.ShowTabRequest{TabID: p.TabID})
	},
	"load-tab": func(ctx context.Context, svc core.Service, p actionPayload) (any, error) {
		return svc.LoadTab(ctx, schema.LoadTabRequest{TabID: p.TabID})
	},
	"refresh-tab": func(ctx context.Context, svc core.Service, p actionPayload) (any, error) {
		return svc.RefreshTab(ctx, schema.RefreshTabRequest{TabID: p.TabID})
	},
	"bring-to-front": func(ctx context.Context, svc core.Service, p actionPayload) (any, error) {
		return svc.BringToFront(ctx, schema.BringToFrontRequest{TabID: p.TabID})
	},
	"activate-view": func(ctx context.Context, svc core.Service, p actionPayload) (any, error) {
		return svc.ActivateView(ctx, schema.ActivateViewRequest{TabID: p.TabID, ViewIndex: p.ViewIndex})
	},
	"separate-view": func(ctx context.Context, svc core.Service, p actionPayload) (any, error) {
		return svc.SeparateView(ctx, schema.SeparateViewRequest{TabID: p.TabID, ViewIndex: p.ViewIndex})
	},
	"open-in-split-view": func(ctx context.Context, svc core.Service, p actionPayload) (any, error) {
		return svc.OpenInSplitView(ctx, schema.OpenInSplitViewRequest{TabID: p.TabID})
	},
	"update-workbench-meta": func(ctx context.Context, svc core.Service, p actionPayload) (any, error) {
		if p.Patch == nil {
			return nil, fmt.Errorf("missing patch: %w", schema.ErrInvalidRequest)
		}
		return svc.UpdateWorkbenchMeta(ctx, schema.UpdateWorkbenchMetaRequest{TabID: p.TabID, Patch: *p.Patch})
	},
	"toggle-right-sidebar": func(ctx context.Context, svc core.Service, p actionPayload) (any, error) {
		return svc.ToggleRightSidebar(ctx, schema.ToggleRightSidebarRequest{TabID: p.TabID})
	},
	"tab-menu": func(ctx context.Context, svc core.Service, p actionPayload) (any, error) {
		return svc.TabMenu(ctx, schema.TabMenuRequest{TabID: p.TabID, ViewIndex: p.ViewIndex})
	},
	"run-menu-item": func(ctx context.Context, svc core.Service, p actionPayload) (any, error) {
		return svc.RunMenuItem(ctx, schema.RunMenuItemRequest{TabID: p.TabID, ViewIndex: p.ViewIndex, Item: p.Item})
	},
	"resize": func(ctx context.Context, svc core.Service, p actionPayload) (any, error) {
		if p.Rect == nil {
			return nil, fmt.Errorf("missing rect: %w", schema.ErrInvalidRequest)
		}
		return svc.Resize(ctx, schema.ResizeRequest{Window: *p.Rect})
	},
	"tabs-bounding-rect": func(ctx context.Context, svc core.Service, p actionPayload) (any, error) {
		if p.Rect == nil {
			return nil, fmt.Errorf("missing rect: %w", schema.ErrInvalidRequest)
		}
		return svc.UpdateTabsBoundingRect(ctx, schema.UpdateTabsBoundingRectRequest{Rect: *p.Rect})
	},
	"window-state": func(ctx context.Context, svc core.Service, p actionPayload) (any, error) {
		return svc.SetWindowState(ctx, schema.WindowStateRequest{Maximized: p.Maximized, FullScreen: p.FullScreen})
	},
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/api/actions/")
	log := logx.Ctx(r.Context()).With("action", name)
	fn, ok := actions[name]
	if !ok {
		log.Warn("http action unknown")
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown action %q", name))
		return
	}
	var payload actionPayload
	if err := decodeJSON(r.Body, &payload); err != nil && !errors.Is(err, io.EOF) {
		log.Warn("http action decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ctx := logx.ContextWithTabLogger(r.Context(), logx.WithTab(r.Context(), payload.TabID), payload.TabID)
	resp, err := fn(ctx, s.service, payload)
	if err != nil {
		log.Warn("http action failed", "tab", payload.TabID, "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Debug("http action ok", "tab", payload.TabID)
}

func (s *Server) handleCookies(w http.ResponseWriter, r *http.Request) {
	log := logx.Ctx(r.Context())
	query := r.URL.Query()
	switch r.Method {
	case http.MethodGet:
		resp, err := s.service.GetCookie(r.Context(), schema.GetCookieRequest{URL: query.Get("url"), Name: query.Get("name")})
		if err != nil {
			log.Warn("http cookies get failed", "err", err)
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, resp.Cookies)
	case http.MethodPost:
		var payload struct {
			Cookie *schema.Cookie `json:"cookie"`
			Origin string         `json:"origin"`
			Raw    string         `json:"raw"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			log.Warn("http cookies decode failed", "err", err)
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := s.service.SetCookie(r.Context(), schema.SetCookieRequest{Cookie: payload.Cookie, Origin: payload.Origin, Raw: payload.Raw}); err != nil {
			log.Warn("http cookies set failed", "err", err)
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	case http.MethodDelete:
		if err := s.service.RemoveCookie(r.Context(), schema.RemoveCookieRequest{URL: query.Get("url"), Name: query.Get("name")}); err != nil {
			log.Warn("http cookies remove failed", "err", err)
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("stream unsupported"))
		return
	}
	log := logx.Ctx(r.Context())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, unsubscribe := s.hub.Subscribe(AudienceWindow)
	defer unsubscribe()

	lastID := parseUint(r.Header.Get("Last-Event-ID"))
	sent := lastID
	replayCount := 0
	if lastID > 0 {
		for _, msg := range s.hub.Replay(lastID) {
			_ = writeSSEvent(w, msg)
			sent = msg.Seq
			replayCount++
		}
	} else {
		for _, msg := range s.initialMessages(r.Context()) {
			_ = writeSSEvent(w, msg)
			if msg.Seq > sent {
				sent = msg.Seq
			}
		}
	}
	flusher.Flush()

	log.Info("http stream opened", "last_id", lastID, "replay", replayCount)
	for {
		select {
		case <-r.Context().Done():
			log.Info("http stream closed")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if msg.Seq <= sent {
				continue
			}
			sent = msg.Seq
			_ = writeSSEvent(w, msg)
			flusher.Flush()
		}
	}
}

// initialMessages seeds a new client: the current topology followed by the
// latest window state flags.
func (s *Server) initialMessages(ctx context.Context) []desktopsync.Message {
	out := make([]desktopsync.Message, 0, 3)
	topoChannel := desktopsync.Channel(desktopsync.Namespace, desktopsync.KeyTabViewsMetaChanged)
	var topoSeq uint64
	for _, msg := range s.sync.Snapshot() {
		if msg.Channel == topoChannel {
			topoSeq = msg.Seq
		}
	}
	if topo, err := s.service.GetTopology(ctx); err == nil {
		if payload, err := json.Marshal(s.sync.Enrich(topo)); err == nil {
			out = append(out, desktopsync.Message{Seq: topoSeq, Channel: topoChannel, Payload: payload})
		}
	}
	for _, msg := range s.sync.Snapshot() {
		switch msg.Channel {
		case desktopsync.Channel(desktopsync.Namespace, desktopsync.KeyMaximized),
			desktopsync.Channel(desktopsync.Namespace, desktopsync.KeyFullScreen):
			out = append(out, msg)
		}
	}
	return out
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, schema.ErrInvalidRequest), errors.Is(err, schema.ErrInvalidCookie):
		return http.StatusBadRequest
	case errors.Is(err, schema.ErrTabNotFound):
		return http.StatusNotFound
	case errors.Is(err, schema.ErrNoSurface):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(body io.Reader, target any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeSSEvent(w http.ResponseWriter, msg desktopsync.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if msg.Seq > 0 {
		_, _ = fmt.Fprintf(w, "id: %d\n", msg.Seq)
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", strings.TrimSpace(string(data)))
	return nil
}

func parseUint(value string) uint64 {
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}

// requestLogger returns the logger for a request annotated with the tab in
// its query, if any.
func requestLogger(r *http.Request) pslog.Logger {
	return logx.WithTab(r.Context(), schema.TabID(r.URL.Query().Get("tab")))
}
