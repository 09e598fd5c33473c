package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"nfc-kiosk/internal/blockfrost"
	"nfc-kiosk/internal/db"
	"nfc-kiosk/internal/hub"
	"nfc-kiosk/internal/processors/scanner"
	"nfc-kiosk/internal/scan"
	"nfc-kiosk/internal/trace"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
)

const (
	ManualReadTimeout = 10 * time.Second
	GreetingMessage   = "Connected to NFC scan events"
)

const (
	statusOK           = "ok"
	statusDegraded     = "degraded"
	statusConnected    = "connected"
	statusDisconnected = "disconnected"
)

type repository interface {
	LoadScansBetween(ctx context.Context, uid string, start, end int64) ([]db.ScanEvent, error)
}

type manualReader interface {
	ReadOnce(ctx context.Context, timeout time.Duration) (scan.Event, error)
}

type healthChecker interface {
	Health(ctx context.Context) error
}

type tracker interface {
	Track(ctx context.Context, unit string) (trace.Tracking, error)
}

type peers interface {
	Register(conn *websocket.Conn) *hub.Peer
	Unregister(p *hub.Peer)
	Send(p *hub.Peer, ev scan.Event) error
	Count() int
}

// Config wires the handlers. Optional dependencies left nil make their
// endpoints answer 503 and mark the service disconnected in /api/health.
type Config struct {
	DB             repository
	Scanner        manualReader
	Chain          healthChecker
	Tracker        tracker
	Hub            peers
	AllowedOrigins []string
}

type API struct {
	DB             repository
	scanner        manualReader
	chain          healthChecker
	tracker        tracker
	hub            peers
	allowedOrigins []string
	upgrader       websocket.Upgrader
}

func New(cfg Config) *API {
	a := &API{
		DB:             cfg.DB,
		scanner:        cfg.Scanner,
		chain:          cfg.Chain,
		tracker:        cfg.Tracker,
		hub:            cfg.Hub,
		allowedOrigins: cfg.AllowedOrigins,
	}
	a.upgrader = websocket.Upgrader{CheckOrigin: a.checkOrigin}
	return a
}

func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		// An empty allow-list admits no browser origin; AllowedOrigins
		// would default to "*".
		AllowOriginFunc:  func(_ *http.Request, origin string) bool { return a.allowed(origin) },
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ws/scan", a.ScanSocket)
	r.Get("/api/health", a.Health)
	r.Post("/api/verify", a.ManualVerify)
	r.Get("/api/scans/{uid}", a.GetScanTimeline)
	r.Get("/api/products/{unit}/tracking", a.GetProductTracking)
	return r
}

// checkOrigin admits listed browser origins and clients that send none.
func (a *API) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || a.allowed(origin)
}

func (a *API) allowed(origin string) bool {
	return slices.Contains(a.allowedOrigins, origin)
}

// ScanSocket streams scan events to a kiosk. Inbound messages are read and
// discarded until the kiosk goes away.
func (a *API) ScanSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.WarnContext(r.Context(), "Websocket upgrade failed", "error", err)
		return
	}
	p := a.hub.Register(conn)
	defer a.hub.Unregister(p)

	if err := a.hub.Send(p, scan.Connected(now(), GreetingMessage)); err != nil {
		slog.WarnContext(r.Context(), "Greeting failed", "error", err)
		return
	}
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	nfcOK := a.scanner != nil
	chainOK := a.chain != nil && a.chain.Health(r.Context()) == nil

	resp := HealthResponse{
		Status:    statusDegraded,
		Timestamp: now(),
		Services: HealthServices{
			NFCReader:  serviceStatus(nfcOK),
			Blockchain: serviceStatus(chainOK),
		},
	}
	if nfcOK && chainOK {
		resp.Status = statusOK
	}
	if a.hub != nil {
		resp.WebsocketClients = a.hub.Count()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) ManualVerify(w http.ResponseWriter, r *http.Request) {
	if a.scanner == nil {
		writeError(w, http.StatusServiceUnavailable, "NFC reader not initialized")
		return
	}
	ev, err := a.scanner.ReadOnce(r.Context(), ManualReadTimeout)
	if errors.Is(err, scanner.ErrTimeout) {
		writeError(w, http.StatusRequestTimeout, "No card detected within timeout")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (a *API) GetScanTimeline(w http.ResponseWriter, r *http.Request) {
	if a.DB == nil {
		writeError(w, http.StatusServiceUnavailable, "scan history not configured")
		return
	}
	uid := chi.URLParam(r, "uid")
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	startTime, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		http.Error(w, "invalid start timestamp", http.StatusBadRequest)
		return
	}
	endTime, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		http.Error(w, "invalid end timestamp", http.StatusBadRequest)
		return
	}

	events, err := a.DB.LoadScansBetween(r.Context(), uid, startTime.UnixMilli(), endTime.UnixMilli())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := GetScanTimelineResponse{Events: make([]ScanEvent, 0, len(events))}
	for _, event := range events {
		resp.Events = append(resp.Events, ScanEvent{
			ID:          event.ID,
			ReaderID:    event.ReaderID,
			UID:         event.UID,
			Verified:    event.Verified,
			StudentID:   event.StudentID,
			StudentName: event.StudentName,
			Department:  event.Department,
			Error:       event.Error,
			Timestamp:   time.UnixMilli(event.ScannedAt).UTC().Format(time.RFC3339Nano),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) GetProductTracking(w http.ResponseWriter, r *http.Request) {
	if a.tracker == nil {
		writeError(w, http.StatusServiceUnavailable, "blockchain not configured")
		return
	}
	unit := chi.URLParam(r, "unit")
	tracking, err := a.tracker.Track(r.Context(), unit)
	if errors.Is(err, blockfrost.ErrNotFound) {
		writeError(w, http.StatusNotFound, "asset not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tracking)
}

func serviceStatus(ok bool) string {
	if ok {
		return statusConnected
	}
	return statusDisconnected
}

func now() string {
	return time.Now().Format(time.RFC3339Nano)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, ErrorResponse{Detail: detail})
}
