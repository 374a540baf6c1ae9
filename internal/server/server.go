// Package server exposes choice listing and submission over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/kable/internal/config"
	"github.com/debemdeboas/kable/internal/form"
	"github.com/debemdeboas/kable/internal/formfile"
	"github.com/debemdeboas/kable/internal/metrics"
	"github.com/debemdeboas/kable/internal/routes"
	"github.com/debemdeboas/kable/internal/sse"
	"github.com/debemdeboas/kable/internal/submission"
	"github.com/debemdeboas/kable/internal/validation"
)

var serverLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	serverLogger = l
}

const defaultMaxUploadBytes = 32 << 20

// ChoiceLister is satisfied by *choices.Provider.
type ChoiceLister interface {
	ListGroupChoices(ctx context.Context) []string
}

type Options struct {
	Choices   ChoiceLister
	Submitter form.Submitter
	// Events, when set, streams submission progress at routes.APIEvents.
	// The submitter must publish to it.
	Events *sse.Clients

	// Timeout bounds each submission.
	Timeout time.Duration
	// Document controls how submission documents are turned into forms.
	// Its Images field is replaced per request.
	Document       formfile.Options
	MaxUploadBytes int64
}

type Server struct {
	opts Options
	mux  *http.ServeMux
}

func New(opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}

	s := &Server{opts: opts, mux: http.NewServeMux()}

	s.mux.HandleFunc(routes.RobotsPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(config.HCType, config.CTypeText)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("User-agent: *\nDisallow: /"))
	})
	s.mux.HandleFunc(routes.HealthPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(config.HCType, config.CTypeText)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	s.mux.Handle(routes.MetricsPath, metrics.Handler())
	s.mux.HandleFunc(routes.APIChoices, s.serveChoices)
	s.mux.HandleFunc(routes.APISubmissions, s.serveSubmission)
	if opts.Events != nil {
		s.mux.HandleFunc(routes.APIEvents, s.serveEvents)
	}

	return s
}

func (s *Server) Handler() http.Handler {
	return logRequests(secureHeaders(s.mux.ServeHTTP))
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// Requests inherit ctx so open event streams end on shutdown.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		serverLogger.Info().Str("addr", addr).Msg("Listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func secureHeaders(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "deny")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set(config.HCacheControl, "no-store")

		h(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func logRequests(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		serverLogger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("Request")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(config.HCType, config.CTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		serverLogger.Error().Err(err).Msg("Error writing response")
	}
}

type errorResponse struct {
	Status  form.Status         `json:"status"`
	Message string              `json:"message"`
	Errors  map[string]string   `json:"errors,omitempty"`
	Step    submission.Step     `json:"step,omitempty"`
	Result  *submissionResponse `json:"result,omitempty"`
}

type itemResponse struct {
	ClientID    string `json:"clientId"`
	RecordID    int    `json:"recordId"`
	AssetPath   string `json:"assetPath,omitempty"`
	ImageLinked bool   `json:"imageLinked"`
}

type submissionResponse struct {
	Status        form.Status    `json:"status"`
	ParentID      int            `json:"parentId"`
	SubmissionKey string         `json:"submissionKey,omitempty"`
	Items         []itemResponse `json:"items"`
}

func receiptResponse(status form.Status, r submission.Receipt) *submissionResponse {
	out := &submissionResponse{
		Status:        status,
		ParentID:      int(r.ParentID),
		SubmissionKey: r.SubmissionKey,
		Items:         []itemResponse{},
	}
	for _, it := range r.Items {
		out.Items = append(out.Items, itemResponse{
			ClientID:    string(it.ClientID),
			RecordID:    int(it.RecordID),
			AssetPath:   it.AssetPath,
			ImageLinked: it.ImageLinked(),
		})
	}
	return out
}

func (s *Server) serveChoices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"choices": s.opts.Choices.ListGroupChoices(r.Context())})
}

// readPart reads an uploaded file part whole.
func readPart(open func() (multipart.File, error)) ([]byte, error) {
	f, err := open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// readImages collects every file part, addressable by part name and by the
// uploaded file name.
func readImages(files map[string][]*multipart.FileHeader) (formfile.MapResolver, error) {
	images := formfile.MapResolver{}
	for name, headers := range files {
		for _, fh := range headers {
			data, err := readPart(fh.Open)
			if err != nil {
				return nil, err
			}
			if _, ok := images[name]; !ok {
				images[name] = data
			}
			if _, ok := images[fh.Filename]; !ok && fh.Filename != "" {
				images[fh.Filename] = data
			}
		}
	}
	return images, nil
}

func (s *Server) serveSubmission(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: form.StatusIdle, Message: err.Error()})
		return
	}
	defer r.MultipartForm.RemoveAll()

	raw := r.FormValue(config.FormDocumentPart)
	if raw == "" {
		if fhs := r.MultipartForm.File[config.FormDocumentPart]; len(fhs) > 0 {
			data, err := readPart(fhs[0].Open)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Status: form.StatusIdle, Message: fmt.Sprintf(config.ErrReadDocumentFmt, err)})
				return
			}
			raw = string(data)
		}
	}
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: form.StatusIdle, Message: config.ErrMissingDocument})
		return
	}

	doc, err := formfile.Parse([]byte(raw))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: form.StatusIdle, Message: fmt.Sprintf(config.ErrInvalidDocumentFmt, err)})
		return
	}

	images, err := readImages(r.MultipartForm.File)
	if err != nil {
		serverLogger.Error().Err(err).Msg("Error reading uploaded images")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Status: form.StatusIdle, Message: config.ErrInternalServerError})
		return
	}

	controller := form.New(s.opts.Submitter, form.Options{Timeout: s.opts.Timeout})

	// A client that wants to follow progress picks the key before posting.
	key := r.Header.Get(config.HSubmissionKey)
	if key == "" {
		key = r.FormValue(config.FormKeyPart)
	}
	if key != "" {
		if err := controller.SetSubmissionKey(key); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Status: form.StatusIdle, Message: err.Error()})
			return
		}
	}

	docOpts := s.opts.Document
	docOpts.Images = images
	if err := formfile.Apply(doc, controller, docOpts); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: form.StatusIdle, Message: fmt.Sprintf(config.ErrInvalidDocumentFmt, err)})
		return
	}

	// The controller owns the timeout, so a client disconnect does not cut a
	// submission short after the parent record exists.
	receipt, err := controller.Submit(context.WithoutCancel(r.Context()))

	var ve *validation.Error
	if errors.As(err, &ve) {
		fields := map[string]string{}
		for f, msg := range ve.Errors {
			fields[string(f)] = msg
		}
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Status: form.StatusIdle, Message: ve.Error(), Errors: fields})
		return
	}

	state := controller.State()
	if err != nil {
		resp := errorResponse{Status: state.Status, Message: state.Message, Result: receiptResponse(state.Status, receipt)}
		var se *submission.StoreError
		if errors.As(err, &se) {
			resp.Step = se.Step
		}
		writeJSON(w, http.StatusBadGateway, resp)
		return
	}

	writeJSON(w, http.StatusCreated, receiptResponse(state.Status, receipt))
}

func (s *Server) serveEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, config.HTTPErrStreaming, http.StatusInternalServerError)
		return
	}

	w.Header().Set(config.HCType, config.CTypeStream)
	w.Header().Set(config.HCacheControl, "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Del("X-Content-Type-Options")

	client := sse.NewClient(r.URL.Query().Get(config.EventsKeyParam))
	s.opts.Events.Add(client)
	defer func() {
		s.opts.Events.Delete(client)
		serverLogger.Debug().Msg("SSE client disconnected")
	}()
	serverLogger.Debug().Str("key", client.SubmissionKey).Msg("New SSE client connected")

	fmt.Fprintf(w, "event: connected\ndata: {}\n\n")
	flusher.Flush()

	notify := r.Context().Done()
	for {
		select {
		case msg, ok := <-client.Msg:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: step\ndata: %s\n\n", msg)
			flusher.Flush()
		case <-notify:
			return
		}
	}
}
