package display

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zeusync/virtualcam/internal/core/fault"
	"github.com/zeusync/virtualcam/internal/core/frame"
	"github.com/zeusync/virtualcam/internal/core/observability/log"
	"github.com/zeusync/virtualcam/pkg/generic"
)

var _ Sink = (*MJPEGSink)(nil)

var ErrNotOpen = errors.New("display window is not open")

const (
	keyBuffer    = 16
	viewerBuffer = 2
	boundary     = "frame"
)

type MJPEGConfig struct {
	Addr    string
	Quality int
	Title   string
}

// MJPEGSink is a display window served over HTTP: browsers open "/" to
// watch the multipart JPEG stream and post key presses back to "/key".
type MJPEGSink struct {
	cfg    MJPEGConfig
	logger log.Log

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	done     chan struct{}
	viewers  map[uuid.UUID]chan []byte
	latest   []byte

	keys    chan rune
	buffers *generic.Pool[*bytes.Buffer]
}

func NewMJPEGSink(cfg MJPEGConfig, logger log.Log) *MJPEGSink {
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = jpeg.DefaultQuality
	}
	if cfg.Title == "" {
		cfg.Title = "Virtual Camera"
	}
	return &MJPEGSink{
		cfg:     cfg,
		logger:  logger.With(log.String("component", "mjpeg_sink")),
		viewers: make(map[uuid.UUID]chan []byte),
		keys:    make(chan rune, keyBuffer),
		buffers: generic.NewResettablePool(
			func() *bytes.Buffer { return new(bytes.Buffer) },
			func(b *bytes.Buffer) { b.Reset() },
		),
	}
}

func (s *MJPEGSink) ChannelOrder() frame.ChannelOrder { return frame.RGBA }

// Open binds the listen address and starts serving. Opening an open sink is
// a no-op.
func (s *MJPEGSink) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fault.Newf(fault.KindDisplayUnavailable, err, "listen on %s", s.cfg.Addr).
			WithContext("addr", s.cfg.Addr)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/stream", s.handleStream)
	mux.HandleFunc("/frame.jpg", s.handleFrame)
	mux.HandleFunc("/key", s.handleKey)

	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	s.listener = ln
	s.done = make(chan struct{})
	s.latest = nil
	s.drainKeys()

	server := s.server
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("display server stopped", log.Error(err))
		}
	}()

	s.logger.Info("Display window open", log.String("url", "http://"+ln.Addr().String()+"/"))
	return nil
}

// Close stops serving and disconnects viewers. Closing a closed sink is a
// no-op.
func (s *MJPEGSink) Close() error {
	s.mu.Lock()
	server := s.server
	if server == nil {
		s.mu.Unlock()
		return nil
	}
	close(s.done)
	for id, ch := range s.viewers {
		close(ch)
		delete(s.viewers, id)
	}
	s.server, s.listener, s.latest = nil, nil, nil
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		_ = server.Close()
	}
	s.logger.Info("Display window closed")
	return nil
}

// Addr is the bound address while open, nil otherwise.
func (s *MJPEGSink) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Show encodes buf as JPEG and hands it to every viewer. Slow viewers drop
// frames instead of stalling the loop.
func (s *MJPEGSink) Show(buf *frame.Buffer) error {
	s.mu.Lock()
	open := s.server != nil
	s.mu.Unlock()
	if !open {
		return fault.New(fault.KindDisplayUnavailable, "show frame", ErrNotOpen)
	}

	img, err := buf.ToRGBA()
	if err != nil {
		return fault.New(fault.KindDisplayUnavailable, "show frame", err)
	}

	b := s.buffers.Get()
	defer s.buffers.Put(b)
	if err = jpeg.Encode(b, img, &jpeg.Options{Quality: s.cfg.Quality}); err != nil {
		return fault.New(fault.KindDisplayUnavailable, "encode frame", err)
	}
	data := bytes.Clone(b.Bytes())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fault.New(fault.KindDisplayUnavailable, "show frame", ErrNotOpen)
	}
	s.latest = data
	for _, ch := range s.viewers {
		select {
		case ch <- data:
		default:
		}
	}
	return nil
}

// PressKey records a key press as if it came from the window.
func (s *MJPEGSink) PressKey(k rune) {
	select {
	case s.keys <- k:
	default:
		s.logger.Warn("Key buffer full, dropping key press", log.String("key", string(k)))
	}
}

func (s *MJPEGSink) PollCancelKey() bool {
	for {
		select {
		case k := <-s.keys:
			if IsCancelKey(k) {
				return true
			}
		default:
			return false
		}
	}
}

func (s *MJPEGSink) drainKeys() {
	for {
		select {
		case <-s.keys:
		default:
			return
		}
	}
}

func (s *MJPEGSink) subscribe() (uuid.UUID, chan []byte, <-chan struct{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return uuid.Nil, nil, nil, false
	}
	id := uuid.New()
	ch := make(chan []byte, viewerBuffer)
	if s.latest != nil {
		ch <- s.latest
	}
	s.viewers[id] = ch
	return id, ch, s.done, true
}

func (s *MJPEGSink) unsubscribe(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.viewers[id]; ok {
		close(ch)
		delete(s.viewers, id)
	}
}

func (s *MJPEGSink) handleStream(w http.ResponseWriter, r *http.Request) {
	id, frames, done, ok := s.subscribe()
	if !ok {
		http.Error(w, ErrNotOpen.Error(), http.StatusServiceUnavailable)
		return
	}
	defer s.unsubscribe(id)

	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(boundary); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
	w.Header().Set("Cache-Control", "no-cache")
	flusher, _ := w.(http.Flusher)

	s.logger.Debug("Viewer connected", log.String("viewer_id", id.String()))
	for {
		select {
		case <-r.Context().Done():
			return
		case <-done:
			return
		case data, open := <-frames:
			if !open {
				return
			}
			part, err := mw.CreatePart(textproto.MIMEHeader{
				"Content-Type":   {"image/jpeg"},
				"Content-Length": {strconv.Itoa(len(data))},
			})
			if err != nil {
				return
			}
			if _, err = part.Write(data); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func (s *MJPEGSink) handleFrame(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	data := s.latest
	s.mu.Unlock()
	if data == nil {
		http.Error(w, "no frame yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	_, _ = w.Write(data)
}

func (s *MJPEGSink) handleKey(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	k := []rune(r.URL.Query().Get("k"))
	if len(k) != 1 {
		http.Error(w, "expected a single key in k", http.StatusBadRequest)
		return
	}
	s.PressKey(k[0])
	w.WriteHeader(http.StatusNoContent)
}

func (s *MJPEGSink) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprintf(w, indexPage, s.cfg.Title, s.cfg.Title)
}

const indexPage = `<!doctype html>
<html>
<head><title>%s</title>
<style>body{margin:0;background:#111;color:#ccc;font-family:sans-serif}img{display:block;margin:auto}</style>
</head>
<body>
<p>%s. Press q to stop streaming.</p>
<img src="/stream" alt="stream">
<script>
document.addEventListener("keydown", function (e) {
  if (e.key.length === 1) fetch("/key?k=" + encodeURIComponent(e.key), {method: "POST"});
});
</script>
</body>
</html>
`
