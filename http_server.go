package gnuplotter

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
	"nhooyr.io/websocket"
)

const frameChannelSize = 16

// HttpServer serves the live preview: the page, the frame websocket and
// the latest frame and script.
type HttpServer struct {
	broadcaster *FrameBroadcaster
	host        string
	port        uint16
	metadata    Metadata
	mux         *http.ServeMux
	logger      logrus.FieldLogger
}

func NewHttpServer(broadcaster *FrameBroadcaster, host string, port uint16, metadata Metadata) *HttpServer {
	s := &HttpServer{
		broadcaster: broadcaster,
		host:        host,
		port:        port,
		metadata:    metadata,
		mux:         http.NewServeMux(),
		logger:      logrus.WithField("tag", "HttpServer"),
	}

	subFS, err := fs.Sub(webuiFiles, "webui")
	if err != nil {
		panic(err)
	}

	s.mux.Handle("/", http.FileServer(http.FS(subFS)))
	s.mux.HandleFunc("/ws", s.handleWebSocket)
	s.mux.HandleFunc("/metadata", s.handleMetadata)
	s.mux.HandleFunc("/figure.svg", s.handleFigure)
	s.mux.HandleFunc("/script", s.handleScript)

	return s
}

func (s *HttpServer) Handler() http.Handler {
	return s.mux
}

func (s *HttpServer) writeMessage(ctx context.Context, c *websocket.Conn, msgType byte, payload interface{}) error {
	buf, err := EncodeWSMessage(newWSMessage(msgType, payload))
	if err != nil {
		return err
	}
	return c.Write(ctx, websocket.MessageBinary, buf)
}

func (s *HttpServer) handleWebSocket(w http.ResponseWriter, req *http.Request) {
	c, err := websocket.Accept(w, req, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.WithError(err).Warn("failed to accept new websocket connection")
		return
	}

	// Clients never send anything; CloseRead handles their close frames.
	ctx := c.CloseRead(req.Context())

	if err := s.writeMessage(ctx, c, MessageTypeMetadata, s.metadata); err != nil {
		s.logger.WithError(err).Warn("failed to send metadata")
		c.Close(websocket.StatusInternalError, "metadata")
		return
	}

	channel := make(chan Frame, frameChannelSize)
	wg := sync.WaitGroup{}
	wg.Add(1)

	go func() {
		defer wg.Done()
		for {
			select {
			case frame := <-channel:
				if frame.streamEnded {
					end := StreamEndMessage{}
					if frame.streamErr != nil {
						end.Error = true
						end.Msg = frame.streamErr.Error()
					}
					if err := s.writeMessage(ctx, c, MessageTypeStreamEnd, end); err != nil {
						s.logger.WithError(err).Warn("websocket write failed and closed")
						return
					}
					c.Close(websocket.StatusNormalClosure, "stream ended")
					return
				}

				msg := FrameMessage{Seq: frame.Seq, SVG: frame.SVG}
				if err := s.writeMessage(ctx, c, MessageTypeFrame, msg); err != nil {
					s.logger.WithError(err).Warn("websocket write failed and closed")
					return
				}
			case <-ctx.Done():
				s.logger.Info("client closed connection or context canceled")
				c.Close(websocket.StatusNormalClosure, "")
				return
			}
		}
	}()

	s.broadcaster.RegisterChannel(ctx, channel)

	wg.Wait()
	s.broadcaster.DeregisterChannel(ctx, channel)
}

func (s *HttpServer) handleMetadata(w http.ResponseWriter, req *http.Request) {
	w.Header().Add("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(s.metadata)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(err.Error()))
	}
}

func (s *HttpServer) handleFigure(w http.ResponseWriter, req *http.Request) {
	frame, ok := s.broadcaster.Latest()
	if !ok {
		http.Error(w, "no frame rendered yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Add("Content-Type", "image/svg+xml")
	w.Header().Add("X-Frame-Seq", strconv.FormatUint(uint64(frame.Seq), 10))
	w.Write(frame.SVG)
}

func (s *HttpServer) handleScript(w http.ResponseWriter, req *http.Request) {
	frame, ok := s.broadcaster.Latest()
	if !ok {
		http.Error(w, "no frame rendered yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Add("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(frame.Script))
}

func (s *HttpServer) Run() error {
	addr := net.JoinHostPort(s.host, strconv.Itoa(int(s.port)))
	url := fmt.Sprintf("http://%s", addr)
	s.logger.Infof("starting HTTP server at %s", url)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	openBrowser(url)
	return http.Serve(listener, s.mux)
}
