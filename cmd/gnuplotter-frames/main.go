package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"

	"github.com/cactusdynamics/gnuplotter"
	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"
	"nhooyr.io/websocket"
)

// Config holds the configuration for the frame reader
type Config struct {
	ServerURL string
	// OutputDir receives one SVG file per frame.
	OutputDir string
	// Output receives a CSV index of the saved frames.
	Output io.Writer
	Logger logrus.FieldLogger
}

// FrameReader reads the preview frames of a gnuplotter server and saves
// them to disk.
type FrameReader struct {
	config    Config
	csvWriter *csv.Writer

	metadata *gnuplotter.Metadata
	frames   int
}

func NewFrameReader(config Config) *FrameReader {
	if config.Logger == nil {
		config.Logger = logrus.WithField("tag", "FrameReader")
	}
	return &FrameReader{
		config:    config,
		csvWriter: csv.NewWriter(config.Output),
	}
}

// Connect establishes the websocket connection and processes messages until
// the stream ends or the connection is closed.
func (r *FrameReader) Connect(ctx context.Context) error {
	u, err := url.Parse(r.config.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"

	if err := os.MkdirAll(r.config.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	r.config.Logger.WithField("url", u.String()).Info("connecting to websocket")

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect to websocket: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	conn.SetReadLimit(64 << 20)

	if err := r.csvWriter.Write([]string{"seq", "path", "bytes"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for {
		_, messageData, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				r.config.Logger.Info("connection closed normally")
				break
			}
			r.config.Logger.WithError(err).Error("error reading message")
			break
		}

		if err := r.processMessage(messageData); err != nil {
			if err == io.EOF {
				r.config.Logger.Info("stream ended")
				break
			}
			r.config.Logger.WithError(err).Error("error processing message")
		}
	}

	r.csvWriter.Flush()
	return r.csvWriter.Error()
}

// Metadata returns the metadata sent by the server, if it arrived.
func (r *FrameReader) Metadata() *gnuplotter.Metadata {
	return r.metadata
}

func (r *FrameReader) processMessage(messageData []byte) error {
	msg, err := gnuplotter.DecodeWSMessage(messageData)
	if err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}

	switch msg.Header.Type {
	case gnuplotter.MessageTypeFrame:
		frame, ok := msg.Payload.(gnuplotter.FrameMessage)
		if !ok {
			return fmt.Errorf("invalid FRAME message payload type: %T", msg.Payload)
		}
		return r.saveFrame(frame)

	case gnuplotter.MessageTypeMetadata:
		metadata, ok := msg.Payload.(gnuplotter.Metadata)
		if !ok {
			return fmt.Errorf("invalid METADATA message payload type: %T", msg.Payload)
		}
		r.metadata = &metadata
		r.config.Logger.WithField("metadata", metadata).Debug("received metadata")

	case gnuplotter.MessageTypeStreamEnd:
		streamEnd, ok := msg.Payload.(gnuplotter.StreamEndMessage)
		if !ok {
			return fmt.Errorf("invalid STREAM_END message payload type: %T", msg.Payload)
		}
		if streamEnd.Error {
			r.config.Logger.WithField("message", streamEnd.Msg).Error("stream ended with error")
		} else {
			r.config.Logger.WithField("frames", r.frames).Info("stream ended successfully")
		}
		return io.EOF

	default:
		r.config.Logger.WithField("type", fmt.Sprintf("0x%02x", msg.Header.Type)).Warn("unknown message type")
	}

	return nil
}

func (r *FrameReader) saveFrame(frame gnuplotter.FrameMessage) error {
	path := filepath.Join(r.config.OutputDir, fmt.Sprintf("frame-%06d.svg", frame.Seq))
	if err := os.WriteFile(path, frame.SVG, 0o644); err != nil {
		return fmt.Errorf("failed to save frame %d: %w", frame.Seq, err)
	}
	r.frames++

	row := []string{
		strconv.FormatUint(uint64(frame.Seq), 10),
		path,
		strconv.Itoa(len(frame.SVG)),
	}
	if err := r.csvWriter.Write(row); err != nil {
		return fmt.Errorf("failed to write CSV row: %w", err)
	}
	r.csvWriter.Flush()
	return nil
}

type options struct {
	URL     string `short:"u" long:"url" default:"http://localhost:5274" description:"URL of the gnuplotter preview server"`
	Output  string `short:"o" long:"output" default:"frames" description:"directory the frames are saved to"`
	Verbose bool   `short:"v" long:"verbose" description:"enable debug logging"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	logrus.SetOutput(os.Stderr)
	if opts.Verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	reader := NewFrameReader(Config{
		ServerURL: opts.URL,
		OutputDir: opts.Output,
		Output:    os.Stdout,
		Logger:    logrus.WithField("tag", "FrameReader"),
	})
	if err := reader.Connect(ctx); err != nil {
		logrus.WithError(err).Error("failed to connect")
		os.Exit(1)
	}
}
