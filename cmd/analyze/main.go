// Command analyze connects to a broadcast server as a viewer and prints
// human-readable statistics about what it receives: message and frame rates,
// end-to-end latency from the stress-mode timestamp, population range, and
// stress frames that never arrived.
//
// Usage:
//
//	go run ./cmd/analyze --url ws://localhost:8080/ws --trigger stress -n 600
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/urfave/cli/v3"
)

// message is the union of every message the server sends viewers
type message struct {
	Action    string            `json:"action"`
	Boxes     []json.RawMessage `json:"boxes"`
	Timestamp *int64            `json:"timestamp"`
	Frame     *uint64           `json:"frame"`
	UserID    any               `json:"userId"`
	Text      string            `json:"text"`
}

// Report accumulates what a viewer observed
type Report struct {
	UserID   int
	Messages int
	Actions  map[string]int

	// Stress-tagged frames
	Frames       int
	FirstFrame   uint64
	LastFrame    uint64
	MissedFrames uint64

	MinLatency   time.Duration
	MaxLatency   time.Duration
	totalLatency time.Duration
	samples      int

	MinPopulation int
	MaxPopulation int

	Started  time.Time
	Finished time.Time
}

// NewReport creates an empty report
func NewReport() *Report {
	return &Report{
		Actions:       make(map[string]int),
		MinLatency:    time.Duration(math.MaxInt64),
		MinPopulation: math.MaxInt,
	}
}

// Observe records one raw message received at the given time
func (r *Report) Observe(raw []byte, received time.Time) error {
	var msg message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("malformed message: %w", err)
	}

	if r.Messages == 0 {
		r.Started = received
	}
	r.Finished = received
	r.Messages++
	r.Actions[msg.Action]++

	switch msg.Action {
	case "assigned_id":
		if id, ok := msg.UserID.(float64); ok {
			r.UserID = int(id)
		}

	case "update_boxes":
		pop := len(msg.Boxes)
		r.MinPopulation = min(r.MinPopulation, pop)
		r.MaxPopulation = max(r.MaxPopulation, pop)

		if msg.Frame != nil {
			r.observeFrame(*msg.Frame)
		}
		if msg.Timestamp != nil {
			latency := received.Sub(time.UnixMilli(*msg.Timestamp))
			if latency < 0 {
				// Clock skew between hosts
				latency = 0
			}
			r.MinLatency = min(r.MinLatency, latency)
			r.MaxLatency = max(r.MaxLatency, latency)
			r.totalLatency += latency
			r.samples++
		}

	case "update_boy":
		r.MinPopulation = min(r.MinPopulation, 1)
		r.MaxPopulation = max(r.MaxPopulation, 1)
	}
	return nil
}

func (r *Report) observeFrame(frame uint64) {
	if r.Frames == 0 || frame < r.LastFrame {
		// First frame, or a new stress run restarted the counter
		r.FirstFrame = frame
	} else if frame > r.LastFrame+1 {
		r.MissedFrames += frame - r.LastFrame - 1
	}
	r.LastFrame = frame
	r.Frames++
}

// Duration is the time between the first and last message
func (r *Report) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// AvgLatency is the mean latency over timestamped frames
func (r *Report) AvgLatency() time.Duration {
	if r.samples == 0 {
		return 0
	}
	return r.totalLatency / time.Duration(r.samples)
}

// rate returns n per second over the report duration
func (r *Report) rate(n int) float64 {
	d := r.Duration().Seconds()
	if d <= 0 {
		return 0
	}
	return float64(n) / d
}

// Print writes the report
func (r *Report) Print(w io.Writer) {
	fmt.Fprintf(w, "\n=== Viewer %d ===\n", r.UserID)
	fmt.Fprintf(w, "Messages: %d in %s (%.1f/s)\n", r.Messages, r.Duration().Round(time.Millisecond), r.rate(r.Messages))
	for _, action := range []string{"update_boxes", "update_boy", "chat", "assigned_id"} {
		if n := r.Actions[action]; n > 0 {
			fmt.Fprintf(w, "  %s: %d\n", action, n)
		}
	}

	if r.MaxPopulation > 0 {
		fmt.Fprintf(w, "Population: %d-%d\n", r.MinPopulation, r.MaxPopulation)
	}

	if r.Frames == 0 {
		fmt.Fprintln(w, "No stress frames received (send \"stress\" to measure latency)")
		return
	}
	fmt.Fprintf(w, "Stress frames: %d (%d-%d, %.1f/s)\n", r.Frames, r.FirstFrame, r.LastFrame, r.rate(r.Frames))
	fmt.Fprintf(w, "Latency: min %s, avg %s, max %s\n",
		r.MinLatency.Round(time.Microsecond), r.AvgLatency().Round(time.Microsecond), r.MaxLatency.Round(time.Microsecond))
	if r.MissedFrames > 0 {
		fmt.Fprintf(w, "⚠️  Missed frames: %d\n", r.MissedFrames)
	} else {
		fmt.Fprintln(w, "✅ No missed frames")
	}
}

// collect reads up to n messages into report, or until ctx ends or the
// server closes the connection
func collect(ctx context.Context, conn *websocket.Conn, n int, report *Report, logger *log.Logger) error {
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for report.Messages < n {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				logger.Info("Server closed connection", "code", closeErr.Code, "reason", closeErr.Text)
				return nil
			}
			return err
		}
		if err := report.Observe(data, time.Now()); err != nil {
			logger.Warn("Skipping message", "err", err)
		}
	}
	return nil
}

func newCommand(w io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "measure what a viewer of a broadcast server receives",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Value:   "ws://localhost:8080/ws",
				Usage:   "WebSocket URL of the server",
				Sources: cli.EnvVars("BOXCAST_URL"),
			},
			&cli.IntFlag{
				Name:    "messages",
				Aliases: []string{"n"},
				Value:   600,
				Usage:   "Stop after this many messages",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 30 * time.Second,
				Usage: "Stop after this long",
			},
			&cli.StringFlag{
				Name:  "trigger",
				Usage: "Chat text to send after connecting (jump, run or stress)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, Prefix: "analyze"})

			url := cmd.String("url")
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
			if err != nil {
				return fmt.Errorf("failed to connect to %s: %w", url, err)
			}
			defer conn.Close()
			logger.Info("Connected", "url", url)

			if text := cmd.String("trigger"); text != "" {
				payload, _ := json.Marshal(map[string]string{"action": "chat", "text": text})
				if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
					return fmt.Errorf("failed to send trigger: %w", err)
				}
				logger.Info("Trigger sent", "text", text)
			}

			ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
			defer cancel()

			report := NewReport()
			if err := collect(ctx, conn, int(cmd.Int("messages")), report, logger); err != nil {
				return err
			}

			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "analysis done"),
				time.Now().Add(time.Second))
			report.Print(w)
			return nil
		},
	}
}

func main() {
	if err := newCommand(os.Stdout).Run(context.Background(), os.Args); err != nil {
		log.Fatal("Analysis failed", "err", err)
	}
}
