package docker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"io"

	"github.com/moby/moby/client"

	"stackctl/pkg/logging"
)

// streamLogs follows the container's output and forwards it line by
// line into the log stream. It runs until the container stops or the
// engine closes the stream.
func (r *Runtime) streamLogs(service, containerID string) {
	rc, err := r.cli.ContainerLogs(context.Background(), containerID, client.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
		Timestamps: false,
		Since:      "0",
	})
	if err != nil {
		logging.Debug(logSubsystem, "Log stream for %s unavailable: %v", service, err)
		return
	}
	defer rc.Close()

	out := &lineWriter{service: service, stream: "stdout"}
	errw := &lineWriter{service: service, stream: "stderr"}
	if err := demuxLogs(out, errw, rc); err != nil {
		logging.Debug(logSubsystem, "Log stream for %s ended: %v", service, err)
	}
	out.flush()
	errw.flush()
}

// demuxLogs splits the engine's multiplexed log stream. Each frame
// carries an 8-byte header: stream type in byte 0, payload size in
// bytes 4..8 big-endian.
func demuxLogs(dstOut, dstErr io.Writer, src io.Reader) error {
	r := bufio.NewReader(src)

	header := make([]byte, 8)
	for {
		if _, err := io.ReadFull(r, header); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			return err
		}

		streamType := header[0] // 1=stdout, 2=stderr
		size := binary.BigEndian.Uint32(header[4:8])
		if size == 0 {
			continue
		}

		payload := make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			return err
		}

		w := dstOut
		if streamType == 2 {
			w = dstErr
		}
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
}

// lineWriter logs every complete line written to it, keeping partial
// lines buffered until the next write.
type lineWriter struct {
	service string
	stream  string
	buf     bytes.Buffer
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Partial line, put it back and wait for more.
			w.buf.WriteString(line)
			break
		}
		w.emit(line)
	}
	return len(p), nil
}

func (w *lineWriter) flush() {
	if w.buf.Len() > 0 {
		w.emit(w.buf.String())
		w.buf.Reset()
	}
}

func (w *lineWriter) emit(line string) {
	line = trimNewline(line)
	if line == "" {
		return
	}
	logging.Debug(logSubsystem, "[%s %s] %s", w.service, w.stream, line)
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
