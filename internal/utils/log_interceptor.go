// Package utils holds small helpers shared by the pilebox daemon and CLI.
package utils

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"
)

// LogInterceptor decorates every line written through it with a sequence
// number and timestamp before forwarding it to the target writer. The
// desktop app tails the log file and uses the sequence numbers to detect
// gaps after truncation.
type LogInterceptor struct {
	target io.Writer
	seq    atomic.Uint64
	buf    bytes.Buffer
}

// NewLogInterceptor wraps target. The caller keeps ownership of target
// and closes it after Close.
func NewLogInterceptor(target io.Writer) *LogInterceptor {
	return &LogInterceptor{target: target}
}

// Write buffers partial lines; only complete lines are decorated and
// forwarded. The slog handler above serializes calls, so no lock is held
// here.
func (l *LogInterceptor) Write(p []byte) (int, error) {
	l.buf.Write(p)

	for {
		line, err := l.buf.ReadString('\n')
		if err != nil {
			// Partial line, keep it for the next write.
			l.buf.WriteString(line)
			break
		}
		if err := l.writeLine(strings.TrimRight(line, "\r\n")); err != nil {
			return len(p), err
		}
	}

	return len(p), nil
}

// Close flushes a trailing partial line.
func (l *LogInterceptor) Close() error {
	if l.buf.Len() == 0 {
		return nil
	}
	line := l.buf.String()
	l.buf.Reset()
	return l.writeLine(line)
}

func (l *LogInterceptor) writeLine(line string) error {
	_, err := fmt.Fprintf(l.target, "line=%d time=%s %s\n",
		l.seq.Add(1), time.Now().Format(time.RFC3339), line)
	return err
}
