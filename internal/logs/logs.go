// Package logs builds the slog logger used by the command line tool.
//
// Records go to a text handler on the given writer, or to the systemd journal when
// the process runs as a systemd service.
package logs

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"
	slogmulti "github.com/samber/slog-multi"
	slogjournal "github.com/systemd/slog-journal"
)

// New returns a logger writing records at or above level. Extra handlers, such as
// a JSON handler on a file, receive every record too.
func New(w io.Writer, level slog.Leveler, extra ...slog.Handler) *slog.Logger {
	hs := append(handlers(w, level, isSystemdService()), extra...)
	return slog.New(slogmulti.Fanout(hs...))
}

func handlers(w io.Writer, level slog.Leveler, systemd bool) []slog.Handler {
	text := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	if !systemd {
		return []slog.Handler{text}
	}
	journal, err := slogjournal.NewHandler(&slogjournal.Options{
		Level:        level,
		ReplaceGroup: toJournalKey,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			a.Key = toJournalKey(a.Key)
			return a
		},
	})
	if err != nil {
		record := slog.NewRecord(time.Now(), slog.LevelWarn, "new systemd journal handler", 0)
		record.Add("error", err)
		_ = text.Handle(context.Background(), record)
		return []slog.Handler{text}
	}
	return []slog.Handler{journal}
}

// ParseLevel accepts debug, info, warn and error in any case.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, errors.Wrapf(err, "log level %q", s)
	}
	return l, nil
}

// toJournalKey maps an attribute key to the upper-case alphabet journal fields
// allow.
func toJournalKey(str string) string {
	str = strings.ToUpper(str)
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, str)
}

func isSystemdService() bool {
	content, err := os.ReadFile("/proc/self/cgroup")
	if err != nil {
		return false
	}
	parts := strings.Split(strings.TrimSpace(string(content)), ":")
	return len(parts) >= 3 && strings.HasSuffix(path.Dir(parts[2]), ".service")
}
