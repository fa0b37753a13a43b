package sockauthd

import (
	"log/syslog"
	"os"
	"strings"

	"github.com/inconshreveable/log15"
)

// NewLogger builds the daemon's root logger. Records go to stderr for local
// diagnostics and, when a syslog daemon is reachable, to the mail facility
// of the system log as well. In detached mode stderr is the null device, so
// the stream handler is effectively silent there and syslog carries
// everything.
func NewLogger(tag string) log15.Logger {
	l := log15.New()
	handlers := []log15.Handler{
		log15.StreamHandler(os.Stderr, log15.TerminalFormat()),
	}
	if sys, err := log15.SyslogHandler(syslog.LOG_MAIL, tag, log15.LogfmtFormat()); err == nil {
		handlers = append(handlers, escapePercentHandler(sys))
	}
	l.SetHandler(log15.MultiHandler(handlers...))
	return l
}

// escapePercentHandler doubles percent characters in the message and any
// string context values before they reach syslog, where a stray verb could
// otherwise be expanded by a downstream formatter. The record is copied, so
// sibling handlers see the original.
func escapePercentHandler(h log15.Handler) log15.Handler {
	return log15.FuncHandler(func(r *log15.Record) error {
		esc := *r
		esc.Msg = strings.ReplaceAll(r.Msg, "%", "%%")
		esc.Ctx = append([]interface{}{}, r.Ctx...)
		for i := 1; i < len(esc.Ctx); i += 2 {
			if s, ok := esc.Ctx[i].(string); ok {
				esc.Ctx[i] = strings.ReplaceAll(s, "%", "%%")
			}
		}
		return h.Log(&esc)
	})
}
