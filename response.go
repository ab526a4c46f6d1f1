package markdownpages

import (
	"bufio"
	"net"
	"net/http"

	"github.com/pkg/errors"
	log "github.com/schollz/logger"
)

// responseWriter remembers whether the response has started, so a late
// error is not written into a half sent page.
type responseWriter struct {
	http.ResponseWriter
	started bool
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.started = true
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.started = true
	return rw.ResponseWriter.Write(b)
}

// Hijack lets the websocket upgrader take over the connection.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response does not support hijacking")
	}
	rw.started = true
	return h.Hijack()
}

func (rw *responseWriter) fail(err error) {
	log.Error(err)
	if rw.started {
		return
	}
	http.Error(rw, err.Error(), http.StatusInternalServerError)
}
