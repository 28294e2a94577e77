package collections

import (
	"net/http"
	"strings"
	"time"

	collectiondomain "todo-sync-go/internal/domain/collection"
	"todo-sync-go/pkg/logger"

	"github.com/gorilla/websocket"
)

const defaultPingInterval = 30 * time.Second

type Options struct {
	// ScopeByUser prefixes every path with users/<id>/ of the authenticated user.
	ScopeByUser    bool
	PingInterval   time.Duration
	AllowedOrigins []string
}

type Handlers struct {
	Collections  *collectiondomain.Service
	log          logger.Logger
	scopeByUser  bool
	pingInterval time.Duration
	upgrader     websocket.Upgrader
}

func New(collections *collectiondomain.Service, log logger.Logger, opts Options) *Handlers {
	pingInterval := opts.PingInterval
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}

	return &Handlers{
		Collections:  collections,
		log:          log,
		scopeByUser:  opts.ScopeByUser,
		pingInterval: pingInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(opts.AllowedOrigins),
		},
	}
}

// checkOrigin accepts requests without an Origin header (non-browser clients),
// same-host origins and the configured CORS origins.
func checkOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			allowed[origin] = struct{}{}
		}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := allowed[origin]; ok {
			return true
		}
		host := strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://")
		return strings.EqualFold(host, r.Host)
	}
}
