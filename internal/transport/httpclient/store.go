package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	collectiondomain "todo-sync-go/internal/domain/collection"
	"todo-sync-go/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	defaultTimeout   = 15 * time.Second
	handshakeTimeout = 10 * time.Second
	maxErrorBody     = 64 << 10
)

type Options struct {
	// Token is sent as a bearer token when set.
	Token      string
	HTTPClient *http.Client
	Dialer     *websocket.Dialer
}

// Store talks to the todo-sync server: REST calls for writes and a websocket
// stream for snapshots.
type Store struct {
	baseURL *url.URL
	token   string
	client  *http.Client
	dialer  *websocket.Dialer
	log     logger.Logger
}

func New(baseURL string, log logger.Logger, opts Options) (*Store, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("server url must be http or https, got %q", baseURL)
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		}
	}

	return &Store{
		baseURL: parsed,
		token:   opts.Token,
		client:  client,
		dialer:  dialer,
		log:     log,
	}, nil
}

// User is the account the server resolved the token to.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

type createResponse struct {
	Key string `json:"key"`
}

type streamMessage struct {
	Type     string                      `json:"type"`
	Snapshot *collectiondomain.Snapshot `json:"snapshot"`
}

func (s *Store) Me(ctx context.Context) (User, error) {
	var user User
	if err := s.do(ctx, http.MethodGet, "/api/auth/me", nil, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *Store) Snapshot(ctx context.Context, path string) (collectiondomain.Snapshot, error) {
	var snapshot collectiondomain.Snapshot
	if err := s.do(ctx, http.MethodGet, "/api/db/"+path, nil, &snapshot); err != nil {
		return collectiondomain.Snapshot{}, err
	}
	return snapshot, nil
}

func (s *Store) Create(ctx context.Context, path string, fields collectiondomain.Fields) (string, error) {
	var created createResponse
	if err := s.do(ctx, http.MethodPost, "/api/db/"+path, fields, &created); err != nil {
		return "", err
	}
	if created.Key == "" {
		return "", errors.New("create: server returned no key")
	}
	return created.Key, nil
}

func (s *Store) Update(ctx context.Context, recordPath string, fields collectiondomain.Fields) error {
	return s.do(ctx, http.MethodPatch, "/api/db/"+recordPath, fields, nil)
}

func (s *Store) Delete(ctx context.Context, recordPath string) error {
	return s.do(ctx, http.MethodDelete, "/api/db/"+recordPath, nil, nil)
}

// Subscribe opens the stream for path and waits for the first snapshot, so a
// refused or broken subscription is reported here. Later snapshots are
// delivered from a reader goroutine until the returned func is called. If the
// stream ends before that, onError gets the cause once. A server shutdown
// arrives as collection.ErrClosed.
func (s *Store) Subscribe(ctx context.Context, path string, onSnapshot func(collectiondomain.Snapshot), onError func(error)) (func(), error) {
	header := http.Header{}
	if s.token != "" {
		header.Set("Authorization", "Bearer "+s.token)
	}

	conn, resp, err := s.dialer.DialContext(ctx, s.streamURL(path), header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, decodeAPIError(resp)
		}
		return nil, fmt.Errorf("dial stream: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}
	first, err := readSnapshot(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read initial snapshot: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	if onError == nil {
		onError = func(error) {}
	}
	sub := &subscription{conn: conn, log: s.log.With("path", path)}
	onSnapshot(first)
	go sub.run(onSnapshot, onError)
	return sub.close, nil
}

type subscription struct {
	conn   *websocket.Conn
	log    logger.Logger
	mu     sync.Mutex
	closed bool
	once   sync.Once
}

func (sub *subscription) run(onSnapshot func(collectiondomain.Snapshot), onError func(error)) {
	for {
		snapshot, err := readSnapshot(sub.conn)
		if err != nil {
			if sub.isClosed() {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseGoingAway) {
				err = fmt.Errorf("%w: %v", collectiondomain.ErrClosed, err)
			}
			sub.log.InternalError("httpclient.subscribe: stream ended", err)
			onError(err)
			return
		}
		if sub.isClosed() {
			return
		}
		onSnapshot(snapshot)
	}
}

func (sub *subscription) close() {
	sub.once.Do(func() {
		sub.mu.Lock()
		sub.closed = true
		sub.mu.Unlock()

		closeMessage := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = sub.conn.WriteControl(websocket.CloseMessage, closeMessage, time.Now().Add(time.Second))
		_ = sub.conn.Close()
	})
}

func (sub *subscription) isClosed() bool {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.closed
}

// readSnapshot skips frames that are not snapshots.
func readSnapshot(conn *websocket.Conn) (collectiondomain.Snapshot, error) {
	for {
		var message streamMessage
		if err := conn.ReadJSON(&message); err != nil {
			return collectiondomain.Snapshot{}, err
		}
		if message.Type == "snapshot" && message.Snapshot != nil {
			return *message.Snapshot, nil
		}
	}
}

func (s *Store) do(ctx context.Context, method, path string, body interface{}, dst interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.endpoint(path), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if dst == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (s *Store) endpoint(path string) string {
	u := *s.baseURL
	u.Path = u.Path + "/" + strings.TrimLeft(path, "/")
	return u.String()
}

func (s *Store) streamURL(path string) string {
	u := *s.baseURL
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = u.Path + "/api/stream/" + strings.TrimLeft(path, "/")
	return u.String()
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	var envelope errorEnvelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&envelope); err == nil {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	}
	return apiErr
}
