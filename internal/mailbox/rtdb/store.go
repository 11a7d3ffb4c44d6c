// Package rtdb implements mailbox.Store on top of a Firebase Realtime Database.
// Writes go through the Admin SDK; subscriptions use the REST streaming API.
package rtdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"papercrumpler/internal/constants"
	"papercrumpler/internal/models"
	"papercrumpler/internal/security"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

var scopes = []string{
	"https://www.googleapis.com/auth/firebase.database",
	"https://www.googleapis.com/auth/userinfo.email",
}

// refClient is the subset of database reference operations the store needs.
type refClient interface {
	push(ctx context.Context, path string, v any) (string, error)
	set(ctx context.Context, path string, v any) error
	delete(ctx context.Context, path string) error
	getShallow(ctx context.Context, path string, v any) error
}

type firebaseRefs struct {
	client *db.Client
}

func (f firebaseRefs) push(ctx context.Context, path string, v any) (string, error) {
	ref, err := f.client.NewRef(path).Push(ctx, v)
	if err != nil {
		return "", err
	}
	return ref.Key, nil
}

func (f firebaseRefs) set(ctx context.Context, path string, v any) error {
	return f.client.NewRef(path).Set(ctx, v)
}

func (f firebaseRefs) delete(ctx context.Context, path string) error {
	return f.client.NewRef(path).Delete(ctx)
}

func (f firebaseRefs) getShallow(ctx context.Context, path string, v any) error {
	return f.client.NewRef(path).GetShallow(ctx, v)
}

// Store is a mailbox.Store backed by a realtime database.
type Store struct {
	refs          refClient
	baseURL       string
	authUID       string
	httpClient    *http.Client
	logger        *logrus.Logger
	maxEventBytes int

	reconnectInterval time.Duration
}

// Option customizes a Store
type Option func(*Store)

// WithHTTPClient sets the client used for streaming subscriptions.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) { s.httpClient = c }
}

// WithLogger sets the store logger.
func WithLogger(l *logrus.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithMaxEventBytes caps the size of a single streamed event.
func WithMaxEventBytes(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxEventBytes = n
		}
	}
}

// WithReconnectInterval sets the first delay before reopening a stream the
// server closed.
func WithReconnectInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.reconnectInterval = d
		}
	}
}

func newStore(refs refClient, baseURL, authUID string, opts ...Option) *Store {
	s := &Store{
		refs:          refs,
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		authUID:       authUID,
		httpClient:    http.DefaultClient,
		maxEventBytes: constants.DefaultStreamMaxEventBytes,

		reconnectInterval: constants.DefaultStreamReconnectMs * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logrus.New()
		s.logger.SetLevel(logrus.WarnLevel)
	}
	return s
}

// Connect initializes the database client from a service-account file. The
// configured uid is applied to every request as the auth variable override.
func Connect(ctx context.Context, cfg models.StoreConfig, opts ...Option) (*Store, error) {
	if err := security.ValidateFilePath(cfg.CredentialsFile); err != nil {
		return nil, fmt.Errorf("invalid credentials path: %w", err)
	}
	credJSON, err := os.ReadFile(cfg.CredentialsFile) // #nosec G304 - Path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	fbConfig := &firebase.Config{DatabaseURL: cfg.DatabaseURL}
	if cfg.AuthUID != "" {
		override := map[string]interface{}{"uid": cfg.AuthUID}
		fbConfig.AuthOverride = &override
	}

	app, err := firebase.NewApp(ctx, fbConfig, option.WithCredentialsJSON(credJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database client: %w", err)
	}

	creds, err := google.CredentialsFromJSON(ctx, credJSON, scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to load stream credentials: %w", err)
	}
	// The token source outlives ctx, so it must not be bound to it.
	streamClient := oauth2.NewClient(context.Background(), creds.TokenSource)

	opts = append([]Option{WithHTTPClient(streamClient)}, opts...)
	return newStore(firebaseRefs{client: client}, cfg.DatabaseURL, cfg.AuthUID, opts...), nil
}

// Enqueue pushes record under collection and returns the generated key.
func (s *Store) Enqueue(ctx context.Context, collection string, record any) (string, error) {
	key, err := s.refs.push(ctx, collection, record)
	if err != nil {
		return "", fmt.Errorf("push to %s: %w", collection, err)
	}
	return key, nil
}

// Write sets the value at path.
func (s *Store) Write(ctx context.Context, path string, value any) error {
	if err := s.refs.set(ctx, path, value); err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	return nil
}

// Delete removes the value at path.
func (s *Store) Delete(ctx context.Context, path string) error {
	if err := s.refs.delete(ctx, path); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

// Probe performs a shallow read of collection to verify reachability and
// access rules before any processing starts.
func (s *Store) Probe(ctx context.Context, collection string) error {
	var keys json.RawMessage
	if err := s.refs.getShallow(ctx, collection, &keys); err != nil {
		return fmt.Errorf("probe %s: %w", collection, err)
	}
	return nil
}
