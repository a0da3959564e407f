package oauth2

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"api-client/internal/common/errors"
	"api-client/internal/common/logging"
	"api-client/internal/server"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const (
	// DefaultReceiverAddr listens on a random loopback port
	DefaultReceiverAddr = "127.0.0.1:0"
	// DefaultCallbackPath is the path the authorization server redirects to
	DefaultCallbackPath = "/authorize/"
)

const closePageHTML = `<html><head><title>Authorization complete</title></head>` +
	`<body>Received verification code. You may now close this window.</body></html>`

// BrowserOpener sends the user to authorizationURL
type BrowserOpener func(authorizationURL string) error

// LocalServerCodeReceiver receives the authorization code on a temporary
// loopback HTTP server.
type LocalServerCodeReceiver struct {
	Addr         string
	CallbackPath string
	// OpenBrowser is called with the authorization URL. When nil the URL is
	// only logged.
	OpenBrowser BrowserOpener
	Logger      logging.Logger
}

// NewLocalServerCodeReceiver creates a receiver on a random loopback port
func NewLocalServerCodeReceiver(opener BrowserOpener) *LocalServerCodeReceiver {
	return &LocalServerCodeReceiver{
		Addr:         DefaultReceiverAddr,
		CallbackPath: DefaultCallbackPath,
		OpenBrowser:  opener,
	}
}

// ReceiveCode implements CodeReceiver. It points req at the local server,
// adds a random state when req has none, and waits for a redirect carrying
// that state. Redirects with any other state are rejected.
func (r *LocalServerCodeReceiver) ReceiveCode(ctx context.Context, req *AuthorizationCodeRequestURL) (*AuthorizationCodeResponseURL, error) {
	logger := r.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	addr := r.Addr
	if addr == "" {
		addr = DefaultReceiverAddr
	}
	path := r.CallbackPath
	if path == "" {
		path = DefaultCallbackPath
	}

	if req.State == "" {
		req.State = uuid.NewString()
	}
	state := req.State

	results := make(chan *AuthorizationCodeResponseURL, 1)

	router := mux.NewRouter()
	router.HandleFunc(path, func(w http.ResponseWriter, httpReq *http.Request) {
		resp := ParseAuthorizationCodeResponse(httpReq.URL.Query())
		if resp.State != state {
			logger.Warn("Rejected authorization redirect with unexpected state")
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, closePageHTML)

		select {
		case results <- resp:
		default:
		}
	}).Methods(http.MethodGet)

	srv, err := server.Listen(addr, router)
	if err != nil {
		return nil, errors.ConnectionError("failed to start redirect receiver", err)
	}
	srv.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	req.RedirectURI = fmt.Sprintf("http://%s%s", srv.Addr().String(), path)

	authURL, err := req.Build()
	if err != nil {
		return nil, err
	}

	if r.OpenBrowser != nil {
		if err := r.OpenBrowser(authURL.String()); err != nil {
			logger.Warn("Failed to open browser, visit the authorization URL manually",
				logging.String("url", authURL.String()),
				logging.Err(err),
			)
		}
	} else {
		logger.Info("Visit the authorization URL to continue", logging.String("url", authURL.String()))
	}

	select {
	case resp := <-results:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
