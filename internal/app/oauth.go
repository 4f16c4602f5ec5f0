package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/semmidev/mongovault/internal/adapter/storage"
	"github.com/semmidev/mongovault/internal/infrastructure/logger"
	"golang.org/x/oauth2"
)

// DriveAuthServer walks an operator through the Google consent screen and
// prints the refresh token that GDRIVE_REFRESH_TOKEN expects.
type DriveAuthServer struct {
	config     *oauth2.Config
	logger     *logger.Logger
	state      string
	authServer *http.Server
}

func NewDriveAuthServer(logger *logger.Logger, clientSecretPath string) (*DriveAuthServer, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	cfg, err := storage.LoadOAuthConfig(clientSecretPath)
	if err != nil {
		return nil, err
	}

	return &DriveAuthServer{
		config: cfg,
		logger: logger,
		state:  uuid.NewString(),
	}, nil
}

// Handler serves /auth/google/drive, which redirects to Google, and
// /auth/google/callback, which exchanges the code for a token.
func (s *DriveAuthServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /auth/google/drive", func(w http.ResponseWriter, r *http.Request) {
		authURL := s.config.AuthCodeURL(s.state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
		http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
	})

	mux.HandleFunc("GET /auth/google/callback", func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("state") != s.state {
			http.Error(w, "invalid state parameter", http.StatusBadRequest)
			return
		}
		code := query.Get("code")
		if code == "" {
			http.Error(w, "missing code parameter", http.StatusBadRequest)
			return
		}

		token, err := s.config.Exchange(r.Context(), code)
		if err != nil {
			http.Error(w, fmt.Sprintf("token exchange failed: %v", err), http.StatusInternalServerError)
			return
		}

		if token.RefreshToken == "" {
			fmt.Fprintln(w, "⚠️ No refresh token returned. Revoke app access & re-authorize.")
			return
		}

		s.logger.Infof("Google Drive refresh token obtained")
		fmt.Fprintf(w, "✅ Refresh Token:\n%s\n\nSet it as GDRIVE_REFRESH_TOKEN.\n", token.RefreshToken)
	})

	return mux
}

// Start serves the auth endpoints in the background until Shutdown.
func (s *DriveAuthServer) Start(addr string) {
	s.authServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		s.logger.Infof("Google Drive OAuth server listening on %s, open /auth/google/drive to begin", addr)
		if err := s.authServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorf("OAuth server error: %v", err)
		}
	}()
}

func (s *DriveAuthServer) Shutdown(ctx context.Context) error {
	if s.authServer == nil {
		return nil
	}

	if err := s.authServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown OAuth server: %w", err)
	}
	s.logger.Infof("OAuth server stopped successfully")
	return nil
}
