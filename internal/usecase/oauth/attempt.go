package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Attempt is one login in flight.
type Attempt struct {
	AuthURL     string
	RedirectURI string

	flow   *Flow
	ctx    context.Context
	conf   *oauth2.Config
	state  string
	server *http.Server

	claimed atomic.Bool
	results chan error
	done    chan struct{}
	err     error
}

func (a *Attempt) Done() <-chan struct{} {
	return a.done
}

// Err is the outcome of the attempt; only meaningful once Done is closed.
func (a *Attempt) Err() error {
	select {
	case <-a.done:
		return a.err
	default:
		return nil
	}
}

// Wait blocks until the attempt finishes or ctx is done.
func (a *Attempt) Wait(ctx context.Context) error {
	select {
	case <-a.done:
		return a.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Attempt) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if oauthErr := q.Get("error"); oauthErr != "" {
		if !a.claimed.CompareAndSwap(false, true) {
			writeText(w, http.StatusConflict, "Authentication already handled.")
			return
		}
		writeText(w, http.StatusBadRequest, "Authentication failed. You can close this window.")
		a.complete(fmt.Errorf("%w: %s %s", ErrAuthorizationDenied, oauthErr, q.Get("error_description")))
		return
	}

	code := q.Get("code")
	if code == "" {
		a.flow.logger.Debug("ignoring callback request without code", zap.String("path", r.URL.Path))
		writeText(w, http.StatusBadRequest, "Missing authorization code.")
		return
	}

	if q.Get("state") != a.state {
		a.flow.logger.Warn("ignoring callback request with unexpected state")
		writeText(w, http.StatusBadRequest, "Invalid state.")
		return
	}

	if !a.claimed.CompareAndSwap(false, true) {
		writeText(w, http.StatusConflict, "Authentication already handled.")
		return
	}

	a.flow.setState(StateCodeReceived, a.RedirectURI, nil)

	token, err := a.exchange(code)
	if err != nil {
		a.flow.logger.Error("failed to obtain access token", zap.Error(err))
		writeText(w, http.StatusBadGateway, "Authentication failed. Check the title-countdown log for details.")
		a.complete(err)
		return
	}

	a.flow.setState(StateTokenExchanged, a.RedirectURI, nil)
	a.flow.storeToken(token)

	writeText(w, http.StatusOK, SuccessMessage)
	a.complete(nil)
}

func (a *Attempt) exchange(code string) (string, error) {
	ctx := a.ctx
	if a.flow.cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, a.flow.cfg.HTTPClient)
	}

	tok, err := a.conf.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("oauth: exchange code: %w", err)
	}

	return tok.AccessToken, nil
}

// complete hands the outcome to the supervisor, which owns the server.
func (a *Attempt) complete(err error) {
	select {
	case a.results <- err:
	default:
	}
}

func (a *Attempt) supervise(serveErr <-chan error) {
	var timeout <-chan time.Time
	if a.flow.cfg.Timeout > 0 {
		t := time.NewTimer(a.flow.cfg.Timeout)
		defer t.Stop()
		timeout = t.C
	}

	var result error
	select {
	case result = <-a.results:
	case err := <-serveErr:
		result = fmt.Errorf("oauth: callback server: %w", err)
	case <-timeout:
		result = ErrLoginTimeout
	case <-a.ctx.Done():
		result = a.ctx.Err()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.flow.logger.Warn("oauth callback listener shutdown", zap.Error(err))
		_ = a.server.Close()
	}

	a.finish(result)
}

func (a *Attempt) finish(result error) {
	a.err = result
	a.flow.reset(result)

	if result != nil {
		a.flow.logger.Warn("login attempt ended", zap.Error(result))
	} else {
		a.flow.logger.Info("oauth callback listener stopped")
	}

	close(a.done)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
