package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/oauth2"
)

// Scopes requested for calendar sync and summary delivery.
var Scopes = []string{"Calendars.Read", "Mail.Send", "offline_access"}

// DeviceFlow acquires Microsoft identity platform tokens via the OAuth2
// device authorization grant and caches them in a JSON file so repeat
// runs refresh silently instead of prompting again.
type DeviceFlow struct {
	cfg       *oauth2.Config
	cacheFile string
	logger    *slog.Logger
	prompt    func(userCode, verificationURI string)

	mu    sync.Mutex
	token *oauth2.Token
}

type Option func(*DeviceFlow)

// WithPrompt overrides how the user code is surfaced. The default prints
// to stdout.
func WithPrompt(fn func(userCode, verificationURI string)) Option {
	return func(d *DeviceFlow) {
		d.prompt = fn
	}
}

func NewDeviceFlow(clientID, tenant, cacheFile string, logger *slog.Logger, opts ...Option) *DeviceFlow {
	if tenant == "" {
		tenant = "common"
	}
	authority := "https://login.microsoftonline.com/" + tenant
	d := &DeviceFlow{
		cfg: &oauth2.Config{
			ClientID: clientID,
			Scopes:   Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:       authority + "/oauth2/v2.0/authorize",
				TokenURL:      authority + "/oauth2/v2.0/token",
				DeviceAuthURL: authority + "/oauth2/v2.0/devicecode",
			},
		},
		cacheFile: cacheFile,
		logger:    logger,
		prompt: func(userCode, verificationURI string) {
			fmt.Printf("To sign in, visit %s and enter the code %s\n", verificationURI, userCode)
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Token returns a valid access token, refreshing the cached token when
// possible and falling back to a fresh device authorization when not.
func (d *DeviceFlow) Token(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.token == nil {
		if tok, err := loadToken(d.cacheFile); err == nil {
			d.token = tok
		}
	}
	if d.token != nil {
		tok, err := d.cfg.TokenSource(ctx, d.token).Token()
		if err == nil {
			if tok.AccessToken != d.token.AccessToken {
				d.token = tok
				d.persist(tok)
			}
			return tok.AccessToken, nil
		}
		d.logger.Warn("cached token refresh failed, starting device flow", "error", err)
		d.token = nil
	}

	da, err := d.cfg.DeviceAuth(ctx)
	if err != nil {
		return "", fmt.Errorf("request device code: %w", err)
	}
	d.prompt(da.UserCode, da.VerificationURI)

	tok, err := d.cfg.DeviceAccessToken(ctx, da)
	if err != nil {
		return "", fmt.Errorf("wait for device authorization: %w", err)
	}
	d.token = tok
	d.persist(tok)
	return tok.AccessToken, nil
}

func (d *DeviceFlow) persist(tok *oauth2.Token) {
	if d.cacheFile == "" {
		return
	}
	if err := saveToken(d.cacheFile, tok); err != nil {
		d.logger.Warn("failed to persist token cache", "path", d.cacheFile, "error", err)
	}
}

func loadToken(path string) (*oauth2.Token, error) {
	if path == "" {
		return nil, fmt.Errorf("no token cache configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token cache: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("decode token cache: %w", err)
	}
	return &tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token cache: %w", err)
	}
	// Tokens grant calendar and mail access, keep the file private.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write token cache: %w", err)
	}
	return nil
}
