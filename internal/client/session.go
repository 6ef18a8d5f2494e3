package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Account kinds accepted by the direct login.
const (
	AccountTeacher = 1
	AccountParent  = 2
	AccountStudent = 3
)

// DirectLogin holds portal credentials for the direct login.
// AccountKind 0 means AccountStudent.
type DirectLogin struct {
	PortalURL   string
	Username    string
	Password    string
	AccountKind int
}

// FederatedLogin holds credentials for a login through an identity
// provider picked from Providers.
type FederatedLogin struct {
	PortalURL string
	Username  string
	Password  string
	Provider  string
}

type loginResponse struct {
	Success     bool     `json:"success"`
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	ExpiresIn   int      `json:"expires_in"`
	Student     *Student `json:"student"`
}

// LoginDirect posts the credentials to the direct-login endpoint and
// stores the returned token. The profile is returned but not recorded:
// call SetStudent once the caller accepts it.
func (c *Client) LoginDirect(ctx context.Context, login DirectLogin) (*Student, error) {
	if err := requireFields(login.PortalURL, login.Username, login.Password); err != nil {
		return nil, err
	}
	kind := login.AccountKind
	if kind == 0 {
		kind = AccountStudent
	}
	if kind < AccountTeacher || kind > AccountStudent {
		return nil, invalidInput("type de compte %d inconnu", login.AccountKind)
	}

	return c.login(ctx, pathLoginDirect, map[string]any{
		"pronote_url":  strings.TrimSpace(login.PortalURL),
		"username":     login.Username,
		"password":     login.Password,
		"account_type": kind,
	})
}

// LoginFederated is LoginDirect through an identity provider. An empty
// provider is rejected before any request is made.
func (c *Client) LoginFederated(ctx context.Context, login FederatedLogin) (*Student, error) {
	if err := requireFields(login.PortalURL, login.Username, login.Password); err != nil {
		return nil, err
	}
	if strings.TrimSpace(login.Provider) == "" {
		return nil, invalidInput("aucun ENT sélectionné")
	}

	return c.login(ctx, pathLoginFederated, map[string]any{
		"pronote_url": strings.TrimSpace(login.PortalURL),
		"username":    login.Username,
		"password":    login.Password,
		"ent_name":    strings.TrimSpace(login.Provider),
	})
}

func (c *Client) login(ctx context.Context, path string, body map[string]any) (*Student, error) {
	raw, err := c.transport.Do(ctx, path, RequestOptions{Body: body})
	if err != nil {
		// The backend answers refused credentials with 401.
		if errors.Is(err, ErrSessionExpired) {
			return nil, ErrAuthenticationRejected
		}
		return nil, err
	}

	var resp loginResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		c.logger.Warn("malformed login response", "path", path, "error", err)
		return nil, fmt.Errorf("%w: réponse illisible", ErrAuthenticationRejected)
	}
	if !resp.Success || resp.AccessToken == "" || resp.Student == nil {
		return nil, ErrAuthenticationRejected
	}

	c.tokens.Save(resp.AccessToken)
	c.logger.Info("logged in", "student", resp.Student.StudentName, "expires_in", resp.ExpiresIn)
	return resp.Student, nil
}

// Logout ends the session. The backend call is best effort; the local
// token and profile are cleared whatever happens.
func (c *Client) Logout(ctx context.Context) {
	if c.tokens.IsPresent() {
		if _, err := c.transport.Do(ctx, pathLogout, RequestOptions{Method: "POST"}); err != nil {
			c.logger.Debug("logout request failed", "error", err)
		}
	}
	c.tokens.Clear()
	c.SetStudent(nil)
}

// SetStudent records (or, with nil, forgets) the current profile.
func (c *Client) SetStudent(student *Student) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.student = student
}

// Student returns the recorded profile, nil when none.
func (c *Client) Student() *Student {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.student
}

// IsAuthenticated is true iff a token is held and a profile is recorded.
// A token alone (for example one restored from elsewhere) is not enough.
func (c *Client) IsAuthenticated() bool {
	return c.tokens.IsPresent() && c.Student() != nil
}

func requireFields(portalURL, username, password string) error {
	switch {
	case strings.TrimSpace(portalURL) == "":
		return invalidInput("URL Pronote requise")
	case strings.TrimSpace(username) == "":
		return invalidInput("identifiant requis")
	case password == "":
		return invalidInput("mot de passe requis")
	}
	return nil
}
