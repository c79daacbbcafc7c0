package repository

import (
	"fmt"
	"net/url"
	"strings"
)

// ClientApplication es un client registrado, indexado por client_id.
// Inmutable salvo re-registro explícito.
type ClientApplication struct {
	ClientID     string `json:"client_id"`
	Me           string `json:"me"`
	RedirectURI  string `json:"redirect_uri"`
	RegisteredAt int64  `json:"registered_at,omitempty"`
}

// Validate verifica que client_id y redirect_uri sean URLs absolutas.
func (c *ClientApplication) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("%w: client_id is required", ErrInvalidInput)
	}
	if !isAbsoluteURL(c.RedirectURI) {
		return fmt.Errorf("%w: redirect_uri must be an absolute URL", ErrInvalidInput)
	}
	if c.Me != "" && !isAbsoluteURL(c.Me) {
		return fmt.Errorf("%w: me must be an absolute URL", ErrInvalidInput)
	}
	return nil
}

func (c *ClientApplication) ToRecord() map[string]any {
	m := map[string]any{
		"client_id":    c.ClientID,
		"redirect_uri": c.RedirectURI,
	}
	putOpt(m, "me", c.Me)
	if c.RegisteredAt != 0 {
		m["registered_at"] = c.RegisteredAt
	}
	return m
}

func ClientApplicationFromRecord(m map[string]any) (*ClientApplication, error) {
	registered, _ := AsInt64(m["registered_at"])
	return &ClientApplication{
		ClientID:     str(m, "client_id"),
		Me:           str(m, "me"),
		RedirectURI:  str(m, "redirect_uri"),
		RegisteredAt: registered,
	}, nil
}

// CanonicalURL normaliza la URL de un usuario (me) para usarla como clave:
// scheme y host en minúsculas, path vacío → "/", sin fragmento.
func CanonicalURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty url", ErrInvalidInput)
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: invalid url %q", ErrInvalidInput, raw)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}
