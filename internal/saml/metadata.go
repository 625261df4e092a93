package saml

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// MetadataChecker validates IdP metadata before it is handed to the user pool.
type MetadataChecker interface {
	CheckURL(ctx context.Context, rawURL string) error
	CheckFile(content string) error
}

// HTTPMetadataChecker requires metadata URLs to answer GET with 200 and
// metadata documents to be well-formed XML.
type HTTPMetadataChecker struct {
	Client *http.Client
}

func NewHTTPMetadataChecker(timeout time.Duration) *HTTPMetadataChecker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPMetadataChecker{Client: &http.Client{Timeout: timeout}}
}

func (h *HTTPMetadataChecker) CheckURL(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidMetadataURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return ErrInvalidMetadataURL
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return ErrInvalidMetadataURL
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode != http.StatusOK {
		return ErrInvalidMetadataURL
	}
	return nil
}

func (h *HTTPMetadataChecker) CheckFile(content string) error {
	if !wellFormedXML(content) {
		return ErrInvalidMetadataFile
	}
	return nil
}

// wellFormedXML reports whether s is a single well-formed XML document with
// a root element.
func wellFormedXML(s string) bool {
	dec := xml.NewDecoder(strings.NewReader(s))
	depth, roots := 0, 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return roots == 1 && depth == 0
		}
		if err != nil {
			return false
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				roots++
			}
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth == 0 && len(strings.TrimSpace(string(t))) > 0 {
				return false
			}
		}
	}
}
