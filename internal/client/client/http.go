package client

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
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmitrijs2005/twidder/internal/client/models"
	"github.com/dmitrijs2005/twidder/internal/client/signer"
)

const authorizationHeader = "Authorization"

// HTTPClient talks to the Twidder REST API rooted at baseURL
// (e.g. http://host/api/v1).
type HTTPClient struct {
	baseURL    string
	channelURL string
	signer     signer.Signer
	http       *http.Client
	dialer     *websocket.Dialer
}

// NewHTTPClient builds a gateway. An empty channelURL disables the realtime
// channel. A nil signer defaults to bearer tokens.
func NewHTTPClient(baseURL, channelURL string, s signer.Signer, dialTimeout time.Duration) *HTTPClient {
	if s == nil {
		s = signer.Bearer{}
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		channelURL: channelURL,
		signer:     s,
		http:       &http.Client{},
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: dialTimeout,
		},
	}
}

func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) CreateSession(ctx context.Context, email, password string) (string, error) {
	hdr, err := c.do(ctx, http.MethodPost, "/sessions", nil, sessionRequest{Email: email, Password: password}, nil)
	if err != nil {
		return "", err
	}
	token := hdr.Get(authorizationHeader)
	if token == "" {
		return "", fmt.Errorf("%w: session token missing", ErrUnexpectedStatus)
	}
	return token, nil
}

func (c *HTTPClient) DestroySession(ctx context.Context, sess models.Session) error {
	_, err := c.do(ctx, http.MethodDelete, "/sessions", &sess, nil, nil)
	return err
}

func (c *HTTPClient) CreateUser(ctx context.Context, user models.NewUser) error {
	_, err := c.do(ctx, http.MethodPost, "/users", nil, user, nil)
	return err
}

func (c *HTTPClient) FetchUser(ctx context.Context, sess models.Session, email string) (*models.UserProfile, error) {
	var u models.UserProfile
	if _, err := c.do(ctx, http.MethodGet, userPath(email), &sess, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *HTTPClient) UpdateUser(ctx context.Context, sess models.Session, email string, upd models.UserUpdate) error {
	_, err := c.do(ctx, http.MethodPatch, userPath(email), &sess, upd, nil)
	return err
}

func (c *HTTPClient) DeleteUser(ctx context.Context, sess models.Session, email string) error {
	_, err := c.do(ctx, http.MethodDelete, userPath(email), &sess, nil, nil)
	return err
}

func (c *HTTPClient) FetchPosts(ctx context.Context, sess models.Session, owner string) ([]models.Post, error) {
	var resp postsResponse
	path := "/posts?" + url.Values{"user_email": {owner}}.Encode()
	if _, err := c.do(ctx, http.MethodGet, path, &sess, nil, &resp); err != nil {
		return nil, err
	}

	posts := make([]models.Post, 0, len(resp.Posts))
	for _, p := range resp.Posts {
		posts = append(posts, p.toModel(owner))
	}
	return posts, nil
}

func (c *HTTPClient) CreatePost(ctx context.Context, sess models.Session, owner, content, media string) (string, error) {
	var resp createPostResponse
	req := createPostRequest{Email: owner, Message: content, Media: media}
	if _, err := c.do(ctx, http.MethodPost, "/posts", &sess, req, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("%w: post id missing", ErrUnexpectedStatus)
	}
	return string(resp.ID), nil
}

func (c *HTTPClient) DeletePost(ctx context.Context, sess models.Session, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/posts/"+url.PathEscape(id), &sess, nil, nil)
	return err
}

func (c *HTTPClient) OpenChannel(ctx context.Context, h ChannelHandlers) (Channel, error) {
	if c.channelURL == "" {
		return nil, ErrChannelUnsupported
	}

	conn, _, err := c.dialer.DialContext(ctx, c.channelURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return newWSChannel(conn, h), nil
}

func userPath(email string) string {
	return "/users/" + url.PathEscape(email)
}

// do sends one request. When sess is non-nil the request carries a
// credential signed over the exact body bytes. On a 2xx response the body is
// decoded into out (if any) and the response headers are returned.
func (c *HTTPClient) do(ctx context.Context, method, path string, sess *models.Session, in, out any) (http.Header, error) {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = b
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if sess != nil {
		credential, err := c.signer.Sign(sess.Email, sess.Token, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set(authorizationHeader, credential)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.mapError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, mapStatus(resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.Header, nil
}

func (c *HTTPClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

func mapStatus(code int) error {
	switch code {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	default:
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, code)
	}
}
