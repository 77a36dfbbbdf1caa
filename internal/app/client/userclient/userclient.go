// Package userclient calls the user service's /internal endpoints from a
// post or group service running in a split deployment.
//
// Any failure (transport error, timeout, non-2xx status, bad body) comes
// back wrapped in apperr.ErrNotFound. Callers cannot tell a missing user
// from an unreachable service, and are not meant to.
package userclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/dalemusser/birdbook/internal/app/system/apperr"
	"github.com/dalemusser/birdbook/internal/app/system/timeouts"
	"github.com/dalemusser/birdbook/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// TokenHeader carries the shared internal token.
const TokenHeader = "X-Internal-Token"

type Client struct {
	base  string
	token string
	http  *http.Client
	log   *zap.Logger
}

// New returns a client for the user service at baseURL. httpClient may be
// nil.
func New(baseURL, token string, httpClient *http.Client, log *zap.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("user_service_url %q is not an absolute URL", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		base:  strings.TrimRight(u.String(), "/"),
		token: token,
		http:  httpClient,
		log:   log,
	}, nil
}

// GetUser fetches the snapshot embedded on posts, comments and groups.
func (c *Client) GetUser(ctx context.Context, userID primitive.ObjectID) (models.PostUser, error) {
	var env struct {
		Data models.PostUser `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/internal/users/"+userID.Hex(), &env); err != nil {
		return models.PostUser{}, err
	}
	return env.Data, nil
}

// AddPost appends postID to the user's posts array.
func (c *Client) AddPost(ctx context.Context, userID, postID primitive.ObjectID) error {
	return c.do(ctx, http.MethodPut, "/internal/users/"+userID.Hex()+"/posts/"+postID.Hex(), nil)
}

// AddGroup appends groupID to the user's groups array.
func (c *Client) AddGroup(ctx context.Context, userID, groupID primitive.ObjectID) error {
	return c.do(ctx, http.MethodPut, "/internal/users/"+userID.Hex()+"/groups/"+groupID.Hex(), nil)
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Remote())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return notFound(method, path, err)
	}
	req.Header.Set(TokenHeader, c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("user service call failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return notFound(method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return notFound(method, path, fmt.Errorf("status %d", resp.StatusCode))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
		return notFound(method, path, fmt.Errorf("decode: %w", err))
	}
	return nil
}

func notFound(method, path string, cause error) error {
	return fmt.Errorf("user service %s %s: %w", method, path, errors.Join(apperr.ErrNotFound, cause))
}
