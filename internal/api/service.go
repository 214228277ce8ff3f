package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
)

type messageResponse struct {
	Message string `json:"message"`
}

// DeleteService removes a service and returns the server's message.
func (c *Client) DeleteService(ctx context.Context, serviceID string) (string, error) {
	serviceID = strings.TrimSpace(serviceID)
	if serviceID == "" {
		return "", errors.New("service id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	endpoint := c.baseURL + "/service/" + url.PathEscape(serviceID)
	build := func(ctx context.Context, _ string) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	}

	var resp messageResponse
	if err := c.doAuthed(ctx, build, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}
