package api

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
)

// DeployParams identify the target of an upload. Empty fields are omitted.
type DeployParams struct {
	MachineID           string
	ServiceID           string
	ServiceName         string
	ServiceIDFromConfig bool
}

func (p DeployParams) query() url.Values {
	q := url.Values{}
	if p.MachineID != "" {
		q.Set("machineId", p.MachineID)
	}
	if p.ServiceID != "" {
		q.Set("serviceId", p.ServiceID)
	}
	if p.ServiceIDFromConfig {
		q.Set("serviceIdFromConfig", "true")
	}
	if p.ServiceName != "" {
		q.Set("name", p.ServiceName)
	}
	return q
}

// Machine is one candidate offered when the server cannot pick a target.
type Machine struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status,omitempty"`
}

// DeployResponse is either a selection request or a stream handle.
type DeployResponse struct {
	NeedsSelection    bool      `json:"needsSelection,omitempty"`
	AvailableMachines []Machine `json:"availableMachines,omitempty"`

	StreamID  string `json:"streamId,omitempty"`
	ServiceID string `json:"serviceId,omitempty"`
	MachineID string `json:"machineId,omitempty"`
	Message   string `json:"message,omitempty"`
	URL       string `json:"url,omitempty"`
}

// Payload opens the archive to upload. It is called once per attempt so a
// retried request streams the same file again.
type Payload func() (io.ReadCloser, error)

const (
	deployFormField = "file"
	deployFileName  = "deploy.zip"
)

// Deploy uploads the payload as multipart form field "file". The body is
// streamed through a pipe; the archive is never held in memory.
func (c *Client) Deploy(ctx context.Context, params DeployParams, payload Payload) (DeployResponse, error) {
	endpoint := c.baseURL + "/service/deploy"
	if q := params.query(); len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	build := func(ctx context.Context, _ string) (*http.Request, error) {
		rc, err := payload()
		if err != nil {
			return nil, fmt.Errorf("open payload: %w", err)
		}
		body, contentType := multipartBody(rc)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
		if err != nil {
			_ = body.Close()
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	}

	var resp DeployResponse
	if err := c.doAuthed(ctx, build, &resp); err != nil {
		return DeployResponse{}, err
	}
	if !resp.NeedsSelection && resp.StreamID == "" {
		return DeployResponse{}, fmt.Errorf("deploy response missing streamId")
	}
	return resp, nil
}

// multipartBody streams rc as a single file part. Closing the returned reader
// before it is drained stops the writer goroutine.
func multipartBody(rc io.ReadCloser) (io.ReadCloser, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	contentType := mw.FormDataContentType()

	go func() {
		defer rc.Close()

		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, deployFormField, deployFileName))
		h.Set("Content-Type", "application/zip")

		part, err := mw.CreatePart(h)
		if err == nil {
			_, err = io.Copy(part, rc)
		}
		if err == nil {
			err = mw.Close()
		}
		_ = pw.CloseWithError(err)
	}()

	return pr, contentType
}
