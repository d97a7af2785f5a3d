package backend

import (
	"context"
	"mime"
	"net/http"
)

// ListReports returns the reports visible to the caller.
func (c *Client) ListReports(ctx context.Context, token string) ([]Report, error) {
	var out []Report
	err := c.getJSON(ctx, "/reports", token, nil, &out)
	return out, err
}

// GenerateReport queues a report on the backend.
func (c *Client) GenerateReport(ctx context.Context, token string, in ReportRequest) (Report, error) {
	var out Report
	err := c.postJSON(ctx, "/reports/generate", token, in, &out)
	return out, err
}

// DownloadReport streams a generated report file.
func (c *Client) DownloadReport(ctx context.Context, token, id string) (Download, error) {
	resp, err := c.send(ctx, http.MethodGet, "/reports/download/"+escape(id), token, acceptAny, nil)
	if err != nil {
		return Download{}, err
	}
	name := "report-" + id
	if _, params, perr := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); perr == nil && params["filename"] != "" {
		name = params["filename"]
	}
	ctype := resp.Header.Get("Content-Type")
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	return Download{Filename: name, ContentType: ctype, Size: resp.ContentLength, Body: resp.Body}, nil
}
