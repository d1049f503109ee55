package gateway

import (
	"context"
	"fmt"
	"net/url"

	"github.com/you-humble/jobclient/internal/domain"
)

type createJobResponse struct {
	JobID string `json:"job_id"`
	Error string `json:"error"`
}

type statusResponse struct {
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Total    int    `json:"total"`
	Error    string `json:"error"`
}

// CreateJob posts the request to /send_emails. An error field in the body
// wins over a successful HTTP status.
func (g *Gateway) CreateJob(ctx context.Context, jr domain.JobRequest) (domain.JobID, error) {
	fields := jr.Fields()
	if jr.HasHandle() {
		fields = append(fields, domain.Field{Name: "folder_id", Value: string(jr.Handle())})
	}

	resp, err := g.postMultipart(ctx, pathSendEmails, newMultipartBody(fields, jr.Attachments()))
	if err != nil {
		if isTransport(err) {
			return "", &domain.SubmitError{Network: true, Cause: err}
		}
		return "", err
	}
	defer drain(resp)

	var body createJobResponse
	decodeErr := decodeJSON(resp, &body)
	if decodeErr != nil && isTransport(decodeErr) {
		return "", &domain.SubmitError{Network: true, Cause: decodeErr}
	}

	switch {
	case body.Error != "":
		return "", &domain.SubmitError{HTTPStatus: resp.StatusCode, Message: body.Error}
	case !isSuccess(resp.StatusCode):
		return "", &domain.SubmitError{HTTPStatus: resp.StatusCode}
	case decodeErr != nil:
		return "", &domain.SubmitError{HTTPStatus: resp.StatusCode, Message: "invalid response from server", Cause: decodeErr}
	case body.JobID == "":
		return "", &domain.SubmitError{HTTPStatus: resp.StatusCode, Message: "server returned no job id"}
	}

	return domain.JobID(body.JobID), nil
}

// GetStatus performs one status check. A body with only an error field is
// the server's verdict on the job; anything else that prevents reading a
// status, including an undecodable body, is a PollNetwork error.
func (g *Gateway) GetStatus(ctx context.Context, id domain.JobID) (domain.JobStatus, error) {
	resp, err := g.get(ctx, pathCheckStatus+url.PathEscape(string(id)))
	if err != nil {
		return domain.JobStatus{}, &domain.PollError{Kind: domain.PollNetwork, JobID: id, Cause: err}
	}
	defer drain(resp)

	var body statusResponse
	if err := decodeJSON(resp, &body); err != nil {
		return domain.JobStatus{}, &domain.PollError{Kind: domain.PollNetwork, JobID: id, Cause: err}
	}
	if body.Status == "" && body.Error != "" {
		return domain.JobStatus{}, &domain.PollError{
			Kind:    domain.PollServerFailed,
			JobID:   id,
			Message: body.Error,
		}
	}
	if body.Status == "" {
		return domain.JobStatus{}, &domain.PollError{
			Kind:  domain.PollNetwork,
			JobID: id,
			Cause: fmt.Errorf("no status in response (http %d): %s", resp.StatusCode, body.Error),
		}
	}

	return domain.JobStatus{
		State:    domain.JobState(body.Status),
		Progress: body.Progress,
		Total:    body.Total,
		Error:    body.Error,
	}, nil
}

// FetchLog opens the completion log of a job. The caller closes Content.
func (g *Gateway) FetchLog(ctx context.Context, id domain.JobID) (domain.DownloadResult, error) {
	resp, err := g.get(ctx, pathDownloadLog+url.PathEscape(string(id)))
	if err != nil {
		return domain.DownloadResult{}, err
	}
	if !isSuccess(resp.StatusCode) {
		defer drain(resp)
		return domain.DownloadResult{}, &domain.RequestError{
			Endpoint:   pathDownloadLog,
			HTTPStatus: resp.StatusCode,
			Message:    readText(resp),
		}
	}

	return domain.DownloadResult{
		FileName: attachmentName(resp, fmt.Sprintf("email_log_%s.csv", id)),
		Size:     resp.ContentLength,
		Content:  resp.Body,
	}, nil
}

