package gateway

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/you-humble/jobclient/internal/domain"
)

type uploadResponse struct {
	Success  bool   `json:"success"`
	FolderID string `json:"folder_id"`
	Error    string `json:"error"`
}

type sheetsResponse struct {
	Sheets []string `json:"sheets"`
	Error  string   `json:"error"`
}

// UploadFolder sends every file in a single request and returns the folder
// handle the server assigned.
func (g *Gateway) UploadFolder(ctx context.Context, files []domain.File) (domain.UploadHandle, error) {
	parts := make([]domain.Attachment, 0, len(files))
	for _, f := range files {
		parts = append(parts, domain.Attachment{Field: "files", File: f})
	}

	resp, err := g.postMultipart(ctx, pathUploadFolder, newMultipartBody(nil, parts))
	if err != nil {
		return "", &domain.UploadError{Message: "request failed", Cause: err}
	}
	defer drain(resp)

	var body uploadResponse
	if err := decodeJSON(resp, &body); err != nil {
		if !isSuccess(resp.StatusCode) {
			return "", &domain.UploadError{HTTPStatus: resp.StatusCode, Message: "server error"}
		}
		return "", &domain.UploadError{HTTPStatus: resp.StatusCode, Message: "invalid response", Cause: err}
	}

	switch {
	case body.Error != "":
		return "", &domain.UploadError{HTTPStatus: resp.StatusCode, Message: body.Error}
	case !isSuccess(resp.StatusCode) || !body.Success:
		return "", &domain.UploadError{HTTPStatus: resp.StatusCode, Message: "upload rejected"}
	case body.FolderID == "":
		return "", &domain.UploadError{HTTPStatus: resp.StatusCode, Message: "server returned no folder id"}
	}

	return domain.UploadHandle(body.FolderID), nil
}

// GetSheets asks the server for the sheet names of a workbook.
func (g *Gateway) GetSheets(ctx context.Context, file domain.File) ([]string, error) {
	body := newMultipartBody(nil, []domain.Attachment{{Field: "file", File: file}})
	resp, err := g.postMultipart(ctx, pathGetSheets, body)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	var sr sheetsResponse
	decodeErr := decodeJSON(resp, &sr)
	switch {
	case sr.Error != "":
		return nil, &domain.RequestError{Endpoint: pathGetSheets, HTTPStatus: resp.StatusCode, Message: sr.Error}
	case !isSuccess(resp.StatusCode):
		return nil, &domain.RequestError{Endpoint: pathGetSheets, HTTPStatus: resp.StatusCode, Message: "server error"}
	case decodeErr != nil:
		return nil, decodeErr
	}

	return sr.Sheets, nil
}

// Split submits the split form and returns the archive stream. The caller
// closes Content.
func (g *Gateway) Split(ctx context.Context, file domain.File, form domain.SplitForm) (domain.DownloadResult, error) {
	body := newMultipartBody(form.Fields(), []domain.Attachment{{Field: "file", File: file}})
	resp, err := g.postMultipart(ctx, pathSplit, body)
	if err != nil {
		return domain.DownloadResult{}, err
	}
	if !isSuccess(resp.StatusCode) {
		defer drain(resp)
		return domain.DownloadResult{}, &domain.RequestError{
			Endpoint:   pathSplit,
			HTTPStatus: resp.StatusCode,
			Message:    readText(resp),
		}
	}

	base := strings.TrimSuffix(file.Name(), filepath.Ext(file.Name()))
	return domain.DownloadResult{
		FileName: attachmentName(resp, base+"_split.zip"),
		Size:     resp.ContentLength,
		Content:  resp.Body,
	}, nil
}
