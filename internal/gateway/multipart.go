package gateway

import (
	"fmt"
	"io"
	"mime/multipart"

	"github.com/you-humble/jobclient/internal/domain"
)

// multipartBody streams a form through a pipe so large uploads are never
// buffered in memory.
type multipartBody struct {
	pr          *io.PipeReader
	contentType string
}

func newMultipartBody(fields []domain.Field, files []domain.Attachment) *multipartBody {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	body := &multipartBody{pr: pr, contentType: mw.FormDataContentType()}

	go func() {
		err := writeForm(mw, fields, files)
		if cerr := mw.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
	}()

	return body
}

func (b *multipartBody) Read(p []byte) (int, error) { return b.pr.Read(p) }

func (b *multipartBody) Close() error { return b.pr.Close() }

func (b *multipartBody) ContentType() string { return b.contentType }

func writeForm(mw *multipart.Writer, fields []domain.Field, files []domain.Attachment) error {
	for _, f := range fields {
		if err := mw.WriteField(f.Name, f.Value); err != nil {
			return fmt.Errorf("write field %s: %w", f.Name, err)
		}
	}

	for _, a := range files {
		if err := writeFile(mw, a); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(mw *multipart.Writer, a domain.Attachment) error {
	rc, err := a.File.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", a.File.Name(), err)
	}
	defer rc.Close()

	part, err := mw.CreateFormFile(a.Field, a.File.Name())
	if err != nil {
		return fmt.Errorf("create part %s: %w", a.File.Name(), err)
	}
	if _, err := io.Copy(part, rc); err != nil {
		return fmt.Errorf("copy %s: %w", a.File.Name(), err)
	}
	return nil
}
