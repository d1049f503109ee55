package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/you-humble/jobclient/internal/domain"
	"github.com/you-humble/jobclient/internal/engine"
	"github.com/you-humble/jobclient/internal/upload"
)

type Gateway interface {
	GetStatus(ctx context.Context, id domain.JobID) (domain.JobStatus, error)
	FetchLog(ctx context.Context, id domain.JobID) (domain.DownloadResult, error)
	GetSheets(ctx context.Context, file domain.File) ([]string, error)
	Split(ctx context.Context, file domain.File, form domain.SplitForm) (domain.DownloadResult, error)
}

type Uploader interface {
	Upload(ctx context.Context, files []domain.File) (domain.UploadHandle, error)
	MaxBytes() int64
}

type Engine interface {
	Submit(ctx context.Context, jr domain.JobRequest) (*engine.Session, error)
}

type ArtifactStore interface {
	Save(ctx context.Context, reader io.Reader, filename string, size int64) (int64, string, error)
	Location(filename string) string
}

type SendInput struct {
	// Dir is uploaded when Files is empty.
	Dir       string
	Files     []domain.File
	EmailFile domain.File
	Form      domain.EmailForm
}

type SplitInput struct {
	File domain.File
	Form domain.SplitForm
}

// Artifact is a downloaded file saved to the artifact store.
type Artifact struct {
	JobID    domain.JobID
	Name     string
	Size     int64
	Hash     string
	Location string
}

type usecase struct {
	gw       Gateway
	uploader Uploader
	engine   Engine
	store    ArtifactStore
	now      func() time.Time
}

func New(gw Gateway, uploader Uploader, eng Engine, store ArtifactStore) *usecase {
	return &usecase{
		gw:       gw,
		uploader: uploader,
		engine:   eng,
		store:    store,
		now:      time.Now,
	}
}

// SendEmails uploads the split files, submits the send job, follows it to
// the end and saves the server log.
func (uc *usecase) SendEmails(ctx context.Context, in SendInput) (Artifact, error) {
	form := in.Form.WithDefaults()
	if err := validateForm(form); err != nil {
		return Artifact{}, err
	}
	if in.EmailFile == nil {
		return Artifact{}, &domain.ValidationError{Field: "email_file", Reason: "is required"}
	}
	if in.EmailFile.Size() > uc.uploader.MaxBytes() {
		return Artifact{}, tooLarge(in.EmailFile, uc.uploader.MaxBytes())
	}

	files := in.Files
	if len(files) == 0 && in.Dir != "" {
		var err error
		if files, err = upload.LoadDir(ctx, in.Dir); err != nil {
			return Artifact{}, fmt.Errorf("load folder: %w", err)
		}
	}

	handle, err := uc.uploader.Upload(ctx, files)
	if err != nil {
		return Artifact{}, err
	}

	jr := domain.NewJobRequest(
		form.Fields(),
		handle,
		domain.Attachment{Field: "email_file", File: in.EmailFile},
	)

	session, err := uc.engine.Submit(ctx, jr)
	if err != nil {
		return Artifact{}, err
	}

	out, err := session.Wait(ctx)
	if err != nil {
		if ctx.Err() != nil {
			session.Cancel()
		}
		return Artifact{JobID: session.JobID()}, err
	}

	fallback := fmt.Sprintf("email_log_%s_%s.csv", form.GmailUser, uc.now().Format("20060102_150405"))
	art, err := uc.saveLog(ctx, out.JobID, fallback)
	if err != nil {
		return Artifact{JobID: out.JobID}, err
	}
	return art, nil
}

func (uc *usecase) saveLog(ctx context.Context, id domain.JobID, fallback string) (Artifact, error) {
	res, err := uc.gw.FetchLog(ctx, id)
	if err != nil {
		return Artifact{}, fmt.Errorf("fetch log: %w", err)
	}
	defer res.Content.Close()

	name := res.FileName
	if name == "" || name == defaultLogName(id) {
		name = fallback
	}

	art, err := uc.save(ctx, res, name)
	if err != nil {
		return Artifact{}, err
	}
	art.JobID = id

	slog.Info("log saved",
		slog.String("job_id", string(id)),
		slog.String("location", art.Location),
	)
	return art, nil
}

// Sheets lists the sheets of a workbook as the server sees them.
func (uc *usecase) Sheets(ctx context.Context, file domain.File) ([]string, error) {
	if file == nil {
		return nil, &domain.ValidationError{Field: "file", Reason: "is required"}
	}
	if file.Size() > uc.uploader.MaxBytes() {
		return nil, tooLarge(file, uc.uploader.MaxBytes())
	}

	sheets, err := uc.gw.GetSheets(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("get sheets: %w", err)
	}
	return sheets, nil
}

// Split asks the server to split a workbook by a column and saves the
// returned archive.
func (uc *usecase) Split(ctx context.Context, in SplitInput) (Artifact, error) {
	if err := validateForm(in.Form); err != nil {
		return Artifact{}, err
	}

	sheets, err := uc.Sheets(ctx, in.File)
	if err != nil {
		return Artifact{}, err
	}
	if !slices.Contains(sheets, in.Form.SheetName) {
		return Artifact{}, &domain.ValidationError{
			Field:  "sheet_name",
			Reason: fmt.Sprintf("sheet %q not found (have %s)", in.Form.SheetName, strings.Join(sheets, ", ")),
		}
	}

	res, err := uc.gw.Split(ctx, in.File, in.Form)
	if err != nil {
		return Artifact{}, fmt.Errorf("split: %w", err)
	}
	defer res.Content.Close()

	return uc.save(ctx, res, res.FileName)
}

// Status checks a job once without starting a session.
func (uc *usecase) Status(ctx context.Context, id domain.JobID) (domain.JobStatus, error) {
	if id == "" {
		return domain.JobStatus{}, &domain.ValidationError{Field: "job_id", Reason: "is required"}
	}
	return uc.gw.GetStatus(ctx, id)
}

func (uc *usecase) save(ctx context.Context, res domain.DownloadResult, name string) (Artifact, error) {
	name = filepath.Base(name)
	written, hash, err := uc.store.Save(ctx, res.Content, name, res.Size)
	if err != nil {
		return Artifact{}, fmt.Errorf("save %s: %w", name, err)
	}

	return Artifact{
		Name:     name,
		Size:     written,
		Hash:     hash,
		Location: uc.store.Location(name),
	}, nil
}

func tooLarge(f domain.File, limit int64) error {
	return &domain.ValidationError{
		Field:  f.Name(),
		Reason: fmt.Sprintf("file too large (max %dMB)", limit>>20),
	}
}

func defaultLogName(id domain.JobID) string {
	return fmt.Sprintf("email_log_%s.csv", id)
}

// IsValidation reports whether err was detected before the network was used.
func IsValidation(err error) bool {
	return errors.Is(err, domain.ErrValidation)
}
