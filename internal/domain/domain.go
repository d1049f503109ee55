package domain

import (
	"io"
	"os"
	"path/filepath"
	"slices"
)

type JobState string

const (
	StateProcessing JobState = "processing"
	StateCompleted  JobState = "completed"
	StateFailed     JobState = "failed"
)

func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// EngineState is the lifecycle of the polling engine itself.
type EngineState string

const (
	EngineIdle       EngineState = "idle"
	EngineSubmitting EngineState = "submitting"
	EnginePolling    EngineState = "polling"
	EngineCompleted  EngineState = "completed"
	EngineFailed     EngineState = "failed"
)

type JobID string

type UploadHandle string

func (h UploadHandle) Valid() bool { return h != "" }

type JobStatus struct {
	State    JobState
	Progress int
	Total    int
	Error    string
}

// File is one entry of an upload batch. Size must be known before Open is
// called so oversized files are rejected without touching the network.
type File interface {
	Name() string
	Size() int64
	Open() (io.ReadCloser, error)
}

type localFile struct {
	path string
	size int64
}

func LocalFile(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, &ValidationError{Field: path, Reason: "is a directory"}
	}
	return &localFile{path: path, size: info.Size()}, nil
}

func (f *localFile) Name() string { return filepath.Base(f.path) }

func (f *localFile) Size() int64 { return f.size }

func (f *localFile) Open() (io.ReadCloser, error) { return os.Open(f.path) }

// Field is one multipart form value. Order is kept so requests are
// reproducible.
type Field struct {
	Name  string
	Value string
}

type Attachment struct {
	Field string
	File  File
}

// JobRequest is the immutable payload of a job submission.
type JobRequest struct {
	fields      []Field
	attachments []Attachment
	handle      UploadHandle
}

func NewJobRequest(fields []Field, handle UploadHandle, attachments ...Attachment) JobRequest {
	return JobRequest{
		fields:      slices.Clone(fields),
		attachments: slices.Clone(attachments),
		handle:      handle,
	}
}

func (r JobRequest) Fields() []Field { return slices.Clone(r.fields) }

func (r JobRequest) Attachments() []Attachment { return slices.Clone(r.attachments) }

func (r JobRequest) Handle() UploadHandle { return r.handle }

func (r JobRequest) HasHandle() bool { return r.handle.Valid() }

// FieldMap returns the fields as a map; the last value wins on duplicates.
func (r JobRequest) FieldMap() map[string]string {
	m := make(map[string]string, len(r.fields))
	for _, f := range r.fields {
		m[f.Name] = f.Value
	}
	return m
}

type DownloadResult struct {
	FileName string
	Size     int64
	Content  io.ReadCloser
}

// Outcome is the terminal result of one polling session.
type Outcome struct {
	JobID   JobID
	State   EngineState
	Message string
	Err     error
}

func (o Outcome) Succeeded() bool { return o.State == EngineCompleted }
