package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/you-humble/jobclient/internal/domain"
	"github.com/you-humble/jobclient/internal/engine"
	"github.com/you-humble/jobclient/internal/gateway"
	filestore "github.com/you-humble/jobclient/internal/infra/store/file"
	"github.com/you-humble/jobclient/internal/projector"
	"github.com/you-humble/jobclient/internal/upload"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memFile struct {
	name string
	data []byte
}

func (f memFile) Name() string { return f.name }

func (f memFile) Size() int64 { return int64(len(f.data)) }

func (f memFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

type fakeServer struct {
	calls  atomic.Int32
	checks atomic.Int32
	mux    *http.ServeMux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newFakeServer(t *testing.T) *fakeServer {
	fs := &fakeServer{mux: http.NewServeMux()}

	fs.mux.HandleFunc("POST /upload_folder", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		if len(r.MultipartForm.File["files"]) == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "no files"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "folder_id": "folder-1"})
	})
	fs.mux.HandleFunc("POST /send_emails", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "folder-1", r.FormValue("folder_id"))
		assert.Equal(t, "me@example.com", r.FormValue("gmail_user"))
		assert.Equal(t, "2", r.FormValue("start_row_email"))
		_, _, err := r.FormFile("email_file")
		assert.NoError(t, err)
		writeJSON(w, http.StatusOK, map[string]any{"job_id": "job-1"})
	})
	fs.mux.HandleFunc("GET /check_status/{id}", func(w http.ResponseWriter, r *http.Request) {
		if fs.checks.Add(1) == 1 {
			writeJSON(w, http.StatusOK, map[string]any{"status": "processing", "progress": 1, "total": 2})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "completed", "progress": 2, "total": 2})
	})
	fs.mux.HandleFunc("GET /download_log/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = io.WriteString(w, "time,ref,email,status\n")
	})
	fs.mux.HandleFunc("POST /get_sheets", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"sheets": []string{"Data", "Summary"}})
	})
	fs.mux.HandleFunc("POST /split", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Data", r.FormValue("sheet_name"))
		w.Header().Set("Content-Disposition", `attachment; filename="split_result.zip"`)
		_, _ = w.Write([]byte("PK\x03\x04"))
	})
	return fs
}

func (fs *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fs.calls.Add(1)
	fs.mux.ServeHTTP(w, r)
}

type fixture struct {
	uc     *usecase
	server *fakeServer
	dir    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fs := newFakeServer(t)
	srv := httptest.NewServer(fs)
	t.Cleanup(srv.Close)

	gw, err := gateway.New(gateway.Config{BaseURL: srv.URL, Timeout: 2 * time.Second})
	require.NoError(t, err)

	dir := t.TempDir()
	store, err := filestore.NewLocalStore(dir)
	require.NoError(t, err)

	eng := engine.New(gw, projector.NewMulti(), engine.Options{
		PollInterval:  5 * time.Millisecond,
		RequireHandle: true,
	})

	uc := New(gw, upload.New(1<<20, gw, nil), eng, store)
	uc.now = func() time.Time { return time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC) }

	return &fixture{uc: uc, server: fs, dir: dir}
}

func validEmailForm() domain.EmailForm {
	return domain.EmailForm{
		GmailUser:     "me@example.com",
		GmailPassword: "app-password",
		SenderName:    "Accounting",
		RefCol:        "A",
		EmailCol:      "C",
		Subject:       "Payslip",
		Body:          "See attachment",
	}
}

func TestSendEmailsEndToEnd(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	art, err := f.uc.SendEmails(ctx, SendInput{
		Files:     []domain.File{memFile{"npp01.pdf", []byte("a")}, memFile{"npp02.pdf", []byte("b")}},
		EmailFile: memFile{"emails.xlsx", []byte("x")},
		Form:      validEmailForm(),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.JobID("job-1"), art.JobID)
	assert.Equal(t, "email_log_me@example.com_20250301_093000.csv", art.Name)
	assert.GreaterOrEqual(t, f.server.checks.Load(), int32(2))

	data, err := os.ReadFile(filepath.Join(f.dir, art.Name))
	require.NoError(t, err)
	assert.Equal(t, "time,ref,email,status\n", string(data))
}

func TestSendEmailsUploadsDir(t *testing.T) {
	f := newFixture(t)

	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "npp01.pdf"), []byte("a"), 0o644))

	_, err := f.uc.SendEmails(context.Background(), SendInput{
		Dir:       src,
		EmailFile: memFile{"emails.xlsx", []byte("x")},
		Form:      validEmailForm(),
	})
	require.NoError(t, err)
}

func TestSendEmailsValidatesBeforeNetwork(t *testing.T) {
	tests := []struct {
		name  string
		in    func() SendInput
		field string
	}{
		{
			name: "missing subject",
			in: func() SendInput {
				form := validEmailForm()
				form.Subject = ""
				return SendInput{Files: []domain.File{memFile{"a.pdf", []byte("a")}}, EmailFile: memFile{"e.xlsx", nil}, Form: form}
			},
			field: "subject",
		},
		{
			name: "bad email",
			in: func() SendInput {
				form := validEmailForm()
				form.GmailUser = "not-an-address"
				return SendInput{Files: []domain.File{memFile{"a.pdf", []byte("a")}}, EmailFile: memFile{"e.xlsx", nil}, Form: form}
			},
			field: "gmail_user",
		},
		{
			name: "end before start",
			in: func() SendInput {
				form := validEmailForm()
				form.StartRow, form.EndRow = 10, 5
				return SendInput{Files: []domain.File{memFile{"a.pdf", []byte("a")}}, EmailFile: memFile{"e.xlsx", nil}, Form: form}
			},
			field: "end_row_email",
		},
		{
			name: "no email file",
			in: func() SendInput {
				return SendInput{Files: []domain.File{memFile{"a.pdf", []byte("a")}}, Form: validEmailForm()}
			},
			field: "email_file",
		},
		{
			name: "oversized split file",
			in: func() SendInput {
				return SendInput{
					Files:     []domain.File{memFile{"big.pdf", make([]byte, 2<<20)}},
					EmailFile: memFile{"e.xlsx", nil},
					Form:      validEmailForm(),
				}
			},
			field: "big.pdf",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			_, err := f.uc.SendEmails(context.Background(), tt.in())
			require.Error(t, err)
			assert.True(t, IsValidation(err))

			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.Zero(t, f.server.calls.Load())
		})
	}
}

func TestSendEmailsJobFailure(t *testing.T) {
	f := newFixture(t)
	f.server.mux = http.NewServeMux()
	f.server.mux.HandleFunc("POST /upload_folder", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "folder_id": "folder-1"})
	})
	f.server.mux.HandleFunc("POST /send_emails", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"job_id": "job-2"})
	})
	f.server.mux.HandleFunc("GET /check_status/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "failed", "error": "SMTP auth failed"})
	})

	art, err := f.uc.SendEmails(context.Background(), SendInput{
		Files:     []domain.File{memFile{"a.pdf", []byte("a")}},
		EmailFile: memFile{"e.xlsx", []byte("x")},
		Form:      validEmailForm(),
	})

	var pe *domain.PollError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, domain.PollServerFailed, pe.Kind)
	assert.Equal(t, domain.JobID("job-2"), art.JobID)
}

func TestSplit(t *testing.T) {
	f := newFixture(t)

	art, err := f.uc.Split(context.Background(), SplitInput{
		File: memFile{"payroll.xlsx", []byte("x")},
		Form: domain.SplitForm{
			SheetName:      "Data",
			SplitColumn:    "B",
			TemplateEndRow: 5,
			StartRow:       6,
			EndRow:         100,
			StartCol:       "A",
			EndCol:         "H",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "split_result.zip", art.Name)
	assert.EqualValues(t, 4, art.Size)
	assert.Equal(t, filepath.Join(f.dir, "split_result.zip"), art.Location)
}

func TestSplitRejectsUnknownSheet(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.Split(context.Background(), SplitInput{
		File: memFile{"payroll.xlsx", []byte("x")},
		Form: domain.SplitForm{
			SheetName:      "Missing",
			SplitColumn:    "B",
			TemplateEndRow: 5,
			StartRow:       6,
			EndRow:         100,
		},
	})

	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "sheet_name", ve.Field)
	assert.Contains(t, ve.Reason, "Data, Summary")
	assert.EqualValues(t, 1, f.server.calls.Load(), "only the sheet listing was requested")
}

func TestSplitValidatesColumns(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.Split(context.Background(), SplitInput{
		File: memFile{"payroll.xlsx", []byte("x")},
		Form: domain.SplitForm{
			SheetName:      "Data",
			SplitColumn:    "B",
			TemplateEndRow: 5,
			StartRow:       6,
			EndRow:         100,
			StartCol:       "A1",
		},
	})

	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "start_col", ve.Field)
	assert.Zero(t, f.server.calls.Load())
}

func TestStatus(t *testing.T) {
	f := newFixture(t)

	st, err := f.uc.Status(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateProcessing, st.State)
	assert.Equal(t, 1, st.Progress)

	_, err = f.uc.Status(context.Background(), "")
	assert.True(t, IsValidation(err))
}
