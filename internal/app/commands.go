package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/you-humble/jobclient/internal/domain"
	"github.com/you-humble/jobclient/internal/usecase"
)

type command struct {
	summary         string
	storesArtifacts bool
	run             func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"send": {
		summary:         "upload split files, send the e-mails and save the log",
		storesArtifacts: true,
		run:             runSend,
	},
	"split": {
		summary:         "split a workbook by column and save the archive",
		storesArtifacts: true,
		run:             runSplit,
	},
	"sheets": {
		summary: "list the sheets of a workbook",
		run:     runSheets,
	},
	"status": {
		summary: "check a job once",
		run:     runStatus,
	},
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: unexpected argument %q", ErrUsage, fs.Arg(0))
	}
	return nil
}

func runSend(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	var (
		form      domain.EmailForm
		dir       = fs.String("dir", "", "folder with the files to attach (required)")
		emailFile = fs.String("emails", "", "workbook with recipients (required)")
		bodyFile  = fs.String("body-file", "", "read the message body from this file")
	)
	fs.StringVar(&form.GmailUser, "user", "", "Gmail account")
	fs.StringVar(&form.GmailPassword, "password", os.Getenv("JOBCLIENT_GMAIL_PASSWORD"), "Gmail app password (default $JOBCLIENT_GMAIL_PASSWORD)")
	fs.StringVar(&form.SenderName, "sender", "", "sender display name")
	fs.StringVar(&form.RefCol, "ref-col", "", "column matching rows to attachments")
	fs.StringVar(&form.NameCol, "name-col", "", "recipient name column")
	fs.StringVar(&form.EmailCol, "email-col", "", "recipient e-mail column")
	fs.StringVar(&form.CCCol, "cc-col", "", "CC column")
	fs.StringVar(&form.Subject, "subject", "", "message subject")
	fs.StringVar(&form.Body, "body", "", "message body")
	fs.IntVar(&form.StartRow, "start-row", domain.DefaultStartRowEmail, "first data row")
	fs.IntVar(&form.EndRow, "end-row", domain.DefaultEndRowEmail, "last data row")
	if err := parse(fs, args); err != nil {
		return err
	}

	if *dir == "" {
		return &domain.ValidationError{Field: "dir", Reason: "is required"}
	}
	if *bodyFile != "" {
		data, err := os.ReadFile(*bodyFile)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		form.Body = string(data)
	}
	in := usecase.SendInput{Dir: *dir, Form: form}
	if *emailFile != "" {
		f, err := domain.LocalFile(*emailFile)
		if err != nil {
			return fmt.Errorf("email file: %w", err)
		}
		in.EmailFile = f
	}

	art, err := a.di.Usecase(ctx).SendEmails(ctx, in)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Log saved to %s (%d bytes)\n", art.Location, art.Size)
	return nil
}

func runSplit(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("split", flag.ContinueOnError)
	var (
		form domain.SplitForm
		path = fs.String("file", "", "workbook to split (required)")
	)
	fs.StringVar(&form.SheetName, "sheet", "", "sheet to split")
	fs.StringVar(&form.SplitColumn, "split-col", "", "column whose values define the parts")
	fs.IntVar(&form.TemplateEndRow, "template-end", 0, "last header row copied into every part")
	fs.IntVar(&form.StartRow, "start-row", 0, "first data row")
	fs.IntVar(&form.EndRow, "end-row", 0, "last data row")
	fs.StringVar(&form.StartCol, "start-col", "", "first column letter")
	fs.StringVar(&form.EndCol, "end-col", "", "last column letter")
	fs.StringVar(&form.NameCol, "name-col", "", "column used to name the parts")
	if err := parse(fs, args); err != nil {
		return err
	}

	file, err := workbook(*path)
	if err != nil {
		return err
	}

	art, err := a.di.Usecase(ctx).Split(ctx, usecase.SplitInput{File: file, Form: form})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Archive saved to %s (%d bytes)\n", art.Location, art.Size)
	return nil
}

func runSheets(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("sheets", flag.ContinueOnError)
	path := fs.String("file", "", "workbook (required)")
	if err := parse(fs, args); err != nil {
		return err
	}

	file, err := workbook(*path)
	if err != nil {
		return err
	}

	sheets, err := a.di.Usecase(ctx).Sheets(ctx, file)
	if err != nil {
		return err
	}

	for _, s := range sheets {
		fmt.Fprintln(a.out, s)
	}
	return nil
}

func runStatus(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	id := fs.String("job", "", "job id (required)")
	if err := parse(fs, args); err != nil {
		return err
	}

	st, err := a.di.Usecase(ctx).Status(ctx, domain.JobID(strings.TrimSpace(*id)))
	if err != nil {
		return err
	}

	switch st.State {
	case domain.StateFailed:
		msg := st.Error
		if msg == "" {
			msg = domain.MsgSendFailed
		}
		fmt.Fprintf(a.out, "%s: failed: %s\n", *id, msg)
	default:
		fmt.Fprintf(a.out, "%s: %s %d/%d\n", *id, st.State, st.Progress, st.Total)
	}
	return nil
}

func workbook(path string) (domain.File, error) {
	if path == "" {
		return nil, &domain.ValidationError{Field: "file", Reason: "is required"}
	}
	f, err := domain.LocalFile(path)
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			return nil, err
		}
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	return f, nil
}
