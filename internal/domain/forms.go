package domain

import "strconv"

const (
	DefaultStartRowEmail = 2
	DefaultEndRowEmail   = 99999
)

// EmailForm mirrors the fields of the /send_emails form.
type EmailForm struct {
	GmailUser     string `form:"gmail_user" validate:"required,email"`
	GmailPassword string `form:"gmail_password" validate:"required"`
	SenderName    string `form:"sender_name" validate:"required"`

	RefCol   string `form:"ref_col" validate:"required"`
	NameCol  string `form:"name_col"`
	EmailCol string `form:"email_col" validate:"required"`
	CCCol    string `form:"cc_col"`

	Subject string `form:"subject" validate:"required"`
	Body    string `form:"body" validate:"required"`

	StartRow int `form:"start_row_email" validate:"min=1"`
	EndRow   int `form:"end_row_email" validate:"gtefield=StartRow"`
}

func (f EmailForm) WithDefaults() EmailForm {
	if f.StartRow == 0 {
		f.StartRow = DefaultStartRowEmail
	}
	if f.EndRow == 0 {
		f.EndRow = DefaultEndRowEmail
	}
	return f
}

func (f EmailForm) Fields() []Field {
	fields := []Field{
		{Name: "gmail_user", Value: f.GmailUser},
		{Name: "gmail_password", Value: f.GmailPassword},
		{Name: "sender_name", Value: f.SenderName},
		{Name: "ref_col", Value: f.RefCol},
		{Name: "email_col", Value: f.EmailCol},
		{Name: "subject", Value: f.Subject},
		{Name: "body", Value: f.Body},
		{Name: "start_row_email", Value: strconv.Itoa(f.StartRow)},
		{Name: "end_row_email", Value: strconv.Itoa(f.EndRow)},
	}
	if f.NameCol != "" {
		fields = append(fields, Field{Name: "name_col", Value: f.NameCol})
	}
	if f.CCCol != "" {
		fields = append(fields, Field{Name: "cc_col", Value: f.CCCol})
	}
	return fields
}

// SplitForm mirrors the fields of the /split form. Column bounds are
// spreadsheet letters ("A", "AB").
type SplitForm struct {
	SheetName   string `form:"sheet_name" validate:"required"`
	SplitColumn string `form:"split_column" validate:"required"`

	TemplateEndRow int `form:"template_end_row" validate:"min=1"`
	StartRow       int `form:"start_row" validate:"min=1"`
	EndRow         int `form:"end_row" validate:"gtefield=StartRow"`

	StartCol string `form:"start_col" validate:"omitempty,alpha,max=3"`
	EndCol   string `form:"end_col" validate:"omitempty,alpha,max=3"`
	NameCol  string `form:"name_col"`
}

func (f SplitForm) Fields() []Field {
	return []Field{
		{Name: "sheet_name", Value: f.SheetName},
		{Name: "split_column", Value: f.SplitColumn},
		{Name: "template_end_row", Value: strconv.Itoa(f.TemplateEndRow)},
		{Name: "start_row", Value: strconv.Itoa(f.StartRow)},
		{Name: "end_row", Value: strconv.Itoa(f.EndRow)},
		{Name: "start_col", Value: f.StartCol},
		{Name: "end_col", Value: f.EndCol},
		{Name: "name_col", Value: f.NameCol},
	}
}
