package notifier

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ipasync/pkg/domain/interfaces"
	"github.com/secmon-lab/ipasync/pkg/domain/model"
	"github.com/secmon-lab/ipasync/pkg/domain/types"
	"github.com/secmon-lab/ipasync/pkg/service/slack"
	"github.com/secmon-lab/ipasync/pkg/utils/errutil"
	"github.com/secmon-lab/ipasync/pkg/utils/logging"
	"github.com/wneessen/go-mail"
)

const (
	subjectExpiration     = "Your credentials to access the company network are expiring soon"
	subjectNewAccount     = "Your new credentials to access the company network are ready"
	subjectPasswordReset  = "Your credentials to access the company network have been reset"
	subjectRemindPassword = "Please, change your company network password now"
	subjectADUpdates      = "FreeIPA AD Synchronization Update Report for %s"
	subjectExpirations    = "Password expiration report for %s"
	subjectTerminated     = "User Termination Report for %s"

	reportDateLayout     = "01/02/2006"
	expirationDateLayout = "Monday, January 02, 2006"
)

// Sender delivers composed messages
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Notifier renders notification templates and mails them. Admin reports are
// also posted to Slack when a Slack service is configured.
type Notifier struct {
	sender         Sender
	from           string
	templates      map[TemplateKey]*template.Template
	logo           string
	logoCID        string
	graciousPeriod int
	now            func() time.Time
	slack          slack.Service
}

var _ interfaces.Notifier = &Notifier{}

type Option func(*Notifier)

// WithGraciousPeriod sets the days quoted in expiration reports
func WithGraciousPeriod(days int) Option {
	return func(n *Notifier) {
		n.graciousPeriod = days
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(n *Notifier) {
		n.now = now
	}
}

// WithSlack mirrors admin reports to Slack
func WithSlack(svc slack.Service) Option {
	return func(n *Notifier) {
		n.slack = svc
	}
}

// New parses the template files. Every key of TemplateKeys must be present.
func New(sender Sender, from string, files map[TemplateKey]string, opts ...Option) (*Notifier, error) {
	if from == "" {
		return nil, goerr.New("sender address is required")
	}

	templates, err := parseTemplates(files)
	if err != nil {
		return nil, err
	}

	n := &Notifier{
		sender:    sender,
		from:      from,
		templates: templates,
		logo:      files[TemplateCompanyLogo],
		logoCID:   uuid.NewString() + "@ipasync",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// NewSMTPSender returns a client for an unauthenticated relay. STARTTLS is
// used when the relay offers it.
func NewSMTPSender(host string, port int, timeout time.Duration) (Sender, error) {
	client, err := mail.NewClient(host,
		mail.WithPort(port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(timeout),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create SMTP client", goerr.V("host", host), goerr.V("port", port))
	}
	return client, nil
}

func (n *Notifier) NotifyExpiration(ctx context.Context, id types.UserID, user *model.UserRecord, daysLeft int, expiration time.Time) bool {
	logging.From(ctx).Debug("sending password expiration reminder", "user_id", id, "days_left", daysLeft)

	return n.send(ctx, []string{user.Email}, subjectExpiration, TemplateNotifyExpiration, templateData{
		UserID:         id.String(),
		Name:           user.Name,
		DaysLeft:       daysLeft,
		ExpirationDate: expiration.Format(expirationDateLayout),
	})
}

func (n *Notifier) NotifyNewAccount(ctx context.Context, id types.UserID, user *model.UserRecord, password string) bool {
	logging.From(ctx).Debug("sending new account notice", "user_id", id)

	return n.send(ctx, []string{user.Email}, subjectNewAccount, TemplateNotifyNewAccount, templateData{
		UserID:   id.String(),
		Name:     user.Name,
		Alias:    user.PrimaryAlias(),
		Password: password,
	})
}

func (n *Notifier) NotifyPasswordReset(ctx context.Context, id types.UserID, user *model.UserRecord, password string) bool {
	logging.From(ctx).Debug("sending password reset notice", "user_id", id)

	return n.send(ctx, []string{user.Email}, subjectPasswordReset, TemplateNotifyPasswdReset, templateData{
		UserID:   id.String(),
		Name:     user.Name,
		Alias:    user.PrimaryAlias(),
		Password: password,
	})
}

func (n *Notifier) RemindPasswordReset(ctx context.Context, id types.UserID, user *model.UserRecord) bool {
	logging.From(ctx).Debug("sending password change reminder", "user_id", id)

	return n.send(ctx, []string{user.Email}, subjectRemindPassword, TemplateRemindPasswdReset, templateData{
		UserID: id.String(),
		Name:   user.Name,
		Alias:  user.PrimaryAlias(),
	})
}

func (n *Notifier) ReportDirectoryUpdates(ctx context.Context, admins []string, updated []types.UserID) bool {
	date := n.now().Format(reportDateLayout)
	subject := fmt.Sprintf(subjectADUpdates, date)
	users := idStrings(updated)

	n.postSlack(ctx, &slack.Report{
		Title:    subject,
		Sections: []slack.Section{{Heading: "Updated users:", Items: users}},
	})
	return n.sendReport(ctx, admins, subject, TemplateReportADUpdates, templateData{
		Date:  date,
		Users: users,
	})
}

// ReportExpirations sends nothing and returns false when both lists are empty
func (n *Notifier) ReportExpirations(ctx context.Context, admins []string, expired, disabled []types.UserID) bool {
	if len(expired) == 0 && len(disabled) == 0 {
		return false
	}

	date := n.now().Format(reportDateLayout)
	subject := fmt.Sprintf(subjectExpirations, date)
	disabledText := fmt.Sprintf("users with passwords expired over the gracious period of %d days have been disabled:", n.graciousPeriod)

	data := templateData{Date: date}
	if len(expired) > 0 {
		data.IntroText = "The passwords for the following users have expired:"
		data.Users = idStrings(expired)
		if len(disabled) > 0 {
			data.AdditionalText = "Additionally, the following " + disabledText
			data.AdditionalList = idStrings(disabled)
		}
	} else {
		data.IntroText = "The following " + disabledText
		data.Users = idStrings(disabled)
	}

	n.postSlack(ctx, &slack.Report{
		Title: subject,
		Sections: []slack.Section{
			{Heading: data.IntroText, Items: data.Users},
			{Heading: data.AdditionalText, Items: data.AdditionalList},
		},
	})
	return n.sendReport(ctx, admins, subject, TemplateReportExpirations, data)
}

func (n *Notifier) ReportTerminated(ctx context.Context, admins []string, deleted, notDeleted []types.UserID) bool {
	date := n.now().Format(reportDateLayout)
	subject := fmt.Sprintf(subjectTerminated, date)

	data := templateData{
		Date:       date,
		Users:      idStrings(deleted),
		NotDeleted: idStrings(notDeleted),
	}

	n.postSlack(ctx, &slack.Report{
		Title: subject,
		Sections: []slack.Section{
			{Heading: "Deleted terminated users:", Items: data.Users},
			{Heading: "Terminated users that could not be deleted, please review them manually:", Items: data.NotDeleted},
		},
	})
	return n.sendReport(ctx, admins, subject, TemplateReportTerminated, data)
}

func (n *Notifier) sendReport(ctx context.Context, admins []string, subject string, key TemplateKey, data templateData) bool {
	if len(admins) == 0 {
		logging.From(ctx).Error("report not sent, no administrator recipients", "template", key)
		return false
	}
	return n.send(ctx, admins, subject, key, data)
}

func (n *Notifier) postSlack(ctx context.Context, report *slack.Report) {
	if n.slack == nil {
		return
	}
	if err := n.slack.PostReport(ctx, report); err != nil {
		errutil.Handle(ctx, err, "could not post report to Slack")
	}
}

func (n *Notifier) send(ctx context.Context, recipients []string, subject string, key TemplateKey, data templateData) bool {
	msg, err := n.compose(recipients, subject, key, data)
	if err != nil {
		errutil.Handle(ctx, err, "email could not be composed")
		return false
	}

	if err := n.sender.DialAndSendWithContext(ctx, msg); err != nil {
		errutil.Handle(ctx, goerr.Wrap(err, "failed to deliver email",
			goerr.V("template", key), goerr.V("recipients", recipients)), "email could not be sent")
		return false
	}

	logging.From(ctx).Debug("email sent", "template", key, "recipients", recipients)
	return true
}

func (n *Notifier) compose(recipients []string, subject string, key TemplateKey, data templateData) (*mail.Msg, error) {
	tmpl, ok := n.templates[key]
	if !ok {
		return nil, goerr.Wrap(ErrTemplateMissing, "template not loaded", goerr.V("template", key))
	}

	data.Logo = template.URL("cid:" + n.logoCID)
	var html bytes.Buffer
	if err := tmpl.Execute(&html, data); err != nil {
		return nil, goerr.Wrap(err, "failed to render template", goerr.V("template", key))
	}

	text, err := toPlainText(html.String())
	if err != nil {
		return nil, err
	}

	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return nil, goerr.Wrap(err, "invalid sender address", goerr.V("from", n.from))
	}
	if err := msg.To(recipients...); err != nil {
		return nil, goerr.Wrap(err, "invalid recipient address", goerr.V("recipients", recipients))
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextPlain, text)
	msg.AddAlternativeString(mail.TypeTextHTML, html.String())
	msg.EmbedFile(n.logo, mail.WithFileContentID(n.logoCID))

	return msg, nil
}

func idStrings(ids []types.UserID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
