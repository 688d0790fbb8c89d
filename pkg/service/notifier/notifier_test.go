package notifier_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/ipasync/pkg/domain/model"
	"github.com/secmon-lab/ipasync/pkg/domain/types"
	"github.com/secmon-lab/ipasync/pkg/service/notifier"
	"github.com/secmon-lab/ipasync/pkg/service/slack"
	"github.com/wneessen/go-mail"
)

type fakeSender struct {
	messages []*mail.Msg
	err      error
}

func (s *fakeSender) DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error {
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, messages...)
	return nil
}

type fakeSlack struct {
	reports []*slack.Report
}

func (s *fakeSlack) PostReport(ctx context.Context, report *slack.Report) error {
	s.reports = append(s.reports, report)
	return nil
}

var today = time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)

func templateFiles() map[notifier.TemplateKey]string {
	files := make(map[notifier.TemplateKey]string)
	for _, key := range notifier.TemplateKeys() {
		name := key.String() + ".html"
		if key == notifier.TemplateCompanyLogo {
			name = key.String() + ".png"
		}
		files[key] = filepath.Join("..", "..", "..", "templates", name)
	}
	return files
}

func setup(t *testing.T, opts ...notifier.Option) (*notifier.Notifier, *fakeSender) {
	t.Helper()
	sender := &fakeSender{}
	opts = append([]notifier.Option{
		notifier.WithClock(func() time.Time { return today }),
		notifier.WithGraciousPeriod(6),
	}, opts...)
	n, err := notifier.New(sender, "IT Team <it@corp.example>", templateFiles(), opts...)
	gt.NoError(t, err).Required()
	return n, sender
}

func part(t *testing.T, msg *mail.Msg, contentType mail.ContentType) string {
	t.Helper()
	for _, p := range msg.GetParts() {
		if p.GetContentType() == contentType {
			content, err := p.GetContent()
			gt.NoError(t, err).Required()
			return string(content)
		}
	}
	t.Fatalf("no %s part", contentType)
	return ""
}

func subject(msg *mail.Msg) string {
	values := msg.GetGenHeader(mail.HeaderSubject)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func jane() *model.UserRecord {
	u := model.NewUserRecord()
	u.Email = "jane.doe@corp.example"
	u.Name = "Jane"
	u.Lastname = "Doe"
	u.FullName = "Jane Doe"
	u.Alias = []string{"jdoe"}
	return u
}

func TestNew(t *testing.T) {
	t.Run("fails when a template is missing", func(t *testing.T) {
		files := templateFiles()
		files[notifier.TemplateReportTerminated] = filepath.Join(t.TempDir(), "missing.html")

		_, err := notifier.New(&fakeSender{}, "it@corp.example", files)
		gt.Error(t, err).Is(notifier.ErrTemplateMissing)
		gt.Value(t, notifier.MissingTemplates(files)).Equal([]notifier.TemplateKey{notifier.TemplateReportTerminated})
	})

	t.Run("requires a sender address", func(t *testing.T) {
		_, err := notifier.New(&fakeSender{}, "", templateFiles())
		gt.Value(t, err).NotNil()
	})
}

func TestUserNotices(t *testing.T) {
	ctx := context.Background()

	t.Run("new account", func(t *testing.T) {
		n, sender := setup(t)

		gt.Bool(t, n.NotifyNewAccount(ctx, "jane.doe", jane(), "Tmp0rary!Passwd")).True()
		gt.Array(t, sender.messages).Length(1).Required()

		msg := sender.messages[0]
		gt.Value(t, subject(msg)).Equal("Your new credentials to access the company network are ready")
		recipients, err := msg.GetRecipients()
		gt.NoError(t, err).Required()
		gt.Value(t, recipients).Equal([]string{"jane.doe@corp.example"})

		text := part(t, msg, mail.TypeTextPlain)
		gt.String(t, text).Contains("Temporary password: Tmp0rary!Passwd")
		gt.String(t, text).Contains("'jane.doe' and 'jdoe'")

		html := part(t, msg, mail.TypeTextHTML)
		gt.String(t, html).Contains(`src="cid:`)
		gt.Array(t, msg.GetEmbeds()).Length(1)
	})

	t.Run("expiration reminder", func(t *testing.T) {
		n, sender := setup(t)
		expiration := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)

		gt.Bool(t, n.NotifyExpiration(ctx, "jane.doe", jane(), 5, expiration)).True()
		gt.Array(t, sender.messages).Length(1).Required()

		msg := sender.messages[0]
		gt.Value(t, subject(msg)).Equal("Your credentials to access the company network are expiring soon")
		gt.String(t, part(t, msg, mail.TypeTextPlain)).Contains("will expire in 5 days, on Tuesday, October 20, 2026.")
	})

	t.Run("password reset without alias", func(t *testing.T) {
		n, sender := setup(t)
		u := jane()
		u.Alias = []string{}

		gt.Bool(t, n.NotifyPasswordReset(ctx, "jane.doe", u, "N3w!Password")).True()
		text := part(t, sender.messages[0], mail.TypeTextPlain)
		gt.String(t, text).Contains("Temporary password: N3w!Password")
		gt.Bool(t, strings.Contains(text, "as your username")).False()
	})

	t.Run("delivery failure", func(t *testing.T) {
		n, sender := setup(t)
		sender.err = errors.New("connection refused")

		gt.Bool(t, n.RemindPasswordReset(ctx, "jane.doe", jane())).False()
	})
}

func TestReportExpirations(t *testing.T) {
	ctx := context.Background()
	admins := []string{"Jane Doe <jane.doe@corp.example>"}

	t.Run("nothing to report", func(t *testing.T) {
		n, sender := setup(t)
		gt.Bool(t, n.ReportExpirations(ctx, admins, nil, nil)).False()
		gt.Array(t, sender.messages).Length(0)
	})

	t.Run("expired and disabled users", func(t *testing.T) {
		n, sender := setup(t)

		gt.Bool(t, n.ReportExpirations(ctx, admins, []types.UserID{"john.roe"}, []types.UserID{"alice.smith"})).True()
		msg := sender.messages[0]
		gt.Value(t, subject(msg)).Equal("Password expiration report for 10/15/2026")

		text := part(t, msg, mail.TypeTextPlain)
		gt.String(t, text).Contains("The passwords for the following users have expired:")
		gt.String(t, text).Contains("* john.roe")
		gt.String(t, text).Contains("Additionally, the following users with passwords expired over the gracious period of 6 days have been disabled:")
		gt.String(t, text).Contains("* alice.smith")
	})

	t.Run("disabled users only", func(t *testing.T) {
		n, sender := setup(t)

		gt.Bool(t, n.ReportExpirations(ctx, admins, nil, []types.UserID{"alice.smith"})).True()
		text := part(t, sender.messages[0], mail.TypeTextPlain)
		gt.String(t, text).Contains("The following users with passwords expired over the gracious period of 6 days have been disabled:")
	})

	t.Run("no admin recipients", func(t *testing.T) {
		n, sender := setup(t)
		gt.Bool(t, n.ReportExpirations(ctx, nil, []types.UserID{"john.roe"}, nil)).False()
		gt.Array(t, sender.messages).Length(0)
	})
}

func TestReportTerminated(t *testing.T) {
	ctx := context.Background()
	chat := &fakeSlack{}
	n, sender := setup(t, notifier.WithSlack(chat))

	ok := n.ReportTerminated(ctx, []string{"jane.doe@corp.example"},
		[]types.UserID{"john.roe"}, []types.UserID{"max.mustermann"})
	gt.Bool(t, ok).True()

	msg := sender.messages[0]
	gt.Value(t, subject(msg)).Equal("User Termination Report for 10/15/2026")
	text := part(t, msg, mail.TypeTextPlain)
	gt.String(t, text).Contains("* john.roe")
	gt.String(t, text).Contains("could not be removed from FreeIPA")
	gt.String(t, text).Contains("* max.mustermann")

	gt.Array(t, chat.reports).Length(1).Required()
	gt.Value(t, chat.reports[0].Title).Equal("User Termination Report for 10/15/2026")
	gt.Value(t, chat.reports[0].Sections[1].Items).Equal([]string{"max.mustermann"})
}

func TestReportDirectoryUpdates(t *testing.T) {
	ctx := context.Background()
	n, sender := setup(t)

	gt.Bool(t, n.ReportDirectoryUpdates(ctx, []string{"jane.doe@corp.example"}, []types.UserID{"john.roe"})).True()
	msg := sender.messages[0]
	gt.Value(t, subject(msg)).Equal("FreeIPA AD Synchronization Update Report for 10/15/2026")
	gt.String(t, part(t, msg, mail.TypeTextPlain)).Contains("* john.roe")
}

func TestToPlainText(t *testing.T) {
	text, err := notifier.ToPlainText(`<html><head><style>p { color: red; }</style></head>
<body><p><img src="cid:logo">Hello   <b>Jane</b>,</p><p>Line one<br>Line two</p><ul><li>a</li><li>b</li></ul></body></html>`)
	gt.NoError(t, err).Required()
	gt.Value(t, text).Equal("Hello Jane,\nLine one\nLine two\n* a\n* b\n")
}
