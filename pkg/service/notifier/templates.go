package notifier

import (
	"html/template"
	"os"

	"github.com/m-mizutani/goerr/v2"
)

// TemplateKey names a notification template file
type TemplateKey string

const (
	TemplateNotifyExpiration  TemplateKey = "notify_expiration"
	TemplateNotifyNewAccount  TemplateKey = "notify_new_account"
	TemplateNotifyPasswdReset TemplateKey = "notify_passwd_reset"
	TemplateRemindPasswdReset TemplateKey = "remind_passwd_reset"
	TemplateReportADUpdates   TemplateKey = "report_ad_updates"
	TemplateReportExpirations TemplateKey = "report_expirations"
	TemplateReportTerminated  TemplateKey = "report_terminated"
	TemplateCompanyLogo       TemplateKey = "company_logo"
)

// TemplateKeys returns every key a template set must provide
func TemplateKeys() []TemplateKey {
	return []TemplateKey{
		TemplateNotifyExpiration,
		TemplateNotifyNewAccount,
		TemplateNotifyPasswdReset,
		TemplateRemindPasswdReset,
		TemplateReportADUpdates,
		TemplateReportExpirations,
		TemplateReportTerminated,
		TemplateCompanyLogo,
	}
}

// String returns the string representation of TemplateKey
func (k TemplateKey) String() string {
	return string(k)
}

// templateData is the value every HTML template is executed with
type templateData struct {
	Logo template.URL

	UserID         string
	Name           string
	Alias          string
	Password       string
	DaysLeft       int
	ExpirationDate string

	Date           string
	Users          []string
	IntroText      string
	AdditionalText string
	AdditionalList []string
	NotDeleted     []string
}

// MissingTemplates returns the keys whose file is not configured or does not
// exist
func MissingTemplates(files map[TemplateKey]string) []TemplateKey {
	var missing []TemplateKey
	for _, key := range TemplateKeys() {
		path, ok := files[key]
		if !ok || path == "" {
			missing = append(missing, key)
			continue
		}
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			missing = append(missing, key)
		}
	}
	return missing
}

func parseTemplates(files map[TemplateKey]string) (map[TemplateKey]*template.Template, error) {
	if missing := MissingTemplates(files); len(missing) > 0 {
		return nil, goerr.Wrap(ErrTemplateMissing, "notification templates are missing", goerr.V("templates", missing))
	}

	parsed := make(map[TemplateKey]*template.Template)
	for _, key := range TemplateKeys() {
		if key == TemplateCompanyLogo {
			continue
		}
		tmpl, err := template.ParseFiles(files[key])
		if err != nil {
			return nil, goerr.Wrap(err, "failed to parse notification template",
				goerr.V("template", key), goerr.V("path", files[key]))
		}
		parsed[key] = tmpl
	}
	return parsed, nil
}
