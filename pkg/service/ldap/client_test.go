package ldap_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/ipasync/pkg/service/ldap"
)

func TestNew(t *testing.T) {
	t.Run("requires URL", func(t *testing.T) {
		_, err := ldap.New("", "cn=svc,dc=corp,dc=example", "secret")
		gt.Value(t, err).NotNil()
	})

	t.Run("requires bind DN", func(t *testing.T) {
		_, err := ldap.New("ldaps://ad.corp.example:636", "", "secret")
		gt.Value(t, err).NotNil()
	})

	t.Run("does not connect eagerly", func(t *testing.T) {
		c, err := ldap.New("ldaps://ad.invalid:636", "cn=svc,dc=corp,dc=example", "secret")
		gt.NoError(t, err).Required()
		gt.NoError(t, c.Close())
	})
}

func TestLeadingCN(t *testing.T) {
	tests := []struct {
		name    string
		dn      string
		want    string
		wantErr bool
	}{
		{"upper case attribute", "CN=Jane Doe,OU=Staff,DC=corp,DC=example", "Jane Doe", false},
		{"lower case attribute", "cn=John Roe,ou=Staff,dc=corp,dc=example", "John Roe", false},
		{"escaped comma", `CN=Doe\, Jane,OU=Staff,DC=corp,DC=example`, "Doe, Jane", false},
		{"not a cn", "OU=Staff,DC=corp,DC=example", "", true},
		{"malformed", "not a dn", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ldap.LeadingCN(tt.dn)
			if tt.wantErr {
				gt.Value(t, err).NotNil()
				return
			}
			gt.NoError(t, err).Required()
			gt.Value(t, got).Equal(tt.want)
		})
	}
}

func TestFilterEscape(t *testing.T) {
	gt.Value(t, ldap.FilterEscape("john.roe")).Equal("john.roe")
	gt.Value(t, ldap.FilterEscape("a*b(c)")).Equal(`a\2ab\28c\29`)
}
