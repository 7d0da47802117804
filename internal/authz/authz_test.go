package authz

import (
	"strings"
	"testing"
)

func TestPolicyXMLContainsBothActions(t *testing.T) {
	xml := PolicyXML()
	if !strings.Contains(xml, ActionInstallSystem) {
		t.Errorf("policy XML missing install action id")
	}
	if !strings.Contains(xml, ActionUninstallSystem) {
		t.Errorf("policy XML missing uninstall action id")
	}
}
