package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	cmd := NewServiceCommand(Options{Name: "shopify-saas"})

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
}

func TestConfigValidateCommand(t *testing.T) {
	cmd := NewServiceCommand(Options{Name: "shopify-saas"})
	cmd.SetArgs([]string{"config", "validate"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("config validate with defaults must pass: %v", err)
	}
}

func TestConfigValidateRejectsBadEnv(t *testing.T) {
	t.Setenv("SHOPSAAS_LOG_LEVEL", "verbose")

	cmd := NewServiceCommand(Options{Name: "shopify-saas"})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"config", "validate"})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected validation failure")
	}
	if !strings.Contains(err.Error(), "log.level") {
		t.Fatalf("error %q does not mention log.level", err)
	}
}
