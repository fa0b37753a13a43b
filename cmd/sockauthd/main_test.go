package main

import (
	"bytes"
	"strings"
	"testing"
)

// execute runs the root command with the given arguments and returns its
// combined output and error without exiting the process.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestQuestionMarkPrintsUsage(t *testing.T) {
	usageAlias = false
	out, err := execute(t, "-?")
	if err != nil {
		t.Fatalf("-? must succeed, got %v", err)
	}
	if !strings.Contains(out, "Usage:") {
		t.Fatalf("usage text missing from -? output: %q", out)
	}
}

func TestHelpFlagPrintsUsage(t *testing.T) {
	usageAlias = false
	out, err := execute(t, "-h")
	if err != nil {
		t.Fatalf("-h must succeed, got %v", err)
	}
	if !strings.Contains(out, "Usage:") {
		t.Fatalf("usage text missing from -h output: %q", out)
	}
}
