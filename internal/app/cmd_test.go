package app

import (
	"bytes"
	"io"
	"testing"
)

// fakeRunner は呼び出されたサブコマンドと引数を記録する。
type fakeRunner struct {
	called string
	down   int
	port   string
}

func (f *fakeRunner) runner() commandRunner {
	return commandRunner{
		serve: func(w io.Writer) error {
			f.called = "serve"
			return nil
		},
		migrate: func(w io.Writer, down int) error {
			f.called = "migrate"
			f.down = down
			return nil
		},
		healthcheck: func(port string) error {
			f.called = "healthcheck"
			f.port = port
			return nil
		},
	}
}

func execute(t *testing.T, args ...string) (*fakeRunner, error) {
	t.Helper()
	f := &fakeRunner{}
	root := newRootCommand(&bytes.Buffer{}, f.runner())
	root.SetArgs(args)
	return f, root.Execute()
}

// TestRootCommand_DefaultsToServe はサブコマンド省略時にserveが実行されることを検証する。
func TestRootCommand_DefaultsToServe(t *testing.T) {
	f, err := execute(t)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.called != "serve" {
		t.Errorf("called = %q, want serve", f.called)
	}
}

// TestRootCommand_Dispatch は各サブコマンドが対応する処理に振り分けられることを検証する。
func TestRootCommand_Dispatch(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"serve"}, "serve"},
		{[]string{"migrate"}, "migrate"},
		{[]string{"healthcheck"}, "healthcheck"},
	}

	for _, tt := range tests {
		f, err := execute(t, tt.args...)
		if err != nil {
			t.Fatalf("%v: unexpected error: %v", tt.args, err)
		}
		if f.called != tt.want {
			t.Errorf("%v: called = %q, want %q", tt.args, f.called, tt.want)
		}
	}
}

// TestRootCommand_MigrateDown は--downフラグの値が渡されることを検証する。
func TestRootCommand_MigrateDown(t *testing.T) {
	f, err := execute(t, "migrate", "--down", "2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.down != 2 {
		t.Errorf("down = %d, want 2", f.down)
	}
}

// TestRootCommand_HealthcheckPort はポートのデフォルト値とフラグ指定を検証する。
func TestRootCommand_HealthcheckPort(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")

	f, err := execute(t, "healthcheck")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.port != "9090" {
		t.Errorf("port = %q, want 9090", f.port)
	}

	f, err = execute(t, "healthcheck", "--port", "7000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.port != "7000" {
		t.Errorf("port = %q, want 7000", f.port)
	}
}

// TestRootCommand_UnknownCommand は未知のサブコマンドでエラーになることを検証する。
func TestRootCommand_UnknownCommand(t *testing.T) {
	f, err := execute(t, "worker")
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
	if f.called != "" {
		t.Errorf("nothing should run, got %q", f.called)
	}
}

func TestCommandString(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{CommandServe, "serve"},
		{CommandMigrate, "migrate"},
		{CommandHealthcheck, "healthcheck"},
	}

	for _, tt := range tests {
		if got := string(tt.cmd); got != tt.want {
			t.Errorf("Command(%q) string = %q, want %q", tt.cmd, got, tt.want)
		}
	}
}
