package lua

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	lua "github.com/yuin/gopher-lua"
)

func TestState_DoFileAndCall(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mod.lua")
	src := `
function greet(name)
	return "hello " .. name
end
`
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewState()
	defer s.Close()

	if err := s.DoFile(path); err != nil {
		t.Fatalf("DoFile: %v", err)
	}

	ret, err := s.Call("greet", lua.LString("world"))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if ret.String() != "hello world" {
		t.Errorf("ret = %q, want hello world", ret.String())
	}
}

func TestState_HasFunction(t *testing.T) {
	s := NewState()
	defer s.Close()

	if err := s.DoString(`function handle() end; notafn = 42`); err != nil {
		t.Fatal(err)
	}

	if !s.HasFunction("handle") {
		t.Error("handle should be reported as a function")
	}
	if s.HasFunction("notafn") {
		t.Error("notafn should not be reported as a function")
	}
	if s.HasFunction("absent") {
		t.Error("absent should not be reported as a function")
	}
}

func TestState_CallErrors(t *testing.T) {
	s := NewState()
	defer s.Close()

	if err := s.DoString(`
notafn = 1
function boom()
	error("it broke")
end
`); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Call("absent"); !errors.Is(err, ErrFunctionNotFound) {
		t.Errorf("absent: err = %v, want ErrFunctionNotFound", err)
	}
	if _, err := s.Call("notafn"); !errors.Is(err, ErrNotAFunction) {
		t.Errorf("notafn: err = %v, want ErrNotAFunction", err)
	}
	if _, err := s.Call("boom"); err == nil {
		t.Error("boom: expected a lua error")
	}
}

func TestState_SyntaxError(t *testing.T) {
	s := NewState()
	defer s.Close()

	if err := s.DoString(`function handle(`); err == nil {
		t.Error("expected a syntax error")
	}
}

func TestState_Closed(t *testing.T) {
	s := NewState()
	s.Close()
	s.Close() // double close is safe

	if !s.IsClosed() {
		t.Error("state should report closed")
	}
	if err := s.DoString("x = 1"); !errors.Is(err, ErrStateClosed) {
		t.Errorf("DoString after close: %v, want ErrStateClosed", err)
	}
	if _, err := s.Call("handle"); !errors.Is(err, ErrStateClosed) {
		t.Errorf("Call after close: %v, want ErrStateClosed", err)
	}
}
