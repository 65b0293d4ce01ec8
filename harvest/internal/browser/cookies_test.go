package browser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-rod/rod/lib/proto"
)

func TestCookieJarMissingFile(t *testing.T) {
	jar := NewCookieJar(filepath.Join(t.TempDir(), "cookies", "fb.json"))
	params, res, err := jar.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res != CookiesMissing {
		t.Errorf("res = %v, want CookiesMissing", res)
	}
	if params != nil {
		t.Errorf("params = %v, want nil", params)
	}
}

func TestCookieJarRoundTrip(t *testing.T) {
	jar := NewCookieJar(filepath.Join(t.TempDir(), "cookies", "fb.json"))

	saved := []*proto.NetworkCookie{
		{Name: "c_user", Value: "1000123", Domain: ".facebook.com", Path: "/", Secure: true, HTTPOnly: false},
		{Name: "xs", Value: "abc:def", Domain: ".facebook.com", Path: "/", Secure: true, HTTPOnly: true},
	}
	if err := jar.Save(saved); err != nil {
		t.Fatalf("Save: %v", err)
	}

	params, res, err := jar.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res != CookiesLoaded {
		t.Fatalf("res = %v, want CookiesLoaded", res)
	}
	if len(params) != 2 {
		t.Fatalf("got %d cookies, want 2", len(params))
	}
	if params[0].Name != "c_user" || params[0].Value != "1000123" || params[0].Domain != ".facebook.com" {
		t.Errorf("first cookie mismatch: %+v", params[0])
	}
	if !params[1].HTTPOnly {
		t.Errorf("httpOnly not preserved")
	}
}

func TestCookieJarSaveOverwrites(t *testing.T) {
	jar := NewCookieJar(filepath.Join(t.TempDir(), "fb.json"))
	if err := jar.Save([]*proto.NetworkCookie{{Name: "old", Domain: "a"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := jar.Save([]*proto.NetworkCookie{{Name: "new", Domain: "b"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	params, _, err := jar.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(params) != 1 || params[0].Name != "new" {
		t.Errorf("jar not overwritten: %+v", params)
	}
	if _, err := os.Stat(jar.Path() + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("tmp file left behind")
	}
}

func TestCookieJarCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fb.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	jar := NewCookieJar(path)
	if _, _, err := jar.Load(); err == nil {
		t.Errorf("corrupt jar loaded without error")
	}
}
