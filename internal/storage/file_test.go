package storage

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/prasenjit/go-gateway/internal/models"
)

func TestFileStoragePersists(t *testing.T) {
	dir := t.TempDir()

	fs, err := NewFileStorage(dir)
	if err != nil {
		t.Fatalf("NewFileStorage failed: %v", err)
	}

	spec := &models.Specification{ID: "spec-1", Name: "petstore", Version: 1, Content: "openapi: 3.0.3"}
	if err := fs.CreateSpec(spec); err != nil {
		t.Fatalf("CreateSpec failed: %v", err)
	}
	cfg := &models.AuthConfig{ID: "auth-1", SpecID: "spec-1", AuthType: models.AuthBearer, Config: map[string]string{"token": "{{env.TOKEN}}"}}
	if err := fs.CreateAuthConfig(cfg); err != nil {
		t.Fatalf("CreateAuthConfig failed: %v", err)
	}
	spec.Status = models.SpecStatusSuperseded
	if err := fs.UpdateSpec(spec); err != nil {
		t.Fatalf("UpdateSpec failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, specsDir, "spec-1.json")); err != nil {
		t.Errorf("Expected spec file on disk: %v", err)
	}

	// A stray file is ignored on load
	if err := os.WriteFile(filepath.Join(dir, specsDir, "broken.json"), []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewFileStorage(dir)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	got, err := reopened.GetSpec("spec-1")
	if err != nil {
		t.Fatalf("GetSpec after reopen failed: %v", err)
	}
	if got.Content != "openapi: 3.0.3" || got.Status != models.SpecStatusSuperseded {
		t.Errorf("Unexpected spec after reopen: %+v", got)
	}
	all, _ := reopened.GetAllSpecs()
	if len(all) != 1 {
		t.Errorf("Expected 1 spec, got %d", len(all))
	}
	gotCfg, err := reopened.GetAuthConfig("auth-1")
	if err != nil {
		t.Fatalf("GetAuthConfig after reopen failed: %v", err)
	}
	if gotCfg.Config["token"] != "{{env.TOKEN}}" {
		t.Errorf("Unexpected token template %q", gotCfg.Config["token"])
	}
}

func TestFileStorageDeletes(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStorage(dir)
	if err != nil {
		t.Fatalf("NewFileStorage failed: %v", err)
	}

	_ = fs.CreateSpec(&models.Specification{ID: "spec-1", Name: "petstore"})
	_ = fs.CreateAuthConfig(&models.AuthConfig{ID: "a", SpecID: "spec-1"})
	_ = fs.CreateAuthConfig(&models.AuthConfig{ID: "b", SpecID: "spec-1"})

	if err := fs.DeleteAuthConfigsBySpec("spec-1"); err != nil {
		t.Fatalf("DeleteAuthConfigsBySpec failed: %v", err)
	}
	if err := fs.DeleteSpec("spec-1"); err != nil {
		t.Fatalf("DeleteSpec failed: %v", err)
	}

	for _, p := range []string{
		filepath.Join(dir, specsDir, "spec-1.json"),
		filepath.Join(dir, authDir, "a.json"),
		filepath.Join(dir, authDir, "b.json"),
	} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("Expected %s to be removed", p)
		}
	}

	reopened, _ := NewFileStorage(dir)
	if cfgs, _ := reopened.GetAllAuthConfigs(); len(cfgs) != 0 {
		t.Errorf("Expected no auth configs, got %d", len(cfgs))
	}
}

func TestFileStorageAuthFilesOwnerOnly(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not enforced on windows")
	}
	dir := t.TempDir()
	fs, err := NewFileStorage(dir)
	if err != nil {
		t.Fatalf("NewFileStorage failed: %v", err)
	}

	// A file left behind with a looser mode is tightened on the next write
	authPath := filepath.Join(dir, authDir, "auth-1.json")
	if err := os.WriteFile(authPath, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := &models.AuthConfig{ID: "auth-1", SpecID: "spec-1", AuthType: models.AuthBearer, Config: map[string]string{"token": "secret"}}
	if err := fs.CreateAuthConfig(cfg); err != nil {
		t.Fatalf("CreateAuthConfig failed: %v", err)
	}
	if err := fs.CreateSpec(&models.Specification{ID: "spec-1", Name: "petstore"}); err != nil {
		t.Fatalf("CreateSpec failed: %v", err)
	}

	info, err := os.Stat(authPath)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("Expected auth config mode 0600, got %o", perm)
	}

	info, err = os.Stat(filepath.Join(dir, authDir))
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		t.Errorf("Expected auth directory closed to others, got %o", perm)
	}

	info, err = os.Stat(filepath.Join(dir, specsDir, "spec-1.json"))
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0644 {
		t.Errorf("Expected spec mode 0644, got %o", perm)
	}
}

func TestNew(t *testing.T) {
	if s, err := New("memory", ""); err != nil || s == nil {
		t.Errorf("Expected memory storage, got %v, %v", s, err)
	}
	if s, err := New("file", t.TempDir()); err != nil || s == nil {
		t.Errorf("Expected file storage, got %v, %v", s, err)
	}
	if _, err := New("redis", ""); err == nil {
		t.Error("Expected error for unknown storage type")
	}
}
