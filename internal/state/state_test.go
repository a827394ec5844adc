package state

import (
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
)

func TestLoadMissingYieldsFresh(t *testing.T) {
	st, err := Load(filepath.Join(t.TempDir(), ".docsync"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(st.Files) != 0 || st.Version != CurrentStateVersion {
		t.Fatalf("expected fresh state, got %+v", st)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".docsync")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}

	st := NewState()
	st.SetFileData("a.py", "python", "filefp-a", map[string]string{
		"__module__": "fp-mod",
		"f":          "fp-f",
	})
	st.RootFingerprint = "rootfp"
	if err := st.Save(dir); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.RootFingerprint != "rootfp" {
		t.Fatalf("root fingerprint lost: %q", loaded.RootFingerprint)
	}
	fs, ok := loaded.Files["a.py"]
	if !ok || fs.Fingerprint != "filefp-a" || fs.Language != "python" {
		t.Fatalf("file state lost: %+v", fs)
	}
	if fp, ok := loaded.NodeFingerprint("a.py", "f"); !ok || fp != "fp-f" {
		t.Fatalf("node fingerprint lost: %q %v", fp, ok)
	}
	if _, ok := loaded.NodeFingerprint("a.py", "missing"); ok {
		t.Fatal("unknown node reported a fingerprint")
	}
	if _, ok := loaded.NodeFingerprint("missing.py", "f"); ok {
		t.Fatal("unknown file reported a fingerprint")
	}
}

func TestChangedAndDeletedFiles(t *testing.T) {
	st := NewState()
	st.SetFileData("same.py", "python", "fp-same", nil)
	st.SetFileData("edited.py", "python", "fp-old", nil)
	st.SetFileData("gone.py", "python", "fp-gone", nil)

	changed := st.ChangedFiles(map[string]string{
		"same.py":   "fp-same",
		"edited.py": "fp-new",
		"added.py":  "fp-added",
	})
	sort.Strings(changed)
	if !reflect.DeepEqual(changed, []string{"added.py", "edited.py"}) {
		t.Fatalf("unexpected changed set %v", changed)
	}

	deleted := st.DeletedFiles(map[string]bool{"same.py": true, "edited.py": true})
	if !reflect.DeepEqual(deleted, []string{"gone.py"}) {
		t.Fatalf("unexpected deleted set %v", deleted)
	}

	st.RemoveFile("gone.py")
	if _, ok := st.Files["gone.py"]; ok {
		t.Fatal("removed file still tracked")
	}
}

func TestHasChanged(t *testing.T) {
	st := NewState()
	st.SetFileData("a.py", "python", "fp1", nil)

	if st.HasChanged("a.py", "fp1") {
		t.Fatal("unchanged file reported changed")
	}
	if !st.HasChanged("a.py", "fp2") {
		t.Fatal("edited file reported unchanged")
	}
	if !st.HasChanged("new.py", "fp3") {
		t.Fatal("new file reported unchanged")
	}
}
