package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lewtec/demarcador/internal/export"
)

// executeCommand is a helper to run a cobra command and capture its output
func executeCommand(args ...string) (string, string, error) {
	configFile = "config.yaml"
	verbose = false
	jobs = 1
	initCmd.Flags().Set("force", "false")

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := rootCmd.ExecuteContext(ctx)
	return out.String(), errOut.String(), err
}

func writePNG(t *testing.T, filename string, shade uint8) {
	t.Helper()
	m := image.NewRGBA(image.Rect(0, 0, 16, 16))
	m.Set(1, 1, color.RGBA{R: shade, A: 255})
	f, err := os.Create(filename)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, m); err != nil {
		t.Fatal(err)
	}
}

func TestInitCmd(t *testing.T) {
	dir := t.TempDir()
	config := filepath.Join(dir, "config.yaml")

	t.Run("creates config and images folder", func(t *testing.T) {
		out, _, err := executeCommand("init", dir)
		if err != nil {
			t.Fatalf("init failed: %v", err)
		}
		if _, err := os.Stat(config); err != nil {
			t.Errorf("expected config at %s: %v", config, err)
		}
		if stat, err := os.Stat(filepath.Join(dir, "images")); err != nil || !stat.IsDir() {
			t.Errorf("expected images folder to be created")
		}
		if !strings.Contains(out, "Next steps") {
			t.Errorf("expected next steps in output, got: %s", out)
		}
	})

	t.Run("refuses to overwrite", func(t *testing.T) {
		os.WriteFile(config, []byte("meta: {}\n"), 0o644)
		_, _, err := executeCommand("init", dir)
		if err == nil || !strings.Contains(err.Error(), "already exists") {
			t.Fatalf("expected already exists error, got %v", err)
		}
		data, _ := os.ReadFile(config)
		if string(data) != "meta: {}\n" {
			t.Errorf("config was overwritten")
		}
	})

	t.Run("overwrites with force", func(t *testing.T) {
		if _, _, err := executeCommand("init", "--force", dir); err != nil {
			t.Fatalf("init --force failed: %v", err)
		}
		data, _ := os.ReadFile(config)
		if !strings.Contains(string(data), "classes:") {
			t.Errorf("expected sample config, got: %s", data)
		}
	})
}

func TestProjectCommands(t *testing.T) {
	dir := t.TempDir()
	config := filepath.Join(dir, "config.yaml")
	if _, _, err := executeCommand("init", dir); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	source := filepath.Join(dir, "incoming")
	os.MkdirAll(source, 0o755)
	writePNG(t, filepath.Join(source, "a.png"), 10)
	writePNG(t, filepath.Join(source, "b.png"), 20)
	writePNG(t, filepath.Join(source, "b-copy.png"), 20)
	os.WriteFile(filepath.Join(source, "notes.txt"), []byte("hello"), 0o644)

	t.Run("ingest", func(t *testing.T) {
		out, errOut, err := executeCommand("ingest", "-c", config, "-j", "2", source)
		if err != nil {
			t.Fatalf("ingest failed: %v, output: %s", err, errOut)
		}
		if !strings.Contains(out, "2 image(s) ingested") {
			t.Errorf("expected two new images, got: %s", out)
		}
		if !strings.Contains(errOut, "notes.txt") {
			t.Errorf("expected notes.txt to be reported, got: %s", errOut)
		}
		entries, _ := os.ReadDir(filepath.Join(dir, "images"))
		if len(entries) != 2 {
			t.Errorf("images folder has %d files, want 2", len(entries))
		}
	})

	t.Run("ingest rejects files", func(t *testing.T) {
		_, _, err := executeCommand("ingest", "-c", config, filepath.Join(source, "a.png"))
		if err == nil {
			t.Errorf("expected an error for a file argument")
		}
	})

	doc := `{"image": {"id": null, "name": "remote.png", "url": "https://example.com/remote.png", "ref_id": "remote-1"},
	  "annotations": [{"id": "r1", "type": "circle", "color": "#000000", "label": "SCR-001",
	    "class": {"id": "1", "name": "Scratch"}, "center": [10, 10], "radius": 6}]}`

	t.Run("import", func(t *testing.T) {
		input := filepath.Join(dir, "in.json")
		os.WriteFile(input, []byte(doc), 0o644)
		out, errOut, err := executeCommand("import", "-c", config, input)
		if err != nil {
			t.Fatalf("import failed: %v, output: %s", err, errOut)
		}
		if !strings.Contains(out, "1 image(s) imported") {
			t.Errorf("unexpected output: %s", out)
		}
	})

	t.Run("import rejects malformed documents", func(t *testing.T) {
		input := filepath.Join(dir, "bad.json")
		os.WriteFile(input, []byte(`[{"id": "x", "type": "hexagon"}]`), 0o644)
		if _, _, err := executeCommand("import", "-c", config, input); err == nil {
			t.Errorf("expected malformed import to fail")
		}
	})

	t.Run("export", func(t *testing.T) {
		out, errOut, err := executeCommand("export", "-c", config)
		if err != nil {
			t.Fatalf("export failed: %v, output: %s", err, errOut)
		}
		var docs []export.Document
		if err := json.Unmarshal([]byte(out), &docs); err != nil {
			t.Fatalf("export is not valid JSON: %v\n%s", err, out)
		}
		if len(docs) != 3 {
			t.Fatalf("exported %d documents, want 3", len(docs))
		}
		last := docs[2]
		if last.Image.RefID != "remote-1" || len(last.Annotations) != 1 {
			t.Errorf("unexpected imported document: %+v", last)
		}
	})

	t.Run("classes", func(t *testing.T) {
		out, _, err := executeCommand("classes", "-c", config)
		if err != nil {
			t.Fatalf("classes failed: %v", err)
		}
		for _, want := range []string{"Scratch", "SCR", "Dent", "DEN"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output, got: %s", want, out)
			}
		}
	})
}
