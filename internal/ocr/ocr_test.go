package ocr

import (
	"context"
	"fmt"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/disintegration/imaging"
)

func TestParseCount(t *testing.T) {
	tests := []struct {
		text     string
		alive    int
		readable bool
	}{
		{"42", 42, true},
		{"7\n", 7, true},
		{"", 0, false},
		{"abc", 0, false},
		{"-3", 0, false},
		{"0", 0, false},
		{"  13  ", 13, true},
		{"4 2", 0, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.text), func(t *testing.T) {
			got := ParseCount(tt.text)
			if got.Readable != tt.readable || got.Alive != tt.alive {
				t.Errorf("ParseCount(%q) = %+v, want alive=%d readable=%v", tt.text, got, tt.alive, tt.readable)
			}
			if got.Text != tt.text {
				t.Errorf("raw text not kept: %q", got.Text)
			}
		})
	}
}

func writeCrop(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := imaging.Save(imaging.New(22, 22, color.NRGBA{200, 200, 200, 255}), path); err != nil {
		t.Fatalf("save crop: %v", err)
	}
	return path
}

func TestServiceReader(t *testing.T) {
	crop := writeCrop(t, t.TempDir(), "shroud.png")

	var answer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/process_pubg" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		f, hdr, err := r.FormFile("image")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		if hdr.Filename != "shroud.png" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if b, _ := io.ReadAll(f); len(b) == 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, answer)
	}))
	defer srv.Close()

	r := NewServiceReader(srv.URL+"/", time.Second)

	tests := []struct {
		name     string
		answer   string
		alive    int
		readable bool
	}{
		{"count", `{"number": 23}`, 23, true},
		{"float_count", `{"number": 23.0}`, 23, true},
		{"sentinel", `{"number": 100}`, 0, false},
		{"zero", `{"number": 0}`, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answer = tt.answer
			got, err := r.ReadCounter(context.Background(), crop)
			if err != nil {
				t.Fatalf("ReadCounter: %v", err)
			}
			if got.Readable != tt.readable || got.Alive != tt.alive {
				t.Errorf("got %+v, want alive=%d readable=%v", got, tt.alive, tt.readable)
			}
		})
	}

	t.Run("server_error", func(t *testing.T) {
		bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer bad.Close()

		if _, err := NewServiceReader(bad.URL, time.Second).ReadCounter(context.Background(), crop); err == nil {
			t.Error("expected error for 500 response")
		}
	})

	t.Run("missing_crop", func(t *testing.T) {
		if _, err := r.ReadCounter(context.Background(), filepath.Join(t.TempDir(), "none.png")); err == nil {
			t.Error("expected error for missing crop")
		}
	})
}

func TestTesseractReader_fakeBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "tesseract")
	script := "#!/bin/sh\n[ \"$2\" = stdout ] || exit 2\n[ \"$4\" = 8 ] || exit 3\necho 17\n"
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := NewTesseractReader(bin, time.Second).ReadCounter(context.Background(), writeCrop(t, dir, "a.png"))
	if err != nil {
		t.Fatalf("ReadCounter: %v", err)
	}
	if !got.Readable || got.Alive != 17 {
		t.Errorf("got %+v", got)
	}

	failing := filepath.Join(dir, "failing")
	if err := os.WriteFile(failing, []byte("#!/bin/sh\necho nope >&2\nexit 1\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := NewTesseractReader(failing, time.Second).ReadCounter(context.Background(), "x.png"); err == nil {
		t.Error("expected error from failing engine")
	}
}

type fixedReader struct {
	reading Reading
	calls   int
}

func (f *fixedReader) ReadCounter(ctx context.Context, cropPath string) (Reading, error) {
	f.calls++
	return f.reading, nil
}

func TestPreGameFilter(t *testing.T) {
	dir := t.TempDir()
	next := &fixedReader{reading: Reading{Alive: 9, Readable: true}}
	f := WithPreGameFilter(next)

	plain := writeCrop(t, dir, "plain.png")
	got, err := f.ReadCounter(context.Background(), plain)
	if err != nil || !got.Readable || got.Alive != 9 || next.calls != 1 {
		t.Errorf("plain crop should pass through: %+v err=%v calls=%d", got, err, next.calls)
	}

	img := imaging.New(22, 22, color.NRGBA{200, 200, 200, 255})
	img.Set(16, 9, color.NRGBA{30, 30, 30, 255})
	lobby := filepath.Join(dir, "lobby.png")
	if err := imaging.Save(img, lobby); err != nil {
		t.Fatal(err)
	}
	got, err = f.ReadCounter(context.Background(), lobby)
	if err != nil || got.Readable || next.calls != 1 {
		t.Errorf("lobby crop should be unreadable without calling the engine: %+v err=%v calls=%d", got, err, next.calls)
	}
}

func TestNewReader(t *testing.T) {
	if _, err := NewReader(Options{Backend: "carrier-pigeon"}); err == nil {
		t.Error("expected unknown backend error")
	}
	if _, err := NewReader(Options{Backend: BackendService}); err == nil {
		t.Error("service backend without URL should fail")
	}
	r, err := NewReader(Options{DetectPreGame: true})
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if _, ok := r.(*PreGameFilter); !ok {
		t.Errorf("expected PreGameFilter, got %T", r)
	}
	if !GosseractAvailable {
		if _, err := NewReader(Options{Backend: BackendGosseract}); err == nil {
			t.Error("gosseract backend should fail without build tag")
		}
	}
}
