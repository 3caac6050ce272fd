package stt

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWhisperTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("path = %q, want /audio/transcriptions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("model field = %q, want whisper-1", got)
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()
		if header.Filename != "turn.webm" {
			t.Errorf("filename = %q, want turn.webm", header.Filename)
		}
		if got := header.Header.Get("Content-Type"); got != "audio/webm" {
			t.Errorf("part content type = %q, want audio/webm", got)
		}
		data, _ := io.ReadAll(file)
		if string(data) != "fake-audio" {
			t.Errorf("file content = %q", data)
		}

		_, _ = w.Write([]byte(`{"text": "I had a rough day at work"}`))
	}))
	defer srv.Close()

	p := NewWhisper("sk-test", WithWhisperBaseURL(srv.URL))

	tr, err := p.Transcribe(context.Background(), strings.NewReader("fake-audio"), TranscribeOptions{
		Filename:  "turn.webm",
		MediaType: "audio/webm",
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "I had a rough day at work" {
		t.Errorf("Text = %q", tr.Text)
	}
}

func TestWhisperTranscribeDefaultFilename(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		_, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		if header.Filename != "audio.webm" {
			t.Errorf("filename = %q, want audio.webm default", header.Filename)
		}
		_, _ = w.Write([]byte(`{"text": "ok"}`))
	}))
	defer srv.Close()

	p := NewWhisper("sk-test", WithWhisperBaseURL(srv.URL))

	if _, err := p.Transcribe(context.Background(), strings.NewReader("x"), TranscribeOptions{}); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
}

func TestWhisperTranscribeUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "unsupported format"}}`))
	}))
	defer srv.Close()

	p := NewWhisper("sk-test", WithWhisperBaseURL(srv.URL))

	_, err := p.Transcribe(context.Background(), strings.NewReader("x"), TranscribeOptions{})
	if err == nil {
		t.Fatal("Transcribe should fail on 400")
	}
	if !strings.Contains(err.Error(), "whisper error 400") {
		t.Errorf("err = %v, want whisper error 400", err)
	}
	if !strings.Contains(err.Error(), "unsupported format") {
		t.Errorf("err = %v, want upstream detail", err)
	}
}
