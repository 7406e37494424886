package htmlclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/untis"
)

func TestOperationsReportNotImplemented(t *testing.T) {
	c := NewClient("example.com", "demo")
	ctx := context.Background()

	if err := c.Authenticate(ctx, "jane", "pw"); !errors.Is(err, untis.ErrNotImplemented) {
		t.Errorf("authenticate: %v", err)
	}
	if _, err := c.Timetable(ctx, untis.ElementStudent, 1, time.Now(), time.Now()); !errors.Is(err, untis.ErrNotImplemented) {
		t.Errorf("timetable: %v", err)
	}
	if _, err := c.Absences(ctx, time.Now(), time.Now()); !errors.Is(err, untis.ErrNotImplemented) {
		t.Errorf("absences: %v", err)
	}
}

func TestSniffVersionFromMeta(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `<html><head><meta name="generator" content="WebUntis 2023.4.2"></head><body></body></html>`)
	}))
	t.Cleanup(srv.Close)
	c := NewClient("example.com", "demo")
	c.HTTP = srv.Client()
	c.Pages = []string{srv.URL + "/WebUntis/?school=demo"}

	version, err := c.SniffVersion(context.Background())
	if err != nil {
		t.Fatalf("sniff: %v", err)
	}
	if version != "2023.4.2" {
		t.Errorf("version = %q", version)
	}
}

func TestSniffVersionFromFooter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `<html><body><div id="footer">WebUntis 2019.11 / Untis GmbH</div></body></html>`)
	}))
	t.Cleanup(srv.Close)
	c := NewClient("example.com", "demo")
	c.HTTP = srv.Client()
	c.Pages = []string{srv.URL + "/WebUntis/?school=demo"}

	version, err := c.SniffVersion(context.Background())
	if err != nil {
		t.Fatalf("sniff: %v", err)
	}
	if version != "2019.11" {
		t.Errorf("version = %q", version)
	}
}

func TestSniffVersionSilentPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `<html><body>login</body></html>`)
	}))
	t.Cleanup(srv.Close)
	c := NewClient("example.com", "demo")
	c.HTTP = srv.Client()
	c.Pages = []string{srv.URL + "/WebUntis/?school=demo"}

	version, err := c.SniffVersion(context.Background())
	if err != nil {
		t.Fatalf("a page without a version is not an error: %v", err)
	}
	if version != "" {
		t.Errorf("version = %q", version)
	}
}
