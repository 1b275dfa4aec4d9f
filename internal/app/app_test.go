package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MehdiBC3/Projet-ETL-Pipelines/geodair"
)

func newTestApp(t *testing.T, cfg *geodair.Config) *App {
	t.Helper()

	a := New(cfg, prometheus.NewRegistry())
	a.now = func() time.Time { return time.Date(2024, 1, 16, 6, 0, 0, 0, time.UTC) }

	return a
}

func localConfig(t *testing.T) *geodair.Config {
	t.Helper()

	return &geodair.Config{
		LocalDir:         t.TempDir(),
		Concurrency:      2,
		WriteDisposition: "WRITE_APPEND",
	}
}

func TestApp_Run_defaultDate(t *testing.T) {
	t.Parallel()

	a := newTestApp(t, localConfig(t))

	rep := a.Run(context.Background(), geodair.StageTransform, "", false)
	if rep.Date != "2024-01-15" {
		t.Errorf(`date should default to "2024-01-15", but %q`, rep.Date)
	}
	if rep.Status != geodair.StatusOK {
		t.Errorf("status should be ok, but %s: %s", rep.Status, rep.Message)
	}
}

func TestApp_Run_transform(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := localConfig(t)
	a := newTestApp(t, cfg)

	s, closer, err := a.Storage(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer closer.Close()

	w, err := s.NewWriter(ctx, geodair.RawObjectName("2024-01-10", "03"), "text/csv")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	body := "Date de début;Date de fin;code site;nom site;type d'implantation;Polluant;valeur;unité\n" +
		"2024/01/10 08:00:00;2024/01/10 09:00:00;FR04143;Paris;Urbaine;NO2;42;µg-m3\n"
	if _, err := io.WriteString(w, body); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	rep := a.Run(ctx, geodair.StageTransform, "2024-01-10", false)
	if rep.Status != geodair.StatusOK {
		t.Fatalf("status should be ok, but %s: %s", rep.Status, rep.Message)
	}
	if len(rep.Tables) != 5 {
		t.Errorf("tables should be 5, but %d", len(rep.Tables))
	}

	objs, err := s.List(ctx, "transform/")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(objs) != 5 {
		t.Errorf("transformed files should be 5, but %d", len(objs))
	}
}

func TestApp_Run_transformEncoding(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := localConfig(t)
	cfg.SourceEncoding = "windows-1252"
	a := newTestApp(t, cfg)

	s, closer, err := a.Storage(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer closer.Close()

	w, err := s.NewWriter(ctx, geodair.RawObjectName("2024-01-10", "03"), "text/csv")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	body := "Date de d\xe9but;code site;nom site;Polluant;valeur\n" +
		"2024/01/10 08:00:00;FR04143;Champs-\xc9lys\xe9es;NO2;42\n"
	if _, err := io.WriteString(w, body); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	rep := a.Run(ctx, geodair.StageTransform, "2024-01-10", false)
	if rep.Status != geodair.StatusOK {
		t.Fatalf("status should be ok, but %s: %s", rep.Status, rep.Message)
	}

	r, err := s.NewReader(ctx, rep.Tables["DIM_SITE"])
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer r.Close()

	site, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(string(site), "Champs-Élysées") {
		t.Errorf("site name should be decoded from windows-1252, but %q", string(site))
	}
}

func TestApp_Run_invalid(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		cfg     *geodair.Config
		stage   geodair.Stage
		date    string
		message string
	}{
		{"invalid date", localConfig(t), geodair.StageTransform, "2024-02-30", "invalid date"},
		{"missing bucket", &geodair.Config{Concurrency: 1}, geodair.StageTransform, "", geodair.EnvBucket},
		{"missing api key", localConfig(t), geodair.StageExtract, "", geodair.EnvAPIKey},
		{"load without bucket", localConfig(t), geodair.StageLoad, "", geodair.EnvBucket},
		{"unknown stage", localConfig(t), geodair.Stage("publish"), "", "unknown stage"},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			rep := newTestApp(t, c.cfg).Run(context.Background(), c.stage, c.date, false)
			if rep.Status != geodair.StatusFailed {
				t.Fatalf("status should be failed, but %s", rep.Status)
			}
			if !strings.HasPrefix(rep.Message, "fatal: ") {
				t.Errorf("message should start with fatal, but %q", rep.Message)
			}
			if !strings.Contains(rep.Message, c.message) {
				t.Errorf("message should contain %q, but %q", c.message, rep.Message)
			}
		})
	}
}

func TestApp_Handler(t *testing.T) {
	t.Parallel()

	a := newTestApp(t, localConfig(t))

	cases := []struct {
		name   string
		stage  geodair.Stage
		query  string
		status int
		body   string
	}{
		{"nothing to transform", geodair.StageTransform, "?date=2024-01-10", http.StatusOK, "nothing to transform"},
		{"invalid date", geodair.StageTransform, "?date=yesterday", http.StatusInternalServerError, "fatal: "},
		{"invalid force", geodair.StageLoad, "?force=maybe", http.StatusBadRequest, "invalid force parameter"},
		{"missing config", geodair.StageLoad, "?force=true", http.StatusInternalServerError, geodair.EnvBucket},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPost, "/"+string(c.stage)+c.query, nil)
			rec := httptest.NewRecorder()

			a.Handler(c.stage)(rec, req)

			if rec.Code != c.status {
				t.Errorf("status should be %d, but %d", c.status, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), c.body) {
				t.Errorf("body should contain %q, but %q", c.body, rec.Body.String())
			}
		})
	}
}
