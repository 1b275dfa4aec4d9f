package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/MehdiBC3/Projet-ETL-Pipelines/geodair"
)

const testDate = "2024-01-15"

// newTestServer serves exports of every pollutant code but the failing ones.
func newTestServer(t *testing.T, failing ...string) *httptest.Server {
	t.Helper()

	fail := map[string]bool{}
	for _, c := range failing {
		fail[c] = true
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/MoyH/export", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		q := r.URL.Query()
		if q.Get("date") != testDate {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		code := q.Get("polluant")
		if fail[code] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		fmt.Fprintf(w, " \"export-%s\"\n", code)
	})
	mux.HandleFunc("/download", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		if !strings.HasPrefix(id, "export-") {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		fmt.Fprintf(w, "Date de début;Polluant;valeur\n2024/01/15 00:00:00;%s;1\n", strings.TrimPrefix(id, "export-"))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func newTestExtractor(t *testing.T, srv *httptest.Server, s geodair.Storage) *Extractor {
	t.Helper()

	e, err := New(NewClient(srv.URL+"/", "secret"), s,
		WithWaits(0, 0),
		WithMetrics(geodair.NewMetrics(prometheus.NewRegistry())),
	)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	return e
}

func newTestStorage(t *testing.T) *geodair.DirStorage {
	t.Helper()

	s, err := geodair.NewDirStorage(t.TempDir())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	return s
}

func TestClient_RequestExport(t *testing.T) {
	t.Parallel()

	c := NewClient(newTestServer(t).URL, "secret")

	id, err := c.RequestExport(context.Background(), testDate, "03")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if id != "export-03" {
		t.Errorf(`id should be "export-03", but %q`, id)
	}
}

func TestClient_RequestExport_unauthorized(t *testing.T) {
	t.Parallel()

	c := NewClient(newTestServer(t).URL, "wrong")

	if _, err := c.RequestExport(context.Background(), testDate, "03"); err == nil {
		t.Errorf("request with a wrong api key should fail")
	}
}

func TestClient_Download_notFound(t *testing.T) {
	t.Parallel()

	c := NewClient(newTestServer(t).URL, "secret")

	_, err := c.Download(context.Background(), "unknown")
	if err == nil {
		t.Fatalf("downloading an unknown export should fail")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error should contain the status, but %v", err)
	}
}

func TestExtractor_Run(t *testing.T) {
	t.Parallel()

	s := newTestStorage(t)
	e := newTestExtractor(t, newTestServer(t), s)

	rep := e.Run(context.Background(), testDate)

	if rep.Status != geodair.StatusOK {
		t.Fatalf("status should be ok, but %s: %s", rep.Status, rep.Message)
	}
	if rep.Message != "extraction finished: 6/6 pollutants extracted" {
		t.Errorf("unexpected message: %q", rep.Message)
	}

	objs, err := s.List(context.Background(), geodair.RawPrefix(testDate))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(objs) != 6 {
		t.Fatalf("raw files should be 6, but %d", len(objs))
	}

	r, err := s.NewReader(context.Background(), geodair.RawObjectName(testDate, "24"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer r.Close()

	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if want := "Date de début;Polluant;valeur\n2024/01/15 00:00:00;24;1\n"; string(b) != want {
		t.Errorf("raw file should be %q, but %q", want, string(b))
	}
}

func TestExtractor_Run_partial(t *testing.T) {
	t.Parallel()

	s := newTestStorage(t)
	e := newTestExtractor(t, newTestServer(t, "04", "39"), s)

	rep := e.Run(context.Background(), testDate)

	if rep.Status != geodair.StatusPartial {
		t.Fatalf("status should be partial, but %s", rep.Status)
	}
	if rep.Message != "extraction finished: 4/6 pollutants extracted, failed: PM2.5, CO" {
		t.Errorf("unexpected message: %q", rep.Message)
	}
	if rep.HTTPStatus() != 206 {
		t.Errorf("HTTP status should be 206, but %d", rep.HTTPStatus())
	}

	if v := testutil.ToFloat64(e.metrics.PollutantsExtractedTotal.WithLabelValues("CO", "failed")); v != 1 {
		t.Errorf("failed CO extractions should be 1, but %v", v)
	}
}

func TestExtractor_Run_failed(t *testing.T) {
	t.Parallel()

	s := newTestStorage(t)
	e := newTestExtractor(t, newTestServer(t, "01", "03", "04", "08", "24", "39"), s)

	rep := e.Run(context.Background(), testDate)

	if rep.Status != geodair.StatusFailed {
		t.Errorf("status should be failed, but %s", rep.Status)
	}
	if len(rep.Failures) != 6 {
		t.Errorf("failures should be 6, but %d", len(rep.Failures))
	}
}

func TestExtractor_Run_canceled(t *testing.T) {
	t.Parallel()

	s := newTestStorage(t)

	e, err := New(NewClient(newTestServer(t).URL, "secret"), s, WithWaits(0, 0))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if rep := e.Run(ctx, testDate); rep.Status != geodair.StatusFailed {
		t.Errorf("status should be failed, but %s", rep.Status)
	}
}
