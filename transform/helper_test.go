package transform

import (
	"context"
	"io"
	"testing"

	"golang.org/x/xerrors"

	"github.com/MehdiBC3/Projet-ETL-Pipelines/geodair"
)

const testDate = "2024-01-15"

func newTestStorage(t *testing.T) *geodair.DirStorage {
	t.Helper()

	s, err := geodair.NewDirStorage(t.TempDir())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	return s
}

func putObject(t *testing.T, s geodair.Storage, name, body string) {
	t.Helper()

	w, err := s.NewWriter(context.Background(), name, "text/csv")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

func readObject(t *testing.T, s geodair.Storage, name string) string {
	t.Helper()

	r, err := s.NewReader(context.Background(), name)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer r.Close()

	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	return string(b)
}

// brokenStorage fails to open the objects in broken.
type brokenStorage struct {
	geodair.Storage
	broken map[string]bool
}

func (s *brokenStorage) NewReader(ctx context.Context, name string) (io.ReadCloser, error) {
	if s.broken[name] {
		return nil, xerrors.New("broken object")
	}
	return s.Storage.NewReader(ctx, name)
}

type testNotifier struct {
	reports []*geodair.Report
}

func (n *testNotifier) Notify(_ context.Context, r *geodair.Report) error {
	n.reports = append(n.reports, r)
	return nil
}

const sampleCSV = "\ufeffDate de début;Date de fin;Organisme;code zas;Zas;code site;nom site;type d'implantation;Polluant;type d'influence;valeur;unité\n" +
	"2024/01/15 08:00:00;2024/01/15 09:00:00;AIRPARIF;FR04ZAG01;ZAG PARIS;FR04143;Paris 1er Les Halles;Urbaine;NO2;Fond;10;µg/m3\n" +
	"2024/01/15 08:00:00;2024/01/15 09:00:00;AIRPARIF;FR04ZAG01;ZAG PARIS;FR04143;Paris 1er Les Halles;Urbaine;NO2;Fond;20;µg/m3\n" +
	"2024/01/15 20:00:00;2024/01/15 21:00:00;ATMO AURA;FR20ZAR01;ZAR LYON;FR20062;Lyon Centre;Rurale régionale;NO2;Fond;30;µg/m3\n" +
	"invalid;invalid;AIRPARIF;FR04ZAG01;ZAG PARIS;FR04143;Paris 1er Les Halles;Urbaine;NO2;Fond;n/d;µg/m3\n"
