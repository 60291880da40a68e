package dts

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPTransport_SendBatch(t *testing.T) {
	c := NewCollector(slog.New(slog.NewTextHandler(io.Discard, nil)))
	mux := http.NewServeMux()
	c.SetupRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	entries := buildChain(t, "DEV-1", 3)

	for _, useProto := range []bool{false, true} {
		device := "DEV-1"
		if useProto {
			device = "DEV-2"
			entries = buildChain(t, device, 3)
		}
		tr := NewHTTPTransport(srv.URL)
		tr.UseProto = useProto

		accepted, err := tr.SendBatch(device, entries)
		if err != nil {
			t.Fatalf("proto=%v: %v", useProto, err)
		}
		if accepted != 3 {
			t.Errorf("proto=%v: accepted = %d", useProto, accepted)
		}
		if res := c.Verify(device, true); !res.Valid {
			t.Errorf("proto=%v: uploaded chain does not verify", useProto)
		}
	}
}

func TestHTTPTransport_CollectorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "archive unavailable", http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL)
	if _, err := tr.SendBatch("DEV-1", []string{"entry"}); err == nil {
		t.Error("collector error not surfaced")
	}
}

func TestLocalTransport(t *testing.T) {
	c := NewCollector(slog.New(slog.NewTextHandler(io.Discard, nil)))
	tr := NewLocalTransport(c)

	entries := buildChain(t, "DEV-1", 4)
	accepted, err := tr.SendBatch("DEV-1", entries)
	if err != nil {
		t.Fatal(err)
	}
	if accepted != 4 {
		t.Errorf("accepted = %d", accepted)
	}
	if res := c.Verify("DEV-1", true); !res.Valid {
		t.Error("delivered chain does not verify")
	}
}

func TestFolderTransport(t *testing.T) {
	tr, err := NewFolderTransport(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	entries := buildChain(t, "DEV-1", 5)

	// Two partial deliveries accumulate in order.
	if _, err := tr.SendBatch("DEV-1", entries[:2]); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.SendBatch("DEV-1", entries[2:]); err != nil {
		t.Fatal(err)
	}

	res, err := tr.VerifyDevice("DEV-1", true)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Valid || res.EntriesChecked != 5 {
		t.Errorf("drop folder chain: %+v", res)
	}
}
