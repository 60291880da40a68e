package dts

import (
	"bufio"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
)

// Collector receives exported entries from devices and verifies their
// chains offline. Received entries are held in arrival order per
// device; registered stores archive them durably.
//
// The collector trusts nothing it receives — verification always
// replays digest linkage over the accumulated sequence.
type Collector struct {
	mu      sync.RWMutex
	devices map[string][]string
	stores  map[string]Store
	logger  *slog.Logger

	tlsConfig *tls.Config
}

// NewCollector creates an empty collector. A nil logger selects
// slog.Default.
func NewCollector(logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		devices: make(map[string][]string),
		stores:  make(map[string]Store),
		logger:  logger,
	}
}

// RegisterStore attaches a durable archive for one device. Entries
// already held in memory for the device are not backfilled; register
// stores before ingesting.
func (c *Collector) RegisterStore(deviceID string, st Store) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stores[deviceID] = st
}

// Ingest appends a batch of serialized entries for a device, in order.
// Returns the number of entries accepted. Archive failures reject the
// remainder of the batch so memory and archive cannot diverge.
func (c *Collector) Ingest(deviceID string, entries []string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.stores[deviceID]
	accepted := 0
	for _, e := range entries {
		if st != nil {
			seq := uint64(len(c.devices[deviceID])) + 1
			if err := st.Append(seq, e); err != nil {
				c.logger.Error("archive append failed",
					"device", deviceID, "seq", seq, "error", err)
				return accepted, fmt.Errorf("archive entry %d: %w", seq, err)
			}
		}
		c.devices[deviceID] = append(c.devices[deviceID], e)
		accepted++
	}
	c.logger.Info("batch ingested", "device", deviceID, "entries", accepted,
		"total", len(c.devices[deviceID]))
	return accepted, nil
}

// Entries returns a copy of the accumulated entry sequence for a device.
func (c *Collector) Entries(deviceID string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.devices[deviceID]...)
}

// Verify replays the device's accumulated chain.
func (c *Collector) Verify(deviceID string, strict bool) VerifyResult {
	entries := c.Entries(deviceID)
	res := InspectChain(entries, strict)
	if !res.Valid {
		c.logger.Warn("chain verification failed",
			"device", deviceID, "broken_at", res.BrokenAt)
	}
	return res
}

// handleIngest handles POST /api/v1/devices/{id}/entries. The body is
// either JSONL (one serialized entry per line) or a protobuf wire
// batch, selected by Content-Type.
func (c *Collector) handleIngest(w http.ResponseWriter, r *http.Request) {
	deviceID := r.PathValue("id")
	if deviceID == "" {
		http.Error(w, "missing device id", http.StatusBadRequest)
		return
	}

	entries, err := decodeBatch(r, deviceID)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid batch: %v", err), http.StatusBadRequest)
		return
	}

	accepted, err := c.Ingest(deviceID, entries)
	if err != nil {
		http.Error(w, fmt.Sprintf("ingest failed: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"accepted":  accepted,
		"device_id": deviceID,
	})
}

// decodeBatch reads the request body in either wire format. For
// protobuf batches the embedded device id must match the URL path.
func decodeBatch(r *http.Request, deviceID string) ([]string, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), contentTypeProto) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		batchDevice, entries, err := UnmarshalBatch(body)
		if err != nil {
			return nil, err
		}
		if batchDevice != deviceID {
			return nil, fmt.Errorf("batch device %q does not match path device %q",
				batchDevice, deviceID)
		}
		return entries, nil
	}

	var entries []string
	scanner := bufio.NewScanner(r.Body)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			entries = append(entries, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return entries, nil
}

// handleVerify handles GET /api/v1/devices/{id}/verify. The optional
// strict=1 query parameter enables payload recomputation.
func (c *Collector) handleVerify(w http.ResponseWriter, r *http.Request) {
	deviceID := r.PathValue("id")
	if deviceID == "" {
		http.Error(w, "missing device id", http.StatusBadRequest)
		return
	}

	strict := r.URL.Query().Get("strict") == "1"
	res := c.Verify(deviceID, strict)

	w.Header().Set("Content-Type", "application/json")
	if !res.Valid {
		w.WriteHeader(http.StatusConflict)
	}
	_ = json.NewEncoder(w).Encode(res)
}

// SetupRoutes configures the collector's HTTP routes on mux.
func (c *Collector) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/devices/{id}/entries", c.handleIngest)
	mux.HandleFunc("GET /api/v1/devices/{id}/verify", c.handleVerify)
}

// SetTLSConfig clones cfg and stores it for ListenAndServeTLS. A nil
// cfg selects the defaults.
func (c *Collector) SetTLSConfig(cfg *tls.Config) {
	if cfg == nil {
		c.tlsConfig = nil
		return
	}
	c.tlsConfig = cfg.Clone()
}

func (c *Collector) tlsConfigWithDefaults() *tls.Config {
	if c.tlsConfig == nil {
		return &tls.Config{MinVersion: tls.VersionTLS12}
	}
	cfg := c.tlsConfig.Clone()
	if cfg.MinVersion == 0 {
		cfg.MinVersion = tls.VersionTLS12
	}
	return cfg
}

// ListenAndServe starts the collector over plain HTTP.
func (c *Collector) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	c.SetupRoutes(mux)
	return (&http.Server{Addr: addr, Handler: mux}).ListenAndServe()
}

// ListenAndServeTLS starts the collector over HTTPS.
func (c *Collector) ListenAndServeTLS(addr, certFile, keyFile string) error {
	mux := http.NewServeMux()
	c.SetupRoutes(mux)
	server := &http.Server{
		Addr:      addr,
		Handler:   mux,
		TLSConfig: c.tlsConfigWithDefaults(),
	}
	return server.ListenAndServeTLS(certFile, keyFile)
}
