package director

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"github.com/suitedirector/suitedirector/types"
)

// maxRegisterBody bounds a /register-suites payload.
const maxRegisterBody = 1 << 20

// Publisher is the producing side of the event bus.
type Publisher interface {
	Publish(ctx context.Context, chunk *types.SuiteChunk) error
}

// Registrar partitions registration payloads and publishes the chunks.
type Registrar struct {
	bus        Publisher
	chunkSize  int
	maxDevices int
}

func NewRegistrar(bus Publisher, chunkSize, maxDevices int) *Registrar {
	if chunkSize < 1 {
		chunkSize = DefaultChunkSize
	}
	if maxDevices < 1 {
		maxDevices = DefaultMaxSuiteDevices
	}
	return &Registrar{bus: bus, chunkSize: chunkSize, maxDevices: maxDevices}
}

// Register returns the number of chunks published. Partitioning completes
// before anything is published, so an InvalidRequest publishes nothing.
func (r *Registrar) Register(ctx context.Context, body []byte) (int, error) {
	suites, err := RegisterSuites(body, r.chunkSize, r.maxDevices)
	if err != nil {
		return 0, err
	}
	SuitesRegistered.Inc()

	for i := range suites {
		chunk := suites[i]
		if err := r.bus.Publish(ctx, &chunk); err != nil {
			return i, errors.Wrapf(err, "publishing chunk %d of %d", i+1, len(suites))
		}
		ChunksPublished.Inc()
		DebugLogger(LogHolder{
			SuiteName: chunk.SuiteName,
			TenantID:  chunk.TenantID,
			Message:   "Published suite chunk",
			Metric:    fmt.Sprintf("%d/%d", i+1, len(suites)),
		})
	}

	InfoLogger(LogHolder{
		SuiteName: suiteName(suites),
		Message:   "Registered suites",
		Metric:    fmt.Sprint(len(suites)),
	})
	return len(suites), nil
}

func suiteName(suites []types.SuiteChunk) string {
	if len(suites) == 0 {
		return ""
	}
	return suites[0].SuiteName
}

// RegisterSuitesHandler serves POST /register-suites.
func (r *Registrar) RegisterSuitesHandler(w http.ResponseWriter, req *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxRegisterBody))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Failed to register suites, error: "+err.Error())
		return
	}

	count, err := r.Register(req.Context(), body)
	switch {
	case err == nil:
		writeMessage(w, http.StatusOK, fmt.Sprintf("Registered %d suites", count))
	case types.KindOf(err) == types.InvalidRequest:
		WarnLogger(LogHolder{ErrorKind: string(types.InvalidRequest), Message: err.Error()})
		writeMessage(w, http.StatusBadRequest, "Failed to register suites, error: "+err.Error())
	default:
		ErrorLogger(LogHolder{Message: err.Error(), Metric: fmt.Sprint(count)})
		writeMessage(w, http.StatusServiceUnavailable,
			fmt.Sprintf("Failed to register suites after publishing %d, error: %s", count, err.Error()))
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, types.RegisterResponse{Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		ErrorLogger(LogHolder{Message: errors.Wrap(err, "writing response").Error()})
	}
}
