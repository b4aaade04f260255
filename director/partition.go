package director

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/suitedirector/suitedirector/types"
)

// DefaultChunkSize is the number of devices dispatched together when no other
// size is configured.
const DefaultChunkSize = 5

// DefaultMaxSuiteDevices caps the devices one registration may request when
// no other limit is configured.
const DefaultMaxSuiteDevices = 1000

// ParseSuiteRequest decodes and validates a /register-suites body. Every
// failure is an InvalidRequest.
func ParseSuiteRequest(body []byte) (types.SuiteRequest, error) {
	var request types.SuiteRequest

	if len(bytes.TrimSpace(body)) == 0 {
		return request, types.Errorf(types.InvalidRequest, "Invalid JSON format: empty body")
	}
	if err := json.Unmarshal(body, &request); err != nil {
		return request, types.NewError(types.InvalidRequest, errors.Wrap(err, "Invalid JSON format"))
	}

	// null devices decodes to a nil slice, while [] is allowed
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return request, types.NewError(types.InvalidRequest, errors.Wrap(err, "Invalid JSON format"))
	}

	missing := []string{}
	for _, field := range []struct {
		name  string
		value string
	}{
		{"suiteName", request.SuiteName},
		{"exeBucketUri", request.ExeBucketURI},
		{"tenantId", request.TenantID},
		{"dbUrl", request.DBURL},
	} {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}
	if devices, ok := raw["devices"]; !ok || string(bytes.TrimSpace(devices)) == "null" {
		missing = append(missing, "devices")
	}
	if len(missing) > 0 {
		return request, types.Errorf(types.InvalidRequest, "missing required field(s): %s", strings.Join(missing, ", "))
	}

	return request, nil
}

// ExpandDevices flattens profiles into one DeviceUnit per requested replica,
// preserving order. Requests for more than maxDevices units in total are
// rejected before anything is allocated.
func ExpandDevices(profiles []types.DeviceProfile, maxDevices int) ([]types.DeviceUnit, error) {
	if maxDevices < 1 {
		return nil, types.Errorf(types.InvalidRequest, "device limit must be at least 1, got %d", maxDevices)
	}

	total := 0
	for i, profile := range profiles {
		if profile.OSType == "" || profile.OSVersion == "" {
			return nil, types.Errorf(types.InvalidRequest, "devices[%d]: osType and osVersion are required", i)
		}
		if profile.Count == nil {
			return nil, types.Errorf(types.InvalidRequest, "devices[%d]: count is required", i)
		}
		if *profile.Count < 0 {
			return nil, types.Errorf(types.InvalidRequest, "devices[%d]: count must not be negative, got %d", i, *profile.Count)
		}
		if *profile.Count > maxDevices-total {
			return nil, types.Errorf(types.InvalidRequest, "devices[%d]: suite requests more than %d devices", i, maxDevices)
		}
		total += *profile.Count
	}

	devices := make([]types.DeviceUnit, 0, total)
	for _, profile := range profiles {
		for n := 0; n < *profile.Count; n++ {
			devices = append(devices, types.DeviceUnit{
				OSType:    profile.OSType,
				OSVersion: profile.OSVersion,
			})
		}
	}
	return devices, nil
}

// ChunkDevices slices devices into contiguous groups of at most chunkSize.
// The returned chunks do not share backing arrays with devices.
func ChunkDevices(devices []types.DeviceUnit, chunkSize int) ([][]types.DeviceUnit, error) {
	if chunkSize < 1 {
		return nil, types.Errorf(types.InvalidRequest, "chunk size must be at least 1, got %d", chunkSize)
	}
	chunks := make([][]types.DeviceUnit, 0, (len(devices)+chunkSize-1)/chunkSize)
	for start := 0; start < len(devices); start += chunkSize {
		end := start + chunkSize
		if end > len(devices) {
			end = len(devices)
		}
		chunk := make([]types.DeviceUnit, end-start)
		copy(chunk, devices[start:end])
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// Partition expands request into device units and groups them into suite
// chunks, each carrying the suite metadata. The result is deterministic for
// a given request and chunkSize, and nothing is returned on error.
func Partition(request types.SuiteRequest, chunkSize, maxDevices int) ([]types.SuiteChunk, error) {
	if chunkSize < 1 {
		return nil, types.Errorf(types.InvalidRequest, "chunk size must be at least 1, got %d", chunkSize)
	}

	devices, err := ExpandDevices(request.Devices, maxDevices)
	if err != nil {
		return nil, err
	}

	groups, err := ChunkDevices(devices, chunkSize)
	if err != nil {
		return nil, err
	}
	suites := make([]types.SuiteChunk, 0, len(groups))
	for _, group := range groups {
		suites = append(suites, types.SuiteChunk{
			SuiteName:    request.SuiteName,
			ExeBucketURI: request.ExeBucketURI,
			TenantID:     request.TenantID,
			DBURL:        request.DBURL,
			Devices:      group,
		})
	}
	return suites, nil
}

// RegisterSuites parses a raw registration payload and partitions it.
func RegisterSuites(body []byte, chunkSize, maxDevices int) ([]types.SuiteChunk, error) {
	request, err := ParseSuiteRequest(body)
	if err != nil {
		return nil, err
	}
	return Partition(request, chunkSize, maxDevices)
}
