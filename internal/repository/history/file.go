package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/KazimiOrg/telemetry/internal/config"
	"github.com/KazimiOrg/telemetry/internal/domain/release"
)

// Repository defines persistence operations for release records.
type Repository interface {
	Load(ctx context.Context) (*release.Record, error)
	Save(ctx context.Context, record *release.Record) error
}

// FileRepository keeps the last release record in a JSON file.
type FileRepository struct {
	// path is the filesystem location of the record.
	path string
	// mu serializes access to the file within the process.
	mu sync.Mutex
}

// ErrNotFound is returned when no release has been recorded yet.
var ErrNotFound = errors.New("no release recorded")

// errMalformed is returned when the file is valid JSON but not a release record.
var errMalformed = errors.New("malformed release record")

// Record field names in the stored struct.
const (
	fieldID          = "id"
	fieldTarget      = "target"
	fieldDistDir     = "dist_dir"
	fieldBinary      = "binary"
	fieldConfigPath  = "config_path"
	fieldChecksum    = "binary_checksum"
	fieldToolVersion = "tool_version"
	fieldTimestamp   = "timestamp"
	fieldActor       = "actor"
	fieldHostname    = "hostname"
	fieldUsername    = "username"
)

// NewFileRepository creates a repository backed by the file at path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Path returns the file the repository reads and writes.
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads the last release record.
func (r *FileRepository) Load(_ context.Context) (*release.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read history file: %w", err)
	}

	var stored structpb.Struct
	if err = protojson.Unmarshal(contents, &stored); err != nil {
		return nil, fmt.Errorf("decode history file: %w", err)
	}

	return fromStruct(&stored)
}

// Save replaces the stored record. The file is written beside its final
// location and renamed into place so readers never see a torn record.
func (r *FileRepository) Save(_ context.Context, record *release.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, err := toStruct(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	marshalOptions := protojson.MarshalOptions{
		Multiline: true,
		Indent:    "  ",
	}

	data, err := marshalOptions.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}

	tmp := r.path + ".tmp-" + strconv.Itoa(os.Getpid())
	if err = os.WriteFile(tmp, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write history file: %w", err)
	}

	if err = os.Rename(tmp, r.path); err != nil {
		_ = os.Remove(tmp)

		return fmt.Errorf("replace history file: %w", err)
	}

	return nil
}

// toStruct converts a record into its stored form.
func toStruct(record *release.Record) (*structpb.Struct, error) {
	fields := map[string]any{
		fieldID:          record.ID,
		fieldTarget:      record.Target,
		fieldDistDir:     record.DistDir,
		fieldBinary:      record.Binary,
		fieldConfigPath:  record.ConfigPath,
		fieldChecksum:    record.BinaryChecksum,
		fieldToolVersion: record.ToolVersion,
	}

	if !record.Timestamp.IsZero() {
		// Canonical proto JSON for timestamps is a quoted RFC 3339 string.
		encoded, err := protojson.Marshal(timestamppb.New(record.Timestamp))
		if err != nil {
			return nil, err
		}

		fields[fieldTimestamp], err = strconv.Unquote(string(encoded))
		if err != nil {
			return nil, err
		}
	}

	if record.Actor != nil {
		fields[fieldActor] = map[string]any{
			fieldHostname: record.Actor.Hostname,
			fieldUsername: record.Actor.Username,
		}
	}

	return structpb.NewStruct(fields)
}

// fromStruct converts the stored form back into a record.
func fromStruct(stored *structpb.Struct) (*release.Record, error) {
	fields := stored.GetFields()
	if fields[fieldID].GetStringValue() == "" {
		return nil, fmt.Errorf("%s: %w", fieldID, errMalformed)
	}

	record := &release.Record{
		ID:             fields[fieldID].GetStringValue(),
		Target:         fields[fieldTarget].GetStringValue(),
		DistDir:        fields[fieldDistDir].GetStringValue(),
		Binary:         fields[fieldBinary].GetStringValue(),
		ConfigPath:     fields[fieldConfigPath].GetStringValue(),
		BinaryChecksum: fields[fieldChecksum].GetStringValue(),
		ToolVersion:    fields[fieldToolVersion].GetStringValue(),
	}

	if raw := fields[fieldTimestamp].GetStringValue(); raw != "" {
		var ts timestamppb.Timestamp
		if err := protojson.Unmarshal([]byte(strconv.Quote(raw)), &ts); err != nil {
			return nil, fmt.Errorf("%s: %w", fieldTimestamp, err)
		}

		record.Timestamp = ts.AsTime()
	}

	if actor := fields[fieldActor].GetStructValue(); actor != nil {
		record.Actor = &release.Actor{
			Hostname: actor.GetFields()[fieldHostname].GetStringValue(),
			Username: actor.GetFields()[fieldUsername].GetStringValue(),
		}
	}

	return record, nil
}
